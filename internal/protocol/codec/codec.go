// Package codec owns fixed-width scalar and tuple encoding for vrc20 payloads.
//
// Every scalar has a fixed width except strings, which carry a u32 length
// prefix. Tuples are the concatenation of their fields in declaration order.
package codec

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

const (
	AddressLen = 32
	U256Len    = 32
	BoolLen    = 1
	U8Len      = 1
	// StringHeaderLen is the byte length of the string length prefix.
	StringHeaderLen = 4
)

var (
	ErrShortBuffer   = errors.New("codec: short buffer")
	ErrTrailingBytes = errors.New("codec: trailing bytes")
	ErrInvalidBool   = errors.New("codec: invalid bool value")
	ErrStringTooLong = errors.New("codec: string too long")
)

// DecodeError describes where a fallible decode stopped.
type DecodeError struct {
	Offset int
	Want   int
	Have   int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v at offset %d (want=%d have=%d)", e.Err, e.Offset, e.Want, e.Have)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Address is an opaque 32-byte account identifier.
type Address [AddressLen]byte

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether every byte of a is zero.
func (a Address) IsZero() bool {
	return a == Address{}
}

// ParseAddress accepts a 64-digit hex string with optional 0x prefix.
func ParseAddress(raw string) (Address, error) {
	if len(raw) >= 2 && raw[0] == '0' && (raw[1] == 'x' || raw[1] == 'X') {
		raw = raw[2:]
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return Address{}, fmt.Errorf("codec: parse address: %w", err)
	}
	if len(b) != AddressLen {
		return Address{}, fmt.Errorf("codec: parse address: got %d bytes want %d", len(b), AddressLen)
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// Encoder appends fixed-width encodings to an owned buffer.
type Encoder struct {
	buf []byte
}

func NewEncoder(sizeHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, sizeHint)}
}

func (e *Encoder) Address(a Address) *Encoder {
	e.buf = append(e.buf, a[:]...)
	return e
}

func (e *Encoder) U256(v U256) *Encoder {
	e.buf = append(e.buf, v[:]...)
	return e
}

func (e *Encoder) U8(v uint8) *Encoder {
	e.buf = append(e.buf, v)
	return e
}

func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		return e.U8(1)
	}
	return e.U8(0)
}

// String writes a u32 little-endian byte length followed by the bytes of s.
// Callers keep s under math.MaxUint32 bytes; see FitsString.
func (e *Encoder) String(s string) *Encoder {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(s)))
	e.buf = append(e.buf, s...)
	return e
}

// FitsString reports whether s can be length-prefixed without overflow.
func FitsString(s string) bool {
	return uint64(len(s)) <= math.MaxUint32
}

// Bytes returns the encoded buffer. The encoder must not be reused.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Decoder reads fixed-width values from a borrowed buffer.
// The first failure sticks; later reads return zero values.
type Decoder struct {
	buf []byte
	off int
	err error
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.buf)-d.off < n {
		d.err = &DecodeError{Offset: d.off, Want: n, Have: len(d.buf) - d.off, Err: ErrShortBuffer}
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *Decoder) Address() Address {
	var a Address
	if b := d.take(AddressLen); b != nil {
		copy(a[:], b)
	}
	return a
}

func (d *Decoder) U256() U256 {
	var v U256
	if b := d.take(U256Len); b != nil {
		copy(v[:], b)
	}
	return v
}

func (d *Decoder) U8() uint8 {
	b := d.take(U8Len)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *Decoder) Bool() bool {
	off := d.off
	b := d.take(BoolLen)
	if b == nil {
		return false
	}
	switch b[0] {
	case 0:
		return false
	case 1:
		return true
	default:
		d.err = &DecodeError{Offset: off, Want: 1, Have: 1, Err: ErrInvalidBool}
		return false
	}
}

func (d *Decoder) String() string {
	hdr := d.take(StringHeaderLen)
	if hdr == nil {
		return ""
	}
	n := binary.LittleEndian.Uint32(hdr)
	if uint64(n) > uint64(len(d.buf)-d.off) {
		d.err = &DecodeError{Offset: d.off, Want: int(n), Have: len(d.buf) - d.off, Err: ErrShortBuffer}
		return ""
	}
	return string(d.take(int(n)))
}

// Remaining is the count of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.off
}

// Err returns the first read failure, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Finish returns the first read failure, or ErrTrailingBytes when the
// buffer holds more than the decoded shape.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.buf) {
		return &DecodeError{Offset: d.off, Want: 0, Have: len(d.buf) - d.off, Err: ErrTrailingBytes}
	}
	return nil
}
