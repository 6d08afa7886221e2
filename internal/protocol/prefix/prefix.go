// Package prefix owns the protocol tag that opens every vrc20 message.
package prefix

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// TagLen is the encoded width of a Tag.
	TagLen = 16
	// DiscriminantOffset is where the operation byte sits in a message.
	DiscriminantOffset = TagLen
	// PayloadOffset is where the operation payload starts.
	PayloadOffset = TagLen + 1
)

// Tag is a 128-bit protocol family identifier.
type Tag struct {
	Lo uint64
	Hi uint64
}

func New(lo uint64) Tag {
	return Tag{Lo: lo}
}

func (t Tag) String() string {
	if t.Hi == 0 {
		return fmt.Sprintf("%d", t.Lo)
	}
	return fmt.Sprintf("0x%016x%016x", t.Hi, t.Lo)
}

// Encode returns the 16-byte little-endian encoding of t.
func (t Tag) Encode() []byte {
	return t.appendTo(make([]byte, 0, TagLen))
}

// EncodeWithDiscriminant returns the tag followed by id.
func (t Tag) EncodeWithDiscriminant(id uint8) []byte {
	buf := t.appendTo(make([]byte, 0, PayloadOffset))
	return append(buf, id)
}

// EncodeWithDiscriminantAndPayload returns the tag, id and payload concatenated.
func (t Tag) EncodeWithDiscriminantAndPayload(id uint8, payload []byte) []byte {
	buf := t.appendTo(make([]byte, 0, PayloadOffset+len(payload)))
	buf = append(buf, id)
	return append(buf, payload...)
}

// Match reports whether msg opens with the encoding of t.
func (t Tag) Match(msg []byte) bool {
	if len(msg) < TagLen {
		return false
	}
	var want [TagLen]byte
	t.put(want[:])
	return bytes.Equal(msg[:TagLen], want[:])
}

func (t Tag) appendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, t.Lo)
	return binary.LittleEndian.AppendUint64(buf, t.Hi)
}

func (t Tag) put(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], t.Lo)
	binary.LittleEndian.PutUint64(b[8:16], t.Hi)
}
