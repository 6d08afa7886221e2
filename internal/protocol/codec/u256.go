package codec

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// U256 is an unsigned 256-bit integer stored as 32 little-endian bytes.
type U256 [U256Len]byte

// MaxU256 is 2^256-1.
var MaxU256 = func() U256 {
	var v U256
	for i := range v {
		v[i] = 0xff
	}
	return v
}()

// U256FromUint64 widens v to 256 bits.
func U256FromUint64(v uint64) U256 {
	return U256FromInt(uint256.NewInt(v))
}

// U256FromInt converts a holiman integer into the wire representation.
func U256FromInt(v *uint256.Int) U256 {
	be := v.Bytes32()
	var out U256
	for i := 0; i < U256Len; i++ {
		out[i] = be[U256Len-1-i]
	}
	return out
}

// ParseU256 accepts a base-10 or 0x-prefixed hex string.
func ParseU256(raw string) (U256, error) {
	b, ok := new(big.Int).SetString(strings.TrimSpace(raw), 0)
	if !ok {
		return U256{}, fmt.Errorf("codec: parse u256 %q: invalid number", raw)
	}
	if b.Sign() < 0 {
		return U256{}, fmt.Errorf("codec: parse u256 %q: negative", raw)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return U256{}, fmt.Errorf("codec: parse u256 %q: overflows 256 bits", raw)
	}
	return U256FromInt(v), nil
}

// Int returns v as a holiman integer for arithmetic.
func (v U256) Int() *uint256.Int {
	var be [U256Len]byte
	for i := 0; i < U256Len; i++ {
		be[i] = v[U256Len-1-i]
	}
	return new(uint256.Int).SetBytes32(be[:])
}

// String renders v in base 10.
func (v U256) String() string {
	return v.Int().Dec()
}

func (v U256) IsZero() bool {
	return v == U256{}
}
