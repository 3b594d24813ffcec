// Package sizing provides overflow-safe size conversions and the wrapping
// 128-bit accumulator used for archive checksums.
package sizing

import (
	"encoding/binary"
	"io"
	"math"
	"math/bits"
)

// ToInt64 converts a uint64 to int64, returning overflowErr if it doesn't fit.
func ToInt64(size uint64, overflowErr error) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, overflowErr
	}
	return int64(size), nil
}

// ReadAllWithLimit reads everything from r, failing with overflowErr once
// more than maxSize bytes are produced. A maxSize of 0 disables the limit.
//
// The returned slice grows with the data actually read, so a lying size
// field can never force a huge up-front allocation.
func ReadAllWithLimit(r io.Reader, maxSize uint64, overflowErr error) ([]byte, error) {
	if maxSize == 0 {
		return io.ReadAll(r)
	}
	if maxSize > uint64(math.MaxInt64-1) {
		return nil, overflowErr
	}
	lr := &io.LimitedReader{R: r, N: int64(maxSize) + 1} //nolint:gosec // checked above
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > maxSize {
		return nil, overflowErr
	}
	return data, nil
}

// Uint128 is an unsigned 128-bit integer with wrapping addition.
type Uint128 struct {
	Lo, Hi uint64
}

// Add returns u+v modulo 2^128.
func (u Uint128) Add(v Uint128) Uint128 {
	lo, carry := bits.Add64(u.Lo, v.Lo, 0)
	hi, _ := bits.Add64(u.Hi, v.Hi, carry)
	return Uint128{Lo: lo, Hi: hi}
}

// Add32 returns u+v modulo 2^128 with v widened to 128 bits.
func (u Uint128) Add32(v uint32) Uint128 {
	return u.Add(Uint128{Lo: uint64(v)})
}

// AppendLE appends the little-endian encoding of u to b.
func (u Uint128) AppendLE(b []byte) []byte {
	b = binary.LittleEndian.AppendUint64(b, u.Lo)
	return binary.LittleEndian.AppendUint64(b, u.Hi)
}

// Uint128FromLE decodes a little-endian 16-byte value.
func Uint128FromLE(b []byte) Uint128 {
	_ = b[15]
	return Uint128{
		Lo: binary.LittleEndian.Uint64(b[:8]),
		Hi: binary.LittleEndian.Uint64(b[8:16]),
	}
}

// String formats u as 0x-prefixed hexadecimal.
func (u Uint128) String() string {
	const digits = "0123456789abcdef"
	if u.Hi == 0 && u.Lo == 0 {
		return "0x0"
	}
	var buf [34]byte
	i := len(buf)
	lo, hi := u.Lo, u.Hi
	for lo != 0 || hi != 0 {
		i--
		buf[i] = digits[lo&0xf]
		lo = lo>>4 | hi<<60
		hi >>= 4
	}
	i--
	buf[i] = 'x'
	i--
	buf[i] = '0'
	return string(buf[i:])
}
