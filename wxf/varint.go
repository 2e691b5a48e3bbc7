package wxf

import (
	"encoding/binary"
	"errors"
)

var (
	errVarintShort    = errors.New("varint truncated")
	errVarintOverflow = errors.New("varint overflows 64 bits")
)

// AppendVarint appends x as a base-128 little-endian varint: seven bits per
// byte, high bit set on every byte but the last. The encoding is minimal.
func AppendVarint(buf []byte, x uint64) []byte {
	return binary.AppendUvarint(buf, x)
}

// VarintLen returns the encoded size of x.
func VarintLen(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}

// DecodeVarint reads a varint from the front of buf and returns the value
// and the number of bytes consumed.
func DecodeVarint(buf []byte) (uint64, int, error) {
	x, n := binary.Uvarint(buf)
	switch {
	case n == 0:
		return 0, 0, errVarintShort
	case n < 0:
		return 0, -n, errVarintOverflow
	}
	return x, n, nil
}
