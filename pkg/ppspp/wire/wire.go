// Package wire implements the fixed-width and length-delimited primitive
// codecs shared by every PPSPP wire structure. All multi-byte integers are
// big-endian, per RFC 7574.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortRead is returned whenever a read requires more bytes than remain
// in the input.
var ErrShortRead = errors.New("ppspp: short read")

// ReadFixed returns data[:n] and the remaining slice data[n:]. It fails with
// ErrShortRead if data is shorter than n bytes.
func ReadFixed(data []byte, n int) (value, rest []byte, err error) {
	if len(data) < n {
		return nil, nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortRead, n, len(data))
	}
	return data[:n], data[n:], nil
}

// ReadUint8 reads a single byte.
func ReadUint8(data []byte) (v uint8, rest []byte, err error) {
	b, rest, err := ReadFixed(data, 1)
	if err != nil {
		return 0, nil, err
	}
	return b[0], rest, nil
}

// ReadUint16 reads a big-endian uint16.
func ReadUint16(data []byte) (v uint16, rest []byte, err error) {
	b, rest, err := ReadFixed(data, 2)
	if err != nil {
		return 0, nil, err
	}
	return binary.BigEndian.Uint16(b), rest, nil
}

// ReadUint32 reads a big-endian uint32.
func ReadUint32(data []byte) (v uint32, rest []byte, err error) {
	b, rest, err := ReadFixed(data, 4)
	if err != nil {
		return 0, nil, err
	}
	return binary.BigEndian.Uint32(b), rest, nil
}

// ReadUint64 reads a big-endian uint64.
func ReadUint64(data []byte) (v uint64, rest []byte, err error) {
	b, rest, err := ReadFixed(data, 8)
	if err != nil {
		return 0, nil, err
	}
	return binary.BigEndian.Uint64(b), rest, nil
}

// ReadUintN reads a big-endian unsigned integer of width n (1, 2, 4 or 8
// bytes), returning it widened to uint64. Used for the width-dependent Live
// Discard Window option.
func ReadUintN(data []byte, n int) (v uint64, rest []byte, err error) {
	b, rest, err := ReadFixed(data, n)
	if err != nil {
		return 0, nil, err
	}
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, rest, nil
}

// PutUint8 appends a single byte.
func PutUint8(dst []byte, v uint8) []byte {
	return append(dst, v)
}

// PutUint16 appends a big-endian uint16.
func PutUint16(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

// PutUint32 appends a big-endian uint32.
func PutUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// PutUint64 appends a big-endian uint64.
func PutUint64(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// PutUintN appends a big-endian unsigned integer of width n (1, 2, 4 or 8
// bytes), truncated from v.
func PutUintN(dst []byte, v uint64, n int) []byte {
	b := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return append(dst, b...)
}
