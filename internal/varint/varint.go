// Package varint implements the variable-length integer encodings used
// throughout the segment block format: plain unsigned/signed varints,
// a reversed varint written tail-first so a decoder that only knows the
// end of a buffer can recover it, and a non-zero varint whose encoded
// bytes never contain a 0x00 byte (used wherever a zero byte doubles as
// an "empty slot" sentinel).
//
// All three encodings use the same 7-bits-per-byte, continuation-bit-in-
// the-MSB scheme as encoding/binary's Uvarint, so SizeOf matches the
// number of bytes Put would write for the same value.
package varint

import "fmt"

// MaxVarintLen64 is the largest number of bytes an unsigned or signed
// 64-bit varint can occupy.
const MaxVarintLen64 = 10

// PutUvarint encodes x into buf (which must have length >= SizeOfUvarint(x))
// and returns the number of bytes written.
func PutUvarint(buf []byte, x uint64) int {
	i := 0
	for x >= 0x80 {
		buf[i] = byte(x) | 0x80
		x >>= 7
		i++
	}
	buf[i] = byte(x)
	return i + 1
}

// AppendUvarint appends the varint encoding of x to buf and returns the
// extended slice.
func AppendUvarint(buf []byte, x uint64) []byte {
	for x >= 0x80 {
		buf = append(buf, byte(x)|0x80)
		x >>= 7
	}
	return append(buf, byte(x))
}

// Uvarint decodes a uint64 from the start of buf. It returns the value
// and the number of bytes consumed, or (0, 0) if buf is too small and
// (0, -n) if the encoding is invalid (overflow for any n > MaxVarintLen64).
func Uvarint(buf []byte) (uint64, int) {
	var x uint64
	var s uint
	for i, b := range buf {
		if i == MaxVarintLen64 {
			return 0, -(i + 1)
		}
		if b < 0x80 {
			if i == MaxVarintLen64-1 && b > 1 {
				return 0, -(i + 1)
			}
			return x | uint64(b)<<s, i + 1
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, 0
}

// SizeOfUvarint returns the number of bytes PutUvarint would write for x.
func SizeOfUvarint(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}

// PutVarint zig-zag encodes the signed value x and writes it as an
// unsigned varint into buf, returning the number of bytes written.
func PutVarint(buf []byte, x int64) int {
	ux := uint64(x) << 1
	if x < 0 {
		ux = ^ux
	}
	return PutUvarint(buf, ux)
}

// AppendVarint appends the zig-zag varint encoding of x to buf.
func AppendVarint(buf []byte, x int64) []byte {
	ux := uint64(x) << 1
	if x < 0 {
		ux = ^ux
	}
	return AppendUvarint(buf, ux)
}

// Varint decodes a zig-zag encoded signed varint, mirroring Uvarint's
// (value, bytesConsumed) contract.
func Varint(buf []byte) (int64, int) {
	ux, n := Uvarint(buf)
	if n <= 0 {
		return 0, n
	}
	x := int64(ux >> 1)
	if ux&1 != 0 {
		x = ^x
	}
	return x, n
}

// SizeOfVarint returns the number of bytes PutVarint would write for x.
func SizeOfVarint(x int64) int {
	ux := uint64(x) << 1
	if x < 0 {
		ux = ^ux
	}
	return SizeOfUvarint(ux)
}

// SizeOfUnsignedInt mirrors the classic varint size-of boundary table from
// spec.md §8.1: x is truncated to 32 bits and sized as that unsigned
// value, so every negative input up to -1 takes the 5-byte size of a
// 32-bit two's-complement value under plain (non-zig-zag) encoding.
func SizeOfUnsignedInt(x int64) int {
	return SizeOfUvarint(uint64(uint32(x)))
}

// EncodeReversed writes the varint encoding of x to the tail of dst,
// in reverse byte order, so that ReadLastUvarint can recover it given
// only a pointer to the end of the buffer. dst must already contain at
// least SizeOfUvarint(x) bytes of space at its end; EncodeReversed
// overwrites the last SizeOfUvarint(x) bytes.
func EncodeReversed(dst []byte, x uint64) int {
	var tmp [MaxVarintLen64]byte
	n := PutUvarint(tmp[:], x)
	for i := 0; i < n; i++ {
		dst[len(dst)-1-i] = tmp[i]
	}
	return n
}

// ReadLastUvarint decodes a varint that was written by EncodeReversed,
// reading backward from the end of buf. It returns the decoded value and
// the number of bytes the encoding occupied.
func ReadLastUvarint(buf []byte) (uint64, int, error) {
	var x uint64
	var s uint
	for i := 0; i < MaxVarintLen64 && i < len(buf); i++ {
		b := buf[len(buf)-1-i]
		x |= uint64(b&0x7f) << s
		s += 7
		if b < 0x80 {
			return x, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("varint: reversed varint not terminated within last %d bytes", MaxVarintLen64)
}

// EncodeNonZero encodes x such that no byte of the output is 0x00. The
// mapping shifts the value space by one (n -> n+1) and then applies the
// ordinary base-128 encoding: every continuation byte has its high bit
// set, and the final byte is non-zero because the shifted value is at
// least 1, so x == 0 no longer encodes to a single 0x00 byte.
func EncodeNonZero(x uint64) []byte {
	return AppendUvarintNonZero(nil, x)
}

// AppendUvarintNonZero appends the non-zero varint encoding of x to buf.
func AppendUvarintNonZero(buf []byte, x uint64) []byte {
	x++ // shift so zero is never a legal decoded value at any byte boundary
	for x > 0x7f {
		buf = append(buf, byte(x&0x7f)|0x80)
		x >>= 7
	}
	return append(buf, byte(x))
}

// DecodeNonZero decodes a value encoded by EncodeNonZero/AppendUvarintNonZero,
// returning the value and bytes consumed.
func DecodeNonZero(buf []byte) (uint64, int) {
	var x uint64
	var s uint
	for i, b := range buf {
		if i == MaxVarintLen64 {
			return 0, -(i + 1)
		}
		x |= uint64(b&0x7f) << s
		s += 7
		if b&0x80 == 0 {
			return x - 1, i + 1
		}
	}
	return 0, 0
}
