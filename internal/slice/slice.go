// Package slice provides a small, allocation-conscious byte buffer with a
// write cursor, used by every block writer in internal/block/*. It wraps
// a possibly-borrowed []byte and grows it the same way bytes.Buffer does,
// but additionally understands the varint and prefix-compression helpers
// the segment block format relies on, so callers never hand-roll offset
// arithmetic over a raw []byte.
package slice

import "github.com/iamNilotpal/ignite/internal/varint"

// Slice is a write cursor over a byte buffer. The zero value is ready to
// use. A Slice obtained via Wrap borrows its backing array and will
// reallocate (detaching from the caller's array) the moment it needs to
// grow past the wrapped capacity.
type Slice struct {
	buf []byte
}

// New returns an empty Slice pre-sized to hint bytes of capacity.
func New(hint int) *Slice {
	return &Slice{buf: make([]byte, 0, hint)}
}

// Wrap returns a Slice whose initial contents are b. Writes that fit
// within cap(b) mutate b in place; writes past that reallocate.
func Wrap(b []byte) *Slice {
	return &Slice{buf: b}
}

// Bytes returns the buffer's current contents. The returned slice aliases
// the Slice's internal array and must not be retained across further
// writes.
func (s *Slice) Bytes() []byte { return s.buf }

// Len returns the number of bytes written so far.
func (s *Slice) Len() int { return len(s.buf) }

// Reset empties the buffer without releasing its backing array.
func (s *Slice) Reset() { s.buf = s.buf[:0] }

// WriteByte appends a single byte.
func (s *Slice) WriteByte(b byte) { s.buf = append(s.buf, b) }

// Write appends p in full.
func (s *Slice) Write(p []byte) { s.buf = append(s.buf, p...) }

// WriteUvarint appends the unsigned varint encoding of x.
func (s *Slice) WriteUvarint(x uint64) { s.buf = varint.AppendUvarint(s.buf, x) }

// WriteVarint appends the zig-zag signed varint encoding of x.
func (s *Slice) WriteVarint(x int64) { s.buf = varint.AppendVarint(s.buf, x) }

// WriteUvarintNonZero appends the non-zero varint encoding of x.
func (s *Slice) WriteUvarintNonZero(x uint64) {
	s.buf = varint.AppendUvarintNonZero(s.buf, x)
}

// ReserveReversedUvarint appends n zero bytes as a placeholder, to be
// filled in later by CommitReversedUvarint once the value to encode is
// known. This is used by the reversed-varint tail encoding (spec.md
// §4.2), where the "left size" isn't known until the left-hand payload
// has been fully written.
func (s *Slice) ReserveReversedUvarint(n int) int {
	start := len(s.buf)
	for i := 0; i < n; i++ {
		s.buf = append(s.buf, 0)
	}
	return start
}

// CommitReversedUvarint writes x, reversed, into the n-byte region
// starting at start (as returned by ReserveReversedUvarint).
func (s *Slice) CommitReversedUvarint(start, n int, x uint64) {
	varint.EncodeReversed(s.buf[start:start+n], x)
}

// WriteUint32 appends x as 4 raw big-endian bytes. Used for the
// sorted-index block's fixed-width entry-size trailer, which must be a
// known constant width so a sequential reader can always find it by
// looking at the last 4 bytes of an entry.
func (s *Slice) WriteUint32(x uint32) {
	s.buf = append(s.buf, byte(x>>24), byte(x>>16), byte(x>>8), byte(x))
}

// ReadUint32 decodes 4 raw big-endian bytes starting at off.
func ReadUint32(buf []byte, off int) uint32 {
	return uint32(buf[off])<<24 | uint32(buf[off+1])<<16 | uint32(buf[off+2])<<8 | uint32(buf[off+3])
}

// CommonPrefixLen returns the length of the longest shared prefix of a
// and b.
func CommonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// CompressPrefix returns (commonPrefixLen, suffix) such that
// DecompressPrefix(prev, suffix, commonPrefixLen) reconstructs cur.
func CompressPrefix(prev, cur []byte) (int, []byte) {
	n := CommonPrefixLen(prev, cur)
	return n, cur[n:]
}

// DecompressPrefix reconstructs a key from the previous key, a suffix,
// and the shared prefix length.
func DecompressPrefix(prev []byte, suffix []byte, commonPrefixLen int) []byte {
	out := make([]byte, commonPrefixLen+len(suffix))
	copy(out, prev[:commonPrefixLen])
	copy(out[commonPrefixLen:], suffix)
	return out
}

// CompressJoin encodes (left, right) as a single buffer: the reversed
// varint of left's length is written at the tail so DecompressJoin can
// recover the split point without a forward length prefix.
func CompressJoin(left, right []byte) []byte {
	n := varint.SizeOfUvarint(uint64(len(left)))
	out := make([]byte, 0, len(left)+len(right)+n)
	out = append(out, left...)
	out = append(out, right...)
	out = append(out, make([]byte, n)...)
	varint.EncodeReversed(out, uint64(len(left)))
	return out
}

// DecompressJoin is the inverse of CompressJoin.
func DecompressJoin(joined []byte) (left, right []byte, err error) {
	leftSize, n, err := varint.ReadLastUvarint(joined)
	if err != nil {
		return nil, nil, err
	}
	payload := joined[:len(joined)-n]
	return payload[:leftSize], payload[leftSize:], nil
}
