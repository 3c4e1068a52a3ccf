// Package bloom implements the bloom-filter block (spec.md §4.7): a
// membership negative-filter sized from the expected key count and a
// target false-positive rate, probed with the same h1/h2 double-hashing
// scheme internal/block/hashindex uses.
package bloom

import (
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/iamNilotpal/ignite/internal/block"
	"github.com/iamNilotpal/ignite/internal/block/hashindex"
	"github.com/iamNilotpal/ignite/internal/varint"
	"github.com/iamNilotpal/ignite/pkg/errors"
)

// Size computes (numberOfBits, maxProbe) for n expected keys at target
// false-positive rate p, per spec.md §4.7's formulas.
func Size(n int, p float64) (numberOfBits uint64, maxProbe int) {
	if n <= 0 {
		n = 1
	}
	bits := math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2))
	probe := math.Ceil(bits / float64(n) * math.Ln2)
	return uint64(bits), int(probe)
}

// Builder accumulates keys into a bit set sized at construction.
type Builder struct {
	bits     *bitset.BitSet
	maxProbe int
	disabled bool
}

// NewBuilder returns a Builder sized for n expected keys at false-positive
// rate p. disabled should be true when the owning Segment contains any
// Remove-range, per spec.md §4.7's "cannot be represented by a
// positive-only filter" rule; Close then returns a framed block whose
// header holds only the disabled flag and whose body is empty.
func NewBuilder(n int, p float64, disabled bool) *Builder {
	numberOfBits, maxProbe := Size(n, p)
	return &Builder{bits: bitset.New(uint(numberOfBits)), maxProbe: maxProbe, disabled: disabled}
}

// Add sets the maxProbe bits derived from key's h1/h2 double hash.
func (b *Builder) Add(key []byte) {
	if b.disabled {
		return
	}
	h1, h2 := hashindex.Split(key)
	size := b.bits.Len()
	for i := 0; i < b.maxProbe; i++ {
		idx := (uint64(h1) + uint64(i)*uint64(h2)) % uint64(size)
		b.bits.Set(uint(idx))
	}
}

// Close frames and returns the block's bytes, or a disabled marker block
// when the builder was constructed with disabled=true.
func (b *Builder) Close() ([]byte, error) {
	w := block.NewWriter("bloomFilter", 16, block.CodecNone)
	h := w.Header()
	h.WriteByte(boolByte(b.disabled))
	if b.disabled {
		return w.Close()
	}

	h.WriteUvarint(uint64(b.bits.Len()))
	h.WriteUvarint(uint64(b.maxProbe))

	raw, err := b.bits.MarshalBinary()
	if err != nil {
		return nil, err
	}
	w.Body().Write(raw)
	return w.Close()
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// Reader answers membership queries against a parsed bloom-filter block.
type Reader struct {
	disabled bool
	bits     *bitset.BitSet
	maxProbe int
}

// Parse parses a framed bloom-filter block buffer.
func Parse(buf []byte) (*Reader, error) {
	r, err := block.ParseReader("bloomFilter", buf)
	if err != nil {
		return nil, err
	}
	h := r.Header()
	if len(h) == 0 {
		return nil, errors.NewCorruptVarintError("bloomFilter", 0, nil)
	}
	disabled := h[0] != 0
	if disabled {
		return &Reader{disabled: true}, nil
	}

	pos := 1
	_, n := varint.Uvarint(h[pos:])
	pos += n
	maxProbe, n := varint.Uvarint(h[pos:])
	pos += n

	bits := &bitset.BitSet{}
	if err := bits.UnmarshalBinary(r.Body()); err != nil {
		return nil, err
	}
	return &Reader{bits: bits, maxProbe: int(maxProbe)}, nil
}

// MayContain reports whether key might be present. Always true when the
// filter was disabled (every lookup must fall through to the hash/binary
// search indexes).
func (r *Reader) MayContain(key []byte) bool {
	if r.disabled {
		return true
	}
	h1, h2 := hashindex.Split(key)
	size := r.bits.Len()
	for i := 0; i < r.maxProbe; i++ {
		idx := (uint64(h1) + uint64(i)*uint64(h2)) % uint64(size)
		if !r.bits.Test(uint(idx)) {
			return false
		}
	}
	return true
}
