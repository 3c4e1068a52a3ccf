// Package hashindex implements the hash-index block (spec.md §4.5): an
// open-addressed, double-hashed map from key hash to sorted-index offset
// (or an inlined "copied" entry), shared by the bloom filter package for
// its probe sequence.
package hashindex

import (
	"hash/crc32"

	"github.com/cespare/xxhash/v2"
	"github.com/iamNilotpal/ignite/internal/block"
	"github.com/iamNilotpal/ignite/internal/slice"
	"github.com/iamNilotpal/ignite/internal/varint"
	"github.com/iamNilotpal/ignite/pkg/errors"
)

// Split computes the double-hashing pair (h1, h2) spec.md §4.5 and §4.7
// both use: a 64-bit hash of key split into its high and low 32 bits.
func Split(key []byte) (h1, h2 uint32) {
	h := xxhash.Sum64(key)
	return uint32(h >> 32), uint32(h)
}

// Probe returns the candidate slot index for probe attempt i into a
// region of the given allocated size, reserving headerSize bytes at the
// front and writeAbleLargestValueSize bytes at the back so no entry
// write can run past the allocated region.
func Probe(h1, h2 uint32, i int, allocated, writeAbleLargestValueSize, headerSize int) int {
	span := allocated - writeAbleLargestValueSize - headerSize
	if span <= 0 {
		span = 1
	}
	idx := (int(h1) + i*int(h2)) & 0x7fffffff
	return idx%span + headerSize
}

// Header is the hash-index block's persisted configuration and quality
// counters (spec.md §6.1).
type Header struct {
	AllocatedBytes            int32
	MaxProbe                  int
	CopyIndex                 bool
	Hit                       int
	Miss                      int
	MinimumCRC                uint64
	WriteAbleLargestValueSize int
	MinimumNumberOfHits       int
}

// emptySlotWidth is the minimum number of consecutive zero bytes that
// marks an empty slot: a non-zero varint can never itself be all-zero
// (see internal/varint), so a run of this many zero bytes unambiguously
// signals "never written".
const emptySlotWidth = 1

// Builder places entries into an open-addressed table of allocated
// bytes, using CopyIndex mode when configured (inlined, CRC-validated
// entries) or offset mode (a non-zero varint pointing into the
// sorted-index block) otherwise.
type Builder struct {
	header  Header
	table   []byte
	written int
}

// NewBuilder returns a Builder over a zero-initialized table of
// header.AllocatedBytes bytes.
func NewBuilder(header Header) *Builder {
	return &Builder{header: header, table: make([]byte, header.AllocatedBytes)}
}

// Put inserts key at its computed probe sequence. In offset mode value is
// the sorted-index byte offset to store (as a non-zero varint of
// offset+1). In copied mode entryBytes is the raw sorted-index entry to
// inline, CRC-validated on read. Put returns false if all MaxProbe slots
// were occupied.
func (b *Builder) Put(key []byte, value int, entryBytes []byte) bool {
	h1, h2 := Split(key)
	headerSize := 0 // header is written separately at Close; slots start at 0 here

	for i := 0; i < b.header.MaxProbe; i++ {
		idx := Probe(h1, h2, i, len(b.table), b.header.WriteAbleLargestValueSize, headerSize)
		if b.isEmpty(idx) {
			if b.header.CopyIndex {
				b.writeCopied(idx, value, entryBytes)
			} else {
				b.writeOffset(idx, value)
			}
			b.written++
			b.header.Hit++
			return true
		}
	}
	b.header.Miss++
	return false
}

func (b *Builder) isEmpty(idx int) bool {
	if idx >= len(b.table) {
		return false
	}
	return b.table[idx] == 0
}

func (b *Builder) writeOffset(idx int, sortedIndexOffset int) {
	// No leading marker byte: a non-zero varint's first byte is never
	// 0x00 (internal/varint.EncodeNonZero guarantees it), so the slot's
	// first byte alone already distinguishes "occupied" from the
	// zero-initialized "empty" sentinel. A leading 0x00 marker here
	// would make every occupied offset-mode slot indistinguishable from
	// an empty one.
	s := slice.Wrap(b.table[idx:idx])
	s.WriteUvarintNonZero(uint64(sortedIndexOffset) + 1)
	copy(b.table[idx:], s.Bytes())
}

func (b *Builder) writeCopied(idx int, accessIndexOffset int, entryBytes []byte) {
	crc := crc32.Checksum(entryBytes, block.CastagnoliTable)

	s := slice.Wrap(b.table[idx:idx])
	s.WriteUvarint(uint64(crc))
	s.WriteUvarint(uint64(accessIndexOffset))
	s.Write(entryBytes)
	if len(entryBytes) > 0 && entryBytes[len(entryBytes)-1] == 0x00 {
		s.WriteByte(0x01) // explicit trailer flag; never inferred from entry content
	}
	copy(b.table[idx:], s.Bytes())
}

// Hits returns the number of successful probe-sequence placements so far.
func (b *Builder) Hits() int { return b.written }

// Close validates the minimum-hit quality gate and frames the block.
func (b *Builder) Close() ([]byte, error) {
	if b.written < b.header.MinimumNumberOfHits {
		return nil, errors.NewIntegrityError(
			nil, errors.ErrorCodeInternal, "hash index hit count below minimumNumberOfHits",
		).WithBlockKind("hashIndex").WithDetail("hits", b.written).WithDetail("required", b.header.MinimumNumberOfHits)
	}

	w := block.NewWriter("hashIndex", 64, block.CodecNone)
	h := w.Header()
	h.WriteByte(byte(b.header.AllocatedBytes >> 24))
	h.WriteByte(byte(b.header.AllocatedBytes >> 16))
	h.WriteByte(byte(b.header.AllocatedBytes >> 8))
	h.WriteByte(byte(b.header.AllocatedBytes))
	h.WriteUvarint(uint64(b.header.MaxProbe))
	h.WriteByte(boolByte(b.header.CopyIndex))
	h.WriteUvarint(uint64(b.header.Hit))
	h.WriteUvarint(uint64(b.header.Miss))
	h.WriteUvarint(b.header.MinimumCRC)
	h.WriteUvarint(uint64(b.header.WriteAbleLargestValueSize))
	w.Body().Write(b.table)
	return w.Close()
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// Reader resolves keys against a parsed hash-index block.
type Reader struct {
	header Header
	table  []byte
}

// Parse parses a framed hash-index block buffer.
func Parse(buf []byte) (*Reader, error) {
	r, err := block.ParseReader("hashIndex", buf)
	if err != nil {
		return nil, err
	}
	h := r.Header()
	if len(h) < 4 {
		return nil, errors.NewCorruptVarintError("hashIndex", 0, nil)
	}
	allocated := int32(h[0])<<24 | int32(h[1])<<16 | int32(h[2])<<8 | int32(h[3])
	pos := 4

	maxProbe, n := varint.Uvarint(h[pos:])
	pos += n
	copyIndex := h[pos] != 0
	pos++
	hit, n := varint.Uvarint(h[pos:])
	pos += n
	miss, n := varint.Uvarint(h[pos:])
	pos += n
	minCRC, n := varint.Uvarint(h[pos:])
	pos += n
	writeable, _ := varint.Uvarint(h[pos:])

	header := Header{
		AllocatedBytes:            allocated,
		MaxProbe:                  int(maxProbe),
		CopyIndex:                 copyIndex,
		Hit:                       int(hit),
		Miss:                      int(miss),
		MinimumCRC:                minCRC,
		WriteAbleLargestValueSize: int(writeable),
	}
	return &Reader{header: header, table: r.Body()}, nil
}

// AssertFunc validates a candidate slot against the target key. In
// offset mode sortedIndexOffset is the sorted-index byte offset to
// re-read and match; entryRemainder/crc are zero/nil. In copied mode
// entryRemainder is everything after the accessIndexOffset varint up to
// the end of the allocated table (the caller, which alone knows the
// sorted-index entry encoding, determines the real entry length and
// validates it against crc using hash/crc32 with block.CastagnoliTable).
type AssertFunc func(sortedIndexOffset int, entryRemainder []byte, crc uint32) bool

// Get probes up to MaxProbe slots for key, invoking assert at each
// occupied candidate. It returns the first slot assert accepts.
func (r *Reader) Get(key []byte, assert AssertFunc) (found bool, sortedIndexOffset int, err error) {
	h1, h2 := Split(key)
	headerSize := 0

	for i := 0; i < r.header.MaxProbe; i++ {
		idx := Probe(h1, h2, i, len(r.table), r.header.WriteAbleLargestValueSize, headerSize)
		if idx >= len(r.table) {
			continue
		}

		if r.header.CopyIndex {
			ok, off, remainder, crc := r.readCopied(idx)
			if !ok {
				continue
			}
			if crc < uint32(r.header.MinimumCRC) {
				continue
			}
			if assert(off, remainder, crc) {
				return true, off, nil
			}
			continue
		}

		if r.table[idx] == 0 {
			continue // empty slot: unwritten, treat as a probe miss
		}
		off, ok := r.readOffset(idx)
		if !ok {
			continue
		}
		if assert(off, nil, 0) {
			return true, off, nil
		}
	}
	return false, 0, nil
}

func (r *Reader) readOffset(idx int) (int, bool) {
	if idx >= len(r.table) || r.table[idx] == 0 {
		return 0, false
	}
	v, n := varint.DecodeNonZero(r.table[idx:])
	if n <= 0 || v == 0 {
		return 0, false
	}
	return int(v - 1), true
}

func (r *Reader) readCopied(idx int) (ok bool, accessIndexOffset int, remainder []byte, crc uint32) {
	rest := r.table[idx:]
	crcVal, n := varint.Uvarint(rest)
	if n <= 0 || crcVal == 0 {
		return false, 0, nil, 0
	}
	pos := n
	accessOffset, n2 := varint.Uvarint(rest[pos:])
	if n2 <= 0 {
		return false, 0, nil, 0
	}
	pos += n2
	return true, int(accessOffset), rest[pos:], uint32(crcVal)
}
