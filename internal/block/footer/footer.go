// Package footer implements the trailing footer block (spec.md §4.8):
// fixed magic bytes, entry counts, and byte offsets into the other
// blocks, read by seeking to the file end minus a bounded tail.
package footer

import (
	"github.com/iamNilotpal/ignite/internal/block"
	"github.com/iamNilotpal/ignite/internal/varint"
	"github.com/iamNilotpal/ignite/pkg/errors"
)

// Magic is the fixed footer format id (spec.md §6.1).
const Magic byte = 0x01

// MaxSize bounds how many trailing bytes a reader needs to fetch to
// recover the footer without knowing the Segment's full length up front.
const MaxSize = 256

// Footer is the fully decoded trailer.
type Footer struct {
	KeyValueCount   uint64
	NumberOfRanges  uint64
	HasPut          bool
	CreatedInLevel  uint32
	ValuesOffset    int64
	ValuesSize      int64
	SortedIndexOffset int64
	SortedIndexSize int64
	HashIndexOffset int64
	HashIndexSize   int64
	BinarySearchOffset int64
	BinarySearchSize int64
	BloomFilterOffset int64
	BloomFilterSize int64
}

// Builder accumulates the footer's fields for one Segment.
type Builder struct {
	f Footer
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// WithCounts sets the entry/range counts and level.
func (b *Builder) WithCounts(keyValueCount, numberOfRanges uint64, hasPut bool, level uint32) *Builder {
	b.f.KeyValueCount = keyValueCount
	b.f.NumberOfRanges = numberOfRanges
	b.f.HasPut = hasPut
	b.f.CreatedInLevel = level
	return b
}

// WithValues records the values block's location (size 0 if absent).
func (b *Builder) WithValues(offset, size int64) *Builder {
	b.f.ValuesOffset, b.f.ValuesSize = offset, size
	return b
}

// WithSortedIndex records the sorted-index block's location.
func (b *Builder) WithSortedIndex(offset, size int64) *Builder {
	b.f.SortedIndexOffset, b.f.SortedIndexSize = offset, size
	return b
}

// WithHashIndex records the hash-index block's location (size 0 if absent).
func (b *Builder) WithHashIndex(offset, size int64) *Builder {
	b.f.HashIndexOffset, b.f.HashIndexSize = offset, size
	return b
}

// WithBinarySearch records the binary-search-index block's location (size 0 if absent).
func (b *Builder) WithBinarySearch(offset, size int64) *Builder {
	b.f.BinarySearchOffset, b.f.BinarySearchSize = offset, size
	return b
}

// WithBloomFilter records the bloom-filter block's location (size 0 if absent).
func (b *Builder) WithBloomFilter(offset, size int64) *Builder {
	b.f.BloomFilterOffset, b.f.BloomFilterSize = offset, size
	return b
}

// Close frames and returns the footer's trailer bytes: the framed footer
// block, followed by a reversed varint of that block's byte length (so a
// reader holding only a bounded tail of the file can recover the block's
// start without knowing it up front, per spec.md §4.2's reversed-varint
// "left-size" technique), followed by the single terminal Magic byte
// spec.md §6.1 requires as the file's last byte.
func (b *Builder) Close() ([]byte, error) {
	w := block.NewWriter("footer", 0, block.CodecNone)
	body := w.Body()

	body.WriteUvarint(b.f.KeyValueCount)
	body.WriteUvarint(b.f.NumberOfRanges)
	body.WriteByte(boolByte(b.f.HasPut))
	body.WriteUvarint(uint64(b.f.CreatedInLevel))

	writeRegion(body, b.f.ValuesOffset, b.f.ValuesSize)
	writeRegion(body, b.f.SortedIndexOffset, b.f.SortedIndexSize)
	writeRegion(body, b.f.HashIndexOffset, b.f.HashIndexSize)
	writeRegion(body, b.f.BinarySearchOffset, b.f.BinarySearchSize)
	writeRegion(body, b.f.BloomFilterOffset, b.f.BloomFilterSize)

	blockBytes, err := w.Close()
	if err != nil {
		return nil, err
	}

	lenFieldSize := varint.SizeOfUvarint(uint64(len(blockBytes)))
	out := make([]byte, len(blockBytes)+lenFieldSize+1)
	copy(out, blockBytes)
	varint.EncodeReversed(out[:len(blockBytes)+lenFieldSize], uint64(len(blockBytes)))
	out[len(out)-1] = Magic
	return out, nil
}

func writeRegion(s interface{ WriteVarint(int64) }, offset, size int64) {
	s.WriteVarint(offset)
	s.WriteVarint(size)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// Parse decodes a footer from tail, the trailing MaxSize (or fewer)
// bytes of a Segment file. tail need not begin at the footer block's
// start: the block's length is recovered by reading a reversed varint
// immediately before the terminal Magic byte, then the block itself is
// sliced out from just before that. segmentID is used only for error
// context.
func Parse(tail []byte, segmentID uint16) (Footer, error) {
	if len(tail) == 0 || tail[len(tail)-1] != Magic {
		got := byte(0)
		if len(tail) > 0 {
			got = tail[len(tail)-1]
		}
		return Footer{}, errors.NewFooterMagicMismatchError(segmentID, Magic, got)
	}

	rest := tail[:len(tail)-1]
	footerLen, n, err := varint.ReadLastUvarint(rest)
	if err != nil {
		return Footer{}, errors.NewCorruptVarintError("footer", int64(len(tail)-1), err)
	}
	if n+int(footerLen) > len(rest) {
		return Footer{}, errors.NewEntrySizeOverflowError(0, int64(n), int(footerLen), len(rest)-n)
	}

	blockBytes := rest[len(rest)-n-int(footerLen) : len(rest)-n]
	r, err := block.ParseReader("footer", blockBytes)
	if err != nil {
		return Footer{}, err
	}
	body := r.Body()
	pos := 0

	kvCount, n := varint.Uvarint(body[pos:])
	pos += n
	ranges, n := varint.Uvarint(body[pos:])
	pos += n
	hasPut := body[pos] != 0
	pos++
	level, n := varint.Uvarint(body[pos:])
	pos += n

	f := Footer{KeyValueCount: kvCount, NumberOfRanges: ranges, HasPut: hasPut, CreatedInLevel: uint32(level)}

	f.ValuesOffset, f.ValuesSize, pos = readRegion(body, pos)
	f.SortedIndexOffset, f.SortedIndexSize, pos = readRegion(body, pos)
	f.HashIndexOffset, f.HashIndexSize, pos = readRegion(body, pos)
	f.BinarySearchOffset, f.BinarySearchSize, pos = readRegion(body, pos)
	f.BloomFilterOffset, f.BloomFilterSize, pos = readRegion(body, pos)

	return f, nil
}

func readRegion(body []byte, pos int) (offset, size int64, newPos int) {
	o, n := varint.Varint(body[pos:])
	pos += n
	s, n := varint.Varint(body[pos:])
	pos += n
	return o, s, pos
}
