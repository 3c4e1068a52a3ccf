// Package binarysearch implements the binary-search-index block (spec.md
// §4.6): a fixed-width array of sorted-index offsets, searched via the
// BinarySearchContext abstraction.
package binarysearch

import (
	"sort"

	"github.com/iamNilotpal/ignite/internal/block"
	"github.com/iamNilotpal/ignite/internal/slice"
	"github.com/iamNilotpal/ignite/internal/varint"
	"github.com/iamNilotpal/ignite/pkg/errors"
)

// bytesPerValue is the fixed width of each stored offset: a uint32
// byte-offset into the sorted-index block.
const bytesPerValue = 4

// Builder accumulates sorted-index offsets in ascending key order.
type Builder struct {
	writer  *block.Writer
	isFull  bool
	entries int
}

// NewBuilder returns a Builder. isFullIndex records whether every
// sorted-index entry is present here (true) or only a subset that missed
// the hash index (false), matching spec.md §4.9's population rule.
func NewBuilder(isFullIndex bool) *Builder {
	return &Builder{writer: block.NewWriter("binarySearchIndex", 16, block.CodecNone), isFull: isFullIndex}
}

// Append records the sorted-index offset of the next entry in ascending
// key order.
func (b *Builder) Append(sortedIndexOffset uint32) {
	b.writer.Body().WriteUint32(sortedIndexOffset)
	b.entries++
}

// Close frames and returns the block's bytes.
func (b *Builder) Close() ([]byte, error) {
	h := b.writer.Header()
	h.WriteUvarint(uint64(b.entries))
	h.WriteByte(boolByte(b.isFull))
	return b.writer.Close()
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// Context is the BinarySearchContext abstraction spec.md §4.6 describes:
// targetKey plus a compare function, driving Seek against a Reader.
type Context struct {
	TargetKey []byte
	Compare   func(a, b []byte) int
}

// SeekResult mirrors sortedindex.Result's shape without importing that
// package (binarysearch is a lower-level building block sortedindex's
// higher-level segment orchestration composes, not vice versa).
type SeekResult struct {
	Matched       bool
	SortedIndexOffset int
	LowerOffset   int
	HasLower      bool
	HigherOffset  int
	HasHigher     bool
}

// Reader exposes classic binary search over a parsed binary-search-index
// block, given a callback that resolves a sorted-index offset to its key.
type Reader struct {
	entries int
	isFull  bool
	body    []byte
}

// Parse parses a framed binary-search-index block buffer.
func Parse(buf []byte) (*Reader, error) {
	r, err := block.ParseReader("binarySearchIndex", buf)
	if err != nil {
		return nil, err
	}
	h := r.Header()
	entries, n := varint.Uvarint(h)
	if n <= 0 || n >= len(h) {
		return nil, errors.NewCorruptVarintError("binarySearchIndex", 0, nil)
	}
	isFull := h[n] != 0
	return &Reader{entries: int(entries), isFull: isFull, body: r.Body()}, nil
}

// Count returns the number of offsets stored.
func (r *Reader) Count() int { return r.entries }

// IsFullIndex reports whether this block covers every sorted-index entry.
func (r *Reader) IsFullIndex() bool { return r.isFull }

// OffsetAt returns the sorted-index byte offset stored at position i.
func (r *Reader) OffsetAt(i int) uint32 {
	return slice.ReadUint32(r.body, i*bytesPerValue)
}

// Seek runs sort.Search against keyAt (a callback resolving position i to
// its sorted key) to find ctx.TargetKey, returning the matched position
// or the (lower, higher) bracketing positions.
func (r *Reader) Seek(ctx Context, keyAt func(i int) []byte) SeekResult {
	if r.entries == 0 {
		return SeekResult{}
	}

	idx := sort.Search(r.entries, func(i int) bool {
		return ctx.Compare(keyAt(i), ctx.TargetKey) >= 0
	})

	if idx < r.entries && ctx.Compare(keyAt(idx), ctx.TargetKey) == 0 {
		return SeekResult{Matched: true, SortedIndexOffset: int(r.OffsetAt(idx))}
	}

	res := SeekResult{}
	if idx > 0 {
		res.HasLower = true
		res.LowerOffset = int(r.OffsetAt(idx - 1))
	}
	if idx < r.entries {
		res.HasHigher = true
		res.HigherOffset = int(r.OffsetAt(idx))
	}
	return res
}
