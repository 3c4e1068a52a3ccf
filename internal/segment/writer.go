// Package segment implements the segment writer and reader (spec.md
// §4.9/§4.10): the unit of on-disk storage that composes the values,
// sorted-index, hash-index, binary-search-index, and bloom-filter
// blocks behind a trailing footer, and resolves Get/Higher/Lower
// queries against that layout over the complete file bytes.
package segment

import (
	"github.com/iamNilotpal/ignite/internal/block"
	"github.com/iamNilotpal/ignite/internal/block/binarysearch"
	"github.com/iamNilotpal/ignite/internal/block/bloom"
	"github.com/iamNilotpal/ignite/internal/block/footer"
	"github.com/iamNilotpal/ignite/internal/block/hashindex"
	"github.com/iamNilotpal/ignite/internal/block/sortedindex"
	"github.com/iamNilotpal/ignite/internal/block/values"
	"github.com/iamNilotpal/ignite/internal/kv"
)

// WriterConfig controls which auxiliary indexes a Writer builds and how
// the sorted-index block compresses its keys.
type WriterConfig struct {
	Codec                       block.Codec
	EnableBloom                 bool
	BloomFalsePositiveRate      float64
	EnableHashIndex             bool
	HashIndexLoadFactor         float64 // allocated bytes as a multiple of (entries * avg entry width)
	EnableBinarySearchIndex     bool
	HasPrefixCompression        bool
	PrefixCompressionResetCount uint32
	Level                       uint32
}

// DefaultWriterConfig returns sensible defaults: every auxiliary index
// enabled, zstd body compression, and a restart point every 16 entries.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Codec:                       block.CodecZstd,
		EnableBloom:                 true,
		BloomFalsePositiveRate:      0.01,
		EnableHashIndex:             true,
		HashIndexLoadFactor:         1.5,
		EnableBinarySearchIndex:     true,
		HasPrefixCompression:        true,
		PrefixCompressionResetCount: 16,
		Level:                       0,
	}
}

type pendingKey struct {
	key           []byte
	restartOffset uint32
}

// Writer accumulates resolved kv.Entry values in ascending key order and
// produces a fully framed segment file on Close.
//
// Entries stream directly into the values and sorted-index blocks, but
// the hash-index, binary-search-index, and bloom-filter blocks all need
// either the final entry count or the complete key set up front, so
// Writer defers building them until Close.
type Writer struct {
	cfg    WriterConfig
	values *values.Builder
	sorted *sortedindex.Builder

	pending        []pendingKey
	restartOffsets []uint32

	lastRestartOffset uint32
	count             uint64
	hasPut            bool
	hasRemove         bool
}

// NewWriter returns an empty Writer.
func NewWriter(cfg WriterConfig) *Writer {
	header := sortedindex.Header{
		EnableAccessPositionIndex:   true,
		HasPrefixCompression:        cfg.HasPrefixCompression,
		PrefixCompressionResetCount: cfg.PrefixCompressionResetCount,
	}
	return &Writer{
		cfg:    cfg,
		values: values.NewBuilder(cfg.Codec),
		sorted: sortedindex.NewBuilder(header, cfg.Codec),
	}
}

// Append writes the next resolved entry. Keys must arrive in strictly
// ascending order; callers are expected to have already run the merge
// algebra (internal/merge) so each key appears at most once per Segment.
func (w *Writer) Append(e kv.Entry) {
	var voff, vlen uint32
	if (e.Variant == kv.VariantPut || e.Variant == kv.VariantUpdate) && e.HasValue {
		voff, vlen = w.values.Write(e.Value)
	}

	offset, isRestart := w.sorted.Append(e, voff, vlen)
	if isRestart {
		w.lastRestartOffset = offset
		w.restartOffsets = append(w.restartOffsets, offset)
	}
	w.pending = append(w.pending, pendingKey{key: e.Key, restartOffset: w.lastRestartOffset})

	w.count++
	switch e.Variant {
	case kv.VariantPut:
		w.hasPut = true
	case kv.VariantRemove:
		w.hasRemove = true
	}
}

// Close frames and returns the complete segment file bytes.
func (w *Writer) Close() ([]byte, error) {
	valuesBytes, err := w.values.Close()
	if err != nil {
		return nil, err
	}
	sortedBytes, err := w.sorted.Close()
	if err != nil {
		return nil, err
	}

	var hashBytes, binBytes, bloomBytes []byte

	if w.cfg.EnableBinarySearchIndex {
		bin := binarysearch.NewBuilder(len(w.restartOffsets) == int(w.count))
		for _, off := range w.restartOffsets {
			bin.Append(off)
		}
		binBytes, err = bin.Close()
		if err != nil {
			return nil, err
		}
	}

	if w.cfg.EnableHashIndex && len(w.pending) > 0 {
		avgWidth := 24
		if len(sortedBytes) > 0 && len(w.pending) > 0 {
			avgWidth = len(sortedBytes) / len(w.pending)
			if avgWidth < 8 {
				avgWidth = 8
			}
		}
		loadFactor := w.cfg.HashIndexLoadFactor
		if loadFactor <= 1.0 {
			loadFactor = 1.5
		}
		allocated := int32(float64(len(w.pending)*avgWidth) * loadFactor)
		if allocated < int32(len(w.pending)*8) {
			allocated = int32(len(w.pending) * 8)
		}

		hb := hashindex.NewBuilder(hashindex.Header{
			AllocatedBytes:      allocated,
			MaxProbe:            32,
			CopyIndex:           false,
			MinimumNumberOfHits: 0,
		})
		for _, p := range w.pending {
			hb.Put(p.key, int(p.restartOffset), nil)
		}
		hashBytes, err = hb.Close()
		if err != nil {
			return nil, err
		}
	}

	if w.cfg.EnableBloom {
		disabled := w.hasRemove && !w.hasPut
		bl := bloom.NewBuilder(len(w.pending), nonZeroFP(w.cfg.BloomFalsePositiveRate), disabled)
		for _, p := range w.pending {
			bl.Add(p.key)
		}
		bloomBytes, err = bl.Close()
		if err != nil {
			return nil, err
		}
	}

	out := make([]byte, 0, len(valuesBytes)+len(sortedBytes)+len(hashBytes)+len(binBytes)+len(bloomBytes)+footer.MaxSize)

	fb := footer.NewBuilder().WithCounts(w.count, 0, w.hasPut, w.cfg.Level)

	pos := int64(0)
	out = append(out, valuesBytes...)
	fb.WithValues(pos, int64(len(valuesBytes)))
	pos += int64(len(valuesBytes))

	out = append(out, sortedBytes...)
	fb.WithSortedIndex(pos, int64(len(sortedBytes)))
	pos += int64(len(sortedBytes))

	out = append(out, hashBytes...)
	fb.WithHashIndex(pos, int64(len(hashBytes)))
	pos += int64(len(hashBytes))

	out = append(out, binBytes...)
	fb.WithBinarySearch(pos, int64(len(binBytes)))
	pos += int64(len(binBytes))

	out = append(out, bloomBytes...)
	fb.WithBloomFilter(pos, int64(len(bloomBytes)))

	footerBytes, err := fb.Close()
	if err != nil {
		return nil, err
	}
	out = append(out, footerBytes...)

	return out, nil
}

func nonZeroFP(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0.01
	}
	return p
}
