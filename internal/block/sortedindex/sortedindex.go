// Package sortedindex implements the sorted-index block (spec.md §4.4):
// an ordered sequence of key-value entries with optional prefix
// compression against the previous key, and the matcher state machine
// that drives Get/Higher/Lower resolution over that sequence.
package sortedindex

import (
	"github.com/iamNilotpal/ignite/internal/block"
	"github.com/iamNilotpal/ignite/internal/kv"
	"github.com/iamNilotpal/ignite/internal/slice"
	"github.com/iamNilotpal/ignite/internal/varint"
	"github.com/iamNilotpal/ignite/pkg/errors"
)

// keyValueId packs {variant, keyIsPrefixCompressed} into disjoint integer
// ranges per spec.md §4.4: ids 0..4 are full keys, 5..9 the same five
// variants with a prefix-compressed key.
type keyValueId byte

const prefixCompressedOffset = 5

func makeKeyValueId(v kv.Variant, prefixCompressed bool) keyValueId {
	id := keyValueId(v)
	if prefixCompressed {
		id += prefixCompressedOffset
	}
	return id
}

func (id keyValueId) variant() (kv.Variant, bool) {
	v := byte(id)
	compressed := false
	if v >= prefixCompressedOffset {
		v -= prefixCompressedOffset
		compressed = true
	}
	if v > byte(kv.VariantPendingApply) {
		return 0, false
	}
	return kv.Variant(v), compressed
}

func (id keyValueId) prefixCompressed() bool {
	_, c := id.variant()
	return c
}

// Header carries the sorted-index block's per-segment configuration,
// persisted in the block-specific header region.
type Header struct {
	EnableAccessPositionIndex   bool
	HasPrefixCompression        bool
	NormaliseForBinarySearch    bool
	IsPreNormalised              bool
	DisableKeyPrefixCompression bool
	EnablePartialRead           bool
	SegmentMaxIndexEntrySize    uint32
	PrefixCompressionResetCount uint32
}

// Builder appends entries to a sorted-index block in ascending key order.
type Builder struct {
	writer  *block.Writer
	header  Header
	prevKey []byte
	count   uint32
	offsets []uint32 // byte offset of each entry's start, for the access position index
}

// NewBuilder returns an empty sorted-index builder.
func NewBuilder(header Header, codec block.Codec) *Builder {
	return &Builder{writer: block.NewWriter("sortedIndex", 32, codec), header: header}
}

// Append writes one resolved entry. valueOffset/valueLength are
// meaningful for Put/Update (from the values block); functionID is
// meaningful for Function. Keys must arrive in strictly ascending order.
// It returns the entry's starting byte offset and whether the entry was
// written as a restart point (full key, no prefix compression) — callers
// building auxiliary indexes may only target restart-point offsets, since
// those are the only offsets from which an entry can be decoded without
// replaying the preceding key.
func (b *Builder) Append(e kv.Entry, valueOffset, valueLength uint32) (offset uint32, isRestart bool) {
	body := b.writer.Body()
	entryStart := body.Len()

	prefixCompress := b.header.HasPrefixCompression && !b.header.DisableKeyPrefixCompression &&
		b.prevKey != nil &&
		(b.header.PrefixCompressionResetCount == 0 || b.count%b.header.PrefixCompressionResetCount != 0)

	var commonPrefixLen int
	var keyPayload []byte
	if prefixCompress {
		commonPrefixLen, keyPayload = slice.CompressPrefix(b.prevKey, e.Key)
	} else {
		keyPayload = e.Key
	}

	id := makeKeyValueId(e.Variant, prefixCompress)
	body.WriteByte(byte(id))

	if prefixCompress {
		body.WriteUvarint(uint64(commonPrefixLen))
	}
	body.WriteUvarint(uint64(len(keyPayload)))
	body.Write(keyPayload)

	body.WriteUvarint(uint64(len(e.Time)))
	body.Write(e.Time)

	if e.Deadline.Valid {
		body.WriteUvarint(e.Deadline.Nanos + 1)
	} else {
		body.WriteUvarint(0)
	}

	switch e.Variant {
	case kv.VariantPut, kv.VariantUpdate:
		body.WriteUvarint(uint64(valueOffset))
		body.WriteUvarint(uint64(valueLength))
	case kv.VariantFunction:
		body.WriteUvarint(uint64(len(e.FunctionID)))
		body.Write(e.FunctionID)
	case kv.VariantRemove:
		// nothing further: deadline already written above.
	}

	if b.header.EnableAccessPositionIndex {
		b.offsets = append(b.offsets, uint32(entryStart))
	}

	entrySize := body.Len() - entryStart + entryTrailerWidth
	body.WriteUint32(uint32(entrySize))

	b.prevKey = e.Key
	b.count++
	return uint32(entryStart), !prefixCompress
}

// BodyLen returns the number of uncompressed bytes written to the block
// body so far.
func (b *Builder) BodyLen() int { return b.writer.BodyLen() }

// entryTrailerWidth is the fixed width, in bytes, of the trailer every
// sorted-index entry ends with: a big-endian uint32 giving the entry's
// own total size (spec.md §4.4's "computed from the trailing bytes read").
const entryTrailerWidth = 4

// AccessPositionOffsets returns the byte offset of each entry written so
// far, present only when EnableAccessPositionIndex was set.
func (b *Builder) AccessPositionOffsets() []uint32 { return b.offsets }

// Count returns the number of entries written.
func (b *Builder) Count() uint32 { return b.count }

// Close frames and returns the block's bytes.
func (b *Builder) Close() ([]byte, error) {
	h := b.writer.Header()
	h.WriteByte(boolByte(b.header.EnableAccessPositionIndex))
	h.WriteByte(boolByte(b.header.HasPrefixCompression))
	h.WriteByte(boolByte(b.header.NormaliseForBinarySearch))
	h.WriteByte(boolByte(b.header.IsPreNormalised))
	h.WriteByte(boolByte(b.header.DisableKeyPrefixCompression))
	h.WriteByte(boolByte(b.header.EnablePartialRead))
	h.WriteUvarint(uint64(b.header.SegmentMaxIndexEntrySize))
	return b.writer.Close()
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// Entry is a fully decoded sorted-index entry.
type Entry struct {
	Key         []byte
	Time        kv.Time
	Deadline    kv.Deadline
	Variant     kv.Variant
	ValueOffset uint32
	ValueLength uint32
	FunctionID  []byte

	// offset/size of this entry within the block body, as recovered from
	// its trailing 4-byte size, and the offset of the next entry.
	// NextSize is not populated by the reader.
	Offset     int
	Size       int
	NextOffset int
	NextSize   int
	HasNext    bool
}

// Reader provides sequential and random-access decoding of a parsed
// sorted-index block.
type Reader struct {
	header Header
	body   []byte
}

// Parse parses a framed sorted-index block buffer.
func Parse(buf []byte) (*Reader, error) {
	r, err := block.ParseReader("sortedIndex", buf)
	if err != nil {
		return nil, err
	}
	h := r.Header()
	if len(h) < 6 {
		return nil, errors.NewCorruptVarintError("sortedIndex", 0, nil)
	}
	header := Header{
		EnableAccessPositionIndex:   h[0] != 0,
		HasPrefixCompression:        h[1] != 0,
		NormaliseForBinarySearch:    h[2] != 0,
		IsPreNormalised:             h[3] != 0,
		DisableKeyPrefixCompression: h[4] != 0,
		EnablePartialRead:           h[5] != 0,
	}
	if len(h) > 6 {
		size, _ := varint.Uvarint(h[6:])
		header.SegmentMaxIndexEntrySize = uint32(size)
	}
	return &Reader{header: header, body: r.Body()}, nil
}

// ReadAt decodes the entry starting at byte offset off (random read),
// and returns it along with the offset of the entry immediately after
// it, if any (NextOffset/HasNext).
func (r *Reader) ReadAt(prevKey []byte, off int) (Entry, error) {
	return r.readKeyValue(prevKey, off)
}

func (r *Reader) readKeyValue(prevKey []byte, off int) (Entry, error) {
	// off may come from a mis-probed hash-index slot; guard against a
	// negative or past-the-end offset so a bad probe surfaces as a
	// decode error for the caller to treat as a miss (spec.md §7)
	// instead of panicking on a negative slice index.
	if off < 0 || off >= len(r.body) {
		return Entry{}, errors.NewEntrySizeOverflowError(0, int64(off), 0, len(r.body))
	}

	buf := r.body[off:]
	if len(buf) == 0 {
		return Entry{}, errors.NewEntrySizeOverflowError(0, int64(off), 0, 0)
	}

	id := keyValueId(buf[0])
	variant, prefixCompressed := id.variant()
	pos := 1

	var commonPrefixLen int
	if prefixCompressed {
		n, used := varint.Uvarint(buf[pos:])
		if used <= 0 {
			return Entry{}, errors.NewCorruptVarintError("sortedIndex", int64(off+pos), nil)
		}
		commonPrefixLen = int(n)
		pos += used
	}

	keyLen, used := varint.Uvarint(buf[pos:])
	if used <= 0 {
		return Entry{}, errors.NewCorruptVarintError("sortedIndex", int64(off+pos), nil)
	}
	pos += used
	suffix := buf[pos : pos+int(keyLen)]
	pos += int(keyLen)

	var key []byte
	if prefixCompressed {
		key = slice.DecompressPrefix(prevKey, suffix, commonPrefixLen)
	} else {
		key = append([]byte{}, suffix...)
	}

	timeLen, used := varint.Uvarint(buf[pos:])
	if used <= 0 {
		return Entry{}, errors.NewCorruptVarintError("sortedIndex", int64(off+pos), nil)
	}
	pos += used
	time := kv.Time(buf[pos : pos+int(timeLen)])
	pos += int(timeLen)

	deadlineRaw, used := varint.Uvarint(buf[pos:])
	if used <= 0 {
		return Entry{}, errors.NewCorruptVarintError("sortedIndex", int64(off+pos), nil)
	}
	pos += used
	deadline := kv.NoDeadline
	if deadlineRaw != 0 {
		deadline = kv.NewDeadline(deadlineRaw - 1)
	}

	entry := Entry{Key: key, Time: time, Deadline: deadline, Variant: variant, Offset: off}

	switch variant {
	case kv.VariantPut, kv.VariantUpdate:
		vOff, used := varint.Uvarint(buf[pos:])
		if used <= 0 {
			return Entry{}, errors.NewCorruptVarintError("sortedIndex", int64(off+pos), nil)
		}
		pos += used
		vLen, used := varint.Uvarint(buf[pos:])
		if used <= 0 {
			return Entry{}, errors.NewCorruptVarintError("sortedIndex", int64(off+pos), nil)
		}
		pos += used
		entry.ValueOffset = uint32(vOff)
		entry.ValueLength = uint32(vLen)
	case kv.VariantFunction:
		fLen, used := varint.Uvarint(buf[pos:])
		if used <= 0 {
			return Entry{}, errors.NewCorruptVarintError("sortedIndex", int64(off+pos), nil)
		}
		pos += used
		entry.FunctionID = append([]byte{}, buf[pos:pos+int(fLen)]...)
		pos += int(fLen)
	}

	if pos+entryTrailerWidth > len(buf) {
		return Entry{}, errors.NewEntrySizeOverflowError(0, int64(off+pos), entryTrailerWidth, len(buf)-pos)
	}
	entry.Size = int(slice.ReadUint32(buf, pos))
	pos += entryTrailerWidth

	nextOffset := off + entry.Size
	if nextOffset < len(r.body) {
		entry.HasNext = true
		entry.NextOffset = nextOffset
	}

	return entry, nil
}
