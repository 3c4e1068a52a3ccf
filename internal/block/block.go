// Package block implements the framing every on-disk block type shares:
// a leading header-size varint, an optional compression marker, a
// block-specific header, and a body. internal/block/values,
// internal/block/sortedindex, internal/block/hashindex,
// internal/block/binarysearch, internal/block/bloom, and
// internal/block/footer each build their block-specific header and body
// on top of a Writer/Reader from this package.
package block

import (
	"hash/crc32"

	"github.com/golang/snappy"
	"github.com/iamNilotpal/ignite/internal/slice"
	"github.com/iamNilotpal/ignite/internal/varint"
	"github.com/iamNilotpal/ignite/pkg/errors"
	"github.com/klauspost/compress/zstd"
)

// Codec identifies the compression applied to a block's body.
type Codec byte

const (
	// CodecNone stores the body raw.
	CodecNone Codec = 0
	// CodecZstd compresses the body with zstd.
	CodecZstd Codec = 1
	// CodecSnappy compresses the body with snappy.
	CodecSnappy Codec = 2
)

// CastagnoliTable is the CRC32 table used by the block format's checksums
// (the hash-index "copied" variant's per-entry CRC).
var CastagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// Writer accumulates a block-specific header followed by a body, then
// frames both behind a headerSize varint and compression marker when
// Close is called. declaredHeaderSize bounds how many bytes the header
// region may grow to before Close; exceeding it is a programming error
// surfaced as an IntegrityError rather than silently truncating data.
type Writer struct {
	kind               string
	declaredHeaderSize int
	header             *slice.Slice
	body               *slice.Slice
	codec              Codec
}

// NewWriter returns a Writer for a block of the given kind (used only for
// error context), with declaredHeaderSize bytes reserved for the
// block-specific header and the given compression codec for the body.
func NewWriter(kind string, declaredHeaderSize int, codec Codec) *Writer {
	return &Writer{
		kind:               kind,
		declaredHeaderSize: declaredHeaderSize,
		header:             slice.New(declaredHeaderSize),
		body:               slice.New(4096),
		codec:              codec,
	}
}

// Header returns the block-specific header slice for writing.
func (w *Writer) Header() *slice.Slice { return w.header }

// Body returns the block body slice for writing.
func (w *Writer) Body() *slice.Slice { return w.body }

// BodyLen returns the number of uncompressed bytes written to the body so far.
func (w *Writer) BodyLen() int { return w.body.Len() }

// Close validates the header bound and returns the fully framed block
// bytes: headerSize varint, compression marker, header bytes, body bytes
// (compressed per w.codec when non-zero).
func (w *Writer) Close() ([]byte, error) {
	if w.header.Len() > w.declaredHeaderSize {
		return nil, errors.NewHeaderSizeExceededError(w.kind, w.declaredHeaderSize, w.header.Len())
	}

	bodyBytes := w.body.Bytes()
	decompressedSize := len(bodyBytes)
	payload := bodyBytes

	switch w.codec {
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		payload = enc.EncodeAll(bodyBytes, nil)
		enc.Close()
	case CodecSnappy:
		payload = snappy.Encode(nil, bodyBytes)
	}

	out := slice.New(varint.MaxVarintLen64 + 1 + varint.MaxVarintLen64 + w.header.Len() + len(payload))

	headerRegion := slice.New(1 + varint.MaxVarintLen64 + w.header.Len())
	headerRegion.WriteByte(byte(w.codec))
	if w.codec != CodecNone {
		headerRegion.WriteUvarint(uint64(decompressedSize))
	}
	headerRegion.Write(w.header.Bytes())

	out.WriteUvarint(uint64(headerRegion.Len()))
	out.Write(headerRegion.Bytes())
	out.Write(payload)

	return out.Bytes(), nil
}

// Reader parses a framed block's bytes back into its header and body
// regions, reversing whatever compression Writer.Close applied.
type Reader struct {
	kind   string
	header []byte
	body   []byte
}

// ParseReader reads the framing of buf (a full block, as written by
// Writer.Close) and returns a Reader exposing the block-specific header
// bytes (after the compression marker) and the decompressed body.
func ParseReader(kind string, buf []byte) (*Reader, error) {
	headerSize, n := varint.Uvarint(buf)
	if n <= 0 {
		return nil, errors.NewCorruptVarintError(kind, 0, nil)
	}
	if n+int(headerSize) > len(buf) {
		return nil, errors.NewEntrySizeOverflowError(0, int64(n), int(headerSize), len(buf)-n)
	}

	headerRegion := buf[n : n+int(headerSize)]
	body := buf[n+int(headerSize):]

	if len(headerRegion) == 0 {
		return nil, errors.NewCorruptVarintError(kind, int64(n), nil)
	}
	codec := Codec(headerRegion[0])
	rest := headerRegion[1:]

	var decompressedSize uint64
	if codec != CodecNone {
		var m int
		decompressedSize, m = varint.Uvarint(rest)
		if m <= 0 {
			return nil, errors.NewCorruptVarintError(kind, int64(n+1), nil)
		}
		rest = rest[m:]
	}

	switch codec {
	case CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(body, make([]byte, 0, decompressedSize))
		if err != nil {
			return nil, err
		}
		body = out
	case CodecSnappy:
		out, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, err
		}
		body = out
	}

	return &Reader{kind: kind, header: rest, body: body}, nil
}

// Header returns the block-specific header bytes (after the compression marker).
func (r *Reader) Header() []byte { return r.header }

// Body returns the (decompressed) body bytes.
func (r *Reader) Body() []byte { return r.body }
