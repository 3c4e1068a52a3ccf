// Package values implements the values block (spec.md §4): a flat,
// offset-addressed accumulation of value byte strings referenced by
// offset/length pairs from the sorted-index block.
package values

import "github.com/iamNilotpal/ignite/internal/block"

// Builder accumulates value bytes and hands back the (offset, length)
// each write occupied, deduplicating a value against the immediately
// preceding write per spec.md §4.9 step 2 ("skipping when the value
// equals the immediate prior value").
type Builder struct {
	writer   *block.Writer
	prevVal  []byte
	prevOff  uint32
	prevLen  uint32
	hasPrev  bool
}

// NewBuilder returns an empty values-block builder using the given
// compression codec for its body.
func NewBuilder(codec block.Codec) *Builder {
	return &Builder{writer: block.NewWriter("values", 0, codec)}
}

// Write appends value to the block unless it equals the immediately
// preceding write, in which case the prior (offset, length) is reused.
// Returns the (offset, length) pair the sorted-index entry should record.
func (b *Builder) Write(value []byte) (offset uint32, length uint32) {
	if b.hasPrev && bytesEqual(b.prevVal, value) {
		return b.prevOff, b.prevLen
	}

	offset = uint32(b.writer.BodyLen())
	length = uint32(len(value))
	b.writer.Body().Write(value)

	b.prevVal = value
	b.prevOff = offset
	b.prevLen = length
	b.hasPrev = true
	return offset, length
}

// Len returns the number of uncompressed bytes written so far.
func (b *Builder) Len() int { return b.writer.BodyLen() }

// Close frames and returns the block's bytes.
func (b *Builder) Close() ([]byte, error) { return b.writer.Close() }

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Reader exposes random-access reads into a parsed values block.
type Reader struct {
	body []byte
}

// Parse parses a framed values-block buffer.
func Parse(buf []byte) (*Reader, error) {
	r, err := block.ParseReader("values", buf)
	if err != nil {
		return nil, err
	}
	return &Reader{body: r.Body()}, nil
}

// Read returns the value bytes at [offset, offset+length).
func (r *Reader) Read(offset, length uint32) []byte {
	return r.body[offset : offset+length]
}
