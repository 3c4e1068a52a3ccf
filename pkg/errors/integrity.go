package errors

// IntegrityError provides specialized error handling for the on-disk block
// format's self-consistency checks: CRCs, declared sizes, and structural
// markers that must round-trip exactly when a segment is read back.
type IntegrityError struct {
	// Embed the base error to inherit all standard error functionality
	// including error chaining, structured details, and error codes.
	*baseError

	// Identifies which segment the corrupted block belongs to.
	segmentID uint16

	// Byte offset within the segment file where the failing block or
	// record begins. Zero when not applicable.
	offset int64

	// Names the block kind being decoded (e.g. "values", "sortedIndex",
	// "hashIndex", "binarySearchIndex", "bloomFilter", "footer").
	blockKind string

	// Expected and actual values for the check that failed, formatted as
	// strings so both CRCs and sizes can share the same fields.
	expected string
	actual   string
}

// NewIntegrityError creates a new integrity-specific error with the
// provided context.
func NewIntegrityError(err error, code ErrorCode, msg string) *IntegrityError {
	return &IntegrityError{baseError: NewBaseError(err, code, msg)}
}

// Override base error methods to return *IntegrityError instead of *baseError.

// WithMessage updates the error message while preserving the IntegrityError type.
func (ie *IntegrityError) WithMessage(msg string) *IntegrityError {
	ie.baseError.WithMessage(msg)
	return ie
}

// WithCode sets the error code while preserving the IntegrityError type.
func (ie *IntegrityError) WithCode(code ErrorCode) *IntegrityError {
	ie.baseError.WithCode(code)
	return ie
}

// WithDetail adds contextual information while preserving the IntegrityError type.
func (ie *IntegrityError) WithDetail(key string, value any) *IntegrityError {
	ie.baseError.WithDetail(key, value)
	return ie
}

// WithSegmentID records which segment the corrupted block belongs to.
func (ie *IntegrityError) WithSegmentID(segmentID uint16) *IntegrityError {
	ie.segmentID = segmentID
	return ie
}

// WithOffset records the byte offset where the failing block or record begins.
func (ie *IntegrityError) WithOffset(offset int64) *IntegrityError {
	ie.offset = offset
	return ie
}

// WithBlockKind records which block kind was being decoded.
func (ie *IntegrityError) WithBlockKind(kind string) *IntegrityError {
	ie.blockKind = kind
	return ie
}

// WithExpectedActual records the expected and actual values for the check
// that failed (e.g. two CRCs, or a declared size versus a remaining length).
func (ie *IntegrityError) WithExpectedActual(expected, actual string) *IntegrityError {
	ie.expected = expected
	ie.actual = actual
	return ie
}

// SegmentID returns the segment identifier associated with the error.
func (ie *IntegrityError) SegmentID() uint16 { return ie.segmentID }

// Offset returns the byte offset where the failing block or record begins.
func (ie *IntegrityError) Offset() int64 { return ie.offset }

// BlockKind returns the name of the block kind being decoded.
func (ie *IntegrityError) BlockKind() string { return ie.blockKind }

// ExpectedActual returns the expected and actual values for the failed check.
func (ie *IntegrityError) ExpectedActual() (string, string) { return ie.expected, ie.actual }

// NewCRCMismatchError creates an error for a failed checksum verification,
// either of a block's trailing CRC or a copied hash-index entry's CRC.
func NewCRCMismatchError(blockKind string, segmentID uint16, offset int64, expected, actual uint32) *IntegrityError {
	return NewIntegrityError(nil, ErrorCodeCRCMismatch, "checksum verification failed").
		WithBlockKind(blockKind).
		WithSegmentID(segmentID).
		WithOffset(offset).
		WithExpectedActual(formatUint32(expected), formatUint32(actual))
}

// NewCorruptVarintError creates an error for a varint that could not be
// decoded, either because it overflowed 64 bits or was truncated before
// its terminating byte.
func NewCorruptVarintError(blockKind string, offset int64, cause error) *IntegrityError {
	return NewIntegrityError(cause, ErrorCodeCorruptVarint, "varint could not be decoded").
		WithBlockKind(blockKind).
		WithOffset(offset)
}

// NewUnknownKeyValueIDError creates an error for a sorted-index entry whose
// keyValueId didn't match any known (variant, compression-flag) combination.
func NewUnknownKeyValueIDError(segmentID uint16, offset int64, id byte) *IntegrityError {
	return NewIntegrityError(nil, ErrorCodeUnknownKeyValueID, "unrecognized key-value id").
		WithBlockKind("sortedIndex").
		WithSegmentID(segmentID).
		WithOffset(offset).
		WithDetail("key_value_id", id)
}

// NewFooterMagicMismatchError creates an error for a segment whose trailing
// magic byte didn't match the expected footer format id.
func NewFooterMagicMismatchError(segmentID uint16, expected, actual byte) *IntegrityError {
	return NewIntegrityError(nil, ErrorCodeFooterMagicMismatch, "footer magic byte mismatch").
		WithBlockKind("footer").
		WithSegmentID(segmentID).
		WithExpectedActual(formatUint32(uint32(expected)), formatUint32(uint32(actual)))
}

// NewEntrySizeOverflowError creates an error for a sorted-index entry that
// declared a size reading past the end of its block.
func NewEntrySizeOverflowError(segmentID uint16, offset int64, declared, remaining int) *IntegrityError {
	return NewIntegrityError(nil, ErrorCodeEntrySizeOverflow, "entry size exceeds remaining block bytes").
		WithBlockKind("sortedIndex").
		WithSegmentID(segmentID).
		WithOffset(offset).
		WithDetail("declared_size", declared).
		WithDetail("remaining_bytes", remaining)
}

// NewHeaderSizeExceededError creates an error for a block writer whose
// header region grew past its declared headerSize.
func NewHeaderSizeExceededError(blockKind string, declared, written int) *IntegrityError {
	return NewIntegrityError(nil, ErrorCodeHeaderSizeExceeded, "header write exceeded declared size").
		WithBlockKind(blockKind).
		WithDetail("declared_header_size", declared).
		WithDetail("written_bytes", written)
}

func formatUint32(v uint32) string {
	const hexDigits = "0123456789abcdef"
	if v == 0 {
		return "0x0"
	}
	buf := make([]byte, 0, 10)
	for v > 0 {
		buf = append(buf, hexDigits[v&0xf])
		v >>= 4
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return "0x" + string(buf)
}
