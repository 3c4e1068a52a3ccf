package storage

import (
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/ignite/pkg/options"
	"go.uber.org/zap"
)

// Storage is the file-based persistence layer: it materializes a
// flushed Memtable (already framed as a complete segment.Writer byte
// blob) as an immutable segment file on disk, and gives the engine back
// the bytes of any segment file it needs to read.
//
// Unlike the teacher's original Bitcask-style single active append-only
// segment, this engine's segments are produced whole by
// internal/segment.Writer and never mutated after creation — Storage's
// job is file naming, atomic creation, and directory bookkeeping, not
// in-place append/rotation.
type Storage struct {
	log           *zap.SugaredLogger // Structured logger for operational visibility and debugging.
	options       *options.Options   // Configuration parameters controlling storage behavior.
	mu            sync.Mutex         // Serializes segment-ID allocation.
	nextSegmentID uint64             // Next sequence id to hand out to a new segment file.
	closed        atomic.Bool        // Flag indicating whether the storage has been closed.
}

// Config encapsulates all the configuration parameters required to initialize a Storage instance.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// SegmentFileInfo describes one segment file discovered on disk.
type SegmentFileInfo struct {
	ID    uint64
	Level uint32
	Path  string
	Size  int64
}
