// Package options provides data structures and functions for configuring
// the Ignite database. It defines various parameters that control Ignite's
// storage behavior, performance, and maintenance operations, such as
// directory paths, segment characteristics, and compaction intervals.
package options

import (
	"bytes"
	"strings"
	"time"
)

// Comparator orders two keys, returning <0, 0, or >0 as a is less than,
// equal to, or greater than b. It governs every ordering-sensitive
// operation: point lookup, range scans, and traversal (spec.md §3.5).
type Comparator func(a, b []byte) int

// Defines configurable parameters for each segment.
// It provides fine-grained control over segment behavior, performance, and resource utilization.
type segmentOptions struct {
	// Records the configured maximum segment size, bounded by
	// WithSegmentSize. Segment files are not rotated by this size: each
	// Memtable flush or compaction pass writes one whole segment file.
	//
	//  - Default: 1GB
	//  - Maximum: 4GB
	//  - Minimum: 512MB
	Size uint64 `json:"maxSegmentSize"`

	// Specifies where segment files are stored.
	//
	// Default: "/var/lib/ignitedb/segments"
	Directory string `json:"directory"`

	// Defines the filename prefix for segment files.
	// Final filename will be: `prefix_level_segmentId_timestamp.seg`
	//
	// Default: "segment"
	//
	// Example: If Prefix is "mydata", a level-0 segment file might be
	// "mydata_0_00001_1716679260000000000.seg".
	Prefix string `json:"prefix"`
}

// Defines the configuration parameters for Ignite DB.
// It provides control over storage, performance and maintenance aspects.
type Options struct {
	// Specifies the base path where files will be stored.
	//
	// Default: "/var/lib/ignitedb"
	DataDir string `json:"dataDir"`

	// Defines how often the compaction process runs to
	// merge old segments. More frequent compaction means more
	// optimal storage but higher overhead.
	//
	// Default: 5h
	CompactInterval time.Duration `json:"compactInterval"`

	// Configures segment management including size limits and naming convention.
	SegmentOptions *segmentOptions `json:"segmentOptions"`

	// Bounds the in-memory Memtable's approximate size before it is
	// flushed to a new level-0 segment file.
	//
	// Default: 64MB
	MemtableFlushSize uint64 `json:"memtableFlushSize"`

	// Target false-positive rate for each segment's bloom filter. Lower
	// values trade filter size for fewer unnecessary disk reads on a
	// miss.
	//
	// Default: 0.01
	BloomFalsePositiveRate float64 `json:"bloomFalsePositiveRate"`

	// Number of sorted-index entries between full (uncompressed) restart
	// points. Smaller values speed up random access at the cost of a
	// larger sorted-index block.
	//
	// Default: 16
	PrefixCompressionResetCount uint32 `json:"prefixCompressionResetCount"`

	// Comparator defines the total order over keys used by every
	// ordering-sensitive operation (spec.md §3.5). Defaults to plain
	// byte-lexicographic order (bytes.Compare).
	Comparator Comparator `json:"-"`
}

// OptionFunc is a function type that modifies the Ignite system's configuration.
type OptionFunc func(*Options)

// Applies a predefined set of default configuration values to the Options struct.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		opts := NewDefaultOptions()
		o.DataDir = opts.DataDir
		o.SegmentOptions = opts.SegmentOptions
		o.CompactInterval = opts.CompactInterval
		o.MemtableFlushSize = opts.MemtableFlushSize
		o.BloomFalsePositiveRate = opts.BloomFalsePositiveRate
		o.PrefixCompressionResetCount = opts.PrefixCompressionResetCount
		o.Comparator = opts.Comparator
	}
}

// Sets the primary data directory for Ignite.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// Sets the interval at which Ignite performs compaction operations.
func WithCompactInterval(interval time.Duration) OptionFunc {
	return func(o *Options) {
		if interval > 0 {
			o.CompactInterval = interval
		}
	}
}

// Sets the directory specifically for storing segment files.
func WithSegmentDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.SegmentOptions.Directory = directory
		}
	}
}

// Sets the file name prefix for segment files.
func WithSegmentPrefix(prefix string) OptionFunc {
	return func(o *Options) {
		prefix = strings.TrimSpace(prefix)
		if prefix != "" {
			o.SegmentOptions.Prefix = prefix
		}
	}
}

// Sets the maximum size of individual segment files.
func WithSegmentSize(size uint64) OptionFunc {
	return func(o *Options) {
		if size > MinSegmentSize && size < MaxSegmentSize {
			o.SegmentOptions.Size = size
		}
	}
}

// Sets the approximate Memtable size, in bytes, that triggers a flush
// to a new level-0 segment file.
func WithMemtableFlushSize(size uint64) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.MemtableFlushSize = size
		}
	}
}

// Sets the target false-positive rate for segment bloom filters.
func WithBloomFalsePositiveRate(rate float64) OptionFunc {
	return func(o *Options) {
		if rate > 0 && rate < 1 {
			o.BloomFalsePositiveRate = rate
		}
	}
}

// Sets how many sorted-index entries separate consecutive restart
// points.
func WithPrefixCompressionResetCount(count uint32) OptionFunc {
	return func(o *Options) {
		if count > 0 {
			o.PrefixCompressionResetCount = count
		}
	}
}

// Sets the total order used to compare keys. A nil cmp is ignored and
// the previously configured comparator (bytes.Compare by default) is
// kept.
func WithComparator(cmp Comparator) OptionFunc {
	return func(o *Options) {
		if cmp != nil {
			o.Comparator = cmp
		}
	}
}

// DefaultComparator orders keys by plain byte-lexicographic order.
func DefaultComparator(a, b []byte) int {
	return bytes.Compare(a, b)
}
