// Package storage provides the file-based persistence layer for segment
// files in the Ignite storage engine.
//
// Storage's responsibilities are narrower than the teacher's original
// Bitcask-style append-only log: every write here is one complete,
// immutable segment file (produced by internal/segment.Writer and
// handed to Storage as a finished byte slice), not an incremental
// append to a shared active file. Storage owns segment-file naming,
// atomic creation, directory bootstrap/discovery, and cleanup of
// superseded segments after compaction.
package storage

import (
	"context"
	stdErrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/iamNilotpal/ignite/pkg/errors"
	"github.com/iamNilotpal/ignite/pkg/filesys"
	"github.com/iamNilotpal/ignite/pkg/options"
	"github.com/iamNilotpal/ignite/pkg/seginfo"
	"go.uber.org/zap"
)

var (
	ErrStorageClosed = stdErrors.New("operation failed: cannot access closed storage")
)

// New creates and initializes a new Storage instance, creating the
// segment directory if needed and scanning it to discover the next
// segment id to hand out.
func New(ctx context.Context, config *Config) (*Storage, error) {
	if config == nil || config.Options == nil || config.Logger == nil {
		return nil, fmt.Errorf("invalid configuration")
	}

	config.Logger.Infow(
		"Initializing storage system",
		"dataDir", config.Options.DataDir,
		"segmentDir", config.Options.SegmentOptions.Directory,
		"segmentPrefix", config.Options.SegmentOptions.Prefix,
	)

	segmentDirPath := filepath.Join(config.Options.DataDir, config.Options.SegmentOptions.Directory)
	if err := filesys.CreateDir(segmentDirPath, 0755, true); err != nil {
		return nil, errors.NewStorageError(
			err, errors.ErrorCodeIO, "Failed to create segment directory",
		).WithPath(segmentDirPath).WithDetail("permission", "0755").WithDetail("forceCreate", true)
	}

	s := &Storage{log: config.Logger, options: config.Options}

	existing, err := s.ListSegments()
	if err != nil {
		return nil, err
	}

	var maxID uint64
	for _, f := range existing {
		if f.ID > maxID {
			maxID = f.ID
		}
	}
	s.nextSegmentID = maxID + 1

	config.Logger.Infow("Storage system initialized successfully", "existingSegments", len(existing), "nextSegmentID", s.nextSegmentID)
	return s, nil
}

// NextSegmentID allocates and returns the next unused segment id.
func (s *Storage) NextSegmentID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSegmentID
	s.nextSegmentID++
	return id
}

// WriteSegment persists data (a complete segment.Writer byte blob) as a
// new immutable file at the given level, returning its allocated id and
// path. The file is written, synced, and closed before returning so a
// concurrent ListSegments can never observe a partially written file
// under the final name — it writes to a temp name first and renames.
func (s *Storage) WriteSegment(level uint32, data []byte) (id uint64, path string, err error) {
	if s.closed.Load() {
		return 0, "", ErrStorageClosed
	}

	id = s.NextSegmentID()
	filename := seginfo.GenerateLeveledName(id, level, s.options.SegmentOptions.Prefix)
	dir := filepath.Join(s.options.DataDir, s.options.SegmentOptions.Directory)
	finalPath := filepath.Join(dir, filename)
	tmpPath := finalPath + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, "", errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to create segment file").
			WithFileName(filename).WithPath(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, "", errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to write segment file").
			WithFileName(filename).WithPath(tmpPath)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, "", errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to sync segment file").
			WithFileName(filename).WithPath(tmpPath)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, "", errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to close segment file").
			WithFileName(filename).WithPath(tmpPath)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return 0, "", errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to publish segment file").
			WithFileName(filename).WithPath(finalPath)
	}

	s.log.Infow("Segment written", "segmentID", id, "level", level, "path", finalPath, "bytes", len(data))
	return id, finalPath, nil
}

// ReadSegment reads a segment file's full contents.
func (s *Storage) ReadSegment(path string) ([]byte, error) {
	data, err := filesys.ReadFile(path)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to read segment file").WithPath(path)
	}
	return data, nil
}

// DeleteSegment removes a segment file, used after compaction has
// folded its contents into a newer segment.
func (s *Storage) DeleteSegment(path string) error {
	if err := filesys.DeleteFile(path); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to delete segment file").WithPath(path)
	}
	s.log.Infow("Segment deleted", "path", path)
	return nil
}

// ListSegments discovers every segment file in the configured segment
// directory, sorted by (level ascending, id ascending).
func (s *Storage) ListSegments() ([]SegmentFileInfo, error) {
	pattern := filepath.Join(s.options.DataDir, s.options.SegmentOptions.Directory, s.options.SegmentOptions.Prefix+"*.seg")
	paths, err := filesys.ReadDir(pattern)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to list segment directory").WithPath(pattern)
	}

	out := make([]SegmentFileInfo, 0, len(paths))
	for _, p := range paths {
		level, id, err := seginfo.ParseLeveledSegmentID(p, s.options.SegmentOptions.Prefix)
		if err != nil {
			s.log.Warnw("Skipping unparseable segment file", "path", p, "error", err)
			continue
		}
		fi, err := os.Stat(p)
		if err != nil {
			s.log.Warnw("Skipping unreadable segment file", "path", p, "error", err)
			continue
		}
		out = append(out, SegmentFileInfo{ID: id, Level: level, Path: p, Size: fi.Size()})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Close gracefully shuts down the Storage, marking it unusable for
// further writes.
func (s *Storage) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrStorageClosed
	}
	s.log.Infow("Storage system closed")
	return nil
}
