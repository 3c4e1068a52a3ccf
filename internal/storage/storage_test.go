package storage

import (
	"context"
	"os"
	"testing"

	"github.com/iamNilotpal/ignite/pkg/options"
	"go.uber.org/zap"
)

func newTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "ignite-storage-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	opts := options.NewDefaultOptions()
	opts.DataDir = dir

	s, err := New(context.Background(), &Config{Options: &opts, Logger: zap.NewNop().Sugar()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, dir
}

func TestStorage_WriteReadListDelete(t *testing.T) {
	s, _ := newTestStorage(t)

	id, path, err := s.WriteSegment(0, []byte("segment-one-bytes"))
	if err != nil {
		t.Fatalf("WriteSegment: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected first segment id 1, got %d", id)
	}

	data, err := s.ReadSegment(path)
	if err != nil {
		t.Fatalf("ReadSegment: %v", err)
	}
	if string(data) != "segment-one-bytes" {
		t.Fatalf("unexpected contents: %q", data)
	}

	list, err := s.ListSegments()
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(list) != 1 || list[0].ID != 1 {
		t.Fatalf("unexpected listing: %+v", list)
	}

	if err := s.DeleteSegment(path); err != nil {
		t.Fatalf("DeleteSegment: %v", err)
	}
	list, err = s.ListSegments()
	if err != nil {
		t.Fatalf("ListSegments after delete: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no segments after delete, got %+v", list)
	}
}

func TestStorage_BootstrapContinuesSequenceAfterRestart(t *testing.T) {
	s, dir := newTestStorage(t)
	if _, _, err := s.WriteSegment(0, []byte("one")); err != nil {
		t.Fatalf("WriteSegment: %v", err)
	}
	if _, _, err := s.WriteSegment(0, []byte("two")); err != nil {
		t.Fatalf("WriteSegment: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	s2, err := New(context.Background(), &Config{Options: &opts, Logger: zap.NewNop().Sugar()})
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}

	id, _, err := s2.WriteSegment(0, []byte("three"))
	if err != nil {
		t.Fatalf("WriteSegment: %v", err)
	}
	if id != 3 {
		t.Fatalf("expected bootstrap to continue at id 3, got %d", id)
	}
}
