package memtable

import (
	"context"
	"testing"

	"github.com/iamNilotpal/ignite/internal/function"
	"github.com/iamNilotpal/ignite/internal/kv"
	"go.uber.org/zap"
)

func newTestMemtable(t *testing.T) *Memtable {
	t.Helper()
	m, err := New(context.Background(), &Config{Logger: zap.NewNop().Sugar(), Functions: function.NewRegistry()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestMemtable_ApplyPutThenGet(t *testing.T) {
	m := newTestMemtable(t)

	if _, err := m.Apply(kv.Put([]byte("k"), []byte("v1"), kv.Time{1}, kv.NoDeadline)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	e, ok := m.Get([]byte("k"))
	if !ok || string(e.Value) != "v1" {
		t.Fatalf("expected v1, got ok=%v value=%q", ok, e.Value)
	}

	if _, err := m.Apply(kv.Put([]byte("k"), []byte("v2"), kv.Time{2}, kv.NoDeadline)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	e, ok = m.Get([]byte("k"))
	if !ok || string(e.Value) != "v2" {
		t.Fatalf("expected v2 after overwrite, got %q", e.Value)
	}
}

func TestMemtable_MonotonicityIgnoresStaleWrite(t *testing.T) {
	m := newTestMemtable(t)

	if _, err := m.Apply(kv.Put([]byte("k"), []byte("new"), kv.Time{5}, kv.NoDeadline)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := m.Apply(kv.Put([]byte("k"), []byte("stale"), kv.Time{1}, kv.NoDeadline)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	e, ok := m.Get([]byte("k"))
	if !ok || string(e.Value) != "new" {
		t.Fatalf("expected stale write to be ignored, got %q", e.Value)
	}
}

func TestMemtable_SnapshotIsSortedByKey(t *testing.T) {
	m := newTestMemtable(t)
	for _, k := range []string{"delta", "alpha", "charlie", "bravo"} {
		if _, err := m.Apply(kv.Put([]byte(k), []byte("v"), kv.Time{1}, kv.NoDeadline)); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}

	snap := m.Snapshot()
	want := []string{"alpha", "bravo", "charlie", "delta"}
	if len(snap) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(snap))
	}
	for i, k := range want {
		if string(snap[i].Key) != k {
			t.Fatalf("position %d: expected %q, got %q", i, k, snap[i].Key)
		}
	}
}

func TestMemtable_CloseRejectsFurtherOperations(t *testing.T) {
	m := newTestMemtable(t)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := m.Apply(kv.Put([]byte("k"), []byte("v"), kv.Time{1}, kv.NoDeadline)); err != ErrMemtableClosed {
		t.Fatalf("expected ErrMemtableClosed, got %v", err)
	}
}
