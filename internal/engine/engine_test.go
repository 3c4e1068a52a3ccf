package engine

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/iamNilotpal/ignite/internal/function"
	"github.com/iamNilotpal/ignite/internal/kv"
	"github.com/iamNilotpal/ignite/pkg/options"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir, err := os.MkdirTemp("", "ignite-engine-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	// Keep the flush threshold high so tests control flushing explicitly
	// via e.flush(), unless a test sets it lower itself.
	opts.MemtableFlushSize = 1 << 30
	opts.CompactInterval = time.Hour

	e, err := New(context.Background(), &Config{Options: &opts, Logger: zap.NewNop().Sugar()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngine_PutGet(t *testing.T) {
	e := newTestEngine(t)

	if err := e.Put([]byte("k"), []byte("v1"), kv.NoDeadline); err != nil {
		t.Fatalf("Put: %v", err)
	}

	value, ok, err := e.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(value) != "v1" {
		t.Fatalf("expected v1, got ok=%v value=%q", ok, value)
	}
}

func TestEngine_GetMissingKey(t *testing.T) {
	e := newTestEngine(t)

	_, ok, err := e.Get([]byte("missing"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected missing key to be absent")
	}
}

func TestEngine_UpdateWithoutPriorPutStaysInvisible(t *testing.T) {
	e := newTestEngine(t)

	if err := e.Update([]byte("k"), []byte("v"), kv.NoDeadline); err != nil {
		t.Fatalf("Update: %v", err)
	}

	_, ok, err := e.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected Update with no prior Put to stay invisible")
	}
}

func TestEngine_UpdateAfterPutOverwrites(t *testing.T) {
	e := newTestEngine(t)

	if err := e.Put([]byte("k"), []byte("v1"), kv.NoDeadline); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := e.Update([]byte("k"), []byte("v2"), kv.NoDeadline); err != nil {
		t.Fatalf("Update: %v", err)
	}

	value, ok, err := e.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(value) != "v2" {
		t.Fatalf("expected v2, got ok=%v value=%q", ok, value)
	}
}

func TestEngine_RemoveTombstonesKey(t *testing.T) {
	e := newTestEngine(t)

	if err := e.Put([]byte("k"), []byte("v"), kv.NoDeadline); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := e.Remove([]byte("k"), kv.NoDeadline); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	_, ok, err := e.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be gone after Remove")
	}
}

func TestEngine_ExpireHidesValueAfterDeadline(t *testing.T) {
	e := newTestEngine(t)

	if err := e.Put([]byte("k"), []byte("v"), kv.NoDeadline); err != nil {
		t.Fatalf("Put: %v", err)
	}
	past := kv.NewDeadline(uint64(time.Now().Add(-time.Minute).UnixNano()))
	if err := e.Expire([]byte("k"), past); err != nil {
		t.Fatalf("Expire: %v", err)
	}

	_, ok, err := e.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected expired key to be invisible")
	}
}

func TestEngine_ApplyRemoveViaFunction(t *testing.T) {
	e := newTestEngine(t)
	e.Functions().Register("drop", func(key, value []byte, hasValue bool, deadlineNanos uint64, hasDeadline bool) function.Result {
		return function.Result{Kind: function.Remove}
	})

	if err := e.Put([]byte("k"), []byte("v"), kv.NoDeadline); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := e.Apply([]byte("k"), []byte("drop")); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	_, ok, err := e.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected key removed by function")
	}
}

func TestEngine_FlushThenGetReadsFromSegment(t *testing.T) {
	e := newTestEngine(t)

	if err := e.Put([]byte("k"), []byte("v1"), kv.NoDeadline); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := e.flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	value, ok, err := e.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(value) != "v1" {
		t.Fatalf("expected v1 after flush, got ok=%v value=%q", ok, value)
	}

	// A later write must still merge against the flushed segment's view.
	if err := e.Update([]byte("k"), []byte("v2"), kv.NoDeadline); err != nil {
		t.Fatalf("Update: %v", err)
	}
	value, ok, err = e.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(value) != "v2" {
		t.Fatalf("expected v2 after cross-segment update, got ok=%v value=%q", ok, value)
	}
}

func TestEngine_TraversalHeadLastHigherLower(t *testing.T) {
	e := newTestEngine(t)
	for _, k := range []string{"b", "d", "a", "c"} {
		if err := e.Put([]byte(k), []byte(k+"-value"), kv.NoDeadline); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}

	head, ok, err := e.Head()
	if err != nil || !ok || string(head.Key) != "a" {
		t.Fatalf("Head: entry=%+v ok=%v err=%v", head, ok, err)
	}

	last, ok, err := e.Last()
	if err != nil || !ok || string(last.Key) != "d" {
		t.Fatalf("Last: entry=%+v ok=%v err=%v", last, ok, err)
	}

	higher, ok, err := e.Higher([]byte("b"))
	if err != nil || !ok || string(higher.Key) != "c" {
		t.Fatalf("Higher: entry=%+v ok=%v err=%v", higher, ok, err)
	}

	lower, ok, err := e.Lower([]byte("c"))
	if err != nil || !ok || string(lower.Key) != "b" {
		t.Fatalf("Lower: entry=%+v ok=%v err=%v", lower, ok, err)
	}

	ceil, ok, err := e.Ceiling([]byte("b"))
	if err != nil || !ok || string(ceil.Key) != "b" {
		t.Fatalf("Ceiling(exact): entry=%+v ok=%v err=%v", ceil, ok, err)
	}

	floor, ok, err := e.Floor([]byte("bb"))
	if err != nil || !ok || string(floor.Key) != "b" {
		t.Fatalf("Floor(between): entry=%+v ok=%v err=%v", floor, ok, err)
	}
}

func TestEngine_RemoveRangeTombstonesWithinBounds(t *testing.T) {
	e := newTestEngine(t)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		if err := e.Put([]byte(k), []byte(k), kv.NoDeadline); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}

	if err := e.RemoveRange([]byte("b"), []byte("d"), kv.NoDeadline); err != nil {
		t.Fatalf("RemoveRange: %v", err)
	}

	for _, tc := range []struct {
		key      string
		expected bool
	}{
		{"a", true}, {"b", false}, {"c", false}, {"d", true}, {"e", true},
	} {
		_, ok, err := e.Get([]byte(tc.key))
		if err != nil {
			t.Fatalf("Get(%s): %v", tc.key, err)
		}
		if ok != tc.expected {
			t.Fatalf("key %q: expected present=%v, got %v", tc.key, tc.expected, ok)
		}
	}
}

func TestEngine_UpdateRangeOverwritesExistingOnly(t *testing.T) {
	e := newTestEngine(t)
	for _, k := range []string{"a", "b", "c"} {
		if err := e.Put([]byte(k), []byte("orig"), kv.NoDeadline); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}

	if err := e.UpdateRange([]byte("a"), nil, []byte("bulk"), kv.NoDeadline); err != nil {
		t.Fatalf("UpdateRange: %v", err)
	}

	for _, k := range []string{"a", "b", "c"} {
		value, ok, err := e.Get([]byte(k))
		if err != nil || !ok || string(value) != "bulk" {
			t.Fatalf("key %q: value=%q ok=%v err=%v", k, value, ok, err)
		}
	}
}

func TestEngine_CloseIsIdempotentSafe(t *testing.T) {
	dir, err := os.MkdirTemp("", "ignite-engine-test-close-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	opts.CompactInterval = time.Hour

	e, err := New(context.Background(), &Config{Options: &opts, Logger: zap.NewNop().Sugar()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != ErrEngineClosed {
		t.Fatalf("expected ErrEngineClosed on second Close, got %v", err)
	}

	if err := e.Put([]byte("k"), []byte("v"), kv.NoDeadline); err != ErrEngineClosed {
		t.Fatalf("expected ErrEngineClosed on write after Close, got %v", err)
	}
}
