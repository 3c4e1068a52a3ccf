package ignite

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/iamNilotpal/ignite/pkg/options"
)

func newTestInstance(t *testing.T) *Instance {
	t.Helper()
	dir, err := os.MkdirTemp("", "ignite-pkg-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	inst, err := NewInstance(
		context.Background(), "ignite-test",
		options.WithDataDir(dir),
		options.WithCompactInterval(2*time.Hour),
	)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	t.Cleanup(func() { inst.Close(context.Background()) })
	return inst
}

func TestInstance_SetGet(t *testing.T) {
	ctx := context.Background()
	inst := newTestInstance(t)

	if err := inst.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, err := inst.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(value) != "v1" {
		t.Fatalf("expected v1, got %q", value)
	}
}

func TestInstance_SetXExpires(t *testing.T) {
	ctx := context.Background()
	inst := newTestInstance(t)

	if err := inst.SetX(ctx, "k", []byte("v"), -time.Minute); err != nil {
		t.Fatalf("SetX: %v", err)
	}

	ok, err := inst.Contains(ctx, "k")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if ok {
		t.Fatalf("expected already-expired SetX entry to be absent")
	}
}

func TestInstance_DeleteRemovesKey(t *testing.T) {
	ctx := context.Background()
	inst := newTestInstance(t)

	if err := inst.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := inst.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ok, err := inst.Contains(ctx, "k")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if ok {
		t.Fatalf("expected key gone after Delete")
	}
}

func TestInstance_RegisterFunctionApply(t *testing.T) {
	ctx := context.Background()
	inst := newTestInstance(t)

	inst.RegisterFunction("upper-ttl", func(key, currentValue []byte, hasValue bool, expiry time.Time, hasExpiry bool) FunctionResult {
		if !hasValue {
			return FunctionResult{Kind: ResultNothing}
		}
		return FunctionResult{Kind: ResultExpire, Expiry: time.Now().Add(-time.Minute)}
	})

	if err := inst.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := inst.Apply(ctx, "k", "upper-ttl"); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	ok, err := inst.Contains(ctx, "k")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if ok {
		t.Fatalf("expected key to expire immediately via function-scheduled deadline")
	}
}

func TestInstance_HeadLastTraversal(t *testing.T) {
	ctx := context.Background()
	inst := newTestInstance(t)

	for _, k := range []string{"b", "a", "c"} {
		if err := inst.Set(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}

	head, ok, err := inst.Head(ctx)
	if err != nil || !ok || string(head.Key) != "a" {
		t.Fatalf("Head: entry=%+v ok=%v err=%v", head, ok, err)
	}

	last, ok, err := inst.Last(ctx)
	if err != nil || !ok || string(last.Key) != "c" {
		t.Fatalf("Last: entry=%+v ok=%v err=%v", last, ok, err)
	}
}

func TestInstance_DeleteRangeUnboundedAbove(t *testing.T) {
	ctx := context.Background()
	inst := newTestInstance(t)

	for _, k := range []string{"a", "b", "c"} {
		if err := inst.Set(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}

	if err := inst.DeleteRange(ctx, "b", ""); err != nil {
		t.Fatalf("DeleteRange: %v", err)
	}

	for _, tc := range []struct {
		key      string
		expected bool
	}{{"a", true}, {"b", false}, {"c", false}} {
		ok, err := inst.Contains(ctx, tc.key)
		if err != nil {
			t.Fatalf("Contains(%s): %v", tc.key, err)
		}
		if ok != tc.expected {
			t.Fatalf("key %q: expected present=%v, got %v", tc.key, tc.expected, ok)
		}
	}
}
