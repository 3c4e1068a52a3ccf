package merge

import (
	"testing"

	"github.com/iamNilotpal/ignite/internal/function"
	"github.com/iamNilotpal/ignite/internal/kv"
)

func t1(n byte) kv.Time { return kv.Time{n} }

func TestResolve_MonotonicityRule(t *testing.T) {
	old := kv.Put([]byte("k"), []byte("v"), t1(5), kv.NoDeadline)
	newer := kv.Remove([]byte("k"), t1(3), kv.NoDeadline)

	got, err := Resolve(newer, old, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Variant != kv.VariantPut || string(got.Value) != "v" {
		t.Fatalf("expected old to win when new.time <= old.time, got %+v", got)
	}
}

func TestResolve_RemoveVsPut_NoDeadline(t *testing.T) {
	old := kv.Put([]byte("k"), []byte("v"), t1(1), kv.NoDeadline)
	newer := kv.Remove([]byte("k"), t1(2), kv.NoDeadline)

	got, err := Resolve(newer, old, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Variant != kv.VariantRemove || got.Deadline.Valid {
		t.Fatalf("expected permanent tombstone, got %+v", got)
	}
}

func TestResolve_RemoveVsPut_NewDeadlineOldNone(t *testing.T) {
	old := kv.Put([]byte("k"), []byte("v"), t1(1), kv.NoDeadline)
	d := kv.NewDeadline(100)
	newer := kv.Remove([]byte("k"), t1(2), d)

	got, err := Resolve(newer, old, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Variant != kv.VariantPut || string(got.Value) != "v" || !got.Deadline.Valid || got.Deadline.Nanos != 100 {
		t.Fatalf("expected old value with new deadline, got %+v", got)
	}
}

func TestResolve_RemoveVsPut_BothDeadlines(t *testing.T) {
	old := kv.Put([]byte("k"), []byte("v"), t1(1), kv.NewDeadline(50))
	newer := kv.Remove([]byte("k"), t1(2), kv.NewDeadline(100))

	got, err := Resolve(newer, old, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Variant != kv.VariantRemove || got.Deadline.Nanos != 100 {
		t.Fatalf("expected new remove to win, got %+v", got)
	}
}

func TestResolve_UpdateVsPut(t *testing.T) {
	old := kv.Put([]byte("k"), []byte("v1"), t1(1), kv.NoDeadline)
	newer := kv.Update([]byte("k"), []byte("v2"), t1(2), kv.NoDeadline)

	got, err := Resolve(newer, old, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Variant != kv.VariantPut || string(got.Value) != "v2" {
		t.Fatalf("expected Put(v2), got %+v", got)
	}
}

func TestResolve_UpdateVsUpdate_StaysUpdate(t *testing.T) {
	old := kv.Update([]byte("k"), []byte("v1"), t1(1), kv.NoDeadline)
	newer := kv.Update([]byte("k"), []byte("v2"), t1(2), kv.NoDeadline)

	got, err := Resolve(newer, old, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Variant != kv.VariantUpdate || string(got.Value) != "v2" {
		t.Fatalf("expected Update(v2) to remain conditional, got %+v", got)
	}
}

func TestResolve_FunctionVsRemove_NoDeadlineAbsorbs(t *testing.T) {
	old := kv.Remove([]byte("k"), t1(1), kv.NoDeadline)
	newer := kv.ApplyFunction([]byte("k"), []byte("incr"), t1(2), kv.NoDeadline)

	got, err := Resolve(newer, old, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Variant != kv.VariantRemove {
		t.Fatalf("expected tombstone to absorb function, got %+v", got)
	}
}

func TestResolve_FunctionVsFunction_Pending(t *testing.T) {
	old := kv.ApplyFunction([]byte("k"), []byte("f1"), t1(1), kv.NoDeadline)
	newer := kv.ApplyFunction([]byte("k"), []byte("f2"), t1(2), kv.NoDeadline)

	got, err := Resolve(newer, old, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Variant != kv.VariantPendingApply || len(got.Applies) != 2 {
		t.Fatalf("expected 2-entry pending apply, got %+v", got)
	}
}

func TestResolve_FunctionVsPut_Invoke(t *testing.T) {
	registry := function.NewRegistry()
	registry.Register("double", func(key, cur []byte, hasValue bool, deadlineNanos uint64, hasDeadline bool) function.Result {
		return function.Result{Kind: function.Update, Value: append(append([]byte{}, cur...), cur...)}
	})

	old := kv.Put([]byte("k"), []byte("ab"), t1(1), kv.NoDeadline)
	newer := kv.ApplyFunction([]byte("k"), []byte("double"), t1(2), kv.NoDeadline)

	got, err := Resolve(newer, old, registry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Variant != kv.VariantPut || string(got.Value) != "abab" {
		t.Fatalf("expected Put(abab), got %+v", got)
	}
}

func TestResolve_FunctionVsPut_MissingFunction(t *testing.T) {
	registry := function.NewRegistry()
	old := kv.Put([]byte("k"), []byte("v"), t1(1), kv.NoDeadline)
	newer := kv.ApplyFunction([]byte("k"), []byte("nope"), t1(2), kv.NoDeadline)

	_, err := Resolve(newer, old, registry)
	if err == nil {
		t.Fatalf("expected an error for an unregistered function id")
	}
}

func TestResolve_PendingApplyFoldsOverDiscoveredBase(t *testing.T) {
	registry := function.NewRegistry()
	registry.Register("incr", func(key, cur []byte, hasValue bool, deadlineNanos uint64, hasDeadline bool) function.Result {
		n := 0
		if hasValue {
			n = int(cur[0])
		}
		return function.Result{Kind: function.Update, Value: []byte{byte(n + 1)}}
	})

	applies := []kv.Entry{
		kv.ApplyFunction([]byte("k"), []byte("incr"), t1(2), kv.NoDeadline),
		kv.ApplyFunction([]byte("k"), []byte("incr"), t1(3), kv.NoDeadline),
	}
	pending := kv.Pending([]byte("k"), applies)

	base := kv.Put([]byte("k"), []byte{0}, t1(1), kv.NoDeadline)

	got, err := Resolve(pending, base, registry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Variant != kv.VariantPut || got.Value[0] != 2 {
		t.Fatalf("expected resolved value 2 after two increments, got %+v", got)
	}
}

func TestResolve_Idempotent_EqualTime(t *testing.T) {
	e := kv.Put([]byte("k"), []byte("v"), t1(5), kv.NoDeadline)

	got, err := Resolve(e, e, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Variant != e.Variant || string(got.Value) != string(e.Value) {
		t.Fatalf("expected merge(a,a) == a, got %+v", got)
	}
}

func TestKV_PendingCollapsesSingleElement(t *testing.T) {
	e := kv.Put([]byte("k"), []byte("v"), t1(1), kv.NoDeadline)
	got := kv.Pending([]byte("k"), []kv.Entry{e})
	if got.Variant != kv.VariantPut {
		t.Fatalf("expected single-element pending apply to collapse, got %+v", got)
	}
}
