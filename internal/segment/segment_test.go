package segment

import (
	"testing"

	"github.com/iamNilotpal/ignite/internal/kv"
)

func t1(n byte) kv.Time { return kv.Time{n} }

func buildSample(t *testing.T) []byte {
	t.Helper()
	cfg := DefaultWriterConfig()
	cfg.PrefixCompressionResetCount = 2

	w := NewWriter(cfg)
	w.Append(kv.Put([]byte("alpha"), []byte("a-value"), t1(1), kv.NoDeadline))
	w.Append(kv.Put([]byte("alphabet"), []byte("b-value"), t1(2), kv.NoDeadline))
	w.Append(kv.Remove([]byte("bravo"), t1(3), kv.NoDeadline))
	w.Append(kv.Put([]byte("charlie"), []byte("c-value"), t1(4), kv.NoDeadline))
	w.Append(kv.Put([]byte("delta"), []byte("d-value"), t1(5), kv.NoDeadline))

	out, err := w.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	return out
}

func TestSegment_GetExactMatches(t *testing.T) {
	data := buildSample(t)
	seg, err := Open(data, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	e, ok, err := seg.Get([]byte("charlie"), nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected charlie to be found")
	}
	if string(e.Value) != "c-value" {
		t.Fatalf("got value %q", e.Value)
	}

	e, ok, err = seg.Get([]byte("bravo"), nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || e.Variant != kv.VariantRemove {
		t.Fatalf("expected bravo to resolve to a tombstone, got ok=%v variant=%v", ok, e.Variant)
	}

	_, ok, err = seg.Get([]byte("missing"), nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected missing key to be absent")
	}
}

func TestSegment_HigherLower(t *testing.T) {
	data := buildSample(t)
	seg, err := Open(data, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	h, ok, err := seg.Higher([]byte("alpha"), nil)
	if err != nil || !ok {
		t.Fatalf("Higher: ok=%v err=%v", ok, err)
	}
	if string(h.Key) != "alphabet" {
		t.Fatalf("expected alphabet, got %q", h.Key)
	}

	l, ok, err := seg.Lower([]byte("delta"), nil)
	if err != nil || !ok {
		t.Fatalf("Lower: ok=%v err=%v", ok, err)
	}
	if string(l.Key) != "charlie" {
		t.Fatalf("expected charlie, got %q", l.Key)
	}
}
