package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCooperative_ComputesOnceUnderConcurrency(t *testing.T) {
	var calls int32
	c := NewCooperative(Loader[int](func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background())
			if err != nil || v != 42 {
				t.Errorf("Get: v=%d err=%v", v, err)
			}
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected exactly one Loader call, got %d", calls)
	}
}

func TestCooperative_InvalidateForcesRecompute(t *testing.T) {
	var calls int32
	c := NewCooperative(Loader[int](func(ctx context.Context) (int, error) {
		return int(atomic.AddInt32(&calls, 1)), nil
	}))

	v1, _ := c.Get(context.Background())
	c.Invalidate()
	v2, _ := c.Get(context.Background())

	if v1 == v2 {
		t.Fatalf("expected distinct values after invalidation, got %d twice", v1)
	}
}

func TestReservation_SecondCallerGetsBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	c := NewReservation(Loader[int](func(ctx context.Context) (int, error) {
		close(started)
		<-release
		return 1, nil
	}))

	go c.Reserve(context.Background())
	<-started

	if _, err := c.Reserve(context.Background()); err != ErrReservationBusy {
		t.Fatalf("expected ErrReservationBusy, got %v", err)
	}
	close(release)
}

func TestMapLoader(t *testing.T) {
	base := Loader[int](func(ctx context.Context) (int, error) { return 3, nil })
	doubled := MapLoader(base, func(v int) int { return v * 2 })

	v, err := doubled(context.Background())
	if err != nil || v != 6 {
		t.Fatalf("expected 6, got v=%d err=%v", v, err)
	}
}

func TestComposeLoaders_FallsThroughOnError(t *testing.T) {
	failing := Loader[string](func(ctx context.Context) (string, error) {
		return "", errTest
	})
	ok := Loader[string](func(ctx context.Context) (string, error) {
		return "fallback", nil
	})

	composed := ComposeLoaders(failing, ok)
	v, err := composed(context.Background())
	if err != nil || v != "fallback" {
		t.Fatalf("expected fallback, got v=%q err=%v", v, err)
	}
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
