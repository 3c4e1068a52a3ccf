// Package cache implements the lazy single-value cache primitive
// (spec.md §4.11): a value computed once from a Loader and served to
// every subsequent caller until invalidated, in two flavors —
// cooperative (concurrent callers block and share one computation) and
// reservation (a caller that loses the race gets a Busy error instead
// of waiting) — plus Loader combinators (Map, FlatMap, Compose) for
// building one cache's Loader out of others.
//
// Cooperative is grounded on the teacher's sibling pack example
// edirooss-zmux-server/internal/service/channel_summary.go: a
// singleflight.Group coalescing concurrent cache refreshes behind an
// RWMutex-guarded snapshot, generalized from that file's one hardcoded
// Redis-summary cache into a reusable generic primitive.
package cache

import (
	"context"
	stdErrors "errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// ErrReservationBusy is returned by Reservation.Reserve when another
// caller is already computing the value.
var ErrReservationBusy = stdErrors.New("cache: reservation already held by another caller")

// Loader computes the value a Cache should hold. It is called at most
// once per generation (between a cache miss/invalidation and the next).
type Loader[T any] func(ctx context.Context) (T, error)

// Cooperative is a lazily-computed value shared by every caller:
// concurrent Get calls while a computation is in flight block and
// receive the same result, via golang.org/x/sync/singleflight.
type Cooperative[T any] struct {
	load Loader[T]

	mu  sync.RWMutex
	val T
	has bool

	sg singleflight.Group
}

// NewCooperative returns a Cooperative cache with no value computed yet.
func NewCooperative[T any](load Loader[T]) *Cooperative[T] {
	return &Cooperative[T]{load: load}
}

// Get returns the cached value, computing it via Loader if absent.
// Concurrent callers that arrive while a computation is already in
// flight share that single computation rather than each starting one.
func (c *Cooperative[T]) Get(ctx context.Context) (T, error) {
	c.mu.RLock()
	if c.has {
		v := c.val
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.sg.Do("value", func() (any, error) {
		c.mu.RLock()
		if c.has {
			v := c.val
			c.mu.RUnlock()
			return v, nil
		}
		c.mu.RUnlock()

		val, err := c.load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.val = val
		c.has = true
		c.mu.Unlock()
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate clears the cached value, forcing the next Get to recompute it.
func (c *Cooperative[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.val = zero
	c.has = false
}

// Reservation is a lazily-computed value where a caller that loses the
// race to compute it is told so immediately (ErrReservationBusy)
// instead of blocking, matching spec.md §4.11's single-flight-
// reservation mode for callers that would rather retry later than wait.
type Reservation[T any] struct {
	load Loader[T]

	mu  sync.RWMutex
	val T
	has bool

	computing atomic.Bool
}

// NewReservation returns a Reservation cache with no value computed yet.
func NewReservation[T any](load Loader[T]) *Reservation[T] {
	return &Reservation[T]{load: load}
}

// Reserve returns the cached value if present, otherwise attempts to
// claim the right to compute it. If another caller already holds that
// right, Reserve returns ErrReservationBusy without blocking.
func (c *Reservation[T]) Reserve(ctx context.Context) (T, error) {
	c.mu.RLock()
	if c.has {
		v := c.val
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	if !c.computing.CompareAndSwap(false, true) {
		var zero T
		return zero, ErrReservationBusy
	}
	defer c.computing.Store(false)

	c.mu.RLock()
	if c.has {
		v := c.val
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	val, err := c.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.mu.Lock()
	c.val = val
	c.has = true
	c.mu.Unlock()
	return val, nil
}

// Invalidate clears the cached value, forcing the next successful
// Reserve to recompute it.
func (c *Reservation[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.val = zero
	c.has = false
}

// MapLoader returns a Loader that runs l and transforms its result
// through f, for building one cache's Loader out of another's value.
func MapLoader[T, U any](l Loader[T], f func(T) U) Loader[U] {
	return func(ctx context.Context) (U, error) {
		v, err := l(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return f(v), nil
	}
}

// FlatMapLoader returns a Loader that runs l and passes its result
// through f, which may itself fail (e.g. a second-stage fetch keyed by
// the first stage's result).
func FlatMapLoader[T, U any](l Loader[T], f func(T) (U, error)) Loader[U] {
	return func(ctx context.Context) (U, error) {
		v, err := l(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return f(v)
	}
}

// ComposeLoaders returns a Loader that tries each loader in order,
// returning the first one that succeeds. It fails with the last
// loader's error if every loader fails.
func ComposeLoaders[T any](loaders ...Loader[T]) Loader[T] {
	return func(ctx context.Context) (T, error) {
		var zero T
		var err error
		for _, l := range loaders {
			var v T
			v, err = l(ctx)
			if err == nil {
				return v, nil
			}
		}
		return zero, err
	}
}
