// Package ignite provides a high-performance, embedded ordered key/value
// data store organised as a log-structured merge (LSM) tree. It combines
// an in-memory Memtable with immutable, append-only Segment files on
// disk to achieve high write throughput while keeping reads bounded by
// a hash index, a binary-search index, and a bloom filter per segment.
// It is designed for applications requiring fast read and write
// operations, such as caching, session management, and real-time data
// processing, aiming to provide a simple, efficient, and reliable
// solution for embedded key-value storage in Go applications.
package ignite

import (
	"context"
	"time"

	"github.com/iamNilotpal/ignite/internal/engine"
	"github.com/iamNilotpal/ignite/internal/function"
	"github.com/iamNilotpal/ignite/internal/kv"
	"github.com/iamNilotpal/ignite/pkg/logger"
	"github.com/iamNilotpal/ignite/pkg/options"
)

// Entry is the caller-facing view of a resolved key-value pair returned
// by traversal and range operations: a key, its current value, and
// whether an expiry deadline is set.
type Entry struct {
	Key        []byte
	Value      []byte
	HasExpiry  bool
	ExpiryUnix time.Time
}

func fromKV(e kv.Entry) Entry {
	out := Entry{Key: e.Key, Value: e.Value}
	if e.Deadline.Valid {
		out.HasExpiry = true
		out.ExpiryUnix = time.Unix(0, int64(e.Deadline.Nanos))
	}
	return out
}

// ResultKind discriminates the four outcomes a Function may produce,
// mirroring spec.md §4.1's "Function vs Put/Update" rule without
// exposing internal/function's type.
type ResultKind uint8

const (
	// ResultNothing leaves the current value unchanged.
	ResultNothing ResultKind = iota
	// ResultRemove tombstones the key.
	ResultRemove
	// ResultUpdate overwrites the current value.
	ResultUpdate
	// ResultExpire sets (or replaces) the key's deadline without
	// changing its value.
	ResultExpire
)

// FunctionResult is the caller-facing outcome of a registered Function.
type FunctionResult struct {
	Kind   ResultKind
	Value  []byte    // meaningful when Kind == ResultUpdate
	Expiry time.Time // meaningful when Kind == ResultExpire
}

// Function is a pure user-defined mutation invoked by Apply/ApplyRange:
// given the current resolved value (absent if no Put resolves there)
// and current deadline, it decides what should happen to the key.
type Function func(key, currentValue []byte, hasValue bool, expiry time.Time, hasExpiry bool) FunctionResult

// Represents an instance of the Ignite key/value data store.
// It encapsulates the core engine responsible for data handling and
// the configuration options for this specific database instance.
//
// Instance is the primary entry point for interacting with the Ignite store,
// providing methods for setting, getting, and deleting key-value pairs.
type Instance struct {
	engine  *engine.Engine   // The underlying database engine handling read/write operations.
	options *options.Options // Configuration options applied to this DB instance.
}

// Creates and initializes a new Ignite DB instance.
func NewInstance(ctx context.Context, service string, opts ...options.OptionFunc) (*Instance, error) {
	// Initialize a logger for the given service.
	log, err := logger.New(service)
	if err != nil {
		return nil, err
	}

	// Initialize default options.
	defaultOpts := options.NewDefaultOptions()

	// Apply any provided functional options to override defaults.
	for _, opt := range opts {
		opt(&defaultOpts)
	}

	// Create a new internal engine with the initialized logger.
	eng, err := engine.New(ctx, &engine.Config{Logger: log, Options: &defaultOpts})
	if err != nil {
		return nil, err
	}

	return &Instance{engine: eng, options: &defaultOpts}, nil
}

func deadlineAt(expiry time.Time) kv.Deadline {
	if expiry.IsZero() {
		return kv.NoDeadline
	}
	return kv.NewDeadline(uint64(expiry.UnixNano()))
}

// Set stores a key-value pair in the database.
// If the key already exists, its value will be updated.
// The write goes to the in-memory Memtable and reaches a segment file
// when the Memtable is next flushed.
func (i *Instance) Set(ctx context.Context, key string, value []byte) error {
	return i.engine.Put([]byte(key), value, kv.NoDeadline)
}

// SetX stores a key-value pair with an expiration time.
// The entry will automatically be considered expired and inaccessible
// after the specified duration from the time of setting.
// If the key already exists, its value and expiry will be updated.
func (i *Instance) SetX(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	return i.engine.Put([]byte(key), value, deadlineAt(time.Now().Add(expiry)))
}

// Update overwrites key's value, but only takes effect once a Put
// currently resolves there; writes against a key with no confirmed
// value stay pending until one arrives.
func (i *Instance) Update(ctx context.Context, key string, value []byte) error {
	return i.engine.Update([]byte(key), value, kv.NoDeadline)
}

// Get retrieves the value associated with the given key.
func (i *Instance) Get(ctx context.Context, key string) ([]byte, error) {
	value, _, err := i.engine.Get([]byte(key))
	return value, err
}

// Contains reports whether key currently resolves to a visible value.
func (i *Instance) Contains(ctx context.Context, key string) (bool, error) {
	return i.engine.Contains([]byte(key))
}

// Delete removes a key-value pair from the database.
// The operation marks the key as deleted and will eventually be
// removed during compaction.
func (i *Instance) Delete(ctx context.Context, key string) error {
	return i.engine.Remove([]byte(key), kv.NoDeadline)
}

// Expire schedules key to become inaccessible at the given future time,
// without immediately removing it.
func (i *Instance) Expire(ctx context.Context, key string, at time.Time) error {
	return i.engine.Expire([]byte(key), deadlineAt(at))
}

// RegisterFunction registers fn under id so Apply/ApplyRange calls can
// reference it.
func (i *Instance) RegisterFunction(id string, fn Function) {
	i.engine.Functions().Register(id, func(key, value []byte, hasValue bool, deadlineNanos uint64, hasDeadline bool) function.Result {
		var expiry time.Time
		if hasDeadline {
			expiry = time.Unix(0, int64(deadlineNanos))
		}
		result := fn(key, value, hasValue, expiry, hasDeadline)

		switch result.Kind {
		case ResultRemove:
			return function.Result{Kind: function.Remove}
		case ResultUpdate:
			return function.Result{Kind: function.Update, Value: result.Value}
		case ResultExpire:
			return function.Result{Kind: function.Expire, Deadline: uint64(result.Expiry.UnixNano())}
		default:
			return function.Result{Kind: function.Nothing}
		}
	})
}

// UnregisterFunction removes the function registered under id.
func (i *Instance) UnregisterFunction(id string) {
	i.engine.Functions().Unregister(id)
}

// Apply invokes the function registered under functionID against key's
// current resolved value.
func (i *Instance) Apply(ctx context.Context, key, functionID string) error {
	return i.engine.Apply([]byte(key), []byte(functionID))
}

// Head returns the entry at the least key currently stored, if any.
func (i *Instance) Head(ctx context.Context) (Entry, bool, error) {
	e, ok, err := i.engine.Head()
	if err != nil || !ok {
		return Entry{}, ok, err
	}
	return fromKV(e), true, nil
}

// Last returns the entry at the greatest key currently stored, if any.
func (i *Instance) Last(ctx context.Context) (Entry, bool, error) {
	e, ok, err := i.engine.Last()
	if err != nil || !ok {
		return Entry{}, ok, err
	}
	return fromKV(e), true, nil
}

// Higher returns the entry at the least key strictly greater than key.
func (i *Instance) Higher(ctx context.Context, key string) (Entry, bool, error) {
	e, ok, err := i.engine.Higher([]byte(key))
	if err != nil || !ok {
		return Entry{}, ok, err
	}
	return fromKV(e), true, nil
}

// Lower returns the entry at the greatest key strictly less than key.
func (i *Instance) Lower(ctx context.Context, key string) (Entry, bool, error) {
	e, ok, err := i.engine.Lower([]byte(key))
	if err != nil || !ok {
		return Entry{}, ok, err
	}
	return fromKV(e), true, nil
}

// Ceiling returns the entry at the least key greater than or equal to key.
func (i *Instance) Ceiling(ctx context.Context, key string) (Entry, bool, error) {
	e, ok, err := i.engine.Ceiling([]byte(key))
	if err != nil || !ok {
		return Entry{}, ok, err
	}
	return fromKV(e), true, nil
}

// Floor returns the entry at the greatest key less than or equal to key.
func (i *Instance) Floor(ctx context.Context, key string) (Entry, bool, error) {
	e, ok, err := i.engine.Floor([]byte(key))
	if err != nil || !ok {
		return Entry{}, ok, err
	}
	return fromKV(e), true, nil
}

// DeleteRange tombstones every key currently resolved within the
// half-open range [from, to). An empty to means "through the greatest key".
func (i *Instance) DeleteRange(ctx context.Context, from, to string) error {
	return i.engine.RemoveRange([]byte(from), rangeEnd(to), kv.NoDeadline)
}

// UpdateRange applies an Update to every key currently resolved within
// [from, to).
func (i *Instance) UpdateRange(ctx context.Context, from, to string, value []byte) error {
	return i.engine.UpdateRange([]byte(from), rangeEnd(to), value, kv.NoDeadline)
}

// ExpireRange schedules the given expiry on every key currently
// resolved within [from, to).
func (i *Instance) ExpireRange(ctx context.Context, from, to string, at time.Time) error {
	return i.engine.ExpireRange([]byte(from), rangeEnd(to), deadlineAt(at))
}

// ApplyRange invokes the function registered under functionID against
// every key currently resolved within [from, to).
func (i *Instance) ApplyRange(ctx context.Context, from, to, functionID string) error {
	return i.engine.ApplyRange([]byte(from), rangeEnd(to), []byte(functionID))
}

// rangeEnd treats an empty string as "unbounded above" (nil), since ""
// is not a meaningful exclusive upper key bound for any caller.
func rangeEnd(to string) []byte {
	if to == "" {
		return nil
	}
	return []byte(to)
}

// Close gracefully shuts down the Ignite DB instance, releasing all
// associated resources, flushing any pending writes, and ensuring data
// durability.
func (i *Instance) Close(ctx context.Context) error {
	return i.engine.Close()
}
