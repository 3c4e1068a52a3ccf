// Package engine provides the core database engine implementation for the Ignite storage system.
//
// The engine serves as the central coordinator and entry point for all database operations.
// It orchestrates the interaction between the Memtable (in-memory mutable front end), the
// Storage subsystem (immutable on-disk segment files), the segment merge algebra, a function
// registry for user-defined Apply operations, and a background Compaction loop.
//
// The engine implements a thread-safe interface with proper lifecycle management,
// ensuring resources are properly initialized and cleaned up. It uses atomic operations
// for state management to provide consistent behavior across concurrent operations.
package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iamNilotpal/ignite/internal/compaction"
	"github.com/iamNilotpal/ignite/internal/function"
	"github.com/iamNilotpal/ignite/internal/kv"
	"github.com/iamNilotpal/ignite/internal/memtable"
	"github.com/iamNilotpal/ignite/internal/merge"
	"github.com/iamNilotpal/ignite/internal/segment"
	"github.com/iamNilotpal/ignite/internal/storage"
	"github.com/iamNilotpal/ignite/pkg/options"
	"go.uber.org/zap"
)

var (
	// ErrEngineClosed is returned when attempting to perform operations on a closed engine.
	ErrEngineClosed = errors.New("operation failed: cannot access closed engine")
)

// openSegment pairs a parsed segment.Segment with the file metadata
// needed to evict or re-read it.
type openSegment struct {
	info storage.SegmentFileInfo
	seg  *segment.Segment
}

// Engine represents the main database engine that coordinates all subsystems.
// It acts as the primary interface for database operations and manages the lifecycle
// of all internal components. The engine is designed to be thread-safe and supports
// concurrent operations while maintaining data consistency.
type Engine struct {
	options    *options.Options       // options contains all configuration parameters for the engine and its subsystems.
	log        *zap.SugaredLogger     // log provides structured logging capabilities throughout the engine.
	closed     atomic.Bool            // closed is an atomic boolean that tracks the engine's lifecycle state.
	compare    func(a, b []byte) int  // compare is the caller-supplied (or default) key comparator.
	funcs      *function.Registry     // funcs resolves Function entries during merge.
	memtable   *memtable.Memtable     // memtable is the mutable, in-memory write path.
	storage    *storage.Storage       // storage handles all persistent data operations.
	compaction *compaction.Compaction // compaction manages background processes that optimize storage efficiency.

	segMu    sync.RWMutex  // segMu guards segments against concurrent flush/compaction swaps.
	segments []openSegment // segments holds every currently-open, on-disk segment, oldest (lowest id) first.

	clock      atomic.Int64       // clock is a monotonically increasing logical-time source (see nextTime).
	cancelComp context.CancelFunc // cancelComp stops the background compaction loop on Close.
}

// Config holds all the parameters needed to initialize a new Engine instance.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// New creates and initializes a new Engine instance with the provided configuration.
// This constructor follows the dependency injection pattern, making the engine
// testable and allowing for different configurations in different environments.
//
// Returns:
//   - *Engine: A fully initialized engine ready for use
//   - error: Any error encountered during initialization, typically from storage setup
func New(ctx context.Context, config *Config) (*Engine, error) {
	cmp := options.DefaultComparator
	if config.Options.Comparator != nil {
		cmp = config.Options.Comparator
	}

	// Initialize the function registry first; nothing else depends on it
	// being populated, only on it existing.
	funcs := function.NewRegistry()

	// Initialize the memtable, which has no on-disk dependencies.
	mt, err := memtable.New(ctx, &memtable.Config{Logger: config.Logger, Functions: funcs})
	if err != nil {
		return nil, err
	}

	// Initialize the storage subsystem, which scans the data directory
	// for any segments left over from a previous process.
	store, err := storage.New(ctx, &storage.Config{Logger: config.Logger, Options: config.Options})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		options:  config.Options,
		log:      config.Logger,
		compare:  cmp,
		funcs:    funcs,
		memtable: mt,
		storage:  store,
	}
	e.clock.Store(time.Now().UnixNano())

	if err := e.loadSegments(); err != nil {
		store.Close()
		return nil, err
	}

	compCtx, cancel := context.WithCancel(ctx)
	comp, err := compaction.New(compCtx, &compaction.Config{
		Options: config.Options, Logger: config.Logger, Storage: store, Functions: funcs,
	})
	if err != nil {
		cancel()
		store.Close()
		return nil, err
	}
	e.compaction = comp
	e.cancelComp = cancel

	return e, nil
}

// Functions returns the function registry that Apply operations resolve
// function ids against. Callers register domain-specific functions on
// this registry before issuing Apply calls that reference them.
func (e *Engine) Functions() *function.Registry {
	return e.funcs
}

// loadSegments opens every segment file discovered by Storage at
// startup, oldest (lowest global id) first, so subsequent folds across
// e.segments observe entries in ascending logical-time order.
func (e *Engine) loadSegments() error {
	files, err := e.storage.ListSegments()
	if err != nil {
		return err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })

	opened := make([]openSegment, 0, len(files))
	for _, f := range files {
		data, err := e.storage.ReadSegment(f.Path)
		if err != nil {
			return err
		}
		seg, err := segment.Open(data, uint16(f.ID))
		if err != nil {
			return err
		}
		opened = append(opened, openSegment{info: f, seg: seg})
	}

	e.segMu.Lock()
	e.segments = opened
	e.segMu.Unlock()
	return nil
}

// nextTime returns a strictly increasing kv.Time for the next mutation.
// It combines the wall clock with a monotonic counter so that two
// mutations issued within the same nanosecond still compare distinctly,
// preserving the per-key linearisation spec.md §3.1/§5 requires.
func (e *Engine) nextTime() kv.Time {
	now := time.Now().UnixNano()
	for {
		prev := e.clock.Load()
		next := now
		if next <= prev {
			next = prev + 1
		}
		if e.clock.CompareAndSwap(prev, next) {
			return kv.TimeFromNanos(next)
		}
	}
}

// segmentsSnapshot returns a stable copy of the currently open segments,
// oldest first, safe to read without holding segMu.
func (e *Engine) segmentsSnapshot() []openSegment {
	e.segMu.RLock()
	defer e.segMu.RUnlock()
	out := make([]openSegment, len(e.segments))
	copy(out, e.segments)
	return out
}

// resolveFromSegments folds every open segment's view of key, oldest to
// newest, through the merge algebra, returning the fully resolved entry
// if any segment holds the key.
func (e *Engine) resolveFromSegments(key []byte) (kv.Entry, bool, error) {
	segs := e.segmentsSnapshot()

	var running kv.Entry
	found := false
	for _, s := range segs {
		entry, ok, err := s.seg.Get(key, e.compare)
		if err != nil {
			return kv.Entry{}, false, err
		}
		if !ok {
			continue
		}
		if !found {
			running, found = entry, true
			continue
		}
		running, err = merge.Resolve(entry, running, e.funcs)
		if err != nil {
			return kv.Entry{}, false, err
		}
	}
	return running, found, nil
}

// resolveExisting returns the currently resolved entry for key across
// the memtable and all on-disk segments, without regard to expiry. The
// memtable's view is authoritative when present: every write that
// reaches the memtable has already been pre-merged (see write) against
// whatever on-disk state existed for that key at write time, so it
// fully subsumes the segment history.
func (e *Engine) resolveExisting(key []byte) (kv.Entry, bool, error) {
	if entry, ok := e.memtable.Get(key); ok {
		return entry, true, nil
	}
	return e.resolveFromSegments(key)
}

// write runs incoming through the merge algebra against whatever is
// currently resolved for its key (memtable or, failing that, the
// on-disk segments), stores the result, and triggers a flush if the
// memtable has grown past its configured threshold.
func (e *Engine) write(incoming kv.Entry) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	old, found, err := e.resolveExisting(incoming.Key)
	if err != nil {
		return err
	}

	resolved := incoming
	if found {
		resolved, err = merge.Resolve(incoming, old, e.funcs)
		if err != nil {
			return err
		}
	}

	if _, err := e.memtable.Apply(resolved); err != nil {
		return err
	}

	if uint64(e.memtable.ApproxSize()) >= e.options.MemtableFlushSize {
		if err := e.flush(); err != nil {
			return err
		}
	}
	return nil
}

// flush writes the memtable's current contents out as a new level-0
// segment file, resets the memtable, and registers the new segment for
// reads before triggering a background compaction pass.
func (e *Engine) flush() error {
	snapshot := e.memtable.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}

	cfg := segment.DefaultWriterConfig()
	cfg.BloomFalsePositiveRate = e.options.BloomFalsePositiveRate
	cfg.PrefixCompressionResetCount = e.options.PrefixCompressionResetCount
	w := segment.NewWriter(cfg)
	for _, entry := range snapshot {
		w.Append(entry)
	}
	data, err := w.Close()
	if err != nil {
		return err
	}

	id, path, err := e.storage.WriteSegment(0, data)
	if err != nil {
		return err
	}
	seg, err := segment.Open(data, uint16(id))
	if err != nil {
		return err
	}

	e.segMu.Lock()
	e.segments = append(e.segments, openSegment{
		info: storage.SegmentFileInfo{ID: id, Level: 0, Path: path, Size: int64(len(data))},
		seg:  seg,
	})
	e.segMu.Unlock()

	e.memtable.Reset()
	e.compaction.Trigger()
	return nil
}

// visible applies the engine's expiry check uniformly after merge
// resolution (DESIGN.md's decision for spec.md §9's open question): a
// resolved entry is visible iff it is not a bare tombstone and its
// deadline, if any, has not passed.
func visible(e kv.Entry, nowNanos uint64) (kv.Entry, bool) {
	// Only a Put is a confirmed, readable value. A bare Update or
	// Function entry is still waiting for a base Put to resolve against
	// (spec.md §3.2: "Update: ... value only if a Put exists"); a
	// Remove is a tombstone; a PendingApply has no resolved value at
	// all. All four read as absent until merge collapses them to Put.
	if e.Variant != kv.VariantPut {
		return kv.Entry{}, false
	}
	if e.Deadline.IsExpired(nowNanos) {
		return kv.Entry{}, false
	}
	return e, true
}

// --- Point mutation operations (spec.md §1) ---

// Put stores value under key as a committed, immediately visible entry.
func (e *Engine) Put(key, value []byte, deadline kv.Deadline) error {
	return e.write(kv.Put(key, value, e.nextTime(), deadline))
}

// Update overwrites key's value only if a Put currently resolves there;
// otherwise the mutation stays pending until one does (spec.md §4.1).
func (e *Engine) Update(key, value []byte, deadline kv.Deadline) error {
	return e.write(kv.Update(key, value, e.nextTime(), deadline))
}

// Remove tombstones key permanently (deadline unset) or schedules an
// expiry (deadline set).
func (e *Engine) Remove(key []byte, deadline kv.Deadline) error {
	return e.write(kv.Remove(key, e.nextTime(), deadline))
}

// Expire is Remove with a required, valid deadline, kept as a distinct
// name to match spec.md's "put, update, remove, expire" operation list.
func (e *Engine) Expire(key []byte, deadline kv.Deadline) error {
	if !deadline.Valid {
		return errors.New("Expire requires a valid deadline")
	}
	return e.Remove(key, deadline)
}

// Apply invokes the registered function functionID against key's
// current resolved value (spec.md §4.1 "Function vs *").
func (e *Engine) Apply(key, functionID []byte) error {
	return e.write(kv.ApplyFunction(key, functionID, e.nextTime(), kv.NoDeadline))
}

// --- Point read operations ---

// Get returns key's currently visible value, if any.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	entry, ok, err := e.resolveExisting(key)
	if err != nil || !ok {
		return nil, false, err
	}
	resolved, ok := visible(entry, uint64(time.Now().UnixNano()))
	if !ok {
		return nil, false, nil
	}
	return resolved.Value, true, nil
}

// Contains reports whether key currently resolves to a visible entry.
func (e *Engine) Contains(key []byte) (bool, error) {
	_, ok, err := e.Get(key)
	return ok, err
}

// --- Ordered traversal (spec.md §1: head, last, higher, lower, ceiling, floor) ---

// universe merges the memtable's keys with every open segment's key set
// into a single sorted slice of distinct keys. Traversal operations
// need the global key space; point lookups (Get/Contains) never pay
// this cost since they route through resolveExisting instead.
func (e *Engine) universe() ([][]byte, error) {
	seen := make(map[string]struct{})
	var keys [][]byte

	add := func(k []byte) {
		s := string(k)
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		keys = append(keys, k)
	}

	for _, entry := range e.memtable.Snapshot() {
		add(entry.Key)
	}
	for _, s := range e.segmentsSnapshot() {
		entries, err := s.seg.All()
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			add(entry.Key)
		}
	}

	sort.Slice(keys, func(i, j int) bool { return e.compare(keys[i], keys[j]) < 0 })
	return keys, nil
}

// resolveVisible resolves key and applies the visibility check, used by
// every traversal operation below to skip tombstoned/expired/unresolved
// candidates.
func (e *Engine) resolveVisible(key []byte) (kv.Entry, bool, error) {
	entry, ok, err := e.resolveExisting(key)
	if err != nil || !ok {
		return kv.Entry{}, false, err
	}
	resolved, ok := visible(entry, uint64(time.Now().UnixNano()))
	return resolved, ok, nil
}

// Head returns the entry at the least visible key, if any.
func (e *Engine) Head() (kv.Entry, bool, error) {
	keys, err := e.universe()
	if err != nil {
		return kv.Entry{}, false, err
	}
	for _, k := range keys {
		if entry, ok, err := e.resolveVisible(k); err != nil {
			return kv.Entry{}, false, err
		} else if ok {
			return entry, true, nil
		}
	}
	return kv.Entry{}, false, nil
}

// Last returns the entry at the greatest visible key, if any.
func (e *Engine) Last() (kv.Entry, bool, error) {
	keys, err := e.universe()
	if err != nil {
		return kv.Entry{}, false, err
	}
	for i := len(keys) - 1; i >= 0; i-- {
		if entry, ok, err := e.resolveVisible(keys[i]); err != nil {
			return kv.Entry{}, false, err
		} else if ok {
			return entry, true, nil
		}
	}
	return kv.Entry{}, false, nil
}

// Higher returns the entry at the least visible key strictly greater
// than key, if any.
func (e *Engine) Higher(key []byte) (kv.Entry, bool, error) {
	keys, err := e.universe()
	if err != nil {
		return kv.Entry{}, false, err
	}
	idx := sort.Search(len(keys), func(i int) bool { return e.compare(keys[i], key) > 0 })
	for ; idx < len(keys); idx++ {
		if entry, ok, err := e.resolveVisible(keys[idx]); err != nil {
			return kv.Entry{}, false, err
		} else if ok {
			return entry, true, nil
		}
	}
	return kv.Entry{}, false, nil
}

// Lower returns the entry at the greatest visible key strictly less
// than key, if any.
func (e *Engine) Lower(key []byte) (kv.Entry, bool, error) {
	keys, err := e.universe()
	if err != nil {
		return kv.Entry{}, false, err
	}
	idx := sort.Search(len(keys), func(i int) bool { return e.compare(keys[i], key) >= 0 }) - 1
	for ; idx >= 0; idx-- {
		if entry, ok, err := e.resolveVisible(keys[idx]); err != nil {
			return kv.Entry{}, false, err
		} else if ok {
			return entry, true, nil
		}
	}
	return kv.Entry{}, false, nil
}

// Ceiling returns the entry at the least visible key greater than or
// equal to key.
func (e *Engine) Ceiling(key []byte) (kv.Entry, bool, error) {
	if entry, ok, err := e.resolveVisible(key); err != nil || ok {
		return entry, ok, err
	}
	return e.Higher(key)
}

// Floor returns the entry at the greatest visible key less than or
// equal to key.
func (e *Engine) Floor(key []byte) (kv.Entry, bool, error) {
	if entry, ok, err := e.resolveVisible(key); err != nil || ok {
		return entry, ok, err
	}
	return e.Lower(key)
}

// --- Range-bounded mutation operations ---

// keysInRange returns every distinct key k in the half-open range
// [from, to) (to == nil means unbounded above), under the engine's
// comparator.
func (e *Engine) keysInRange(from, to []byte) ([][]byte, error) {
	keys, err := e.universe()
	if err != nil {
		return nil, err
	}

	lo := sort.Search(len(keys), func(i int) bool { return e.compare(keys[i], from) >= 0 })
	hi := len(keys)
	if to != nil {
		hi = sort.Search(len(keys), func(i int) bool { return e.compare(keys[i], to) >= 0 })
	}
	if lo > hi {
		return nil, nil
	}
	return keys[lo:hi], nil
}

// RemoveRange tombstones (or schedules the expiry of) every key
// currently resolved within [from, to).
func (e *Engine) RemoveRange(from, to []byte, deadline kv.Deadline) error {
	keys, err := e.keysInRange(from, to)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := e.Remove(k, deadline); err != nil {
			return err
		}
	}
	return nil
}

// UpdateRange applies an Update to every key currently resolved within
// [from, to).
func (e *Engine) UpdateRange(from, to, value []byte, deadline kv.Deadline) error {
	keys, err := e.keysInRange(from, to)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := e.Update(k, value, deadline); err != nil {
			return err
		}
	}
	return nil
}

// ExpireRange schedules the given deadline on every key currently
// resolved within [from, to).
func (e *Engine) ExpireRange(from, to []byte, deadline kv.Deadline) error {
	return e.RemoveRange(from, to, deadline)
}

// ApplyRange invokes the registered function functionID against every
// key currently resolved within [from, to).
func (e *Engine) ApplyRange(from, to, functionID []byte) error {
	keys, err := e.keysInRange(from, to)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := e.Apply(k, functionID); err != nil {
			return err
		}
	}
	return nil
}

// Close gracefully shuts down the engine and releases all associated resources.
// This method ensures that all pending operations complete and that data is
// properly persisted before the engine becomes unusable.
func (e *Engine) Close() error {
	// Use atomic compare-and-swap to transition from open (false) to closed (true).
	// This operation is atomic and thread-safe, ensuring only one goroutine
	// can successfully close the engine. The operation returns true if the
	// swap was successful (engine was open) or false if it failed (already closed).
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	if err := e.flush(); err != nil {
		e.log.Warnw("failed to flush memtable during close", "error", err)
	}
	e.cancelComp()
	if err := e.compaction.Close(); err != nil {
		e.log.Warnw("failed to close compaction", "error", err)
	}
	if err := e.memtable.Close(); err != nil {
		e.log.Warnw("failed to close memtable", "error", err)
	}

	// Perform the actual shutdown by closing the storage subsystem.
	return e.storage.Close()
}
