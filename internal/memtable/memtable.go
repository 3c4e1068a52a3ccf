// Package memtable provides the in-memory, mutable front end of the
// storage engine: a concurrency-safe map from key to its currently
// resolved kv.Entry, kept up to date by running every incoming mutation
// through the merge algebra (internal/merge) against whatever is
// already there.
//
// This is a direct adaptation of the teacher's internal/index package:
// the same map+RWMutex+atomic.Bool-closed shape, but holding fully
// merged kv.Entry values instead of disk-pointer RecordPointer structs,
// since this engine resolves mutations in memory before they are ever
// flushed to a segment.
package memtable

import (
	"context"
	stdErrors "errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/ignite/internal/function"
	"github.com/iamNilotpal/ignite/internal/kv"
	"github.com/iamNilotpal/ignite/internal/merge"
	"github.com/iamNilotpal/ignite/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrMemtableClosed = stdErrors.New("operation failed: cannot access closed memtable")
)

// entryOverhead approximates the fixed bookkeeping cost of one map slot,
// added to each entry's key+value length when tracking ApproxSize.
const entryOverhead = 48

// Config encapsulates the parameters required to initialize a Memtable.
type Config struct {
	Logger    *zap.SugaredLogger
	Functions *function.Registry
}

// Memtable is the in-memory hash table mapping keys to their currently
// resolved kv.Entry. It is the engine's sole mutation path: every write
// enters through Apply, which merges the incoming entry against whatever
// is already resolved for that key.
type Memtable struct {
	log     *zap.SugaredLogger
	funcs   *function.Registry
	mu      sync.RWMutex
	entries map[string]kv.Entry
	size    int64
	closed  atomic.Bool
}

// New creates an empty Memtable ready for concurrent use.
func New(ctx context.Context, config *Config) (*Memtable, error) {
	if config == nil || config.Logger == nil || config.Functions == nil {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "Memtable configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}

	return &Memtable{
		log:     config.Logger,
		funcs:   config.Functions,
		entries: make(map[string]kv.Entry, 2046),
	}, nil
}

// Apply merges incoming against the currently resolved entry for its
// key (if any) and stores the result, returning the newly resolved
// entry.
func (m *Memtable) Apply(incoming kv.Entry) (kv.Entry, error) {
	if m.closed.Load() {
		return kv.Entry{}, ErrMemtableClosed
	}

	k := string(incoming.Key)

	m.mu.Lock()
	defer m.mu.Unlock()

	old, exists := m.entries[k]
	var resolved kv.Entry
	var err error
	if exists {
		resolved, err = merge.Resolve(incoming, old, m.funcs)
	} else {
		resolved = incoming
	}
	if err != nil {
		return kv.Entry{}, err
	}

	m.entries[k] = resolved
	if exists {
		m.size += entrySize(resolved) - entrySize(old)
	} else {
		m.size += entrySize(resolved)
	}
	return resolved, nil
}

// Get returns the currently resolved entry for key, if present. The
// caller is responsible for deadline/variant interpretation (a Remove
// or an expired Put both resolve here; they read the same as "absent"
// under the engine's read path).
func (m *Memtable) Get(key []byte) (kv.Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[string(key)]
	return e, ok
}

// Len returns the number of distinct keys currently tracked.
func (m *Memtable) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// ApproxSize estimates the Memtable's memory footprint in bytes, used by
// the engine to decide when to flush to a new segment.
func (m *Memtable) ApproxSize() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Snapshot returns every resolved entry in ascending key order, ready
// for a segment.Writer to consume. The caller owns the returned slice.
func (m *Memtable) Snapshot() []kv.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]kv.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].Key) < string(out[j].Key)
	})
	return out
}

// Reset clears the Memtable in place, typically called immediately
// after a successful flush to a new segment.
func (m *Memtable) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	m.size = 0
}

// Close gracefully shuts down the Memtable, releasing its backing map.
func (m *Memtable) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrMemtableClosed
	}

	m.log.Infow("Closing memtable", "entries", m.Len())

	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	m.entries = nil

	return nil
}

func entrySize(e kv.Entry) int64 {
	n := int64(len(e.Key) + len(e.Value) + len(e.FunctionID) + entryOverhead)
	for _, inner := range e.Applies {
		n += entrySize(inner)
	}
	return n
}
