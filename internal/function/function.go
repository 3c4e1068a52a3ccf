// Package function implements the function registry collaborator spec.md
// §6.2 describes but leaves caller-supplied: a lookup from a function id
// to a registered pure Function, used by internal/merge to resolve
// VariantFunction entries against a base value.
package function

import (
	"sync"

	"github.com/iamNilotpal/ignite/pkg/errors"
)

// ResultKind discriminates the four shapes a Function invocation may
// produce, per spec.md §4.1 ("Function vs Put/Update").
type ResultKind uint8

const (
	// Nothing leaves the current value unchanged (identity).
	Nothing ResultKind = iota
	// Remove tombstones the key.
	Remove
	// Update overwrites the current value.
	Update
	// Expire sets (or replaces) the key's deadline without changing its
	// value.
	Expire
)

// Result is the outcome of applying a Function to a value.
type Result struct {
	Kind     ResultKind
	Value    []byte // meaningful when Kind == Update
	Deadline uint64 // meaningful when Kind == Expire; Unix nanoseconds
}

// Func is a registered pure function: given the current resolved value
// (nil if the key doesn't currently hold a Put) and the current deadline
// nanos (0 if none), it returns what should happen to the key.
type Func func(key, currentValue []byte, hasValue bool, deadlineNanos uint64, hasDeadline bool) Result

// Registry is a concurrency-safe id -> Func lookup table.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns an empty Registry ready for concurrent use.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds or replaces the function stored under id.
func (r *Registry) Register(id string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[id] = fn
}

// Unregister removes the function stored under id, if any.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.funcs, id)
}

// Get resolves id to its registered Func. It returns a MergeError with
// code ErrorCodeFunctionNotFound when id has no registered function,
// matching spec.md §7's "Missing function" error kind.
func (r *Registry) Get(id []byte) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.funcs[string(id)]
	if !ok {
		return nil, errors.NewMergeError(
			nil, errors.ErrorCodeFunctionNotFound, "no function registered for id",
		).WithFunctionID(string(id))
	}
	return fn, nil
}
