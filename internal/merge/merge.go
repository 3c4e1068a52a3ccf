// Package merge implements the merge algebra that reconciles a "new" and
// an "old" key-value entry sharing the same key into a single resolved
// entry, or into a PendingApply chain when no immediate resolution is
// possible. It is the one place in the engine that knows how Put, Remove,
// Update, Function, and PendingApply entries interact; every writer
// (memtable, compaction) and reader (get/higher/lower) goes through it
// rather than special-casing variants on their own.
package merge

import (
	"github.com/iamNilotpal/ignite/internal/function"
	"github.com/iamNilotpal/ignite/internal/kv"
	"github.com/iamNilotpal/ignite/pkg/errors"
)

// Resolve merges newEntry over oldEntry, both sharing the same key, and
// returns the resolved entry. funcs resolves VariantFunction entries
// against the current value; it may be nil if neither side can contain a
// Function (callers that never register functions may pass nil and will
// get a FunctionNotFound error if a Function entry appears anyway).
func Resolve(newEntry, oldEntry kv.Entry, funcs *function.Registry) (kv.Entry, error) {
	if !newEntry.Time.After(oldEntry.Time) {
		return oldEntry, nil
	}

	switch newEntry.Variant {
	case kv.VariantRemove:
		return resolveRemove(newEntry, oldEntry, funcs)
	case kv.VariantUpdate:
		return resolveUpdate(newEntry, oldEntry, funcs)
	case kv.VariantFunction:
		return resolveFunction(newEntry, oldEntry, funcs)
	case kv.VariantPendingApply:
		return foldApplies(newEntry.Applies, oldEntry, funcs)
	case kv.VariantPut:
		return newEntry, nil
	default:
		return kv.Entry{}, errors.NewMergeError(
			nil, errors.ErrorCodeInternal, "unknown variant in merge.Resolve",
		).WithKey(string(newEntry.Key))
	}
}

// resolveRemove implements "Remove vs *" (spec.md §4.1).
func resolveRemove(newEntry, oldEntry kv.Entry, funcs *function.Registry) (kv.Entry, error) {
	if !newEntry.Deadline.Valid {
		return kv.Remove(newEntry.Key, newEntry.Time, kv.NoDeadline), nil
	}

	switch oldEntry.Variant {
	case kv.VariantPut, kv.VariantUpdate, kv.VariantRemove:
		if !oldEntry.Deadline.Valid {
			return withDeadline(oldEntry, newEntry.Time, newEntry.Deadline), nil
		}
		return kv.Remove(newEntry.Key, newEntry.Time, newEntry.Deadline), nil

	case kv.VariantFunction:
		return kv.Pending(newEntry.Key, []kv.Entry{oldEntry, newEntry}), nil

	case kv.VariantPendingApply:
		return appendToPending(newEntry, oldEntry)

	default:
		return kv.Entry{}, unknownOldVariant(newEntry, oldEntry)
	}
}

// resolveUpdate implements "Update vs *" (spec.md §4.1).
func resolveUpdate(newEntry, oldEntry kv.Entry, funcs *function.Registry) (kv.Entry, error) {
	switch oldEntry.Variant {
	case kv.VariantPut:
		// old is a confirmed value: applying Update resolves immediately
		// to a Put (spec.md §4.1, "Update vs Put").
		return kv.Put(newEntry.Key, newEntry.Value, newEntry.Time, inheritDeadline(newEntry, oldEntry)), nil

	case kv.VariantUpdate:
		// old is itself still conditional on a future Put: new wins but
		// the result stays an Update (spec.md §4.1, "Update vs Update").
		return kv.Update(newEntry.Key, newEntry.Value, newEntry.Time, inheritDeadline(newEntry, oldEntry)), nil

	case kv.VariantRemove:
		if newEntry.Deadline.Valid {
			return kv.Update(newEntry.Key, newEntry.Value, newEntry.Time, newEntry.Deadline), nil
		}
		// New carries no deadline of its own: adopt old's (possibly
		// unset) deadline rather than discarding the old Remove's
		// expiry semantics outright.
		return kv.Update(newEntry.Key, newEntry.Value, newEntry.Time, oldEntry.Deadline), nil

	case kv.VariantFunction, kv.VariantPendingApply:
		return appendToPending(newEntry, oldEntry)

	default:
		return kv.Entry{}, unknownOldVariant(newEntry, oldEntry)
	}
}

// resolveFunction implements "Function vs *" (spec.md §4.1).
func resolveFunction(newEntry, oldEntry kv.Entry, funcs *function.Registry) (kv.Entry, error) {
	switch oldEntry.Variant {
	case kv.VariantPut, kv.VariantUpdate:
		return invokeFunction(newEntry, oldEntry, funcs)

	case kv.VariantRemove:
		if !oldEntry.Deadline.Valid {
			return oldEntry, nil
		}
		return kv.Pending(newEntry.Key, []kv.Entry{oldEntry, newEntry}), nil

	case kv.VariantFunction, kv.VariantPendingApply:
		return appendToPending(newEntry, oldEntry)

	default:
		return kv.Entry{}, unknownOldVariant(newEntry, oldEntry)
	}
}

// invokeFunction runs newEntry's registered function against oldEntry's
// resolved value and merges the result back against oldEntry at
// newEntry.Time, per spec.md §4.1's "Function vs Put/Update" rule.
func invokeFunction(newEntry, oldEntry kv.Entry, funcs *function.Registry) (kv.Entry, error) {
	if funcs == nil {
		return kv.Entry{}, errors.NewFunctionNotFoundError(string(newEntry.Key), string(newEntry.FunctionID))
	}
	fn, err := funcs.Get(newEntry.FunctionID)
	if err != nil {
		return kv.Entry{}, err
	}

	result := fn(newEntry.Key, oldEntry.Value, oldEntry.HasValue, oldEntry.Deadline.Nanos, oldEntry.Deadline.Valid)

	switch result.Kind {
	case function.Nothing:
		return withTime(oldEntry, newEntry.Time), nil
	case function.Remove:
		return resolveRemove(kv.Remove(newEntry.Key, newEntry.Time, kv.NoDeadline), oldEntry, funcs)
	case function.Update:
		return resolveUpdate(kv.Update(newEntry.Key, result.Value, newEntry.Time, kv.NoDeadline), oldEntry, funcs)
	case function.Expire:
		deadline := kv.NewDeadline(result.Deadline)
		return resolveRemove(kv.Remove(newEntry.Key, newEntry.Time, deadline), oldEntry, funcs)
	default:
		return kv.Entry{}, errors.NewMergeError(
			nil, errors.ErrorCodeInternal, "unknown function result kind",
		).WithKey(string(newEntry.Key)).WithFunctionID(string(newEntry.FunctionID))
	}
}

// appendToPending implements the "cannot resolve immediately" branches
// that accumulate into (or start) a PendingApply sequence.
func appendToPending(newEntry, oldEntry kv.Entry) (kv.Entry, error) {
	switch oldEntry.Variant {
	case kv.VariantPendingApply:
		return kv.Pending(newEntry.Key, append(append([]kv.Entry{}, oldEntry.Applies...), newEntry)), nil
	default:
		return kv.Pending(newEntry.Key, []kv.Entry{oldEntry, newEntry}), nil
	}
}

// foldApplies implements §4.1.3: left-fold applies over a resolved base,
// stopping short and re-packaging the remainder as a fresh PendingApply
// the moment the running resolution itself becomes a PendingApply.
func foldApplies(applies []kv.Entry, base kv.Entry, funcs *function.Registry) (kv.Entry, error) {
	if len(applies) == 0 {
		return base, nil
	}

	running := base
	for i, apply := range applies {
		resolved, err := Resolve(apply, running, funcs)
		if err != nil {
			return kv.Entry{}, err
		}

		if resolved.Variant == kv.VariantPendingApply {
			remainder := applies[i+1:]
			key := apply.Key
			combined := append(append([]kv.Entry{}, resolved.Applies...), remainder...)
			return kv.Pending(key, combined), nil
		}
		running = resolved
	}
	return running, nil
}

func withDeadline(e kv.Entry, t kv.Time, d kv.Deadline) kv.Entry {
	e.Time = t
	e.Deadline = d
	return e
}

func withTime(e kv.Entry, t kv.Time) kv.Entry {
	e.Time = t
	return e
}

func inheritDeadline(newEntry, oldEntry kv.Entry) kv.Deadline {
	if newEntry.Deadline.Valid {
		return newEntry.Deadline
	}
	return oldEntry.Deadline
}

func unknownOldVariant(newEntry, oldEntry kv.Entry) error {
	return errors.NewMergeError(
		nil, errors.ErrorCodeInternal, "unresolvable old variant in merge",
	).WithKey(string(newEntry.Key)).WithVariants(newEntry.Variant.String(), oldEntry.Variant.String())
}
