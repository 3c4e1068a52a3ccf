package errors

// MergeError is a specialized error type for failures in the merge
// algebra that reconciles key-value variants against each other
// (internal/merge). It embeds baseError to inherit standard error
// functionality, then adds context specific to a merge step: which key
// and function id were involved, and which two variants were being
// reconciled.
type MergeError struct {
	*baseError
	key         string // The key being merged when the error occurred.
	functionID  string // The function id that triggered the error, if any.
	newVariant  string // The "new" side's variant name.
	oldVariant  string // The "old" side's variant name.
}

// NewMergeError creates a new merge-specific error.
func NewMergeError(err error, code ErrorCode, msg string) *MergeError {
	return &MergeError{baseError: NewBaseError(err, code, msg)}
}

// WithMessage updates the error message while preserving the MergeError type.
func (me *MergeError) WithMessage(msg string) *MergeError {
	me.baseError.WithMessage(msg)
	return me
}

// WithCode sets the error code while preserving the MergeError type.
func (me *MergeError) WithCode(code ErrorCode) *MergeError {
	me.baseError.WithCode(code)
	return me
}

// WithDetail adds contextual information while preserving the MergeError type.
func (me *MergeError) WithDetail(key string, value any) *MergeError {
	me.baseError.WithDetail(key, value)
	return me
}

// WithKey records which key was being merged when the error occurred.
func (me *MergeError) WithKey(key string) *MergeError {
	me.key = key
	return me
}

// WithFunctionID records which function id triggered the error.
func (me *MergeError) WithFunctionID(id string) *MergeError {
	me.functionID = id
	return me
}

// WithVariants records which two variants were being reconciled.
func (me *MergeError) WithVariants(newVariant, oldVariant string) *MergeError {
	me.newVariant = newVariant
	me.oldVariant = oldVariant
	return me
}

// Key returns the key that was being merged when the error occurred.
func (me *MergeError) Key() string { return me.key }

// FunctionID returns the function id that triggered the error, if any.
func (me *MergeError) FunctionID() string { return me.functionID }

// Variants returns the (new, old) variant names being reconciled.
func (me *MergeError) Variants() (string, string) { return me.newVariant, me.oldVariant }

// NewFunctionNotFoundError creates a merge error for an unregistered
// function id, matching spec.md §7's "Missing function" error kind.
func NewFunctionNotFoundError(key string, functionID string) *MergeError {
	return NewMergeError(
		nil, ErrorCodeFunctionNotFound, "function id has no registered implementation",
	).WithKey(key).WithFunctionID(functionID)
}

// NewInvalidPendingApplyError creates a merge error for a PendingApply
// whose inner sequence violates spec.md §3.2's invariants.
func NewInvalidPendingApplyError(key string, reason string) *MergeError {
	return NewMergeError(
		nil, ErrorCodeInvalidPendingApply, "pending apply sequence invariant violated",
	).WithKey(key).WithDetail("reason", reason)
}
