// Package errkind classifies engine errors so callers can tell user
// mistakes apart from violated engine invariants.
package errkind

import (
	"github.com/pkg/errors"
)

// Kind is the error class attached to engine errors.
type Kind uint8

const (
	// KindNotFound: the named object does not exist.
	KindNotFound Kind = iota
	// KindPermissionDenied: the caller does not own the object.
	KindPermissionDenied
	// KindWrongKind: the object exists but is not of the expected kind.
	KindWrongKind
	// KindObjectInUse: the object is in active use in the current transaction.
	KindObjectInUse
	// KindInternal: an engine invariant was violated; never a user error.
	KindInternal
	// KindDurabilityUnmet: a required synchronous flush could not complete.
	KindDurabilityUnmet
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindPermissionDenied:
		return "permission denied"
	case KindWrongKind:
		return "wrong object kind"
	case KindObjectInUse:
		return "object in use"
	case KindInternal:
		return "internal error"
	case KindDurabilityUnmet:
		return "durability obligation unmet"
	default:
		return "unknown"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.kind.String() + ": " + e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// New creates a classified error with a stack trace.
func New(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, err: errors.Errorf(format, args...)}
}

// Wrap classifies an existing error, preserving its chain.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrap(err, msg)}
}

// KindOf returns the classification of err, or ok=false for
// unclassified errors (execution errors propagate unclassified).
func KindOf(err error) (Kind, bool) {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind, true
	}
	return 0, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsUserError reports whether err is something the caller did wrong,
// as opposed to a violated engine invariant.
func IsUserError(err error) bool {
	k, ok := KindOf(err)
	if !ok {
		return false
	}
	switch k {
	case KindNotFound, KindPermissionDenied, KindWrongKind, KindObjectInUse:
		return true
	}
	return false
}
