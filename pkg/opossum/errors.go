package opossum

import (
	"errors"
	"fmt"

	cockroacherrors "github.com/cockroachdb/errors"
)

// StoreErrorKind enumerates the typed error kinds the store can return.
type StoreErrorKind int

const (
	// InvalidArgument means the caller passed something that can never
	// succeed: an empty batch, an empty event type, a malformed store name.
	InvalidArgument StoreErrorKind = iota
	// AppendConditionFailed means the optimistic-concurrency guard found a
	// matching event. Expected; callers retry the read-decide-append cycle.
	AppendConditionFailed
	// LockTimeout means the cross-process lock could not be acquired within
	// the configured deadline.
	LockTimeout
	// Cancelled means the caller's context was done before the operation
	// committed. No state changed.
	Cancelled
	// NotFound means an expected event file is missing at a committed
	// position.
	NotFound
	// CorruptedPayload means an event file could not be deserialized.
	CorruptedPayload
	// IO covers underlying filesystem errors not covered by the above.
	IO
)

func (k StoreErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case AppendConditionFailed:
		return "AppendConditionFailed"
	case LockTimeout:
		return "LockTimeout"
	case Cancelled:
		return "Cancelled"
	case NotFound:
		return "NotFound"
	case CorruptedPayload:
		return "CorruptedPayload"
	case IO:
		return "IO"
	default:
		return "Unknown"
	}
}

// StoreError is the single error type every store operation returns. Op
// names the operation that failed; Path and Position are filled in where
// relevant so diagnostics can locate the offending file or position.
type StoreError struct {
	Kind     StoreErrorKind
	Op       string
	Path     string
	Position uint64
	// ConcurrencyConflict marks an AppendConditionFailed caused by the
	// ledger having advanced past the caller's baseline position, as
	// opposed to a general query match. Diagnostics can branch on this to
	// report expected vs. actual positions.
	ConcurrencyConflict bool
	Expected            uint64
	Actual              uint64
	Err                 error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("opossum: %s: %s", e.Op, e.Kind)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// newStoreError builds a StoreError, wrapping err with cockroachdb/errors so
// a stack trace is attached at the filesystem boundary where the failure
// actually originated.
func newStoreError(kind StoreErrorKind, op string, err error) *StoreError {
	return &StoreError{Kind: kind, Op: op, Err: cockroacherrors.Wrap(err, op)}
}

func newPathError(kind StoreErrorKind, op, path string, err error) *StoreError {
	return &StoreError{Kind: kind, Op: op, Path: path, Err: cockroacherrors.Wrapf(err, "%s: %s", op, path)}
}

var (
	errInvalidJSONPayload = errors.New("payload is not valid JSON")
	errEmptyRootPath      = errors.New("root path must not be empty")
	errEmptyStoreName     = errors.New("store name must not be empty")
	errInvalidStoreName   = errors.New("store name contains characters that are not safe as a single directory component")
	errLockTimeout        = errors.New("timed out waiting for the cross-process store lock")
	errEmptyBatch         = errors.New("append requires at least one event")
	errEmptyEventType     = errors.New("event type must not be empty")
	errDuplicateTagKey    = errors.New("event carries the same tag key more than once")
)

// Kind extracts the StoreErrorKind from err, if it is (or wraps) a
// *StoreError.
func Kind(err error) (StoreErrorKind, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is (or wraps) a *StoreError of the given kind.
func IsKind(err error, kind StoreErrorKind) bool {
	k, ok := Kind(err)
	return ok && k == kind
}

// IsInvalidArgument reports whether err is an InvalidArgument StoreError.
func IsInvalidArgument(err error) bool { return IsKind(err, InvalidArgument) }

// IsAppendConditionFailed reports whether err is an AppendConditionFailed
// StoreError.
func IsAppendConditionFailed(err error) bool { return IsKind(err, AppendConditionFailed) }

// IsLockTimeout reports whether err is a LockTimeout StoreError.
func IsLockTimeout(err error) bool { return IsKind(err, LockTimeout) }

// IsCancelled reports whether err is a Cancelled StoreError.
func IsCancelled(err error) bool { return IsKind(err, Cancelled) }

// IsNotFound reports whether err is a NotFound StoreError.
func IsNotFound(err error) bool { return IsKind(err, NotFound) }

// IsCorruptedPayload reports whether err is a CorruptedPayload StoreError.
func IsCorruptedPayload(err error) bool { return IsKind(err, CorruptedPayload) }

// IsConcurrencyConflict reports whether err is an AppendConditionFailed
// StoreError caused specifically by ledger staleness (as opposed to a
// general query match).
func IsConcurrencyConflict(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind == AppendConditionFailed && se.ConcurrencyConflict
	}
	return false
}
