package backupfs

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Kind classifies a gateway failure so callers can branch on the cause
// without inspecting platform error strings.
type Kind int

const (
	// KindOther is any failure not covered by a more specific kind.
	KindOther Kind = iota

	// KindNotFound indicates the path does not exist.
	KindNotFound

	// KindPermission indicates the operation was denied by permissions.
	KindPermission

	// KindExists indicates the target already exists.
	KindExists

	// KindCrossDevice indicates a rename across filesystem boundaries.
	KindCrossDevice

	// KindInvalidPath indicates the path is absolute, empty, or escapes
	// the gateway root. Raised before any filesystem call.
	KindInvalidPath
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindPermission:
		return "Permission"
	case KindExists:
		return "Exists"
	case KindCrossDevice:
		return "CrossDevice"
	case KindInvalidPath:
		return "InvalidPath"
	case KindOther:
		return "Other"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Error is the failure type returned by every gateway operation.
type Error struct {
	// Op is the gateway operation that failed ("move", "copy", ...).
	Op string

	// Path is the offending path as passed by the caller.
	Path string

	// Kind classifies the failure.
	Kind Kind

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Kind)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// wrap classifies err and wraps it as a gateway Error. A nil err
// returns nil so call sites can wrap unconditionally.
func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}

	var gwErr *Error
	if errors.As(err, &gwErr) {
		return err
	}

	return &Error{Op: op, Path: path, Kind: kindOf(err), Err: err}
}

// kindOf maps an underlying OS error to its Kind.
func kindOf(err error) Kind {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	case errors.Is(err, fs.ErrExist):
		return KindExists
	case errors.Is(err, syscall.EXDEV):
		return KindCrossDevice
	default:
		return KindOther
	}
}

// KindOf returns the Kind carried by err, or KindOther when err is not
// a gateway Error.
func KindOf(err error) Kind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return KindOther
}

// IsNotFound returns true if the error indicates a missing path.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsInvalidPath returns true if the error indicates a path that was
// refused before touching the filesystem.
func IsInvalidPath(err error) bool {
	return KindOf(err) == KindInvalidPath
}
