package shared

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow failure. The set is closed; handlers map each
// kind onto one HTTP status and callers branch on it with errors.As.
type Kind string

const (
	// KindInvalidArgument indicates a malformed payload.
	KindInvalidArgument Kind = "invalid-argument"
	// KindPermissionDenied indicates a capability or ownership guard failed.
	KindPermissionDenied Kind = "permission-denied"
	// KindFailedPrecondition indicates a state-machine guard failed.
	KindFailedPrecondition Kind = "failed-precondition"
	// KindAlreadyExists indicates an idempotency guard tripped.
	KindAlreadyExists Kind = "already-exists"
	// KindNotFound indicates a referenced document is missing.
	KindNotFound Kind = "not-found"
	// KindInternal indicates store or infrastructure failure.
	KindInternal Kind = "internal"
)

// Error carries a taxonomy kind plus the business-rule message. The message
// text is contract surface consumed by calling UIs, so transitions return the
// specific rule that was violated rather than a generic code.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is matches two taxonomy errors by kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// NewError builds a taxonomy error with a fixed message.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// InvalidArgumentf builds an InvalidArgument error.
func InvalidArgumentf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// PermissionDeniedf builds a PermissionDenied error.
func PermissionDeniedf(format string, args ...any) *Error {
	return &Error{Kind: KindPermissionDenied, Message: fmt.Sprintf(format, args...)}
}

// FailedPreconditionf builds a FailedPrecondition error.
func FailedPreconditionf(format string, args ...any) *Error {
	return &Error{Kind: KindFailedPrecondition, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExistsf builds an AlreadyExists error.
func AlreadyExistsf(format string, args ...any) *Error {
	return &Error{Kind: KindAlreadyExists, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Internalf wraps an infrastructure failure.
func Internalf(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf extracts the taxonomy kind, defaulting unknown errors to Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserSafeMessage returns text suitable for the client. Internal failures are
// masked because their messages may leak store details.
func UserSafeMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal error"
}
