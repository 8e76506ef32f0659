package transport

import (
	"context"
	"errors"
)

// Error exposes methods useful for categorizing link failures.
type Error interface {
	error

	// Temporary returns true if the failure might be the result of a
	// transient condition, such as a device mid-reset, and the operation may
	// succeed if retried.
	Temporary() bool

	// UserInitiated returns true if the failure was caused by the user
	// dismissing the device-selection prompt. These are never reported as
	// diagnostic failures.
	UserInitiated() bool
}

var (
	// ErrUnsupportedTransport indicates the platform lacks the capability
	// required by the requested transport variant.
	ErrUnsupportedTransport = NewError("platform does not support the requested transport", false, false)
	// ErrUserCancelled indicates the device-selection prompt was dismissed.
	ErrUserCancelled = NewError("device selection cancelled", false, true)
	// ErrNoCompatibleProfile indicates a device was found but none of the
	// known UART-emulation services matched.
	ErrNoCompatibleProfile = NewError("device does not expose a known UART service", false, false)
	// ErrHandshakeFailed indicates the platform-level connection succeeded
	// but service or characteristic negotiation did not.
	ErrHandshakeFailed = NewError("transport negotiation failed", true, false)
	// ErrClosed indicates an operation on a transport that has already been
	// torn down.
	ErrClosed = NewError("transport closed", false, false)
)

// LinkError is the concrete Error used throughout the transport packages.
type LinkError struct {
	Err       error
	Transient bool
	ByUser    bool
}

// NewError returns a LinkError wrapping a new error with the given message.
func NewError(message string, temporary bool, userInitiated bool) error {
	return &LinkError{Err: errors.New(message), Transient: temporary, ByUser: userInitiated}
}

func (e *LinkError) Error() string {
	return e.Err.Error()
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

func (e *LinkError) Temporary() bool {
	return e.Transient
}

func (e *LinkError) UserInitiated() bool {
	return e.ByUser
}

// Temporary returns true if err categorizes itself as possibly transient.
func Temporary(err error) bool {
	var linkErr Error
	if errors.As(err, &linkErr) {
		return linkErr.Temporary()
	}
	return false
}

// UserCancelled returns true if err traces back to the user dismissing a
// device-selection prompt. A context cancelled during scanning counts: with no
// platform picker, cancelling the scan context is how a caller's prompt
// reports dismissal.
func UserCancelled(err error) bool {
	if errors.Is(err, ErrUserCancelled) || errors.Is(err, context.Canceled) {
		return true
	}
	var linkErr Error
	if errors.As(err, &linkErr) {
		return linkErr.UserInitiated()
	}
	return false
}
