package glove

import "github.com/glovelink/glovelink/pkg/transport"

var (
	// ErrBusy indicates a connect request arrived while a connection was
	// already established or being established. The existing connection is
	// left untouched.
	ErrBusy = transport.NewError("a glove connection is already active or being established", false, false)

	// ErrNotConnected indicates an operation that requires a live connection
	// was invoked while disconnected.
	ErrNotConnected = transport.NewError("no glove connected", false, false)
)
