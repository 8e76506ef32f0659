// Package transport defines the capability surface shared by the glove's
// physical links. Exactly one Transport is active at a time; the link core in
// pkg/glove owns it exclusively.
package transport

import (
	"context"
)

// BufferSize is the number of inbound chunks that can be queued before the
// producer blocks.
const BufferSize = 16

// Kind identifies which transport variant, if any, is active.
type Kind int

const (
	// KindNone means no glove is connected.
	KindNone Kind = iota
	// KindRadio is the short-range GATT-based UART emulation.
	KindRadio
	// KindWired is the serial byte-stream link.
	KindWired
)

func (k Kind) String() string {
	switch k {
	case KindRadio:
		return "radio"
	case KindWired:
		return "wired"
	default:
		return "disconnected"
	}
}

// Metadata carries transport-specific facts attached to connection-change
// notifications. Values are purely informational and must never be used for
// control decisions.
type Metadata map[string]string

// Transport sends and receives raw byte chunks from a glove device.
type Transport interface {
	// Receive returns a read-only channel of inbound chunks. The channel is
	// closed when the link ends for good: the remote end dropped the
	// connection, the stream ended, or Close was called.
	//
	// Implementations must be thread safe.
	Receive() <-chan []byte

	// Send writes one framed payload to the device.
	//
	// Implementations must be thread safe.
	Send(ctx context.Context, buffer []byte) error

	// Kind reports which transport variant this is.
	Kind() Kind

	// Metadata returns informational facts about the connection. Callers may
	// invoke it at any time while the transport is open.
	Metadata() Metadata

	// Close releases the transport's resources: notification subscriptions,
	// stream readers and writers, and the underlying connection, in that
	// order. Repeated calls must be idempotent, and secondary errors from the
	// close path itself are logged and swallowed.
	Close()
}
