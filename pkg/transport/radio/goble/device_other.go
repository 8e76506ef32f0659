//go:build !linux

package goble

import (
	"github.com/go-ble/ble"

	"github.com/glovelink/glovelink/pkg/transport"
)

// The HCI stack is only wired up on Linux; other platforms use the tinygo
// adapter instead.
func newDevice() (ble.Device, error) {
	return nil, transport.ErrUnsupportedTransport
}
