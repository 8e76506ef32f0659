package radio

import (
	"context"
	"io"
	"strings"
)

// ScanResult describes an advertisement that matched the discovery filter.
type ScanResult struct {
	Address     string
	LocalName   string
	RSSI        int16
	Connectable bool
}

// Filter restricts discovery to the fixed allow-list: a device is accepted if
// it advertises one of the known UART service UUIDs or its local name matches
// one of the known vendor names. This is discovery policy only; protocol
// selection happens per-profile after connecting.
type Filter struct {
	Services []string
	Names    []string
}

// MatchName reports whether name matches the allow-list. An entry ending in
// '-' is treated as a prefix; otherwise the match is exact.
func (f Filter) MatchName(name string) bool {
	if name == "" {
		return false
	}
	for _, allowed := range f.Names {
		if strings.HasSuffix(allowed, "-") {
			if strings.HasPrefix(name, allowed) {
				return true
			}
		} else if name == allowed {
			return true
		}
	}
	return false
}

// Adapter abstracts a BLE stack. Implementations live in the goble and tinygo
// subpackages.
type Adapter interface {
	// Scan blocks until an advertisement matches filter or ctx ends.
	Scan(ctx context.Context, filter Filter) (*ScanResult, error)

	// Connect dials the device behind a previous scan result.
	Connect(ctx context.Context, target *ScanResult) (Device, error)

	// Close releases the adapter itself. It does not disconnect devices.
	Close() error
}

// Device is a connected peripheral.
type Device interface {
	// Service looks up a GATT service by UUID.
	Service(ctx context.Context, uuid string) (Service, error)

	// Disconnected is closed when the far end drops the connection.
	Disconnected() <-chan struct{}

	// Close unsubscribes notifications and disconnects. Idempotent.
	Close() error
}

// Service is a discovered GATT service.
type Service interface {
	// Notify subscribes to the characteristic's notifications.
	Notify(uuid string, callback func(buf []byte)) error

	// Writer returns a writer for the characteristic.
	Writer(uuid string) (Writer, error)
}

// Writer writes to a GATT characteristic.
type Writer interface {
	io.Writer

	// MTU negotiates the transmission unit, returning the usable payload
	// size. rxMTU caps the requested value.
	MTU(rxMTU int) (txMTU int, err error)
}
