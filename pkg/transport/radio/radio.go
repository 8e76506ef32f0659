// Package radio implements the glove transport over a GATT-based UART
// emulation: one notify characteristic carries inbound bytes, one write
// characteristic carries outbound bytes.
package radio

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/glovelink/glovelink/internal/log"
	"github.com/glovelink/glovelink/pkg/transport"
)

const (
	defaultMTU = 23
	maxMTUSize = 512 + 3
)

var _ transport.Transport = (*Transport)(nil)

// Options configures a radio connection attempt.
type Options struct {
	// Adapter is the BLE stack to use (see the goble and tinygo subpackages).
	Adapter Adapter

	// Names overrides the vendor name allow-list used for the discovery
	// filter. Leave nil for the default.
	Names []string
}

// Transport is a live radio connection. It implements transport.Transport.
type Transport struct {
	profile     Profile
	address     string
	localName   string
	scanRSSI    int16
	connectedAt time.Time

	device      Device
	writer      Writer
	blockLength int

	raw       chan []byte
	inbox     chan []byte
	done      chan struct{}
	closeOnce sync.Once
	sendLock  sync.Mutex
}

// Connect scans for a glove matching the allow-list, dials it, and negotiates
// the first compatible UART profile in table order. On any failure after the
// dial, the device handle is released before the error is returned, so the
// caller never inherits a partially-acquired connection.
func Connect(ctx context.Context, opts Options) (*Transport, error) {
	if opts.Adapter == nil {
		return nil, transport.ErrUnsupportedTransport
	}

	filter := DefaultFilter()
	if opts.Names != nil {
		filter.Names = opts.Names
	}

	target, err := opts.Adapter.Scan(ctx, filter)
	if err != nil {
		return nil, err
	}
	log.Info("radio: found %s (%s), RSSI %d", target.LocalName, target.Address, target.RSSI)

	device, err := opts.Adapter.Connect(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("radio: %w: %s", transport.ErrHandshakeFailed, err)
	}

	for _, p := range Profiles {
		t, err := tryProfile(ctx, device, p, target)
		if err != nil {
			log.Debug("radio: profile %s not usable: %s", p.Name, err)
			continue
		}
		log.Info("radio: connected using profile %s", p.Name)
		return t, nil
	}

	if err := device.Close(); err != nil {
		log.Warning("radio: failed to release device: %s", err)
	}
	return nil, transport.ErrNoCompatibleProfile
}

func tryProfile(ctx context.Context, device Device, p Profile, target *ScanResult) (*Transport, error) {
	service, err := device.Service(ctx, p.Service)
	if err != nil {
		return nil, err
	}

	writer, err := service.Writer(p.Write)
	if err != nil {
		return nil, err
	}

	txMTU, err := writer.MTU(maxMTUSize)
	if err != nil {
		txMTU = defaultMTU
	}

	t := &Transport{
		profile:     p,
		address:     target.Address,
		localName:   target.LocalName,
		scanRSSI:    target.RSSI,
		connectedAt: time.Now(),
		device:      device,
		writer:      writer,
		blockLength: txMTU - 3, // 3 bytes for the ATT header
		raw:         make(chan []byte, transport.BufferSize),
		inbox:       make(chan []byte, transport.BufferSize),
		done:        make(chan struct{}),
	}

	if err := service.Notify(p.Notify, t.rx); err != nil {
		return nil, err
	}

	go t.run()
	return t, nil
}

// Receive implements transport.Transport. The channel closes when the remote
// end drops the link or Close is called.
func (t *Transport) Receive() <-chan []byte {
	return t.inbox
}

// Send writes buffer to the write characteristic, split into MTU-sized
// blocks.
func (t *Transport) Send(ctx context.Context, buffer []byte) error {
	t.sendLock.Lock()
	defer t.sendLock.Unlock()

	select {
	case <-t.done:
		return transport.ErrClosed
	default:
	}

	log.Debug("radio TX: %q", buffer)
	out := buffer
	for len(out) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		block := t.blockLength
		if block > len(out) {
			block = len(out)
		}
		n, err := t.writer.Write(out[:block])
		if err != nil {
			return err
		}
		if n != block {
			return fmt.Errorf("radio: short write (%d of %d bytes)", n, block)
		}
		out = out[block:]
	}
	return nil
}

func (t *Transport) Kind() transport.Kind {
	return transport.KindRadio
}

// Metadata reports the peer address, its advertised name, the negotiated
// profile, and a synthetic signal estimate. The estimate is derived from the
// RSSI observed while scanning; no live telemetry is read, so treat it as a
// rough hint rather than a measurement.
func (t *Transport) Metadata() transport.Metadata {
	return transport.Metadata{
		"address": t.address,
		"name":    t.localName,
		"profile": t.profile.Name,
		"signal":  strconv.Itoa(t.signalEstimate()),
	}
}

// Close is idempotent: the first call stops chunk forwarding, unsubscribes
// notifications, and disconnects; later calls return immediately. Errors from
// the close path are logged and swallowed.
func (t *Transport) Close() {
	t.shutdown()
}

func (t *Transport) shutdown() {
	t.closeOnce.Do(func() {
		close(t.done)
		if err := t.device.Close(); err != nil {
			log.Warning("radio: failed to close device: %s", err)
		}
	})
}

// run is the only goroutine that closes the inbox, which keeps notification
// callbacks from racing a close.
func (t *Transport) run() {
	defer close(t.inbox)
	for {
		select {
		case <-t.done:
			return
		case <-t.device.Disconnected():
			log.Info("radio: link dropped by remote end")
			t.shutdown()
			return
		case p := <-t.raw:
			select {
			case t.inbox <- p:
			case <-t.done:
				return
			}
		}
	}
}

// rx runs on the BLE stack's notification goroutine; the payload is only
// valid for the duration of the callback, so it is copied before queueing.
func (t *Transport) rx(p []byte) {
	log.Debug("radio RX: %q", p)
	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case t.raw <- buf:
	case <-t.done:
	}
}

func (t *Transport) signalEstimate() int {
	// Linear map of the typical indoor RSSI range (-100..-50 dBm) onto
	// 0..100, minus one point per minute of connection age so a stale scan
	// reading does not masquerade as fresh.
	pct := 2 * (int(t.scanRSSI) + 100)
	pct -= int(time.Since(t.connectedAt).Minutes())
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}
