// Package wired implements the glove transport over a serial byte stream.
package wired

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/glovelink/glovelink/internal/log"
	"github.com/glovelink/glovelink/pkg/transport"
)

// BaudRate is the fixed rate used for every connection attempt.
const BaudRate = 115200

const readBufSize = 1024

var _ transport.Transport = (*Transport)(nil)

// Transport is a live serial connection. It implements transport.Transport.
type Transport struct {
	portName string
	port     serial.Port
	usb      *enumerator.PortDetails

	inbox     chan []byte
	done      chan struct{}
	closeOnce sync.Once
	sendLock  sync.Mutex
}

// Connect opens the named port at the fixed baud rate and starts the read
// loop.
func Connect(ctx context.Context, portName string) (*Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := &serial.Mode{BaudRate: BaudRate}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("wired: %w: %s", transport.ErrHandshakeFailed, err)
	}

	t := newTransport(portName, port, lookupUSBDetails(portName))
	go t.readLoop()
	log.Info("wired: opened %s at %d baud", portName, BaudRate)
	return t, nil
}

// newTransport is split from Connect so tests can substitute a fake port.
func newTransport(portName string, port serial.Port, usb *enumerator.PortDetails) *Transport {
	return &Transport{
		portName: portName,
		port:     port,
		usb:      usb,
		inbox:    make(chan []byte, transport.BufferSize),
		done:     make(chan struct{}),
	}
}

// lookupUSBDetails is best effort; ports without USB identity (or platforms
// without enumeration support) just omit the fields from metadata.
func lookupUSBDetails(portName string) *enumerator.PortDetails {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		log.Debug("wired: port enumeration unavailable: %s", err)
		return nil
	}
	for _, p := range ports {
		if p.Name == portName && p.IsUSB {
			return p
		}
	}
	return nil
}

// Receive implements transport.Transport. The channel closes when the stream
// ends or Close is called.
func (t *Transport) Receive() <-chan []byte {
	return t.inbox
}

func (t *Transport) Send(ctx context.Context, buffer []byte) error {
	t.sendLock.Lock()
	defer t.sendLock.Unlock()

	select {
	case <-t.done:
		return transport.ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	log.Debug("wired TX: %q", buffer)
	n, err := t.port.Write(buffer)
	if err != nil {
		return err
	}
	if n != len(buffer) {
		return fmt.Errorf("wired: short write (%d of %d bytes)", n, len(buffer))
	}
	return nil
}

func (t *Transport) Kind() transport.Kind {
	return transport.KindWired
}

func (t *Transport) Metadata() transport.Metadata {
	md := transport.Metadata{
		"port": t.portName,
		"baud": strconv.Itoa(BaudRate),
	}
	if t.usb != nil {
		md["usb_vid"] = t.usb.VID
		md["usb_pid"] = t.usb.PID
		if t.usb.SerialNumber != "" {
			md["usb_serial"] = t.usb.SerialNumber
		}
	}
	return md
}

// Close is idempotent. Closing the port unblocks a pending Read, which lets
// the read loop exit and close the inbox.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		if err := t.port.Close(); err != nil {
			log.Warning("wired: failed to close port: %s", err)
		}
	})
}

// readLoop pulls chunks until the stream ends or reading is cancelled. A
// zero-byte read with no error is a transient stream reset: the loop keeps
// the connection alive and reads again. Any read error after Close is
// expected (the close path interrupts the pending read) and not logged as a
// failure.
func (t *Transport) readLoop() {
	defer close(t.inbox)
	buf := make([]byte, readBufSize)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			log.Debug("wired RX: %q", chunk)
			select {
			case t.inbox <- chunk:
			case <-t.done:
				return
			}
		}
		if err != nil {
			select {
			case <-t.done:
			default:
				log.Warning("wired: stream ended: %s", err)
			}
			return
		}
		select {
		case <-t.done:
			return
		default:
		}
	}
}
