// Package glove implements the device link core: it owns at most one active
// transport, reassembles the inbound byte stream into text lines, surfaces
// connection-state transitions to observers, and guarantees that every way a
// session can end converges on the same idempotent teardown.
package glove

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/glovelink/glovelink/internal/log"
	"github.com/glovelink/glovelink/pkg/transport"
	"github.com/glovelink/glovelink/pkg/transport/radio"
	"github.com/glovelink/glovelink/pkg/transport/wired"
)

// Config carries the process-wide observer callbacks. Both are optional; nil
// callbacks are skipped. Callbacks are invoked synchronously from link
// goroutines and must not call back into the Link.
type Config struct {
	// OnLogLine receives one entry per complete inbound line, per successful
	// outbound send, and per reportable link event.
	OnLogLine func(LogEntry)

	// OnConnectionChange receives the new connection kind and its metadata
	// (nil when disconnected) on every state transition.
	OnConnectionChange func(kind transport.Kind, md transport.Metadata)
}

// Link is the single owner of connection state. All transitions and transport
// access are serialized through its public entry points; callers never touch
// the transport, receive buffer, or listeners directly.
type Link struct {
	cfg Config

	mu         sync.Mutex
	connecting bool
	trans      transport.Transport
	tail       string        // unterminated inbound remainder
	stop       chan struct{} // closed to cancel the receive loop
	readerDone chan struct{} // closed when the receive loop exits

	sendMu sync.Mutex
}

// NewLink returns a disconnected Link with the given observer configuration.
func NewLink(cfg Config) *Link {
	return &Link{cfg: cfg}
}

// Kind reports which transport variant, if any, is currently active.
func (l *Link) Kind() transport.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.trans == nil {
		return transport.KindNone
	}
	return l.trans.Kind()
}

// ConnectRadio scans for a glove matching the radio allow-list, negotiates
// the first compatible UART profile, and starts receiving. Returns ErrBusy
// without touching the existing connection if one is active or being
// established. Cancel ctx to abort the scan.
func (l *Link) ConnectRadio(ctx context.Context, opts radio.Options) error {
	return l.connect(ctx, func(ctx context.Context) (transport.Transport, error) {
		return radio.Connect(ctx, opts)
	})
}

// ConnectWired opens the named serial port at the fixed baud rate and starts
// the read loop. Returns ErrBusy without touching the existing connection if
// one is active or being established.
func (l *Link) ConnectWired(ctx context.Context, portName string) error {
	return l.connect(ctx, func(ctx context.Context) (transport.Transport, error) {
		return wired.Connect(ctx, portName)
	})
}

func (l *Link) connect(ctx context.Context, dial func(context.Context) (transport.Transport, error)) error {
	l.mu.Lock()
	if l.trans != nil || l.connecting {
		l.mu.Unlock()
		return ErrBusy
	}
	l.connecting = true
	l.mu.Unlock()

	// Dial implementations tear down any partially-acquired handle before
	// returning an error, so a failed dial leaves nothing to release here.
	t, err := dial(ctx)

	l.mu.Lock()
	l.connecting = false
	if err != nil {
		l.mu.Unlock()
		if !transport.UserCancelled(err) {
			l.emitLog(DirectionIn, fmt.Sprintf("connection failed: %s", err))
		}
		l.emitChange(transport.KindNone, nil)
		return err
	}
	l.trans = t
	l.tail = ""
	l.stop = make(chan struct{})
	l.readerDone = make(chan struct{})
	go l.receive(t, l.stop, l.readerDone)
	l.mu.Unlock()

	log.Info("glove connected over %s", t.Kind())
	l.emitChange(t.Kind(), t.Metadata())
	return nil
}

// SendMessage appends the line delimiter and writes text to whichever
// transport is active. Sending with no connection is a reportable no-op, not
// a failure: it produces one outbound log entry and returns. Write errors are
// logged and the connection is left intact; an unrecoverable transport
// failure surfaces separately through the receive loop.
func (l *Link) SendMessage(ctx context.Context, text string) {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	l.mu.Lock()
	t := l.trans
	l.mu.Unlock()
	if t == nil {
		l.emitLog(DirectionOut, "no glove connected; message not sent")
		return
	}

	if err := t.Send(ctx, []byte(text+"\n")); err != nil {
		log.Warning("glove send failed: %s", err)
		l.emitLog(DirectionIn, fmt.Sprintf("send failed: %s", err))
		return
	}
	l.emitLog(DirectionOut, text)
}

// Disconnect releases the active connection. Safe to call from any state;
// calling it while already disconnected is a no-op with no log line and no
// state-change event.
func (l *Link) Disconnect() {
	l.teardown(nil, true, "")
}

// RefreshSignalEstimate re-emits connection metadata carrying the current
// synthetic signal-strength estimate. Only meaningful while connected over
// radio; a no-op otherwise. The estimate is an approximation derived from the
// scan-time RSSI, not hardware telemetry.
func (l *Link) RefreshSignalEstimate() {
	l.mu.Lock()
	t := l.trans
	l.mu.Unlock()
	if t == nil || t.Kind() != transport.KindRadio {
		return
	}
	l.emitChange(t.Kind(), t.Metadata())
}

// receive pulls inbound chunks in arrival order and feeds them to the framer
// synchronously, so lines reach the log sink in exact wire order. A closed
// receive channel means the transport ended for good (remote drop or
// permanent stream failure) and funnels into the shared teardown.
func (l *Link) receive(t transport.Transport, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	rx := t.Receive()
	for {
		select {
		case <-stop:
			return
		case chunk, ok := <-rx:
			if !ok {
				l.teardown(t, false, "glove disconnected")
				return
			}
			l.consume(chunk)
		}
	}
}

func (l *Link) consume(chunk []byte) {
	l.mu.Lock()
	if l.trans == nil {
		// Teardown already started; drop the chunk.
		l.mu.Unlock()
		return
	}
	var lines []string
	lines, l.tail = SplitLines(l.tail, string(chunk))
	l.mu.Unlock()
	for _, line := range lines {
		l.emitLog(DirectionIn, line)
	}
}

// teardown is the single convergence point for explicit disconnects, remote
// drops, and unrecoverable IO errors. It is idempotent: once the transport
// reference is cleared, later invocations (from any path) return immediately.
// A non-nil from restricts teardown to that specific transport so a stale
// receive loop cannot tear down a newer connection.
func (l *Link) teardown(from transport.Transport, wait bool, reason string) {
	l.mu.Lock()
	if l.trans == nil || (from != nil && l.trans != from) {
		l.mu.Unlock()
		return
	}
	t := l.trans
	stop := l.stop
	readerDone := l.readerDone
	l.trans = nil
	l.tail = ""
	l.stop = nil
	l.readerDone = nil
	l.mu.Unlock()

	// Cancel the in-flight read rather than waiting for more data. When
	// teardown runs from inside the receive loop itself, waiting would
	// deadlock, so the loop passes wait=false.
	close(stop)
	if wait {
		<-readerDone
	}

	// Best-effort cleanup: Close logs and swallows its own errors.
	t.Close()

	log.Info("glove link closed")
	if reason != "" {
		l.emitLog(DirectionIn, reason)
	}
	l.emitChange(transport.KindNone, nil)
}

func (l *Link) emitLog(dir Direction, text string) {
	if l.cfg.OnLogLine == nil {
		return
	}
	l.cfg.OnLogLine(LogEntry{Time: time.Now(), Text: text, Direction: dir})
}

func (l *Link) emitChange(kind transport.Kind, md transport.Metadata) {
	if l.cfg.OnConnectionChange == nil {
		return
	}
	l.cfg.OnConnectionChange(kind, md)
}
