package glove

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glovelink/glovelink/pkg/transport"
)

type fakeTransport struct {
	kind transport.Kind
	md   transport.Metadata
	rx   chan []byte

	mu      sync.Mutex
	sent    []string
	sendErr error
	closed  int

	closeOnce sync.Once
}

func newFakeTransport(kind transport.Kind) *fakeTransport {
	return &fakeTransport{
		kind: kind,
		md:   transport.Metadata{"name": "fake"},
		rx:   make(chan []byte, transport.BufferSize),
	}
}

func (f *fakeTransport) Receive() <-chan []byte { return f.rx }

func (f *fakeTransport) Send(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, string(data))
	return nil
}

func (f *fakeTransport) Kind() transport.Kind         { return f.kind }
func (f *fakeTransport) Metadata() transport.Metadata { return f.md }

func (f *fakeTransport) Close() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.rx) })
}

func (f *fakeTransport) setSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeTransport) sentLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type recorder struct {
	mu      sync.Mutex
	logs    []LogEntry
	changes []transport.Kind
}

func (r *recorder) config() Config {
	return Config{
		OnLogLine: func(e LogEntry) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.logs = append(r.logs, e)
		},
		OnConnectionChange: func(kind transport.Kind, _ transport.Metadata) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.changes = append(r.changes, kind)
		},
	}
}

func (r *recorder) logLines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]string, len(r.logs))
	for i, e := range r.logs {
		lines[i] = e.Text
	}
	return lines
}

func (r *recorder) kinds() []transport.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transport.Kind(nil), r.changes...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func connectFake(t *testing.T, l *Link, f *fakeTransport) {
	t.Helper()
	err := l.connect(context.Background(), func(context.Context) (transport.Transport, error) {
		return f, nil
	})
	if err != nil {
		t.Fatalf("connect failed: %s", err)
	}
}

func TestConnectEmitsChange(t *testing.T) {
	var rec recorder
	l := NewLink(rec.config())
	f := newFakeTransport(transport.KindRadio)
	connectFake(t, l, f)
	defer l.Disconnect()

	if got := l.Kind(); got != transport.KindRadio {
		t.Errorf("Kind() = %s, want %s", got, transport.KindRadio)
	}
	kinds := rec.kinds()
	if len(kinds) != 1 || kinds[0] != transport.KindRadio {
		t.Errorf("connection changes = %v, want [radio]", kinds)
	}
}

func TestConnectWhileConnectedReturnsBusy(t *testing.T) {
	var rec recorder
	l := NewLink(rec.config())
	f := newFakeTransport(transport.KindWired)
	connectFake(t, l, f)
	defer l.Disconnect()

	dialed := false
	err := l.connect(context.Background(), func(context.Context) (transport.Transport, error) {
		dialed = true
		return newFakeTransport(transport.KindRadio), nil
	})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("second connect returned %v, want ErrBusy", err)
	}
	if dialed {
		t.Error("second connect dialed despite active connection")
	}
	if got := l.Kind(); got != transport.KindWired {
		t.Errorf("existing connection disturbed: Kind() = %s", got)
	}
}

func TestConnectWhileDialingReturnsBusy(t *testing.T) {
	l := NewLink(Config{})
	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- l.connect(context.Background(), func(context.Context) (transport.Transport, error) {
			close(started)
			<-release
			return newFakeTransport(transport.KindRadio), nil
		})
	}()
	<-started

	if err := l.connect(context.Background(), func(context.Context) (transport.Transport, error) {
		t.Error("second dial ran during in-flight connect")
		return nil, nil
	}); !errors.Is(err, ErrBusy) {
		t.Errorf("overlapping connect returned %v, want ErrBusy", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first connect failed: %s", err)
	}
	l.Disconnect()
}

func TestConnectFailureReportsAndResets(t *testing.T) {
	var rec recorder
	l := NewLink(rec.config())
	dialErr := errors.New("adapter unavailable")
	err := l.connect(context.Background(), func(context.Context) (transport.Transport, error) {
		return nil, dialErr
	})
	if !errors.Is(err, dialErr) {
		t.Fatalf("connect returned %v, want %v", err, dialErr)
	}
	lines := rec.logLines()
	if len(lines) != 1 || !strings.Contains(lines[0], "connection failed") {
		t.Errorf("log lines = %q, want one connection-failed entry", lines)
	}
	kinds := rec.kinds()
	if len(kinds) != 1 || kinds[0] != transport.KindNone {
		t.Errorf("connection changes = %v, want [none]", kinds)
	}
	if got := l.Kind(); got != transport.KindNone {
		t.Errorf("Kind() = %s after failed connect", got)
	}
}

func TestConnectCancelledStaysQuiet(t *testing.T) {
	var rec recorder
	l := NewLink(rec.config())
	err := l.connect(context.Background(), func(context.Context) (transport.Transport, error) {
		return nil, context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("connect returned %v, want context.Canceled", err)
	}
	if lines := rec.logLines(); len(lines) != 0 {
		t.Errorf("cancelled connect produced log lines %q", lines)
	}
	kinds := rec.kinds()
	if len(kinds) != 1 || kinds[0] != transport.KindNone {
		t.Errorf("connection changes = %v, want [none]", kinds)
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	var rec recorder
	l := NewLink(rec.config())
	l.SendMessage(context.Background(), "LED ON")

	lines := rec.logLines()
	if len(lines) != 1 || !strings.Contains(lines[0], "not sent") {
		t.Fatalf("log lines = %q, want one not-sent entry", lines)
	}
	rec.mu.Lock()
	dir := rec.logs[0].Direction
	rec.mu.Unlock()
	if dir != DirectionOut {
		t.Errorf("not-sent entry direction = %s, want out", dir)
	}
}

func TestSendAppendsDelimiter(t *testing.T) {
	var rec recorder
	l := NewLink(rec.config())
	f := newFakeTransport(transport.KindWired)
	connectFake(t, l, f)
	defer l.Disconnect()

	l.SendMessage(context.Background(), "LED ON")
	sent := f.sentLines()
	if len(sent) != 1 || sent[0] != "LED ON\n" {
		t.Fatalf("sent = %q, want [\"LED ON\\n\"]", sent)
	}
	lines := rec.logLines()
	if len(lines) != 1 || lines[0] != "LED ON" {
		t.Errorf("log lines = %q, want the echoed command", lines)
	}
}

func TestSendErrorKeepsConnection(t *testing.T) {
	var rec recorder
	l := NewLink(rec.config())
	f := newFakeTransport(transport.KindWired)
	connectFake(t, l, f)
	defer l.Disconnect()

	f.setSendErr(errors.New("pipe stalled"))
	l.SendMessage(context.Background(), "LED ON")
	if got := l.Kind(); got != transport.KindWired {
		t.Fatalf("write error tore down the connection: Kind() = %s", got)
	}
	lines := rec.logLines()
	if len(lines) != 1 || !strings.Contains(lines[0], "send failed") {
		t.Errorf("log lines = %q, want one send-failed entry", lines)
	}

	f.setSendErr(nil)
	l.SendMessage(context.Background(), "LED OFF")
	if sent := f.sentLines(); len(sent) != 1 || sent[0] != "LED OFF\n" {
		t.Errorf("sent after recovery = %q, want [\"LED OFF\\n\"]", sent)
	}
}

func TestInboundLinesArriveInOrder(t *testing.T) {
	var rec recorder
	l := NewLink(rec.config())
	f := newFakeTransport(transport.KindRadio)
	connectFake(t, l, f)
	defer l.Disconnect()

	f.rx <- []byte("BAT 8")
	f.rx <- []byte("7\nTEMP 36.4\nFLE")
	f.rx <- []byte("X 10\n")

	waitFor(t, "three inbound lines", func() bool { return len(rec.logLines()) == 3 })
	want := []string{"BAT 87", "TEMP 36.4", "FLEX 10"}
	for i, line := range rec.logLines() {
		if line != want[i] {
			t.Errorf("line %d = %q, want %q", i, line, want[i])
		}
	}
}

func TestRemoteDisconnectTearsDown(t *testing.T) {
	var rec recorder
	l := NewLink(rec.config())
	f := newFakeTransport(transport.KindRadio)
	connectFake(t, l, f)

	f.rx <- []byte("partial tail with no terminator")
	f.closeOnce.Do(func() { close(f.rx) })

	waitFor(t, "teardown", func() bool { return l.Kind() == transport.KindNone })
	waitFor(t, "disconnect change event", func() bool {
		kinds := rec.kinds()
		return len(kinds) == 2 && kinds[1] == transport.KindNone
	})
	lines := rec.logLines()
	if len(lines) != 1 || !strings.Contains(lines[0], "disconnected") {
		t.Errorf("log lines = %q, want only the disconnect notice", lines)
	}
	if n := f.closeCount(); n != 1 {
		t.Errorf("transport closed %d times, want 1", n)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	var rec recorder
	l := NewLink(rec.config())
	f := newFakeTransport(transport.KindRadio)
	connectFake(t, l, f)

	l.Disconnect()
	l.Disconnect()

	if n := f.closeCount(); n != 1 {
		t.Errorf("transport closed %d times, want 1", n)
	}
	kinds := rec.kinds()
	if len(kinds) != 2 || kinds[1] != transport.KindNone {
		t.Errorf("connection changes = %v, want [radio none]", kinds)
	}
	if lines := rec.logLines(); len(lines) != 0 {
		t.Errorf("explicit disconnect produced log lines %q", lines)
	}
}

func TestReconnectAfterDisconnect(t *testing.T) {
	var rec recorder
	l := NewLink(rec.config())
	first := newFakeTransport(transport.KindRadio)
	connectFake(t, l, first)
	l.Disconnect()

	second := newFakeTransport(transport.KindWired)
	connectFake(t, l, second)
	defer l.Disconnect()

	if got := l.Kind(); got != transport.KindWired {
		t.Fatalf("Kind() = %s after reconnect, want wired", got)
	}
	second.rx <- []byte("READY\n")
	waitFor(t, "inbound line on new connection", func() bool { return len(rec.logLines()) == 1 })
	if lines := rec.logLines(); lines[0] != "READY" {
		t.Errorf("line = %q, want READY", lines[0])
	}
}

func TestRefreshSignalEstimate(t *testing.T) {
	var rec recorder
	l := NewLink(rec.config())

	l.RefreshSignalEstimate()
	if kinds := rec.kinds(); len(kinds) != 0 {
		t.Fatalf("refresh while disconnected emitted %v", kinds)
	}

	f := newFakeTransport(transport.KindWired)
	connectFake(t, l, f)
	l.RefreshSignalEstimate()
	if kinds := rec.kinds(); len(kinds) != 1 {
		t.Errorf("refresh over wired emitted %v, want no extra event", kinds)
	}
	l.Disconnect()

	r := newFakeTransport(transport.KindRadio)
	connectFake(t, l, r)
	defer l.Disconnect()
	l.RefreshSignalEstimate()
	kinds := rec.kinds()
	if len(kinds) != 4 || kinds[3] != transport.KindRadio {
		t.Errorf("connection changes = %v, want trailing radio refresh", kinds)
	}
}
