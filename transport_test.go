package rvlink

import (
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// fakeTransport is driven by the test: emit plays the part of the network.
type fakeTransport struct {
	mu          sync.Mutex
	fn          SignalFunc
	detached    bool
	closed      bool
	closeCode   int
	closeReason string
	sent        [][]byte
}

func (t *fakeTransport) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.detached = true
}

func (t *fakeTransport) Send(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}
	t.sent = append(t.sent, payload)
	return nil
}

func (t *fakeTransport) Close(code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.closeCode = code
	t.closeReason = reason
	return nil
}

// emit delivers sig the way a well-behaved transport would: not after Detach or Close.
func (t *fakeTransport) emit(sig Signal) {
	t.mu.Lock()
	fn := t.fn
	if t.detached || t.closed {
		fn = nil
	}
	t.mu.Unlock()

	if fn != nil {
		fn(sig)
	}
}

// emitAnyway delivers sig even if the transport was detached, like a callback that was already in flight.
func (t *fakeTransport) emitAnyway(sig Signal) {
	t.fn(sig)
}

func (t *fakeTransport) message(payload string) {
	t.emit(Signal{Kind: SignalMessage, Payload: []byte(payload)})
}

func (t *fakeTransport) fail() {
	t.emit(Signal{Kind: SignalErrored, Err: errFakeNetwork})
	t.emit(Signal{Kind: SignalClosed, Code: closeAbnormal})
}

func (t *fakeTransport) isDetached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.detached && t.closed
}

type fakeError string

func (e fakeError) Error() string { return string(e) }

const errFakeNetwork = fakeError("connection refused")

type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	endPoints  []url.URL
	headers    []http.Header
	// liveAtDial records, for every Dial, how many earlier transports were not yet detached and closed
	liveAtDial []int
}

func (d *fakeDialer) Dial(endPoint url.URL, requestHeader http.Header, fn SignalFunc) Transport {
	d.mu.Lock()
	defer d.mu.Unlock()

	live := 0
	for _, t := range d.transports {
		if !t.isDetached() {
			live++
		}
	}

	t := &fakeTransport{fn: fn}
	d.transports = append(d.transports, t)
	d.endPoints = append(d.endPoints, endPoint)
	d.headers = append(d.headers, requestHeader)
	d.liveAtDial = append(d.liveAtDial, live)
	return t
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.transports)
}

func (d *fakeDialer) last() *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.transports[len(d.transports)-1]
}

func (d *fakeDialer) get(i int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.transports[i]
}

type recorder struct {
	mu       sync.Mutex
	events   []Event
	statuses []bool
}

func (r *recorder) onEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
}

func (r *recorder) onStatus(connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses = append(r.statuses, connected)
}

func (r *recorder) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.events)
}

func (r *recorder) eventLog() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Event(nil), r.events...)
}

func (r *recorder) statusLog() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]bool(nil), r.statuses...)
}

type channelFixture struct {
	channel *Channel
	dialer  *fakeDialer
	clock   *clockwork.FakeClock
	rec     *recorder
	delays  *delayLog
}

type delayLog struct {
	mu     sync.Mutex
	delays []int64
}

func (l *delayLog) millis() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]int64(nil), l.delays...)
}

func newChannelFixture(t *testing.T, credential string) *channelFixture {
	t.Helper()

	f := &channelFixture{
		dialer: &fakeDialer{},
		clock:  clockwork.NewFakeClock(),
		rec:    &recorder{},
		delays: &delayLog{},
	}
	f.channel = NewChannel("ws://rv.local:8080", credential, f.rec.onEvent, f.rec.onStatus)
	f.channel.Dialer = f.dialer
	f.channel.Clock = f.clock
	f.channel.ReconnectAfterFunc = func(tries int) (d time.Duration) {
		d = defaultReconnectAfterFunc(tries)
		f.delays.mu.Lock()
		f.delays.delays = append(f.delays.delays, d.Milliseconds())
		f.delays.mu.Unlock()
		return d
	}
	t.Cleanup(f.channel.Destroy)
	return f
}

func (f *channelFixture) retries() int {
	f.channel.mu.Lock()
	defer f.channel.mu.Unlock()

	return f.channel.retries
}

func (f *channelFixture) timerPending() bool {
	f.channel.mu.Lock()
	defer f.channel.mu.Unlock()

	return f.channel.timer.Pending()
}
