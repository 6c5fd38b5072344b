package rvlink

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrChannelDestroyed is returned by Connect once Destroy has been called.
var ErrChannelDestroyed = errors.New("channel has been destroyed")

// EventFunc receives every well-formed event.
type EventFunc func(Event)

// StatusFunc receives connectivity transitions.
type StatusFunc func(connected bool)

// Channel keeps a single subscription to the server's event stream open, reconnecting with exponential backoff
// after the connection is lost.
//
// The callbacks run on whichever goroutine delivered the underlying signal, one at a time, while the Channel's
// lock is held. No callback starts once Disconnect or Destroy has returned, except those of a later Connect.
// A callback may call Connect, Disconnect or Destroy on its own Channel: the call is queued and takes effect as
// soon as the callback returns, before any other signal is handled.
type Channel struct {
	// Logger defaults to a NoopLogger
	Logger Logger

	// Dialer creates the transport, defaults to a WebsocketDialer
	Dialer Dialer

	// Clock schedules reconnects, defaults to the real clock
	Clock clockwork.Clock

	// ReconnectAfterFunc returns the delay before an automatic reconnect given how many were already tried
	ReconnectAfterFunc func(tries int) time.Duration

	// MaxReconnectAttempts is how many automatic reconnects are tried before giving up
	MaxReconnectAttempts int

	// RequestHeader is sent with every connection attempt
	RequestHeader http.Header

	mu         sync.Mutex
	endPoint   string
	credential string
	onEvent    EventFunc
	onStatus   StatusFunc
	state      atomic.Int32 // ConnectionState, written with mu held
	retries    int
	gen        uint64
	transport  Transport
	timer      *callbackTimer

	// pendingMu guards inCallback and pending
	pendingMu  sync.Mutex
	inCallback bool
	pending    []func()
}

// NewChannel creates a Channel for endPoint. No connection is made until Connect is called. credential, if not
// empty, is sent in the Authorization header. Nil callbacks are ignored.
func NewChannel(endPoint string, credential string, onEvent EventFunc, onStatus StatusFunc) *Channel {
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	if onStatus == nil {
		onStatus = func(bool) {}
	}

	c := &Channel{
		Logger:               NewNoopLogger(),
		Dialer:               NewWebsocketDialer(),
		Clock:                clockwork.NewRealClock(),
		ReconnectAfterFunc:   defaultReconnectAfterFunc,
		MaxReconnectAttempts: MaxReconnectAttempts,
		endPoint:             endPoint,
		credential:           credential,
		onEvent:              onEvent,
		onStatus:             onStatus,
	}
	c.state.Store(int32(StateIdle))
	c.timer = newCallbackTimer(&c.mu)
	return c
}

func (c *Channel) EndPoint() string {
	return c.endPoint
}

// State never blocks, so it can be called from the callbacks.
func (c *Channel) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *Channel) IsConnected() bool {
	return c.State() == StateOpen
}

// Connect opens a new connection, replacing the current one if there is one, and cancels a pending reconnect.
// The outcome is reported through the callbacks. After Destroy it does nothing and returns ErrChannelDestroyed.
// Called while a callback runs, it is queued and returns nil; errors are logged.
func (c *Channel) Connect() error {
	var err error
	if c.locked(func() { err = c.connect() }) {
		return nil
	}
	return err
}

// Disconnect closes the connection and cancels a pending reconnect. It does not prevent a later Connect.
func (c *Channel) Disconnect() {
	c.locked(c.disconnect)
}

// Destroy disconnects and makes the Channel permanently inert. It is safe to call more than once.
func (c *Channel) Destroy() {
	c.locked(c.destroy)
}

// locked runs op with the lock held and reports false. While a callback runs the lock is already held by the
// goroutine delivering it, so op is queued for that goroutine to run once the callback returns, and locked
// reports true.
func (c *Channel) locked(op func()) bool {
	c.pendingMu.Lock()
	if c.inCallback {
		c.pending = append(c.pending, op)
		c.pendingMu.Unlock()
		return true
	}
	c.pendingMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	op()
	return false
}

// notify runs a consumer callback, then whatever it queued. It must be called with the lock held.
func (c *Channel) notify(callback func()) {
	c.pendingMu.Lock()
	c.inCallback = true
	c.pendingMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			c.pendingMu.Lock()
			c.inCallback = false
			c.pending = nil
			c.pendingMu.Unlock()
			panic(r)
		}
	}()

	callback()

	for {
		c.pendingMu.Lock()
		ops := c.pending
		c.pending = nil
		if len(ops) == 0 {
			c.inCallback = false
		}
		c.pendingMu.Unlock()

		if len(ops) == 0 {
			return
		}
		for _, op := range ops {
			op()
		}
	}
}

func (c *Channel) destroy() {
	if c.State() == StateDisposed {
		return
	}
	c.setState(StateDisposed)
	c.disconnect()
	c.Logger.Printf(LogDebug, "channel", "Destroyed channel for %v", c.endPoint)
}

func (c *Channel) connect() error {
	if c.State() == StateDisposed {
		c.Logger.Println(LogWarning, "channel", "connect called on a destroyed channel")
		return ErrChannelDestroyed
	}

	endPoint, err := url.Parse(c.endPoint)
	if err != nil {
		c.Logger.Println(LogError, "channel", err)
		return err
	}

	c.disconnect()

	c.gen++
	gen := c.gen
	c.setState(StateConnecting)
	c.Logger.Printf(LogInfo, "channel", "Connecting to %v (attempt %d)", c.endPoint, c.retries)
	c.transport = c.Dialer.Dial(*endPoint, c.requestHeader(), func(sig Signal) {
		c.handleSignal(gen, sig)
	})

	return nil
}

func (c *Channel) disconnect() {
	c.timer.Stop()

	if c.transport != nil {
		transport := c.transport
		c.transport = nil
		c.gen++

		transport.Detach()
		if err := transport.Close(closeNormal, closeReason); err != nil {
			c.Logger.Printf(LogDebug, "channel", "error closing transport: %v", err)
		}
	}

	if c.State() != StateDisposed {
		c.setState(StateIdle)
	}
}

func (c *Channel) requestHeader() http.Header {
	header := c.RequestHeader.Clone()
	if header == nil {
		header = http.Header{}
	}
	if c.credential != "" {
		header.Set("Authorization", c.credential)
	}
	return header
}

func (c *Channel) handleSignal(gen uint64, sig Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.State() == StateDisposed {
		c.Logger.Printf(LogDebug, "channel", "dropping %v signal from a detached transport", sig.Kind)
		return
	}

	switch sig.Kind {
	case SignalOpened:
		c.retries = 0
		c.setState(StateOpen)
		c.Logger.Printf(LogInfo, "channel", "Connected to %v", c.endPoint)
		c.notify(func() { c.onStatus(true) })

	case SignalMessage:
		event, ok := DecodeEnvelope(sig.Payload)
		if !ok {
			c.Logger.Printf(LogDebug, "channel", "ignoring malformed message: %q", sig.Payload)
			return
		}
		c.notify(func() { c.onEvent(event) })

	case SignalErrored:
		// a SignalClosed always follows, reconnecting is left to it
		c.Logger.Printf(LogWarning, "channel", "Connection error: %v", sig.Err)
		c.notify(func() { c.onStatus(false) })

	case SignalClosed:
		c.transport = nil
		c.gen++
		c.setState(StateClosed)
		c.Logger.Printf(LogInfo, "channel", "Disconnected from %v (code %d)", c.endPoint, sig.Code)
		// scheduled first so that a Connect, Disconnect or Destroy from onStatus replaces the timer
		c.scheduleReconnect()
		c.notify(func() { c.onStatus(false) })
	}
}

func (c *Channel) scheduleReconnect() {
	if c.State() == StateDisposed {
		return
	}
	if c.retries >= c.MaxReconnectAttempts {
		c.Logger.Printf(LogWarning, "channel", "Giving up on %v after %d reconnect attempts", c.endPoint, c.retries)
		return
	}

	delay := c.ReconnectAfterFunc(c.retries)
	c.retries++
	c.Logger.Printf(LogInfo, "channel", "Reconnecting in %v (attempt %d of %d)", delay, c.retries, c.MaxReconnectAttempts)

	c.timer.Run(c.Clock, delay, func() {
		if err := c.connect(); err != nil {
			c.Logger.Printf(LogError, "channel", "reconnect failed: %v", err)
		}
	})
}

func (c *Channel) setState(state ConnectionState) {
	current := c.State()
	if current == state {
		return
	}
	if !CanTransition(current, state) {
		c.Logger.Printf(LogError, "channel", "invalid state transition %v -> %v", current, state)
		return
	}
	c.state.Store(int32(state))
}
