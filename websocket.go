package rvlink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrTransportClosed is returned by Send once the transport is closed.
var ErrTransportClosed = errors.New("transport is closed")

const sendBufferSize = 100

// WebsocketDialer dials Transports with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer

	// PingInterval is the time between keepalive pings, 0 disables them
	PingInterval time.Duration

	// PongWait is how long the socket may stay silent before the connection is dropped, 0 waits forever
	PongWait time.Duration

	// WriteWait bounds every write
	WriteWait time.Duration

	// ReadLimit is the largest message accepted from the server
	ReadLimit int64

	Logger Logger
}

func NewWebsocketDialer() *WebsocketDialer {
	return &WebsocketDialer{
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		PingInterval: defaultPingInterval,
		PongWait:     defaultPongWait,
		WriteWait:    defaultWriteWait,
		ReadLimit:    1 << 20,
		Logger:       NewNoopLogger(),
	}
}

func (d *WebsocketDialer) Dial(endPoint url.URL, requestHeader http.Header, fn SignalFunc) Transport {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Websocket{
		config: d,
		sink:   fn,
		cancel: cancel,
		done:   make(chan struct{}),
		send:   make(chan []byte, sendBufferSize),
	}
	go w.run(ctx, endPoint.String(), requestHeader)
	return w
}

// Websocket is a Transport over a single gorilla/websocket connection.
type Websocket struct {
	config   *WebsocketDialer
	mu       sync.Mutex
	conn     *websocket.Conn
	sink     SignalFunc
	cancel   context.CancelFunc
	closed   bool
	finished bool
	done     chan struct{}
	send     chan []byte
}

func (w *Websocket) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sink = nil
}

func (w *Websocket) Send(payload []byte) error {
	w.mu.Lock()
	closed := w.closed || w.finished
	w.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}

	select {
	case w.send <- payload:
		return nil
	case <-w.done:
		return ErrTransportClosed
	default:
		return errors.New("send buffer is full")
	}
}

func (w *Websocket) Close(code int, reason string) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	alreadyFinished := w.finished
	if !alreadyFinished {
		w.finished = true
		close(w.done)
	}
	conn := w.conn
	w.mu.Unlock()

	// abort a dial that is still in flight
	w.cancel()

	if conn == nil || alreadyFinished {
		return nil
	}

	// attempt to gracefully close the connection by sending a close websocket message
	msg := websocket.FormatCloseMessage(code, reason)
	err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.config.WriteWait))
	closeErr := conn.Close()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return closeErr
}

func (w *Websocket) run(ctx context.Context, endPoint string, requestHeader http.Header) {
	conn, resp, err := w.config.Dialer.DialContext(ctx, endPoint, requestHeader)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		w.emit(Signal{Kind: SignalErrored, Err: err})
		w.finish(closeAbnormal, "")
		return
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		_ = conn.Close()
		return
	}
	w.conn = conn
	w.mu.Unlock()

	w.config.Logger.Printf(LogDebug, "websocket", "Connected to %v", endPoint)

	if w.config.ReadLimit > 0 {
		conn.SetReadLimit(w.config.ReadLimit)
	}
	w.extendReadDeadline(conn)
	conn.SetPongHandler(func(string) error {
		w.extendReadDeadline(conn)
		return nil
	})
	conn.SetPingHandler(func(appData string) error {
		w.extendReadDeadline(conn)
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(w.config.WriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	w.emit(Signal{Kind: SignalOpened})

	go w.writer(conn)
	w.reader(conn)
}

func (w *Websocket) extendReadDeadline(conn *websocket.Conn) {
	if w.config.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(w.config.PongWait))
	}
}

func (w *Websocket) reader(conn *websocket.Conn) {
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				w.finish(closeErr.Code, closeErr.Text)
				return
			}
			w.emit(Signal{Kind: SignalErrored, Err: err})
			w.finish(closeAbnormal, "")
			return
		}

		if msgType != websocket.TextMessage {
			w.config.Logger.Printf(LogDebug, "websocket", "ignoring non-text message of type %d", msgType)
			continue
		}

		w.emit(Signal{Kind: SignalMessage, Payload: payload})
	}
}

func (w *Websocket) writer(conn *websocket.Conn) {
	var ping <-chan time.Time
	if w.config.PingInterval > 0 {
		ticker := time.NewTicker(w.config.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-w.done:
			return

		case payload := <-w.send:
			_ = conn.SetWriteDeadline(time.Now().Add(w.config.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				w.emit(Signal{Kind: SignalErrored, Err: err})
				w.finish(closeAbnormal, "")
				return
			}

		case <-ping:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.config.WriteWait)); err != nil {
				w.emit(Signal{Kind: SignalErrored, Err: err})
				w.finish(closeAbnormal, "")
				return
			}
		}
	}
}

// finish tears the connection down and emits the final SignalClosed. Only the first call has any effect.
func (w *Websocket) finish(code int, reason string) {
	w.mu.Lock()
	if w.finished {
		w.mu.Unlock()
		return
	}
	w.finished = true
	close(w.done)
	conn := w.conn
	sink := w.sink
	w.mu.Unlock()

	w.cancel()
	if conn != nil {
		_ = conn.Close()
	}
	if sink != nil {
		sink(Signal{Kind: SignalClosed, Code: code, Reason: reason})
	}
}

// emit delivers sig unless the transport was closed, detached or already emitted SignalClosed.
func (w *Websocket) emit(sig Signal) {
	w.mu.Lock()
	sink := w.sink
	if w.closed || w.finished {
		sink = nil
	}
	w.mu.Unlock()

	if sink != nil {
		sink(sig)
	}
}
