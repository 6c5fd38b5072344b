package rvlink

import (
	"net/http"
	"net/url"
)

// SignalKind tells what happened on a Transport.
type SignalKind int

const (
	SignalOpened SignalKind = iota
	SignalMessage
	SignalClosed
	SignalErrored
)

func (k SignalKind) String() string {
	switch k {
	case SignalOpened:
		return "opened"
	case SignalMessage:
		return "message"
	case SignalClosed:
		return "closed"
	case SignalErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Signal is a single notification from a Transport. Payload is set for SignalMessage, Code and Reason for
// SignalClosed and Err for SignalErrored.
type Signal struct {
	Kind    SignalKind
	Payload []byte
	Code    int
	Reason  string
	Err     error
}

type SignalFunc func(Signal)

// Transport is a single socket-like connection. A Transport emits SignalOpened at most once, then any number of
// SignalMessage in the order they arrived, and finally exactly one SignalClosed. Every SignalErrored is followed by
// a SignalClosed. Once Close has been called the Transport emits nothing.
type Transport interface {
	// Detach stops delivery to the SignalFunc given to Dial. Signals already being delivered may still arrive.
	Detach()
	Send(payload []byte) error
	Close(code int, reason string) error
}

// Dialer creates Transports. Dial must not block on the network and must not call fn before it returns; the
// outcome of the connection attempt is reported through fn.
type Dialer interface {
	Dial(endPoint url.URL, requestHeader http.Header, fn SignalFunc) Transport
}
