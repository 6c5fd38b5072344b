package rvlink

import "time"

const (
	// MaxReconnectAttempts is how many automatic reconnects are tried after the last successful open
	MaxReconnectAttempts = 10

	// InitialReconnectDelay is the delay before the first automatic reconnect
	InitialReconnectDelay = 1000 * time.Millisecond

	// MaxReconnectDelay caps the exponential backoff
	MaxReconnectDelay = 30000 * time.Millisecond

	// defaultHandshakeTimeout is the default websocket handshake timeout
	defaultHandshakeTimeout = 10 * time.Second

	// defaultPingInterval is the default time between keepalive pings
	defaultPingInterval = 15 * time.Second

	// defaultPongWait is how long the connection may stay silent before it is considered dead
	defaultPongWait = 35 * time.Second

	// defaultWriteWait bounds every write to the socket
	defaultWriteWait = 5 * time.Second

	// closeNormal and closeReason are what Disconnect sends to the server
	closeNormal = 1000
	closeReason = "Client disconnect"

	// closeAbnormal is reported when the socket went away without a close frame
	closeAbnormal = 1006
)

// defaultReconnectAfterFunc doubles the delay for every try, starting at InitialReconnectDelay and never
// exceeding MaxReconnectDelay: 1s, 2s, 4s, 8s, 16s, 30s, 30s...
func defaultReconnectAfterFunc(tries int) time.Duration {
	return backoffDelay(InitialReconnectDelay, MaxReconnectDelay, tries)
}

// ExponentialBackoff returns a ReconnectAfterFunc that starts at initial and doubles up to maxDelay.
func ExponentialBackoff(initial, maxDelay time.Duration) func(tries int) time.Duration {
	return func(tries int) time.Duration {
		return backoffDelay(initial, maxDelay, tries)
	}
}

func backoffDelay(initial, maxDelay time.Duration, tries int) time.Duration {
	if tries < 0 {
		tries = 0
	}
	delay := initial
	for i := 0; i < tries; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}
