package rvlink

// ConnectionState is the lifecycle state of a Channel.
type ConnectionState int

const (
	// StateIdle - created, or disconnected by the caller
	StateIdle ConnectionState = iota
	// StateConnecting - a transport was dialed and has not opened yet
	StateConnecting
	// StateOpen - the transport is open and delivering events
	StateOpen
	// StateClosed - the transport closed; a reconnect may be scheduled
	StateClosed
	// StateDisposed - destroyed, terminal
	StateDisposed
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

var validTransitions = map[ConnectionState][]ConnectionState{
	StateIdle:       {StateConnecting, StateDisposed},
	StateConnecting: {StateConnecting, StateOpen, StateClosed, StateIdle, StateDisposed},
	StateOpen:       {StateConnecting, StateClosed, StateIdle, StateDisposed},
	StateClosed:     {StateConnecting, StateIdle, StateDisposed},
	StateDisposed:   {},
}

// CanTransition reports whether a Channel may move from one state to another.
func CanTransition(from, to ConnectionState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
