package voice

// State is the session connection state. Muted is an orthogonal flag that is
// only meaningful while the state is Connected.
type State int

const (
	// StateIdle means no connection exists and Connect may be called.
	StateIdle State = iota
	// StateConnecting means a connection attempt is in flight.
	StateConnecting
	// StateConnected means the duplex channel is live.
	StateConnected
	// StateDisconnected means teardown is in progress.
	StateDisconnected
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
