package domain

// SessionState is the single connection lifecycle value driving which
// actions are permitted. Joined is reachable from either connected
// state; Reconnecting is distinct from both connected and disconnected.
type SessionState int

const (
	Disconnected SessionState = iota
	ConnectingLive
	LiveConnected
	Simulated
	Reconnecting
	Joined
)

func (s SessionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case ConnectingLive:
		return "connecting"
	case LiveConnected:
		return "live"
	case Simulated:
		return "simulated"
	case Reconnecting:
		return "reconnecting"
	case Joined:
		return "joined"
	default:
		return "unknown"
	}
}
