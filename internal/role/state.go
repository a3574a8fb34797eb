package role

// State is the per-role progress of the exchange
type State int

const (
	Idle State = iota
	// server roles
	AwaitingPeer
	HasPeer
	// client roles
	Sent
	AwaitingReply
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingPeer:
		return "awaiting-peer"
	case HasPeer:
		return "has-peer"
	case Sent:
		return "sent"
	case AwaitingReply:
		return "awaiting-reply"
	default:
		return "unknown"
	}
}
