package tunnelify

// State is the lifecycle of a Tunnel session.
//
//	Closed --Open--> Starting --exit 0--> Open --Close--> Closing --> Closed
//	                 Starting --error---> Closed
//
// Close is refused while Starting. A Close that cannot run ssh returns to the
// state it started from.
type State int

const (
	StateClosed State = iota
	StateStarting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateStarting:
		return "starting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}
