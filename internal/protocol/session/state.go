package session

// State is the embedded session phase.
type State int

const (
	Uninitiated State = iota
	AwaitingReady
	Established
)

func (s State) String() string {
	switch s {
	case Uninitiated:
		return "uninitiated"
	case AwaitingReady:
		return "awaiting_ready"
	case Established:
		return "established"
	default:
		return "unknown"
	}
}
