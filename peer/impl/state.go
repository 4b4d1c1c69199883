package impl

// State is the lifecycle state of a session.
type State int

const (
	Idle State = iota
	SessionEstablished
	RoundInProgress
	Reconstructing
	Complete
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SessionEstablished:
		return "session-established"
	case RoundInProgress:
		return "round-in-progress"
	case Reconstructing:
		return "reconstructing"
	case Complete:
		return "complete"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// canMove tells if the state machine allows from -> to.
func canMove(from, to State) bool {
	if to == Aborted {
		return from != Aborted
	}
	switch from {
	case Idle:
		return to == SessionEstablished
	case SessionEstablished, Complete:
		return to == RoundInProgress
	case RoundInProgress:
		return to == Reconstructing || to == Complete
	case Reconstructing:
		return to == RoundInProgress || to == Complete
	default:
		return false
	}
}
