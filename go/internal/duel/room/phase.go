package room

// Phase is the client-local coarse state of a room visit.
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseLobby
	PhaseBattleIntro
	PhaseInProgress
	PhaseEnded
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseLobby:
		return "lobby"
	case PhaseBattleIntro:
		return "battleIntro"
	case PhaseInProgress:
		return "inProgress"
	case PhaseEnded:
		return "ended"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText lets the phase appear by name in JSON and logs.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// IsTerminal reports whether no further transitions can leave p.
func (p Phase) IsTerminal() bool {
	return p == PhaseEnded || p == PhaseError
}
