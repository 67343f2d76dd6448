package environment

// State is a Session lifecycle state.
type State int32

const (
	Unconnected State = iota
	Connected
	Made
	Ready
	Stepping
	Closed
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case Connected:
		return "connected"
	case Made:
		return "made"
	case Ready:
		return "ready"
	case Stepping:
		return "stepping"
	case Closed:
		return "closed"
	default:
		return "invalid"
	}
}
