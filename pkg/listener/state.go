package listener

// State is the loop lifecycle position.
type State int32

const (
	Disconnected State = iota
	Connecting
	Listening
	Draining
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Listening:
		return "listening"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
