package converter

// State is the lifecycle position of a run.
type State int

const (
	Idle State = iota
	Preparing
	RunningStage
	Verifying
	Succeeded
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Preparing:
		return "preparing"
	case RunningStage:
		return "running"
	case Verifying:
		return "verifying"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition can leave s.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == Cancelled
}
