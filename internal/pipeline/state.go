package pipeline

// State is a step of the two-phase run.
type State int

const (
	StateIdle State = iota
	StateExtract1
	StateFilter1
	StateUpload1
	StateRewrite1
	StateRemap2
	StateFilter2
	StateUpload2
	StateRewrite2
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtract1:
		return "extract1"
	case StateFilter1:
		return "filter1"
	case StateUpload1:
		return "upload1"
	case StateRewrite1:
		return "rewrite1"
	case StateRemap2:
		return "remap2"
	case StateFilter2:
		return "filter2"
	case StateUpload2:
		return "upload2"
	case StateRewrite2:
		return "rewrite2"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// next lists the legal transitions. Aborted is reachable only from the
// upload states.
var next = map[State][]State{
	StateIdle:     {StateExtract1},
	StateExtract1: {StateFilter1},
	StateFilter1:  {StateUpload1},
	StateUpload1:  {StateRewrite1, StateAborted},
	StateRewrite1: {StateRemap2},
	StateRemap2:   {StateFilter2},
	StateFilter2:  {StateUpload2},
	StateUpload2:  {StateRewrite2, StateAborted},
	StateRewrite2: {StateDone},
}

// CanTransition reports whether from → to is a legal step.
func CanTransition(from, to State) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}
