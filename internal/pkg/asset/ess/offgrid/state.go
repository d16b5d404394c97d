package offgrid

// State is a state of the off-grid transition controller.
type State int

// States
const (
	Undefined    State = -1
	OnGrid       State = 1
	GoingOffGrid State = 2
	OffGrid      State = 3
	GoingOnGrid  State = 4
)

// Code returns the numeric state code.
func (s State) Code() int {
	return int(s)
}

// Name returns the state name.
func (s State) Name() string {
	switch s {
	case Undefined:
		return "UNDEFINED"
	case OnGrid:
		return "ON_GRID"
	case GoingOffGrid:
		return "GOING_OFF_GRID"
	case OffGrid:
		return "OFF_GRID"
	case GoingOnGrid:
		return "GOING_ON_GRID"
	}
	return "UNKNOWN"
}

func (s State) String() string {
	return s.Name()
}

// Text is the human readable description of the state.
func (s State) Text() string {
	switch s {
	case Undefined:
		return "Undefined"
	case OnGrid:
		return "On-Grid"
	case GoingOffGrid:
		return "Going Off-Grid"
	case OffGrid:
		return "Off-Grid"
	case GoingOnGrid:
		return "Going On-Grid"
	}
	return "Unknown"
}

// States returns the closed state space.
func States() []State {
	return []State{Undefined, OnGrid, GoingOffGrid, OffGrid, GoingOnGrid}
}
