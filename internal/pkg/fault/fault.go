package fault

import "errors"

// Level is the severity of a condition reported by a component.
type Level int

// Levels, ordered by severity.
const (
	OK Level = iota
	Info
	Warning
	Fault
)

var levelNames = [...]string{"Ok", "Info", "Warning", "Fault"}

// Code returns the numeric code of the level.
func (l Level) Code() int {
	return int(l)
}

// Name returns the human-readable level name.
func (l Level) Name() string {
	if l < OK || l > Fault {
		return "Undefined"
	}
	return levelNames[l]
}

func (l Level) String() string {
	return l.Name()
}

// Levels returns all levels in ascending severity.
func Levels() []Level {
	return []Level{OK, Info, Warning, Fault}
}

// Errors reported by channels, components and controllers.
var (
	ErrAccessDenied            = errors.New("access denied")
	ErrUndefinedInput          = errors.New("stale or undefined input")
	ErrCommandRejected         = errors.New("command rejected")
	ErrSafetyThresholdViolated = errors.New("safety threshold violated")
	ErrTypeMismatch            = errors.New("type mismatch")
	ErrUnknownChannel          = errors.New("unknown channel")
	ErrUnknownComponent        = errors.New("unknown component")
	ErrUnknownState            = errors.New("unknown state")
)

// LevelOf classifies err. Safety and programming errors are faults,
// rejected commands are warnings, missing inputs are informational.
func LevelOf(err error) Level {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrSafetyThresholdViolated),
		errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrTypeMismatch),
		errors.Is(err, ErrUnknownChannel),
		errors.Is(err, ErrUnknownComponent),
		errors.Is(err, ErrUnknownState):
		return Fault
	case errors.Is(err, ErrCommandRejected):
		return Warning
	case errors.Is(err, ErrUndefinedInput):
		return Info
	}
	return Fault
}
