package power

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Phase selects the phase a constraint applies to.
type Phase int

// Phases
const (
	All Phase = iota
	L1
	L2
	L3
)

func (p Phase) String() string {
	switch p {
	case All:
		return "ALL"
	case L1:
		return "L1"
	case L2:
		return "L2"
	case L3:
		return "L3"
	}
	return "UNDEFINED"
}

// Pwr is the kind of power a constraint bounds.
type Pwr int

// Power kinds
const (
	Active Pwr = iota
	Reactive
)

func (p Pwr) String() string {
	if p == Reactive {
		return "REACTIVE"
	}
	return "ACTIVE"
}

// Relationship is the comparison a constraint applies.
type Relationship int

// Relationships
const (
	Equals Relationship = iota
	LessOrEquals
	GreaterOrEquals
)

func (r Relationship) String() string {
	switch r {
	case Equals:
		return "="
	case LessOrEquals:
		return "<="
	case GreaterOrEquals:
		return ">="
	}
	return "?"
}

// Constraint bounds the active or reactive power of a component.
type Constraint struct {
	Description  string
	Phase        Phase
	Pwr          Pwr
	Relationship Relationship
	Value        int
}

// NewConstraint returns a constraint on all phases.
func NewConstraint(description string, pwr Pwr, r Relationship, value int) Constraint {
	return Constraint{
		Description:  description,
		Phase:        All,
		Pwr:          pwr,
		Relationship: r,
		Value:        value,
	}
}

// Satisfied reports whether v meets the constraint.
func (c Constraint) Satisfied(v int) bool {
	switch c.Relationship {
	case Equals:
		return v == c.Value
	case LessOrEquals:
		return v <= c.Value
	case GreaterOrEquals:
		return v >= c.Value
	}
	return false
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s [%s %s %s %d]", c.Description, c.Phase, c.Pwr, c.Relationship, c.Value)
}

// Bounds folds the all-phase constraints on pwr into an inclusive range.
// Conflicting constraints are an error.
func Bounds(constraints []Constraint, pwr Pwr) (int, int, error) {
	min, max := math.MinInt, math.MaxInt
	for _, c := range constraints {
		if c.Pwr != pwr || c.Phase != All {
			continue
		}
		switch c.Relationship {
		case Equals:
			min = maxOf(min, c.Value)
			max = minOf(max, c.Value)
		case LessOrEquals:
			max = minOf(max, c.Value)
		case GreaterOrEquals:
			min = maxOf(min, c.Value)
		}
	}
	if min > max {
		return 0, 0, fmt.Errorf("no feasible %s power in [%d, %d]", pwr, min, max)
	}
	return min, max, nil
}

// Clamp limits v to the constraints on pwr and rounds it toward zero to a
// multiple of precision.
func Clamp(constraints []Constraint, pwr Pwr, v int, precision int) (int, error) {
	min, max, err := Bounds(constraints, pwr)
	if err != nil {
		return 0, err
	}
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return RoundToPrecision(v, precision), nil
}

// RoundToPrecision rounds v toward zero to a multiple of precision.
func RoundToPrecision(v int, precision int) int {
	if precision <= 1 {
		return v
	}
	return v / precision * precision
}

// ManagedEss is a storage system that takes part in power dispatch.
type ManagedEss interface {
	PID() uuid.UUID
	ID() string
	StaticConstraints() ([]Constraint, error)
	ApplyPower(activePower int, reactivePower int) error
	PowerPrecision() int
}

func minOf(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxOf(a, b int) int {
	if a > b {
		return a
	}
	return b
}
