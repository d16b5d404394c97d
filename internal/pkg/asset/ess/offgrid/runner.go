package offgrid

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ohowland/cgc_offgrid/internal/pkg/fault"
	"github.com/ohowland/cgc_offgrid/internal/pkg/statemachine"
)

// Machine is the off-grid state machine.
type Machine = statemachine.Machine[State, Context]

// NewMachine returns a Machine starting in Undefined.
func NewMachine(logger *zap.Logger) *Machine {
	return statemachine.New[State, Context](Undefined, statemachine.RunnerFunc[State, Context](Run), logger)
}

// Run executes the handler of state s.
func Run(s State, ctx Context) (State, error) {
	switch s {
	case Undefined:
		return handleUndefined(ctx)
	case OnGrid:
		return handleOnGrid(ctx)
	case GoingOffGrid:
		return handleGoingOffGrid(ctx)
	case OffGrid:
		return handleOffGrid(ctx)
	case GoingOnGrid:
		return handleGoingOnGrid(ctx)
	}
	return s, fmt.Errorf("%w: %d", fault.ErrUnknownState, int(s))
}
