package mock

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ohowland/cgc_offgrid/internal/pkg/power"
)

// Ess is a power.ManagedEss that records applied power.
type Ess struct {
	mux         *sync.Mutex
	pid         uuid.UUID
	id          string
	Constraints []power.Constraint
	Precision   int
	Err         error
	applied     [][2]int
}

// NewEss returns an unconstrained mock ESS.
func NewEss(id string) *Ess {
	pid, _ := uuid.NewUUID()
	return &Ess{mux: &sync.Mutex{}, pid: pid, id: id, Precision: 1}
}

// PID is an accessor for the process id
func (e *Ess) PID() uuid.UUID { return e.pid }

// ID returns the component id.
func (e *Ess) ID() string { return e.id }

// StaticConstraints returns the configured constraints.
func (e *Ess) StaticConstraints() ([]power.Constraint, error) {
	return e.Constraints, nil
}

// ApplyPower records the setpoint, or returns Err if set.
func (e *Ess) ApplyPower(activePower int, reactivePower int) error {
	e.mux.Lock()
	defer e.mux.Unlock()
	if e.Err != nil {
		return e.Err
	}
	e.applied = append(e.applied, [2]int{activePower, reactivePower})
	return nil
}

// PowerPrecision returns the configured precision.
func (e *Ess) PowerPrecision() int { return e.Precision }

// Applied returns every recorded setpoint.
func (e *Ess) Applied() [][2]int {
	e.mux.Lock()
	defer e.mux.Unlock()
	return append([][2]int(nil), e.applied...)
}
