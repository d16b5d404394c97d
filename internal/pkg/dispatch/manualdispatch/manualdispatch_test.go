package manualdispatch

import (
	"testing"

	"github.com/ohowland/cgc_offgrid/internal/pkg/dispatch"
	"github.com/ohowland/cgc_offgrid/internal/pkg/dispatch/mock"
	"github.com/ohowland/cgc_offgrid/internal/pkg/fault"
	"github.com/ohowland/cgc_offgrid/internal/pkg/power"
	"gotest.tools/v3/assert"
)

var _ dispatch.Dispatcher = &ManualDispatch{}

func TestDispatchDefaultSetpoint(t *testing.T) {
	d := New(Setpoint{ActivePower: 5000, ReactivePower: 100}, nil)
	ess := mock.NewEss("ess0")
	d.AddMember(ess)

	assert.NilError(t, d.Dispatch())
	assert.DeepEqual(t, ess.Applied(), [][2]int{{5000, 100}})

	applied, ok := d.Applied(ess.PID())
	assert.Assert(t, ok)
	assert.Equal(t, applied, Setpoint{ActivePower: 5000, ReactivePower: 100})
}

func TestDispatchClampsToConstraints(t *testing.T) {
	d := New(Setpoint{}, nil)
	ess := mock.NewEss("ess0")
	ess.Precision = 100
	ess.Constraints = []power.Constraint{
		power.NewConstraint("max", power.Active, power.LessOrEquals, 3000),
		power.NewConstraint("not started", power.Reactive, power.Equals, 0),
	}
	d.AddMember(ess)
	d.SetSetpoint(ess.PID(), Setpoint{ActivePower: 4567, ReactivePower: 800})

	assert.NilError(t, d.Dispatch())
	assert.DeepEqual(t, ess.Applied(), [][2]int{{3000, 0}})

	d.SetSetpoint(ess.PID(), Setpoint{ActivePower: -1234})
	assert.NilError(t, d.Dispatch())
	assert.DeepEqual(t, ess.Applied()[1], [2]int{-1200, 0})
}

func TestDispatchContinuesAfterFailure(t *testing.T) {
	d := New(Setpoint{ActivePower: 1000}, nil)
	bad := mock.NewEss("ess0")
	bad.Err = fault.ErrCommandRejected
	good := mock.NewEss("ess1")
	d.AddMember(bad)
	d.AddMember(good)

	err := d.Dispatch()
	assert.ErrorIs(t, err, fault.ErrCommandRejected)
	assert.ErrorContains(t, err, "ess0: apply power")
	assert.Equal(t, len(good.Applied()), 1)
	_, ok := d.Applied(bad.PID())
	assert.Assert(t, !ok)
}

func TestDropMember(t *testing.T) {
	d := New(Setpoint{ActivePower: 1000}, nil)
	ess := mock.NewEss("ess0")
	d.AddMember(ess)
	d.DropMember(ess.PID())

	assert.NilError(t, d.Dispatch())
	assert.Equal(t, len(ess.Applied()), 0)
}
