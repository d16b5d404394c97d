package virtualess

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/battery"
	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/batteryinverter"
	"github.com/ohowland/cgc_offgrid/internal/pkg/channel"
	"github.com/ohowland/cgc_offgrid/internal/pkg/component"
)

type fakeGrid struct {
	present bool
}

func (g *fakeGrid) Present() bool { return g.present }

type rig struct {
	ess  *VirtualESS
	inv  *batteryinverter.Inverter
	bat  *battery.Battery
	grid *fakeGrid
}

func newRig(t *testing.T, cfg Config) *rig {
	t.Helper()
	inv, err := batteryinverter.New("inverter0", "", true)
	assert.NilError(t, err)
	bat, err := battery.New("battery0", "", true)
	assert.NilError(t, err)
	grid := &fakeGrid{present: true}
	v, err := New(cfg, inv, bat, grid, time.Hour, nil)
	assert.NilError(t, err)
	return &rig{ess: v, inv: inv, bat: bat, grid: grid}
}

// step runs the hardware side of one cycle: write the staged commands, then
// read the new state into the process image.
func (r *rig) step(t *testing.T) Status {
	t.Helper()
	assert.NilError(t, r.ess.Write())
	assert.NilError(t, r.ess.Read())
	r.inv.NextProcessImage()
	r.bat.NextProcessImage()
	return r.ess.Status()
}

func stageActivePower(t *testing.T, inv *batteryinverter.Inverter, p int) {
	t.Helper()
	ch, err := component.Get[int](inv, batteryinverter.SetActivePower)
	assert.NilError(t, err)
	assert.NilError(t, ch.StageWrite(p))
}

func TestStartsGridTied(t *testing.T) {
	r := newRig(t, DefaultConfig())
	s := r.step(t)

	assert.Assert(t, s.Running)
	assert.Equal(t, s.Mode, batteryinverter.OnGrid)
	assert.Assert(t, r.inv.Ready())

	soc, err := r.bat.Soc()
	assert.NilError(t, err)
	assert.Equal(t, soc, channel.NewValue(80))

	charge, discharge := r.bat.AllowedPower()
	assert.Equal(t, charge, channel.NewValue(10000))
	assert.Equal(t, discharge, channel.NewValue(10000))
}

func TestFollowsSetpointOnGrid(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.step(t)

	stageActivePower(t, r.inv, 1000)
	s := r.step(t)
	assert.Equal(t, s.ActivePower, 1000)
	// one hour at 1 kW from 8 kWh
	assert.Equal(t, s.Soc, 70)

	p, err := r.inv.ActivePower()
	assert.NilError(t, err)
	assert.Equal(t, p, channel.NewValue(1000))
}

func TestSetpointLimitedByBattery(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCurrent = 4
	r := newRig(t, cfg)
	r.step(t)

	stageActivePower(t, r.inv, 5000)
	s := r.step(t)
	assert.Equal(t, s.ActivePower, 2000)

	stageActivePower(t, r.inv, -5000)
	s = r.step(t)
	assert.Equal(t, s.ActivePower, -2000)
}

func TestIslandSequence(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.step(t)

	r.grid.present = false
	s := r.step(t)
	assert.Assert(t, !s.Running, "grid-tied inverter trips on grid loss")
	assert.Equal(t, s.Mode, batteryinverter.OnGrid)

	assert.NilError(t, r.inv.SetOffGridCommand())
	s = r.step(t)
	assert.Assert(t, !s.Running)
	assert.Equal(t, s.Mode, batteryinverter.OffGrid)

	assert.NilError(t, r.inv.SoftStart(true))
	s = r.step(t)
	assert.Assert(t, s.Running)
	assert.Equal(t, s.Mode, batteryinverter.OffGrid)
	assert.Equal(t, s.ActivePower, 2000)

	r.grid.present = true
	assert.NilError(t, r.inv.SetOnGridCommand())
	s = r.step(t)
	assert.Assert(t, s.Running)
	assert.Equal(t, s.Mode, batteryinverter.OnGrid)
}

func TestStopAndFault(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.step(t)

	assert.NilError(t, r.inv.SetInverterOff())
	s := r.step(t)
	assert.Assert(t, !s.Running)

	assert.NilError(t, r.inv.SetInverterOn())
	s = r.step(t)
	assert.Assert(t, s.Running)

	r.ess.InjectFault()
	s = r.step(t)
	assert.Assert(t, !s.Running)
	assert.Assert(t, s.Fault)
	hasFault, err := r.inv.HasFault()
	assert.NilError(t, err)
	assert.Equal(t, hasFault, channel.NewValue(true))

	assert.NilError(t, r.inv.SetClearFailureCommand())
	s = r.step(t)
	assert.Assert(t, s.Running)
	assert.Assert(t, !s.Fault)
}

func TestEmptyBatteryStopsDischarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialSoc = 5
	r := newRig(t, cfg)
	r.step(t)

	stageActivePower(t, r.inv, 1000)
	s := r.step(t)
	assert.Equal(t, s.Soc, 0)

	_, discharge := r.bat.AllowedPower()
	assert.Equal(t, discharge, channel.NewValue(0))

	stageActivePower(t, r.inv, 1000)
	s = r.step(t)
	assert.Equal(t, s.ActivePower, 0)

	minCell, err := r.bat.MinCellVoltage()
	assert.NilError(t, err)
	assert.Equal(t, minCell, channel.NewValue(cellEmpty-cellSpread))
}

func TestNewValidation(t *testing.T) {
	inv, err := batteryinverter.New("inverter0", "", true)
	assert.NilError(t, err)
	bat, err := battery.New("battery0", "", true)
	assert.NilError(t, err)

	cfg := DefaultConfig()
	cfg.InitialSoc = 120
	_, err = New(cfg, inv, bat, &fakeGrid{}, time.Second, nil)
	assert.ErrorContains(t, err, "initial soc 120")

	_, err = New(DefaultConfig(), inv, bat, nil, time.Second, nil)
	assert.ErrorContains(t, err, "requires an inverter, a battery and a grid")

	_, err = New(DefaultConfig(), inv, bat, &fakeGrid{}, 0, nil)
	assert.ErrorContains(t, err, "step must be positive")
}
