package offgrid

import (
	"testing"

	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/batteryinverter"
	"github.com/ohowland/cgc_offgrid/internal/pkg/channel"
	"github.com/ohowland/cgc_offgrid/internal/pkg/fault"
	"gotest.tools/v3/assert"
)

type fakeEss struct{}

func (fakeEss) ID() string { return "ess0" }

type fakeBattery struct {
	soc  channel.Value[int]
	cell channel.Value[int]
}

func (b *fakeBattery) Soc() (channel.Value[int], error)            { return b.soc, nil }
func (b *fakeBattery) MinCellVoltage() (channel.Value[int], error) { return b.cell, nil }

type fakeInverter struct {
	mode      channel.Value[batteryinverter.GridMode]
	running   channel.Value[bool]
	hasFault  channel.Value[bool]
	frequency channel.Value[int]
	reject    bool
	commands  []string
}

func (i *fakeInverter) GridMode() (channel.Value[batteryinverter.GridMode], error) {
	return i.mode, nil
}
func (i *fakeInverter) IsRunning() (channel.Value[bool], error) { return i.running, nil }
func (i *fakeInverter) HasFault() (channel.Value[bool], error)  { return i.hasFault, nil }
func (i *fakeInverter) OffGridFrequency() (channel.Value[int], error) {
	return i.frequency, nil
}

func (i *fakeInverter) stage(cmd string) error {
	if i.reject {
		return fault.ErrCommandRejected
	}
	i.commands = append(i.commands, cmd)
	return nil
}

func (i *fakeInverter) SoftStart(on bool) error {
	if on {
		return i.stage("SoftStart")
	}
	return i.stage("SoftStop")
}
func (i *fakeInverter) SetInverterOff() error         { return i.stage("InverterOff") }
func (i *fakeInverter) SetInverterOn() error          { return i.stage("InverterOn") }
func (i *fakeInverter) SetOffGridFrequency(int) error { return i.stage("OffGridFrequency") }
func (i *fakeInverter) SetOnGridCommand() error       { return i.stage("OnGridCmd") }
func (i *fakeInverter) SetOffGridCommand() error      { return i.stage("OffGridCmd") }
func (i *fakeInverter) SetClearFailureCommand() error { return i.stage("ClearFailureCmd") }

// take returns and clears the commands staged since the last call.
func (i *fakeInverter) take() []string {
	cmds := i.commands
	i.commands = nil
	return cmds
}

type fakeSwitch struct {
	main      channel.Value[bool]
	grounding channel.Value[bool]
	grid      channel.Value[bool]
}

func (s *fakeSwitch) MainContactor() (channel.Value[bool], error)      { return s.main, nil }
func (s *fakeSwitch) GroundingContactor() (channel.Value[bool], error) { return s.grounding, nil }
func (s *fakeSwitch) GridStatus() (channel.Value[bool], error)         { return s.grid, nil }

type plant struct {
	battery  *fakeBattery
	inverter *fakeInverter
	sw       *fakeSwitch
}

// newPlant is a healthy, grid-tied system.
func newPlant() *plant {
	return &plant{
		battery: &fakeBattery{soc: channel.NewValue(80), cell: channel.NewValue(3300)},
		inverter: &fakeInverter{
			mode:      channel.NewValue(batteryinverter.OnGrid),
			running:   channel.NewValue(true),
			hasFault:  channel.NewValue(false),
			frequency: channel.NewValue(50),
		},
		sw: &fakeSwitch{
			main:      channel.NewValue(true),
			grounding: channel.NewValue(false),
			grid:      channel.NewValue(true),
		},
	}
}

func (p *plant) context() Context {
	return Context{
		Ess:                   fakeEss{},
		Battery:               p.battery,
		Inverter:              p.inverter,
		Switch:                p.sw,
		AllowedMinSoc:         10,
		AllowedMinCellVoltage: 3000,
		OffGridFrequency:      50,
	}
}

func (p *plant) gridLost() {
	p.sw.grid = channel.NewValue(false)
	p.sw.main = channel.NewValue(false)
	p.sw.grounding = channel.NewValue(true)
}

func (p *plant) gridRestored() {
	p.sw.grid = channel.NewValue(true)
	p.sw.main = channel.NewValue(true)
	p.sw.grounding = channel.NewValue(false)
}

func TestRunUnknownState(t *testing.T) {
	s, err := Run(State(42), newPlant().context())
	assert.ErrorIs(t, err, fault.ErrUnknownState)
	assert.Equal(t, s, State(42))
}

func TestUndefined(t *testing.T) {
	p := newPlant()
	s, err := Run(Undefined, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, OnGrid)

	p.gridLost()
	p.inverter.mode = channel.NewValue(batteryinverter.OffGrid)
	s, err = Run(Undefined, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, OffGrid)

	p.inverter.running = channel.NewValue(false)
	s, err = Run(Undefined, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOnGrid)

	p.sw.grid = channel.Undefined[bool]()
	s, err = Run(Undefined, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOnGrid)
	assert.Equal(t, len(p.inverter.take()), 0)
}

func TestUndefinedKeepsUnsafeIslandOut(t *testing.T) {
	p := newPlant()
	p.gridLost()
	p.inverter.mode = channel.NewValue(batteryinverter.OffGrid)
	p.battery.soc = channel.NewValue(5)

	s, err := Run(Undefined, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOnGrid)

	p.battery.soc = channel.Undefined[int]()
	s, err = Run(Undefined, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOnGrid)
}

func TestUndefinedStoppedInverterOnGrid(t *testing.T) {
	p := newPlant()
	p.inverter.running = channel.NewValue(false)

	s, err := Run(Undefined, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOnGrid)
}

func TestOnGridHoldsOnUndefinedGridStatus(t *testing.T) {
	p := newPlant()
	p.sw.grid = channel.Undefined[bool]()
	s, err := Run(OnGrid, p.context())
	assert.ErrorIs(t, err, fault.ErrUndefinedInput)
	assert.Equal(t, fault.LevelOf(err), fault.Info)
	assert.Equal(t, s, OnGrid)
}

func TestGoingOffGridSequence(t *testing.T) {
	p := newPlant()
	p.gridLost()

	s, err := Run(GoingOffGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOffGrid)
	assert.DeepEqual(t, p.inverter.take(), []string{"OffGridCmd"})

	p.inverter.mode = channel.NewValue(batteryinverter.OffGrid)
	p.inverter.running = channel.NewValue(false)
	s, err = Run(GoingOffGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOffGrid)
	assert.DeepEqual(t, p.inverter.take(), []string{"SoftStart"})

	p.inverter.running = channel.NewValue(true)
	s, err = Run(GoingOffGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, OffGrid)
	assert.Equal(t, len(p.inverter.take()), 0)
}

func TestGoingOffGridSetsIslandFrequency(t *testing.T) {
	p := newPlant()
	p.gridLost()
	p.inverter.frequency = channel.NewValue(49)

	s, err := Run(GoingOffGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOffGrid)
	assert.DeepEqual(t, p.inverter.take(), []string{"OffGridFrequency"})

	p.inverter.frequency = channel.NewValue(50)
	s, err = Run(GoingOffGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOffGrid)
	assert.DeepEqual(t, p.inverter.take(), []string{"OffGridCmd"})
}

func TestGoingOffGridFrequencyNotReported(t *testing.T) {
	p := newPlant()
	p.gridLost()
	p.inverter.frequency = channel.Undefined[int]()

	s, err := Run(GoingOffGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOffGrid)
	assert.DeepEqual(t, p.inverter.take(), []string{"OffGridCmd"})

	// zero leaves the inverter setting alone
	p.inverter.frequency = channel.NewValue(60)
	ctx := p.context()
	ctx.OffGridFrequency = 0
	_, err = Run(GoingOffGrid, ctx)
	assert.NilError(t, err)
	assert.DeepEqual(t, p.inverter.take(), []string{"OffGridCmd"})
}

func TestGoingOffGridWaitsForMainContactor(t *testing.T) {
	p := newPlant()
	p.gridLost()
	p.sw.main = channel.NewValue(true)

	s, err := Run(GoingOffGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOffGrid)
	assert.Equal(t, len(p.inverter.take()), 0)
}

func TestGoingOffGridGridReturns(t *testing.T) {
	p := newPlant()
	s, err := Run(GoingOffGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, OnGrid)

	p.inverter.running = channel.NewValue(false)
	s, err = Run(GoingOffGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOnGrid)

	p.inverter.running = channel.NewValue(true)

	p.inverter.mode = channel.NewValue(batteryinverter.OffGrid)
	s, err = Run(GoingOffGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOnGrid)
}

func TestGoingOffGridRejectedCommand(t *testing.T) {
	p := newPlant()
	p.gridLost()
	p.inverter.reject = true

	s, err := Run(GoingOffGrid, p.context())
	assert.ErrorIs(t, err, fault.ErrCommandRejected)
	assert.Equal(t, s, GoingOffGrid)
}

func TestGoingOffGridUnsafeBattery(t *testing.T) {
	for _, tc := range []struct {
		name string
		soc  int
		cell int
	}{
		{"low soc", 5, 3300},
		{"low cell voltage", 80, 2900},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := newPlant()
			p.gridLost()
			p.battery.soc = channel.NewValue(tc.soc)
			p.battery.cell = channel.NewValue(tc.cell)

			s, err := Run(GoingOffGrid, p.context())
			assert.ErrorIs(t, err, fault.ErrSafetyThresholdViolated)
			assert.Equal(t, s, Undefined)
			assert.Equal(t, len(p.inverter.take()), 0)
		})
	}
}

func TestGoingOffGridUndefinedSoc(t *testing.T) {
	p := newPlant()
	p.gridLost()
	p.battery.soc = channel.Undefined[int]()

	s, err := Run(GoingOffGrid, p.context())
	assert.ErrorIs(t, err, fault.ErrUndefinedInput)
	assert.Equal(t, s, GoingOffGrid)
	assert.Equal(t, len(p.inverter.take()), 0)
}

func TestOffGridSafetyAbort(t *testing.T) {
	p := newPlant()
	p.gridLost()
	p.inverter.mode = channel.NewValue(batteryinverter.OffGrid)
	p.battery.cell = channel.NewValue(2950)

	s, err := Run(OffGrid, p.context())
	assert.ErrorIs(t, err, fault.ErrSafetyThresholdViolated)
	assert.Equal(t, s, Undefined)
	assert.DeepEqual(t, p.inverter.take(), []string{"InverterOff"})

	// regardless of grid status
	p.gridRestored()
	s, err = Run(OffGrid, p.context())
	assert.ErrorIs(t, err, fault.ErrSafetyThresholdViolated)
	assert.Equal(t, s, Undefined)

	// the abort is taken even if the stop command is rejected
	p.inverter.reject = true
	s, err = Run(OffGrid, p.context())
	assert.ErrorIs(t, err, fault.ErrSafetyThresholdViolated)
	assert.ErrorIs(t, err, fault.ErrCommandRejected)
	assert.Equal(t, fault.LevelOf(err), fault.Fault)
	assert.Equal(t, s, Undefined)
}

func TestOffGridGridRestored(t *testing.T) {
	p := newPlant()
	p.gridLost()
	s, err := Run(OffGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, OffGrid)

	p.gridRestored()
	s, err = Run(OffGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOnGrid)
}

func TestGoingOnGridSequence(t *testing.T) {
	p := newPlant()
	p.gridLost()
	p.inverter.mode = channel.NewValue(batteryinverter.OffGrid)
	p.inverter.hasFault = channel.NewValue(true)

	// grounding contactor engaged and no grid
	s, err := Run(GoingOnGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOnGrid)
	assert.Equal(t, len(p.inverter.take()), 0)

	p.gridRestored()
	s, err = Run(GoingOnGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOnGrid)
	assert.DeepEqual(t, p.inverter.take(), []string{"ClearFailureCmd"})

	p.inverter.hasFault = channel.NewValue(false)
	s, err = Run(GoingOnGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOnGrid)
	assert.DeepEqual(t, p.inverter.take(), []string{"OnGridCmd"})

	p.inverter.mode = channel.NewValue(batteryinverter.OnGrid)
	s, err = Run(GoingOnGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, OnGrid)
}

func TestGoingOnGridRestartsStoppedInverter(t *testing.T) {
	p := newPlant()
	p.inverter.running = channel.NewValue(false)

	s, err := Run(GoingOnGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOnGrid)
	assert.DeepEqual(t, p.inverter.take(), []string{"InverterOn"})

	p.inverter.running = channel.Undefined[bool]()
	s, err = Run(GoingOnGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, GoingOnGrid)
	assert.DeepEqual(t, p.inverter.take(), []string{"InverterOn"})

	p.inverter.running = channel.NewValue(true)
	s, err = Run(GoingOnGrid, p.context())
	assert.NilError(t, err)
	assert.Equal(t, s, OnGrid)
	assert.Equal(t, len(p.inverter.take()), 0)
}

func TestGoingOnGridNeverCommandsWhileGrounded(t *testing.T) {
	p := newPlant()
	p.inverter.mode = channel.NewValue(batteryinverter.OffGrid)
	p.sw.grounding = channel.NewValue(true)

	for k := 0; k < 5; k++ {
		s, err := Run(GoingOnGrid, p.context())
		assert.NilError(t, err)
		assert.Equal(t, s, GoingOnGrid)
	}
	assert.Equal(t, len(p.inverter.take()), 0)
}

func TestSafetyCheckIdleOutsideOffGridStates(t *testing.T) {
	for _, state := range []State{Undefined, OnGrid, GoingOnGrid} {
		p := newPlant()
		p.battery.soc = channel.NewValue(1)
		p.battery.cell = channel.NewValue(1000)
		s, err := Run(state, p.context())
		assert.NilError(t, err, state.Name())
		assert.Assert(t, s != Undefined, state.Name())
	}
}

func TestAtMostOneCommandPerTick(t *testing.T) {
	p := newPlant()
	p.gridLost()
	p.inverter.mode = channel.NewValue(batteryinverter.OnGrid)
	p.inverter.running = channel.NewValue(false)
	p.inverter.hasFault = channel.NewValue(true)

	for _, state := range States() {
		_, _ = Run(state, p.context())
		assert.Assert(t, len(p.inverter.take()) <= 1, state.Name())
	}
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, GoingOffGrid.Name(), "GOING_OFF_GRID")
	assert.Equal(t, Undefined.Code(), -1)
	assert.Equal(t, OffGrid.Text(), "Off-Grid")
	assert.Equal(t, State(9).Name(), "UNKNOWN")
}
