package batteryinverter

import (
	"fmt"

	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/battery"
	"github.com/ohowland/cgc_offgrid/internal/pkg/channel"
	"github.com/ohowland/cgc_offgrid/internal/pkg/component"
	"github.com/ohowland/cgc_offgrid/internal/pkg/fault"
	"github.com/ohowland/cgc_offgrid/internal/pkg/power"
)

// Inverter channel ids
const (
	GridTypeID          channel.ID = "GridType"
	OffGridFrequency    channel.ID = "OffGridFrequency"
	OnGridCmd           channel.ID = "OnGridCmd"
	OffGridCmd          channel.ID = "OffGridCmd"
	ModOnCmd            channel.ID = "ModOnCmd"
	ModOffCmd           channel.ID = "ModOffCmd"
	SetInternDcRelay    channel.ID = "SetInternDcRelay"
	ClearFailureCmd     channel.ID = "ClearFailureCmd"
	InverterState       channel.ID = "InverterState"
	GridModeID          channel.ID = "GridMode"
	Fault               channel.ID = "Fault"
	CommunicationFailed channel.ID = "CommunicationFailed"
	ActivePower         channel.ID = "ActivePower"
	ReactivePower       channel.ID = "ReactivePower"
	SetActivePower      channel.ID = "SetActivePower"
	SetReactivePower    channel.ID = "SetReactivePower"
	MaxApparentPower    channel.ID = "MaxApparentPower"
)

// DefaultPowerPrecision is the setpoint resolution in W and var.
const DefaultPowerPrecision = 100

// GridType is the wiring of the grid connection.
type GridType int

// Grid types
const (
	ThreePhaseFourWire  GridType = 0
	ThreePhaseThreeWire GridType = 1
)

// Code returns the numeric option code.
func (g GridType) Code() int { return int(g) }

// Name returns the option name.
func (g GridType) Name() string {
	if g == ThreePhaseThreeWire {
		return "3P3W"
	}
	return "3P4W"
}

// GridMode is the operating mode reported by the inverter.
type GridMode int

// Grid modes
const (
	OnGrid  GridMode = 1
	OffGrid GridMode = 2
)

// Code returns the numeric option code.
func (g GridMode) Code() int { return int(g) }

// Name returns the option name.
func (g GridMode) Name() string {
	switch g {
	case OnGrid:
		return "ON_GRID"
	case OffGrid:
		return "OFF_GRID"
	}
	return "UNDEFINED"
}

func (g GridMode) String() string { return g.Name() }

// Inverter is the archetype off-grid capable battery inverter.
type Inverter struct {
	component.Base
	precision           int
	gridType            *channel.Of[GridType]
	offGridFrequency    *channel.Of[int]
	onGridCmd           *channel.Of[bool]
	offGridCmd          *channel.Of[bool]
	modOnCmd            *channel.Of[bool]
	modOffCmd           *channel.Of[bool]
	setInternDcRelay    *channel.Of[int]
	clearFailureCmd     *channel.Of[bool]
	inverterState       *channel.Of[bool]
	gridMode            *channel.Of[GridMode]
	fault               *channel.Of[bool]
	communicationFailed *channel.Of[bool]
	activePower         *channel.Of[int]
	reactivePower       *channel.Of[int]
	setActivePower      *channel.Of[int]
	setReactivePower    *channel.Of[int]
	maxApparentPower    *channel.Of[int]
}

// New returns an Inverter with all channels undefined.
func New(id string, alias string, enabled bool) (*Inverter, error) {
	base, err := component.New(id, alias, enabled)
	if err != nil {
		return nil, err
	}
	rw := channel.ReadWrite
	i := &Inverter{
		Base:                base,
		precision:           DefaultPowerPrecision,
		gridType:            channel.NewEnum(channel.Doc{ID: GridTypeID}, ThreePhaseFourWire, ThreePhaseThreeWire),
		offGridFrequency:    channel.NewInteger(channel.Doc{ID: OffGridFrequency, Unit: channel.Hertz, Access: rw}),
		onGridCmd:           channel.NewBoolean(channel.Doc{ID: OnGridCmd, Access: rw}),
		offGridCmd:          channel.NewBoolean(channel.Doc{ID: OffGridCmd, Access: rw}),
		modOnCmd:            channel.NewBoolean(channel.Doc{ID: ModOnCmd, Access: rw}),
		modOffCmd:           channel.NewBoolean(channel.Doc{ID: ModOffCmd, Access: rw}),
		setInternDcRelay:    channel.NewInteger(channel.Doc{ID: SetInternDcRelay, Access: rw, Text: "1 closes the internal DC relay"}),
		clearFailureCmd:     channel.NewBoolean(channel.Doc{ID: ClearFailureCmd, Access: rw}),
		inverterState:       channel.NewBoolean(channel.Doc{ID: InverterState, Text: "true while running"}),
		gridMode:            channel.NewEnum(channel.Doc{ID: GridModeID}, OnGrid, OffGrid),
		fault:               channel.NewBoolean(channel.Doc{ID: Fault}),
		communicationFailed: channel.NewBoolean(channel.Doc{ID: CommunicationFailed}),
		activePower:         channel.NewInteger(channel.Doc{ID: ActivePower, Unit: channel.Watt}),
		reactivePower:       channel.NewInteger(channel.Doc{ID: ReactivePower, Unit: channel.VoltAmpereReactive}),
		setActivePower:      channel.NewInteger(channel.Doc{ID: SetActivePower, Unit: channel.Watt, Access: channel.WriteOnly}),
		setReactivePower:    channel.NewInteger(channel.Doc{ID: SetReactivePower, Unit: channel.VoltAmpereReactive, Access: channel.WriteOnly}),
		maxApparentPower:    channel.NewInteger(channel.Doc{ID: MaxApparentPower, Unit: channel.VoltAmpere}),
	}
	err = i.AddChannels(i.gridType, i.offGridFrequency, i.onGridCmd, i.offGridCmd,
		i.modOnCmd, i.modOffCmd, i.setInternDcRelay, i.clearFailureCmd,
		i.inverterState, i.gridMode, i.fault, i.communicationFailed,
		i.activePower, i.reactivePower, i.setActivePower, i.setReactivePower,
		i.maxApparentPower)
	return i, err
}

// GridMode returns the reported grid mode.
func (i *Inverter) GridMode() (channel.Value[GridMode], error) { return i.gridMode.Current() }

// IsRunning returns the reported inverter state.
func (i *Inverter) IsRunning() (channel.Value[bool], error) { return i.inverterState.Current() }

// OffGridFrequency returns the configured island frequency in Hz.
func (i *Inverter) OffGridFrequency() (channel.Value[int], error) { return i.offGridFrequency.Current() }

// HasFault returns the reported fault flag.
func (i *Inverter) HasFault() (channel.Value[bool], error) { return i.fault.Current() }

// ActivePower returns the measured active power in W.
func (i *Inverter) ActivePower() (channel.Value[int], error) { return i.activePower.Current() }

// ReactivePower returns the measured reactive power in var.
func (i *Inverter) ReactivePower() (channel.Value[int], error) { return i.reactivePower.Current() }

// Ready reports whether the inverter is running without fault and reachable.
func (i *Inverter) Ready() bool {
	running, _ := i.inverterState.Current()
	hasFault, _ := i.fault.Current()
	return running.OrElse(false) && !hasFault.OrElse(true) && !i.commFailed()
}

func (i *Inverter) commFailed() bool {
	v, _ := i.communicationFailed.Current()
	return v.OrElse(false)
}

// stage stages v on c unless the bridge reported that writes do not reach the
// hardware.
func stage[T any](i *Inverter, c *channel.Of[T], v T) error {
	if i.commFailed() {
		return fmt.Errorf("%w: %s/%s", fault.ErrCommandRejected, i.ID(), c.ID())
	}
	return c.StageWrite(v)
}

// SetInverterOn starts the modules and soft-starts the DC relay.
func (i *Inverter) SetInverterOn() error {
	if err := stage(i, i.modOnCmd, true); err != nil {
		return err
	}
	return i.SoftStart(true)
}

// SetInverterOff stops the modules.
func (i *Inverter) SetInverterOff() error {
	return stage(i, i.modOffCmd, true)
}

// SoftStart closes or opens the internal DC relay.
func (i *Inverter) SoftStart(on bool) error {
	relay := 0
	if on {
		relay = 1
	}
	return stage(i, i.setInternDcRelay, relay)
}

// SetOnGridCommand commands on-grid operation.
func (i *Inverter) SetOnGridCommand() error {
	return stage(i, i.onGridCmd, true)
}

// SetOffGridCommand commands off-grid operation.
func (i *Inverter) SetOffGridCommand() error {
	return stage(i, i.offGridCmd, true)
}

// SetClearFailureCommand acknowledges inverter failures.
func (i *Inverter) SetClearFailureCommand() error {
	return stage(i, i.clearFailureCmd, true)
}

// Island frequency limits in Hz
const (
	MinOffGridFrequency = 40
	MaxOffGridFrequency = 60
)

// SetOffGridFrequency sets the island frequency in Hz.
func (i *Inverter) SetOffGridFrequency(hz int) error {
	if hz < MinOffGridFrequency || hz > MaxOffGridFrequency {
		return fmt.Errorf("off-grid frequency %d Hz out of range %d-%d", hz, MinOffGridFrequency, MaxOffGridFrequency)
	}
	return stage(i, i.offGridFrequency, hz)
}

// Run stages the active and reactive power setpoints. A non-zero setpoint
// requires a ready inverter.
func (i *Inverter) Run(b *battery.Battery, activePower int, reactivePower int) error {
	hasFault, _ := i.fault.Current()
	if hasFault.OrElse(false) {
		return fmt.Errorf("%w: %s reports a fault", fault.ErrCommandRejected, i.ID())
	}
	if (activePower != 0 || reactivePower != 0) && !i.Ready() {
		return fmt.Errorf("%w: %s is not ready", fault.ErrCommandRejected, i.ID())
	}
	if b != nil {
		charge, discharge := b.AllowedPower()
		if limit, ok := discharge.Get(); ok && activePower > limit {
			activePower = limit
		}
		if limit, ok := charge.Get(); ok && activePower < -limit {
			activePower = -limit
		}
	}
	if err := stage(i, i.setActivePower, activePower); err != nil {
		return err
	}
	return stage(i, i.setReactivePower, reactivePower)
}

// StaticConstraints bounds the setpoints by the apparent power rating. An
// unknown rating allows no power.
func (i *Inverter) StaticConstraints() []power.Constraint {
	rating, _ := i.maxApparentPower.Current()
	max, ok := rating.Get()
	if !ok {
		return []power.Constraint{
			power.NewConstraint("unknown apparent power rating", power.Active, power.Equals, 0),
			power.NewConstraint("unknown apparent power rating", power.Reactive, power.Equals, 0),
		}
	}
	return []power.Constraint{
		power.NewConstraint("max apparent power", power.Active, power.LessOrEquals, max),
		power.NewConstraint("max apparent power", power.Active, power.GreaterOrEquals, -max),
		power.NewConstraint("max apparent power", power.Reactive, power.LessOrEquals, max),
		power.NewConstraint("max apparent power", power.Reactive, power.GreaterOrEquals, -max),
	}
}

// PowerPrecision is the setpoint resolution.
func (i *Inverter) PowerPrecision() int {
	return i.precision
}
