package ess

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/battery"
	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/batteryinverter"
	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/ess/offgrid"
	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/offgridswitch"
	"github.com/ohowland/cgc_offgrid/internal/pkg/channel"
	"github.com/ohowland/cgc_offgrid/internal/pkg/component"
	"github.com/ohowland/cgc_offgrid/internal/pkg/fault"
	"github.com/ohowland/cgc_offgrid/internal/pkg/msg"
	"github.com/ohowland/cgc_offgrid/internal/pkg/power"
	"github.com/ohowland/cgc_offgrid/internal/pkg/startstop"
)

// ESS channel ids
const (
	Soc                   channel.ID = "Soc"
	ActivePower           channel.ID = "ActivePower"
	ReactivePower         channel.ID = "ReactivePower"
	AllowedChargePower    channel.ID = "AllowedChargePower"
	AllowedDischargePower channel.ID = "AllowedDischargePower"
	StartStop             channel.ID = "StartStop"
	OffGridStateMachine   channel.ID = "OffGridStateMachine"
	RunFailed             channel.ID = "RunFailed"
	FaultLevel            channel.ID = "FaultLevel"
)

// Default off-grid safety limits
const (
	DefaultAllowedMinSocInOffGrid         = 10
	DefaultAllowedMinCellVoltageInOffGrid = 3000
	DefaultOffGridFrequency               = 50
)

// Config holds the ESS configuration parameters
type Config struct {
	ID                             string           `yaml:"id"`
	Alias                          string           `yaml:"alias"`
	Enabled                        bool             `yaml:"enabled"`
	StartStop                      startstop.Config `yaml:"startStop"`
	BatteryInverterID              string           `yaml:"batteryInverterId"`
	BatteryID                      string           `yaml:"batteryId"`
	OffGridSwitchID                string           `yaml:"offGridSwitchId"`
	AllowedMinSocInOffGrid         int              `yaml:"allowedMinSocInOffGrid"`
	AllowedMinCellVoltageInOffGrid int              `yaml:"allowedMinCellVoltageInOffGrid"`
	OffGridFrequency               int              `yaml:"offGridFrequency"`
}

// Validate checks the safety limits.
func (c Config) Validate() error {
	if c.AllowedMinSocInOffGrid < 0 || c.AllowedMinSocInOffGrid > 100 {
		return fmt.Errorf("ess %s: allowedMinSocInOffGrid %d out of range 0-100", c.ID, c.AllowedMinSocInOffGrid)
	}
	if c.AllowedMinCellVoltageInOffGrid <= 0 {
		return fmt.Errorf("ess %s: allowedMinCellVoltageInOffGrid must be positive", c.ID)
	}
	if f := c.OffGridFrequency; f != 0 && (f < batteryinverter.MinOffGridFrequency || f > batteryinverter.MaxOffGridFrequency) {
		return fmt.Errorf("ess %s: offGridFrequency %d out of range %d-%d", c.ID, f,
			batteryinverter.MinOffGridFrequency, batteryinverter.MaxOffGridFrequency)
	}
	return c.StartStop.Validate()
}

// Transition is published on msg.Transition when the off-grid state changes.
type Transition struct {
	From offgrid.State
	To   offgrid.State
}

// Ess is a generic off-grid capable energy storage system built from a
// battery, a battery inverter and an off-grid switch.
type Ess struct {
	component.Base
	logger          *zap.Logger
	config          Config
	battery         *battery.Battery
	inverter        *batteryinverter.Inverter
	offGridSwitch   *offgridswitch.Switch
	machine         *offgrid.Machine
	events          *msg.PubSub
	startStopTarget atomic.Int32

	soc                   *channel.Of[int]
	activePower           *channel.Of[int]
	reactivePower         *channel.Of[int]
	allowedChargePower    *channel.Of[int]
	allowedDischargePower *channel.Of[int]
	startStop             *channel.Of[startstop.StartStop]
	offGridStateMachine   *channel.Of[offgrid.State]
	runFailed             *channel.Of[bool]
	faultLevel            *channel.Of[fault.Level]
}

// New returns an Ess controlling the given hardware.
func New(cfg Config, b *battery.Battery, inv *batteryinverter.Inverter, sw *offgridswitch.Switch, logger *zap.Logger) (*Ess, error) {
	if b == nil || inv == nil || sw == nil {
		return nil, errors.New("ess requires a battery, a battery inverter and an off-grid switch")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := component.New(cfg.ID, cfg.Alias, cfg.Enabled)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named(cfg.ID)

	e := &Ess{
		Base:                  base,
		logger:                logger,
		config:                cfg,
		battery:               b,
		inverter:              inv,
		offGridSwitch:         sw,
		machine:               offgrid.NewMachine(logger),
		soc:                   channel.NewInteger(channel.Doc{ID: Soc, Unit: channel.Percent}),
		activePower:           channel.NewInteger(channel.Doc{ID: ActivePower, Unit: channel.Watt}),
		reactivePower:         channel.NewInteger(channel.Doc{ID: ReactivePower, Unit: channel.VoltAmpereReactive}),
		allowedChargePower:    channel.NewInteger(channel.Doc{ID: AllowedChargePower, Unit: channel.Watt}),
		allowedDischargePower: channel.NewInteger(channel.Doc{ID: AllowedDischargePower, Unit: channel.Watt}),
		startStop:             channel.NewEnum(channel.Doc{ID: StartStop}, startstop.Options()...),
		offGridStateMachine:   channel.NewEnum(channel.Doc{ID: OffGridStateMachine, Text: "Current State of Off-Grid State-Machine"}, offgrid.States()...),
		runFailed:             channel.NewBoolean(channel.Doc{ID: RunFailed, Text: "Running the Logic failed"}),
		faultLevel:            channel.NewEnum(channel.Doc{ID: FaultLevel}, fault.Levels()...),
	}
	e.events = msg.NewPublisher(e.PID())
	e.startStopTarget.Store(int32(startstop.Undefined))
	err = e.AddChannels(e.soc, e.activePower, e.reactivePower, e.allowedChargePower,
		e.allowedDischargePower, e.startStop, e.offGridStateMachine, e.runFailed, e.faultLevel)
	return e, err
}

// HandleStateMachine mirrors the hardware channels and ticks the off-grid
// state machine. It runs once per cycle after the process image.
func (e *Ess) HandleStateMachine() {
	if !e.IsEnabled() {
		return
	}

	soc, _ := e.battery.Soc()
	e.soc.SetNextValue(soc)
	charge, discharge := e.battery.AllowedPower()
	if c, ok := charge.Get(); ok {
		e.allowedChargePower.SetNext(-c)
	} else {
		e.allowedChargePower.SetNextUndefined()
	}
	e.allowedDischargePower.SetNextValue(discharge)
	activePower, _ := e.inverter.ActivePower()
	e.activePower.SetNextValue(activePower)
	reactivePower, _ := e.inverter.ReactivePower()
	e.reactivePower.SetNextValue(reactivePower)

	ctx := offgrid.Context{
		Ess:                   e,
		Battery:               e.battery,
		Inverter:              e.inverter,
		Switch:                e.offGridSwitch,
		AllowedMinSoc:         e.config.AllowedMinSocInOffGrid,
		AllowedMinCellVoltage: e.config.AllowedMinCellVoltageInOffGrid,
		OffGridFrequency:      e.config.OffGridFrequency,
	}
	from := e.machine.Current()
	if err := e.machine.Tick(ctx); errors.Is(err, fault.ErrSafetyThresholdViolated) {
		e.logger.Warn("off-grid operation aborted", zap.Error(err))
	}
	if to := e.machine.Current(); to != from {
		e.events.Publish(msg.Transition, Transition{From: from, To: to})
	}

	e.offGridStateMachine.SetNext(e.machine.Current())
	e.runFailed.SetNext(e.machine.RunFailed())
	e.faultLevel.SetNext(e.machine.Level())
	if e.IsStarted() {
		e.startStop.SetNext(startstop.Start)
	} else {
		e.startStop.SetNext(startstop.Stop)
	}
	e.logger.Debug(e.DebugLog())
}

// ApplyPower forwards the power setpoints to the battery inverter.
func (e *Ess) ApplyPower(activePower int, reactivePower int) error {
	return e.inverter.Run(e.battery, activePower, reactivePower)
}

// PowerPrecision is the setpoint resolution of the battery inverter.
func (e *Ess) PowerPrecision() int {
	return e.inverter.PowerPrecision()
}

// StaticConstraints returns the battery inverter constraints. Until the ESS
// is started, active and reactive power are held at zero.
func (e *Ess) StaticConstraints() ([]power.Constraint, error) {
	constraints := e.inverter.StaticConstraints()
	if !e.IsStarted() {
		constraints = append(constraints,
			power.NewConstraint("ActivePower Constraint ESS not Started", power.Active, power.Equals, 0),
			power.NewConstraint("ReactivePower Constraint ESS not Started", power.Reactive, power.Equals, 0))
	}
	return constraints, nil
}

// SetStartStop sets the runtime start/stop target. A changed target restarts
// the off-grid sequencing from Undefined.
func (e *Ess) SetStartStop(value startstop.StartStop) {
	if startstop.StartStop(e.startStopTarget.Swap(int32(value))) != value {
		e.logger.Info("start/stop target", zap.Stringer("target", value))
		e.machine.Force(offgrid.Undefined)
	}
}

// StartStopTarget returns the effective start/stop target.
func (e *Ess) StartStopTarget() startstop.StartStop {
	return e.config.StartStop.Target(startstop.StartStop(e.startStopTarget.Load()))
}

// IsStarted reports whether the ESS is in a steady state and not stopped.
func (e *Ess) IsStarted() bool {
	switch e.machine.Current() {
	case offgrid.OnGrid, offgrid.OffGrid:
		return e.StartStopTarget() != startstop.Stop
	}
	return false
}

// ForceState overrides the next off-grid transition.
func (e *Ess) ForceState(s offgrid.State) {
	e.machine.Force(s)
}

// State returns the current off-grid state.
func (e *Ess) State() offgrid.State {
	return e.machine.Current()
}

// RunFailed reports whether the last state machine tick failed.
func (e *Ess) RunFailed() bool {
	return e.machine.RunFailed()
}

// LastError describes the most recent state machine failure.
func (e *Ess) LastError() error {
	return e.machine.LastError()
}

// DebugLog is the one-line status, e.g.
// "SoC:80 %|L:1200 W|Allowed:-5000;5000 W|ON_GRID".
func (e *Ess) DebugLog() string {
	charge, _ := e.allowedChargePower.Current()
	return "SoC:" + e.soc.String() +
		"|L:" + e.activePower.String() +
		"|Allowed:" + charge.String() + ";" + e.allowedDischargePower.String() +
		"|" + e.machine.Current().Name()
}

// Subscribe registers pid for the ESS messages on topic.
func (e *Ess) Subscribe(pid uuid.UUID, topic msg.Topic) <-chan msg.Msg {
	return e.events.Subscribe(pid, topic)
}

// Unsubscribe removes pid from the ESS subscribers.
func (e *Ess) Unsubscribe(pid uuid.UUID) {
	e.events.Unsubscribe(pid)
}

// Deactivate releases the channels, closes every subscription and stops the
// state machine handling.
func (e *Ess) Deactivate() {
	e.Base.Deactivate()
	e.events.UnsubscribeAll()
	e.logger.Info("deactivated")
}
