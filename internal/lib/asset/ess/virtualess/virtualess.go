package virtualess

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/battery"
	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/batteryinverter"
	"github.com/ohowland/cgc_offgrid/internal/pkg/channel"
	"github.com/ohowland/cgc_offgrid/internal/pkg/component"
)

// Cell voltage range of the simulated pack, in mV.
const (
	cellEmpty  = 2950
	cellFull   = 3450
	cellSpread = 10
)

// Config of the simulated inverter and battery.
type Config struct {
	Capacity         int `yaml:"capacity"`         // Wh
	InitialSoc       int `yaml:"initialSoc"`       // %
	Voltage          int `yaml:"voltage"`          // V
	MaxCurrent       int `yaml:"maxCurrent"`       // A
	MaxApparentPower int `yaml:"maxApparentPower"` // VA
	Load             int `yaml:"load"`             // W served while grid forming
}

// DefaultConfig is a 10 kWh pack behind a 10 kVA inverter.
func DefaultConfig() Config {
	return Config{
		Capacity:         10000,
		InitialSoc:       80,
		Voltage:          500,
		MaxCurrent:       20,
		MaxApparentPower: 10000,
		Load:             2000,
	}
}

// Validate checks the simulation parameters.
func (c Config) Validate() error {
	if c.Capacity <= 0 || c.Voltage <= 0 || c.MaxCurrent < 0 || c.MaxApparentPower < 0 {
		return errors.New("virtual ess: capacity and voltage must be positive, limits non-negative")
	}
	if c.InitialSoc < 0 || c.InitialSoc > 100 {
		return fmt.Errorf("virtual ess: initial soc %d out of range 0-100", c.InitialSoc)
	}
	return nil
}

// Grid reports whether the simulated grid is available.
type Grid interface {
	Present() bool
}

// VirtualESS simulates the inverter and battery hardware behind the
// archetype components. Write consumes the staged commands, Read advances the
// model one step and fills the next values.
type VirtualESS struct {
	config   Config
	grid     Grid
	step     time.Duration
	target   *Target
	sm       *stateMachine
	inverter inverterChannels
	battery  batteryChannels
	logger   *zap.Logger
}

// Target is a virtual representation of the hardware
type Target struct {
	config  Config
	status  Status
	control Control
	energy  float64 // Wh
	grid    bool
}

// Status data structure for the VirtualESS
type Status struct {
	ActivePower   int
	ReactivePower int
	Soc           int
	Running       bool
	Mode          batteryinverter.GridMode
	Fault         bool
}

// Control data structure for the VirtualESS
type Control struct {
	Relay            bool
	Mode             batteryinverter.GridMode
	ActivePower      int
	ReactivePower    int
	OffGridFrequency int
	Fault            bool
}

type inverterChannels struct {
	gridType            *channel.Of[batteryinverter.GridType]
	offGridFrequency    *channel.Of[int]
	onGridCmd           *channel.Of[bool]
	offGridCmd          *channel.Of[bool]
	modOnCmd            *channel.Of[bool]
	modOffCmd           *channel.Of[bool]
	setInternDcRelay    *channel.Of[int]
	clearFailureCmd     *channel.Of[bool]
	inverterState       *channel.Of[bool]
	gridMode            *channel.Of[batteryinverter.GridMode]
	fault               *channel.Of[bool]
	communicationFailed *channel.Of[bool]
	activePower         *channel.Of[int]
	reactivePower       *channel.Of[int]
	setActivePower      *channel.Of[int]
	setReactivePower    *channel.Of[int]
	maxApparentPower    *channel.Of[int]
}

type batteryChannels struct {
	soc                 *channel.Of[int]
	minCellVoltage      *channel.Of[int]
	maxCellVoltage      *channel.Of[int]
	voltage             *channel.Of[int]
	capacity            *channel.Of[int]
	chargeMaxCurrent    *channel.Of[int]
	dischargeMaxCurrent *channel.Of[int]
}

func bind[T any](c component.Component, id channel.ID, errs *[]error) *channel.Of[T] {
	ch, err := component.Get[T](c, id)
	if err != nil {
		*errs = append(*errs, err)
	}
	return ch
}

// New returns a VirtualESS that starts grid-tied and running.
func New(cfg Config, inv *batteryinverter.Inverter, bat *battery.Battery, grid Grid, step time.Duration, logger *zap.Logger) (*VirtualESS, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if inv == nil || bat == nil || grid == nil {
		return nil, errors.New("virtual ess requires an inverter, a battery and a grid")
	}
	if step <= 0 {
		return nil, fmt.Errorf("virtual ess step must be positive, got %v", step)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var errs []error
	v := &VirtualESS{
		config: cfg,
		grid:   grid,
		step:   step,
		target: &Target{
			config:  cfg,
			energy:  float64(cfg.Capacity) * float64(cfg.InitialSoc) / 100,
			control: Control{Relay: true, Mode: batteryinverter.OnGrid, OffGridFrequency: 50},
		},
		sm: &stateMachine{offState{}},
		inverter: inverterChannels{
			gridType:            bind[batteryinverter.GridType](inv, batteryinverter.GridTypeID, &errs),
			offGridFrequency:    bind[int](inv, batteryinverter.OffGridFrequency, &errs),
			onGridCmd:           bind[bool](inv, batteryinverter.OnGridCmd, &errs),
			offGridCmd:          bind[bool](inv, batteryinverter.OffGridCmd, &errs),
			modOnCmd:            bind[bool](inv, batteryinverter.ModOnCmd, &errs),
			modOffCmd:           bind[bool](inv, batteryinverter.ModOffCmd, &errs),
			setInternDcRelay:    bind[int](inv, batteryinverter.SetInternDcRelay, &errs),
			clearFailureCmd:     bind[bool](inv, batteryinverter.ClearFailureCmd, &errs),
			inverterState:       bind[bool](inv, batteryinverter.InverterState, &errs),
			gridMode:            bind[batteryinverter.GridMode](inv, batteryinverter.GridModeID, &errs),
			fault:               bind[bool](inv, batteryinverter.Fault, &errs),
			communicationFailed: bind[bool](inv, batteryinverter.CommunicationFailed, &errs),
			activePower:         bind[int](inv, batteryinverter.ActivePower, &errs),
			reactivePower:       bind[int](inv, batteryinverter.ReactivePower, &errs),
			setActivePower:      bind[int](inv, batteryinverter.SetActivePower, &errs),
			setReactivePower:    bind[int](inv, batteryinverter.SetReactivePower, &errs),
			maxApparentPower:    bind[int](inv, batteryinverter.MaxApparentPower, &errs),
		},
		battery: batteryChannels{
			soc:                 bind[int](bat, battery.Soc, &errs),
			minCellVoltage:      bind[int](bat, battery.MinCellVoltage, &errs),
			maxCellVoltage:      bind[int](bat, battery.MaxCellVoltage, &errs),
			voltage:             bind[int](bat, battery.Voltage, &errs),
			capacity:            bind[int](bat, battery.Capacity, &errs),
			chargeMaxCurrent:    bind[int](bat, battery.ChargeMaxCurrent, &errs),
			dischargeMaxCurrent: bind[int](bat, battery.DischargeMaxCurrent, &errs),
		},
		logger: logger.Named("VirtualESS-Device").Named(inv.ID()),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return v, nil
}

// InjectFault raises an inverter fault, which also stops the inverter.
func (v *VirtualESS) InjectFault() {
	v.target.control.Fault = true
}

// Status returns the simulated state after the last Read.
func (v *VirtualESS) Status() Status {
	return v.target.status
}

// Write applies the commands staged since the last Write.
func (v *VirtualESS) Write() error {
	c := &v.target.control
	inv := v.inverter
	if on, ok := inv.modOnCmd.TakeWrite().Get(); ok && on {
		c.Relay = true
	}
	if off, ok := inv.modOffCmd.TakeWrite().Get(); ok && off {
		c.Relay = false
	}
	if relay, ok := inv.setInternDcRelay.TakeWrite().Get(); ok {
		c.Relay = relay == 1
	}
	if cmd, ok := inv.onGridCmd.TakeWrite().Get(); ok && cmd {
		c.Mode = batteryinverter.OnGrid
	}
	if cmd, ok := inv.offGridCmd.TakeWrite().Get(); ok && cmd {
		c.Mode = batteryinverter.OffGrid
	}
	if cmd, ok := inv.clearFailureCmd.TakeWrite().Get(); ok && cmd {
		c.Fault = false
	}
	if hz, ok := inv.offGridFrequency.TakeWrite().Get(); ok {
		c.OffGridFrequency = hz
	}
	if p, ok := inv.setActivePower.TakeWrite().Get(); ok {
		c.ActivePower = p
	}
	if q, ok := inv.setReactivePower.TakeWrite().Get(); ok {
		c.ReactivePower = q
	}
	return nil
}

// Read advances the model by one step and sets the next values of the
// inverter and battery channels.
func (v *VirtualESS) Read() error {
	t := v.target
	t.grid = v.grid.Present()
	t.status = v.sm.run(t, v.logger)

	t.energy -= float64(t.status.ActivePower) * v.step.Hours()
	t.energy = math.Max(0, math.Min(t.energy, float64(t.config.Capacity)))
	t.status.Soc = t.soc()

	inv := v.inverter
	inv.gridType.SetNext(batteryinverter.ThreePhaseFourWire)
	inv.offGridFrequency.SetNext(t.control.OffGridFrequency)
	inv.inverterState.SetNext(t.status.Running)
	inv.gridMode.SetNext(t.status.Mode)
	inv.fault.SetNext(t.status.Fault)
	inv.communicationFailed.SetNext(false)
	inv.activePower.SetNext(t.status.ActivePower)
	inv.reactivePower.SetNext(t.status.ReactivePower)
	inv.maxApparentPower.SetNext(t.config.MaxApparentPower)

	bat := v.battery
	cell := cellEmpty + (cellFull-cellEmpty)*t.status.Soc/100
	bat.soc.SetNext(t.status.Soc)
	bat.minCellVoltage.SetNext(cell - cellSpread)
	bat.maxCellVoltage.SetNext(cell + cellSpread)
	bat.voltage.SetNext(t.config.Voltage)
	bat.capacity.SetNext(t.config.Capacity)
	bat.chargeMaxCurrent.SetNext(t.chargeCurrent())
	bat.dischargeMaxCurrent.SetNext(t.dischargeCurrent())
	return nil
}

func (t *Target) soc() int {
	return int(math.Round(100 * t.energy / float64(t.config.Capacity)))
}

func (t *Target) chargeCurrent() int {
	if t.energy >= float64(t.config.Capacity) {
		return 0
	}
	return t.config.MaxCurrent
}

func (t *Target) dischargeCurrent() int {
	if t.energy <= 0 {
		return 0
	}
	return t.config.MaxCurrent
}

// limit bounds an active power by the inverter rating and the battery.
func (t *Target) limit(p int) int {
	max := t.config.MaxApparentPower
	discharge := t.dischargeCurrent() * t.config.Voltage
	charge := t.chargeCurrent() * t.config.Voltage
	if max < discharge {
		discharge = max
	}
	if max < charge {
		charge = max
	}
	if p > discharge {
		return discharge
	}
	if p < -charge {
		return -charge
	}
	return p
}

type stateMachine struct {
	currentState state
}

func (s *stateMachine) run(target *Target, logger *zap.Logger) Status {
	next := s.currentState.transition(target)
	if next != s.currentState {
		logger.Info("state", zap.String("from", s.currentState.name()), zap.String("to", next.name()))
	}
	s.currentState = next
	return s.currentState.action(target)
}

type state interface {
	name() string
	action(*Target) Status
	transition(*Target) state
}

type offState struct{}

func (s offState) name() string { return "OFF" }

func (s offState) action(target *Target) Status {
	return Status{Mode: target.control.Mode, Fault: target.control.Fault}
}

func (s offState) transition(target *Target) state {
	c := target.control
	if !c.Relay || c.Fault {
		return offState{}
	}
	if c.Mode == batteryinverter.OffGrid && !target.grid {
		return hzVState{}
	}
	if c.Mode == batteryinverter.OnGrid && target.grid {
		return pQState{}
	}
	return offState{}
}

// pQState follows the power setpoints while grid-tied.
type pQState struct{}

func (s pQState) name() string { return "PQ" }

func (s pQState) action(target *Target) Status {
	return Status{
		ActivePower:   target.limit(target.control.ActivePower),
		ReactivePower: target.control.ReactivePower,
		Running:       true,
		Mode:          batteryinverter.OnGrid,
	}
}

func (s pQState) transition(target *Target) state {
	c := target.control
	if !c.Relay || c.Fault {
		return offState{}
	}
	if !target.grid {
		// anti-islanding trip
		target.control.Relay = false
		return offState{}
	}
	if c.Mode == batteryinverter.OffGrid {
		return offState{}
	}
	return pQState{}
}

// hzVState forms the island and serves the local load.
type hzVState struct{}

func (s hzVState) name() string { return "HZV" }

func (s hzVState) action(target *Target) Status {
	return Status{
		ActivePower: target.limit(target.config.Load),
		Running:     true,
		Mode:        batteryinverter.OffGrid,
	}
}

func (s hzVState) transition(target *Target) state {
	c := target.control
	if !c.Relay || c.Fault {
		return offState{}
	}
	if c.Mode == batteryinverter.OnGrid {
		if target.grid {
			return pQState{}
		}
		return offState{}
	}
	return hzVState{}
}
