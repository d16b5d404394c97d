package virtualgrid

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/digitalio"
)

// Outage is a period without grid, measured from the first Read.
type Outage struct {
	Start    time.Duration `yaml:"start"`
	Duration time.Duration `yaml:"duration"`
}

func (o Outage) covers(t time.Duration) bool {
	return t >= o.Start && t < o.Start+o.Duration
}

// Config maps the simulated grid onto digital inputs.
type Config struct {
	MainContactor      int      `yaml:"mainContactor"`
	GroundingContactor int      `yaml:"groundingContactor"`
	GridStatus         int      `yaml:"gridStatus"`
	Outages            []Outage `yaml:"outages"`
}

// VirtualGrid drives the off-grid switch inputs of a digital IO component.
// The switch opens the main contactor and engages the grounding contactor
// whenever the grid is lost.
type VirtualGrid struct {
	config  Config
	io      *digitalio.IO
	step    time.Duration
	elapsed time.Duration
	sm      *stateMachine
	logger  *zap.Logger
}

// Target is the simulated hardware seen by the state machine.
type Target struct {
	elapsed time.Duration
	outages []Outage
}

func (t Target) inOutage() bool {
	for _, o := range t.outages {
		if o.covers(t.elapsed) {
			return true
		}
	}
	return false
}

// Status of the simulated switch inputs.
type Status struct {
	MainContactor      bool
	GroundingContactor bool
	GridStatus         bool
}

// New returns a VirtualGrid advancing step per Read.
func New(cfg Config, io *digitalio.IO, step time.Duration, logger *zap.Logger) (*VirtualGrid, error) {
	if io == nil {
		return nil, fmt.Errorf("virtual grid requires a digital IO component")
	}
	for _, n := range []int{cfg.MainContactor, cfg.GroundingContactor, cfg.GridStatus} {
		if _, err := io.Input(n); err != nil {
			return nil, err
		}
	}
	if step <= 0 {
		return nil, fmt.Errorf("virtual grid step must be positive, got %v", step)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VirtualGrid{
		config: cfg,
		io:     io,
		step:   step,
		sm:     &stateMachine{onState{}},
		logger: logger.Named("VirtualGrid"),
	}, nil
}

// Present reports whether the grid is available at the simulated time.
func (g *VirtualGrid) Present() bool {
	_, on := g.sm.currentState.(onState)
	return on
}

// Read advances the simulation by one step and sets the inputs for the next
// process image.
func (g *VirtualGrid) Read() error {
	target := Target{elapsed: g.elapsed, outages: g.config.Outages}
	status := g.sm.run(target, g.logger)
	g.elapsed += g.step

	inputs := []struct {
		n int
		v bool
	}{
		{g.config.MainContactor, status.MainContactor},
		{g.config.GroundingContactor, status.GroundingContactor},
		{g.config.GridStatus, status.GridStatus},
	}
	for _, in := range inputs {
		ch, err := g.io.Input(in.n)
		if err != nil {
			return err
		}
		ch.SetNext(in.v)
	}
	return nil
}

type stateMachine struct {
	currentState state
}

func (s *stateMachine) run(target Target, logger *zap.Logger) Status {
	next := s.currentState.transition(target)
	if next != s.currentState {
		logger.Info("state", zap.String("from", s.currentState.name()), zap.String("to", next.name()))
	}
	s.currentState = next
	return s.currentState.action(target)
}

type state interface {
	name() string
	action(Target) Status
	transition(Target) state
}

type onState struct{}

func (s onState) name() string { return "ON" }

func (s onState) action(target Target) Status {
	return Status{MainContactor: true, GroundingContactor: false, GridStatus: true}
}

func (s onState) transition(target Target) state {
	if target.inOutage() {
		return offState{}
	}
	return onState{}
}

type offState struct{}

func (s offState) name() string { return "OFF" }

func (s offState) action(target Target) Status {
	return Status{MainContactor: false, GroundingContactor: true, GridStatus: false}
}

func (s offState) transition(target Target) state {
	if !target.inOutage() {
		return onState{}
	}
	return offState{}
}
