package main

import (
	"errors"

	"go.uber.org/zap"

	"github.com/ohowland/cgc_offgrid/internal/lib/asset/ess/virtualess"
	"github.com/ohowland/cgc_offgrid/internal/lib/asset/grid/virtualgrid"
	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/battery"
	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/batteryinverter"
	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/digitalio"
	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/ess"
	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/offgridswitch"
	"github.com/ohowland/cgc_offgrid/internal/pkg/comm/modbuscomm"
	"github.com/ohowland/cgc_offgrid/internal/pkg/component"
	"github.com/ohowland/cgc_offgrid/internal/pkg/config"
	"github.com/ohowland/cgc_offgrid/internal/pkg/cycle"
	"github.com/ohowland/cgc_offgrid/internal/pkg/dispatch/manualdispatch"
)

// system is the assembled edge controller.
type system struct {
	manager       *component.Manager
	battery       *battery.Battery
	inverter      *batteryinverter.Inverter
	io            *digitalio.IO
	offGridSwitch *offgridswitch.Switch
	ess           *ess.Ess
	dispatch      *manualdispatch.ManualDispatch
	inputs        []func() error
	outputs       []func() error
	worker        *cycle.Worker
	logger        *zap.Logger
}

func buildSystem(cfg config.Config, logger *zap.Logger) (*system, error) {
	sys := &system{manager: component.NewManager(), logger: logger}
	if err := sys.buildComponents(cfg); err != nil {
		return nil, err
	}
	sys.dispatch = manualdispatch.New(cfg.Dispatch, logger)
	sys.dispatch.AddMember(sys.ess)

	if err := sys.buildTargets(cfg); err != nil {
		return nil, err
	}
	worker, err := sys.buildWorker(cfg)
	if err != nil {
		return nil, err
	}
	sys.worker = worker
	return sys, nil
}

func (s *system) buildComponents(cfg config.Config) error {
	var err error
	s.battery, err = battery.New(cfg.Battery.ID, cfg.Battery.Alias, cfg.Battery.Enabled)
	if err != nil {
		return err
	}
	s.inverter, err = batteryinverter.New(cfg.BatteryInverter.ID, cfg.BatteryInverter.Alias, cfg.BatteryInverter.Enabled)
	if err != nil {
		return err
	}
	s.io, err = digitalio.New(cfg.DigitalIO.ID, cfg.DigitalIO.Alias, cfg.DigitalIO.Enabled, cfg.DigitalIO.Inputs)
	if err != nil {
		return err
	}
	s.offGridSwitch, err = offgridswitch.New(cfg.OffGridSwitch, s.logger)
	if err != nil {
		return err
	}
	s.ess, err = ess.New(cfg.Ess, s.battery, s.inverter, s.offGridSwitch, s.logger)
	if err != nil {
		return err
	}
	for _, c := range []component.Component{s.battery, s.inverter, s.io, s.offGridSwitch, s.ess} {
		if err := s.manager.Add(c); err != nil {
			return err
		}
	}
	return nil
}

// buildTargets attaches the hardware: virtual devices when simulating,
// otherwise one Modbus bridge per configured target.
func (s *system) buildTargets(cfg config.Config) error {
	if cfg.Simulation.Enabled {
		grid, err := virtualgrid.New(cfg.Simulation.Grid, s.io, cfg.Cycle.Period, s.logger)
		if err != nil {
			return err
		}
		vess, err := virtualess.New(cfg.Simulation.Ess, s.inverter, s.battery, grid, cfg.Cycle.Period, s.logger)
		if err != nil {
			return err
		}
		s.inputs = append(s.inputs, grid.Read, vess.Read)
		s.outputs = append(s.outputs, vess.Write)
		return nil
	}

	for _, target := range cfg.Modbus {
		c, err := s.manager.Component(target.Component)
		if err != nil {
			return err
		}
		poller := modbuscomm.NewPoller(target.Poller, s.logger)
		bridge, err := modbuscomm.NewBridge(poller, c, target.Registers, s.logger)
		if err != nil {
			return err
		}
		s.inputs = append(s.inputs, bridge.Read)
		s.outputs = append(s.outputs, bridge.Write)
	}
	return nil
}

func (s *system) buildWorker(cfg config.Config) (*cycle.Worker, error) {
	return cycle.New(cfg.Cycle.Period, s.logger,
		cycle.Phase{Name: cycle.BeforeProcessImage, Run: func() error {
			err := runAll(s.inputs)
			s.offGridSwitch.HandleInputOutput(s.manager)
			return err
		}},
		cycle.Phase{Name: cycle.ProcessImage, Run: func() error {
			s.manager.NextProcessImage()
			return nil
		}},
		cycle.Phase{Name: cycle.AfterProcessImage, Run: func() error {
			s.ess.HandleStateMachine()
			return nil
		}},
		cycle.Phase{Name: cycle.BeforeWrite, Run: s.dispatch.Dispatch},
		cycle.Phase{Name: cycle.ExecuteWrite, Run: func() error {
			return runAll(s.outputs)
		}},
	)
}

func (s *system) shutdown() {
	s.dispatch.DropMember(s.ess.PID())
	for _, c := range s.manager.Components() {
		s.manager.Remove(c.ID())
	}
}

// runAll calls every function, continuing past failures.
func runAll(fns []func() error) error {
	var errs []error
	for _, fn := range fns {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
