package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ohowland/cgc_offgrid/internal/lib/asset/ess/virtualess"
	"github.com/ohowland/cgc_offgrid/internal/lib/asset/grid/virtualgrid"
	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/ess"
	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/offgridswitch"
	"github.com/ohowland/cgc_offgrid/internal/pkg/comm/modbuscomm"
	"github.com/ohowland/cgc_offgrid/internal/pkg/dispatch/manualdispatch"
	"github.com/ohowland/cgc_offgrid/internal/pkg/startstop"
)

// Config is the edge controller configuration.
type Config struct {
	Cycle           Cycle                   `yaml:"cycle"`
	Log             Log                     `yaml:"log"`
	Ess             ess.Config              `yaml:"ess"`
	Battery         Component               `yaml:"battery"`
	BatteryInverter Component               `yaml:"batteryInverter"`
	OffGridSwitch   offgridswitch.Config    `yaml:"offGridSwitch"`
	DigitalIO       DigitalIO               `yaml:"digitalIO"`
	Modbus          []ModbusTarget          `yaml:"modbus"`
	Simulation      Simulation              `yaml:"simulation"`
	Dispatch        manualdispatch.Setpoint `yaml:"dispatch"`
}

// Cycle timing
type Cycle struct {
	Period time.Duration `yaml:"period"`
}

// Log settings
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Component identifies a plain archetype component.
type Component struct {
	ID      string `yaml:"id"`
	Alias   string `yaml:"alias"`
	Enabled bool   `yaml:"enabled"`
}

// DigitalIO is the input bank the off-grid switch mirrors.
type DigitalIO struct {
	Component `yaml:",inline"`
	Inputs    int `yaml:"inputs"`
}

// ModbusTarget bridges one component to a Modbus/TCP device.
type ModbusTarget struct {
	Component string                  `yaml:"component"`
	Poller    modbuscomm.PollerConfig `yaml:"poller"`
	Registers []modbuscomm.Register   `yaml:"registers"`
}

// Simulation replaces the inverter, battery and grid inputs with virtual
// hardware.
type Simulation struct {
	Enabled bool               `yaml:"enabled"`
	Ess     virtualess.Config  `yaml:"ess"`
	Grid    virtualgrid.Config `yaml:"grid"`
}

// Default returns the configuration every file is decoded onto.
func Default() Config {
	return Config{
		Cycle: Cycle{Period: time.Second},
		Log:   Log{Level: "info"},
		Ess: ess.Config{
			ID:                             "ess0",
			Enabled:                        true,
			StartStop:                      startstop.Auto,
			BatteryInverterID:              "batteryInverter0",
			BatteryID:                      "battery0",
			OffGridSwitchID:                "offGridSwitch0",
			AllowedMinSocInOffGrid:         ess.DefaultAllowedMinSocInOffGrid,
			AllowedMinCellVoltageInOffGrid: ess.DefaultAllowedMinCellVoltageInOffGrid,
			OffGridFrequency:               ess.DefaultOffGridFrequency,
		},
		Battery:         Component{ID: "battery0", Enabled: true},
		BatteryInverter: Component{ID: "batteryInverter0", Enabled: true},
		OffGridSwitch:   offgridswitch.Config{ID: "offGridSwitch0", Enabled: true},
		DigitalIO:       DigitalIO{Component: Component{ID: "io0", Enabled: true}, Inputs: 3},
		Simulation: Simulation{
			Ess:  virtualess.DefaultConfig(),
			Grid: virtualgrid.Config{MainContactor: 1, GroundingContactor: 2, GridStatus: 3},
		},
	}
}

// Load reads and validates the YAML file at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(raw)
}

// Parse decodes raw onto the defaults and validates the result.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and cross references.
func (c Config) Validate() error {
	var errs []error
	if c.Cycle.Period <= 0 {
		errs = append(errs, fmt.Errorf("cycle period must be positive, got %v", c.Cycle.Period))
	}
	if err := c.Ess.Validate(); err != nil {
		errs = append(errs, err)
	}

	refs := []struct{ name, want, got string }{
		{"batteryInverterId", c.Ess.BatteryInverterID, c.BatteryInverter.ID},
		{"batteryId", c.Ess.BatteryID, c.Battery.ID},
		{"offGridSwitchId", c.Ess.OffGridSwitchID, c.OffGridSwitch.ID},
	}
	for _, r := range refs {
		if r.want != r.got {
			errs = append(errs, fmt.Errorf("ess %s: %s %q does not match configured component %q", c.Ess.ID, r.name, r.want, r.got))
		}
	}

	ids := make(map[string]bool)
	for _, id := range []string{c.Ess.ID, c.Battery.ID, c.BatteryInverter.ID, c.OffGridSwitch.ID, c.DigitalIO.ID} {
		if id == "" {
			errs = append(errs, errors.New("component id must not be empty"))
			continue
		}
		if ids[id] {
			errs = append(errs, fmt.Errorf("duplicate component id %s", id))
		}
		ids[id] = true
	}

	sw := c.OffGridSwitch
	for _, a := range []struct {
		name string
		addr string
	}{
		{"mainContactor", sw.MainContactor.Component},
		{"groundingContactor", sw.GroundingContactor.Component},
		{"gridStatus", sw.GridStatus.Component},
	} {
		if a.addr == "" {
			errs = append(errs, fmt.Errorf("offGridSwitch %s: %s address missing", sw.ID, a.name))
		}
	}

	for _, m := range c.Modbus {
		if !ids[m.Component] {
			errs = append(errs, fmt.Errorf("modbus target for unknown component %q", m.Component))
		}
		if c.Simulation.Enabled {
			errs = append(errs, fmt.Errorf("modbus target %s: simulation replaces the field bus", m.Component))
		}
	}
	if c.Simulation.Enabled {
		if err := c.Simulation.Ess.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
