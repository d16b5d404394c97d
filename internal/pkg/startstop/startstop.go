package startstop

import (
	"fmt"
	"strings"
)

// StartStop is the run intent of a component.
type StartStop int

// StartStop options
const (
	Undefined StartStop = -1
	Start     StartStop = 1
	Stop      StartStop = 2
)

// Code returns the numeric option code.
func (s StartStop) Code() int {
	return int(s)
}

// Name returns the option name.
func (s StartStop) Name() string {
	switch s {
	case Start:
		return "START"
	case Stop:
		return "STOP"
	}
	return "UNDEFINED"
}

func (s StartStop) String() string {
	return s.Name()
}

// Options returns every StartStop option.
func Options() []StartStop {
	return []StartStop{Undefined, Start, Stop}
}

// Config is the configured start/stop behaviour. AUTO follows the target set
// at runtime; START and STOP override it.
type Config string

// Config options
const (
	Auto      Config = "AUTO"
	ForceOn   Config = "START"
	ForceOff  Config = "STOP"
	configNil Config = ""
)

// Validate returns an error for an unknown configuration value.
func (c Config) Validate() error {
	switch c {
	case Auto, ForceOn, ForceOff, configNil:
		return nil
	}
	return fmt.Errorf("invalid startStop %q, expected AUTO, START or STOP", string(c))
}

// UnmarshalText accepts the option names case-insensitively.
func (c *Config) UnmarshalText(text []byte) error {
	parsed := Config(strings.ToUpper(strings.TrimSpace(string(text))))
	if err := parsed.Validate(); err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Target resolves the effective start/stop target given the runtime one.
func (c Config) Target(runtime StartStop) StartStop {
	switch c {
	case ForceOn:
		return Start
	case ForceOff:
		return Stop
	}
	return runtime
}
