package offgrid

import (
	"fmt"

	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/batteryinverter"
	"github.com/ohowland/cgc_offgrid/internal/pkg/channel"
	"github.com/ohowland/cgc_offgrid/internal/pkg/fault"
)

// Ess is the controlled storage system.
type Ess interface {
	ID() string
}

// Battery is the battery view the controller reads.
type Battery interface {
	Soc() (channel.Value[int], error)
	MinCellVoltage() (channel.Value[int], error)
}

// Inverter is the battery inverter view the controller reads and commands.
type Inverter interface {
	GridMode() (channel.Value[batteryinverter.GridMode], error)
	IsRunning() (channel.Value[bool], error)
	HasFault() (channel.Value[bool], error)
	OffGridFrequency() (channel.Value[int], error)
	SoftStart(on bool) error
	SetInverterOn() error
	SetInverterOff() error
	SetOnGridCommand() error
	SetOffGridCommand() error
	SetClearFailureCommand() error
	SetOffGridFrequency(hz int) error
}

// Switch is the grid disconnect view the controller reads.
type Switch interface {
	MainContactor() (channel.Value[bool], error)
	GroundingContactor() (channel.Value[bool], error)
	GridStatus() (channel.Value[bool], error)
}

// Context is built fresh for every tick and passed by value.
type Context struct {
	Ess      Ess
	Battery  Battery
	Inverter Inverter
	Switch   Switch
	// AllowedMinSoc is the lowest state of charge in % for off-grid operation.
	AllowedMinSoc int
	// AllowedMinCellVoltage is the lowest cell voltage in mV for off-grid
	// operation.
	AllowedMinCellVoltage int
	// OffGridFrequency is the island frequency in Hz staged before the
	// off-grid command. Zero leaves the inverter setting alone.
	OffGridFrequency int
}

// required unwraps a channel reading, reporting an undefined value as
// ErrUndefinedInput.
func required[T any](name string, v channel.Value[T], err error) (T, error) {
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", name, err)
	}
	value, ok := v.Get()
	if !ok {
		return value, fmt.Errorf("%w: %s", fault.ErrUndefinedInput, name)
	}
	return value, nil
}

func (c Context) gridPresent() (bool, error) {
	v, err := c.Switch.GridStatus()
	return required("GridStatus", v, err)
}

func (c Context) gridMode() (batteryinverter.GridMode, error) {
	v, err := c.Inverter.GridMode()
	return required("GridMode", v, err)
}

// running reports whether the inverter is running. Undefined reads as
// stopped.
func (c Context) running() bool {
	v, _ := c.Inverter.IsRunning()
	return v.OrElse(false)
}

// checkSafety returns ErrSafetyThresholdViolated if the battery is below the
// off-grid limits.
func (c Context) checkSafety() error {
	v, err := c.Battery.Soc()
	soc, err := required("Soc", v, err)
	if err != nil {
		return err
	}
	v, err = c.Battery.MinCellVoltage()
	cell, err := required("MinCellVoltage", v, err)
	if err != nil {
		return err
	}
	if soc < c.AllowedMinSoc {
		return fmt.Errorf("%w: %s soc %d%% below %d%%",
			fault.ErrSafetyThresholdViolated, c.essID(), soc, c.AllowedMinSoc)
	}
	if cell < c.AllowedMinCellVoltage {
		return fmt.Errorf("%w: %s min cell voltage %d mV below %d mV",
			fault.ErrSafetyThresholdViolated, c.essID(), cell, c.AllowedMinCellVoltage)
	}
	return nil
}

func (c Context) essID() string {
	if c.Ess == nil {
		return "ess"
	}
	return c.Ess.ID()
}
