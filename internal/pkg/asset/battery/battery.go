package battery

import (
	"github.com/ohowland/cgc_offgrid/internal/pkg/channel"
	"github.com/ohowland/cgc_offgrid/internal/pkg/component"
)

// Battery channel ids
const (
	Soc                 channel.ID = "Soc"
	MinCellVoltage      channel.ID = "MinCellVoltage"
	MaxCellVoltage      channel.ID = "MaxCellVoltage"
	Voltage             channel.ID = "Voltage"
	Capacity            channel.ID = "Capacity"
	ChargeMaxCurrent    channel.ID = "ChargeMaxCurrent"
	DischargeMaxCurrent channel.ID = "DischargeMaxCurrent"
)

// Battery is the archetype battery pack. Its channels are filled by a
// field-bus bridge or a virtual target.
type Battery struct {
	component.Base
	soc                 *channel.Of[int]
	minCellVoltage      *channel.Of[int]
	maxCellVoltage      *channel.Of[int]
	voltage             *channel.Of[int]
	capacity            *channel.Of[int]
	chargeMaxCurrent    *channel.Of[int]
	dischargeMaxCurrent *channel.Of[int]
}

// New returns a Battery with all channels undefined.
func New(id string, alias string, enabled bool) (*Battery, error) {
	base, err := component.New(id, alias, enabled)
	if err != nil {
		return nil, err
	}
	b := &Battery{
		Base:                base,
		soc:                 channel.NewInteger(channel.Doc{ID: Soc, Unit: channel.Percent, Text: "State of charge"}),
		minCellVoltage:      channel.NewInteger(channel.Doc{ID: MinCellVoltage, Unit: channel.Millivolt}),
		maxCellVoltage:      channel.NewInteger(channel.Doc{ID: MaxCellVoltage, Unit: channel.Millivolt}),
		voltage:             channel.NewInteger(channel.Doc{ID: Voltage, Unit: channel.Volt}),
		capacity:            channel.NewInteger(channel.Doc{ID: Capacity, Unit: channel.WattHours}),
		chargeMaxCurrent:    channel.NewInteger(channel.Doc{ID: ChargeMaxCurrent, Unit: channel.Ampere}),
		dischargeMaxCurrent: channel.NewInteger(channel.Doc{ID: DischargeMaxCurrent, Unit: channel.Ampere}),
	}
	err = b.AddChannels(b.soc, b.minCellVoltage, b.maxCellVoltage, b.voltage,
		b.capacity, b.chargeMaxCurrent, b.dischargeMaxCurrent)
	return b, err
}

// Soc returns the state of charge in percent.
func (b *Battery) Soc() (channel.Value[int], error) { return b.soc.Current() }

// MinCellVoltage returns the lowest cell voltage in mV.
func (b *Battery) MinCellVoltage() (channel.Value[int], error) { return b.minCellVoltage.Current() }

// MaxCellVoltage returns the highest cell voltage in mV.
func (b *Battery) MaxCellVoltage() (channel.Value[int], error) { return b.maxCellVoltage.Current() }

// Voltage returns the pack voltage in V.
func (b *Battery) Voltage() (channel.Value[int], error) { return b.voltage.Current() }

// Capacity returns the usable capacity in Wh.
func (b *Battery) Capacity() (channel.Value[int], error) { return b.capacity.Current() }

// ChargeMaxCurrent returns the charge current limit in A.
func (b *Battery) ChargeMaxCurrent() (channel.Value[int], error) { return b.chargeMaxCurrent.Current() }

// DischargeMaxCurrent returns the discharge current limit in A.
func (b *Battery) DischargeMaxCurrent() (channel.Value[int], error) {
	return b.dischargeMaxCurrent.Current()
}

// AllowedPower derives the charge and discharge power limits in W from the
// pack voltage and current limits. Undefined inputs give undefined limits.
func (b *Battery) AllowedPower() (channel.Value[int], channel.Value[int]) {
	voltage, _ := b.voltage.Current()
	charge, _ := b.chargeMaxCurrent.Current()
	discharge, _ := b.dischargeMaxCurrent.Current()
	return product(voltage, charge), product(voltage, discharge)
}

func product(a, b channel.Value[int]) channel.Value[int] {
	x, ok1 := a.Get()
	y, ok2 := b.Get()
	if !ok1 || !ok2 {
		return channel.Undefined[int]()
	}
	return channel.NewValue(x * y)
}
