package battery

import (
	"testing"

	"github.com/ohowland/cgc_offgrid/internal/pkg/component"
	"gotest.tools/v3/assert"
)

func TestNew(t *testing.T) {
	b, err := New("battery0", "Battery", true)
	assert.NilError(t, err)
	assert.Equal(t, len(b.Channels()), 7)

	soc, err := b.Soc()
	assert.NilError(t, err)
	assert.Assert(t, !soc.IsDefined())
}

func TestAllowedPower(t *testing.T) {
	b, err := New("battery0", "", true)
	assert.NilError(t, err)

	charge, discharge := b.AllowedPower()
	assert.Assert(t, !charge.IsDefined())
	assert.Assert(t, !discharge.IsDefined())

	voltage, err := component.Get[int](b, Voltage)
	assert.NilError(t, err)
	chargeCurrent, err := component.Get[int](b, ChargeMaxCurrent)
	assert.NilError(t, err)
	dischargeCurrent, err := component.Get[int](b, DischargeMaxCurrent)
	assert.NilError(t, err)

	voltage.SetNext(700)
	chargeCurrent.SetNext(10)
	dischargeCurrent.SetNext(20)
	b.NextProcessImage()

	charge, discharge = b.AllowedPower()
	assert.Equal(t, charge.OrElse(0), 7000)
	assert.Equal(t, discharge.OrElse(0), 14000)
}
