package startstop

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestTarget(t *testing.T) {
	assert.Equal(t, Auto.Target(Start), Start)
	assert.Equal(t, Auto.Target(Undefined), Undefined)
	assert.Equal(t, Config("").Target(Stop), Stop)
	assert.Equal(t, ForceOn.Target(Stop), Start)
	assert.Equal(t, ForceOff.Target(Start), Stop)
}

func TestUnmarshalText(t *testing.T) {
	var c Config
	assert.NilError(t, c.UnmarshalText([]byte(" start ")))
	assert.Equal(t, c, ForceOn)

	err := c.UnmarshalText([]byte("RUN"))
	assert.ErrorContains(t, err, "invalid startStop")
	assert.Equal(t, c, ForceOn)
}

func TestNames(t *testing.T) {
	assert.Equal(t, Start.Name(), "START")
	assert.Equal(t, Stop.Code(), 2)
	assert.Equal(t, Undefined.String(), "UNDEFINED")
}
