package component

import (
	"testing"

	"github.com/ohowland/cgc_offgrid/internal/pkg/channel"
	"github.com/ohowland/cgc_offgrid/internal/pkg/fault"
	"gotest.tools/v3/assert"
)

type testComponent struct {
	Base
	soc *channel.Of[int]
}

func newTestComponent(t *testing.T, id string) *testComponent {
	t.Helper()
	base, err := New(id, "", true)
	assert.NilError(t, err)
	c := &testComponent{
		Base: base,
		soc:  channel.NewInteger(channel.Doc{ID: "Soc", Unit: channel.Percent}),
	}
	assert.NilError(t, c.AddChannels(c.soc))
	return c
}

func TestNew(t *testing.T) {
	c := newTestComponent(t, "battery0")
	assert.Equal(t, c.ID(), "battery0")
	assert.Equal(t, c.Alias(), "battery0")
	assert.Assert(t, c.IsEnabled())

	_, err := New("", "x", true)
	assert.Assert(t, err != nil)
}

func TestAddChannelsDuplicate(t *testing.T) {
	c := newTestComponent(t, "battery0")
	err := c.AddChannels(channel.NewInteger(channel.Doc{ID: "Soc"}))
	assert.ErrorContains(t, err, "duplicate channel Soc")
}

func TestGet(t *testing.T) {
	c := newTestComponent(t, "battery0")

	soc, err := Get[int](c, "Soc")
	assert.NilError(t, err)
	assert.Assert(t, soc == c.soc)

	_, err = Get[bool](c, "Soc")
	assert.ErrorIs(t, err, fault.ErrTypeMismatch)

	_, err = Get[int](c, "Voltage")
	assert.ErrorIs(t, err, fault.ErrUnknownChannel)
}

func TestNextProcessImage(t *testing.T) {
	c := newTestComponent(t, "battery0")
	c.soc.SetNext(55)
	c.NextProcessImage()
	v, err := c.soc.Current()
	assert.NilError(t, err)
	assert.Equal(t, v.OrElse(0), 55)
}

func TestDeactivate(t *testing.T) {
	c := newTestComponent(t, "battery0")
	c.Deactivate()
	assert.Assert(t, !c.IsEnabled())
	assert.Equal(t, len(c.Channels()), 0)
	_, err := c.Channel("Soc")
	assert.ErrorIs(t, err, fault.ErrUnknownChannel)
}

func TestManager(t *testing.T) {
	m := NewManager()
	b := newTestComponent(t, "battery0")
	a := newTestComponent(t, "aaa0")
	assert.NilError(t, m.Add(b))
	assert.NilError(t, m.Add(a))
	assert.ErrorContains(t, m.Add(b), "duplicate component id battery0")

	components := m.Components()
	assert.Equal(t, len(components), 2)
	assert.Equal(t, components[0].ID(), "aaa0")

	soc, err := GetChannel[int](m, channel.Address{Component: "battery0", Channel: "Soc"})
	assert.NilError(t, err)
	assert.Assert(t, soc == b.soc)

	_, err = m.Channel(channel.Address{Component: "ess9", Channel: "Soc"})
	assert.ErrorIs(t, err, fault.ErrUnknownComponent)

	b.soc.SetNext(42)
	m.NextProcessImage()
	assert.Equal(t, b.soc.String(), "42 %")

	m.Remove("battery0")
	_, err = m.Component("battery0")
	assert.ErrorIs(t, err, fault.ErrUnknownComponent)
	assert.Assert(t, !b.IsEnabled())
}
