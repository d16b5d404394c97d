package component

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_offgrid/internal/pkg/channel"
	"github.com/ohowland/cgc_offgrid/internal/pkg/fault"
)

// Component is an addressable bundle of channels.
type Component interface {
	PID() uuid.UUID
	ID() string
	Alias() string
	IsEnabled() bool
	Channel(channel.ID) (channel.Channel, error)
	Channels() []channel.Channel
	NextProcessImage()
	Deactivate()
}

// Base implements Component and is embedded by concrete components.
type Base struct {
	pid      uuid.UUID
	id       string
	alias    string
	enabled  bool
	channels map[channel.ID]channel.Channel
}

// New returns a Base with no channels.
func New(id string, alias string, enabled bool) (Base, error) {
	if id == "" {
		return Base{}, fmt.Errorf("component id must not be empty")
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return Base{}, err
	}
	if alias == "" {
		alias = id
	}
	return Base{
		pid:      pid,
		id:       id,
		alias:    alias,
		enabled:  enabled,
		channels: make(map[channel.ID]channel.Channel),
	}, nil
}

// PID is an accessor for the process id
func (b *Base) PID() uuid.UUID {
	return b.pid
}

// ID is the configured component id, e.g. "ess0".
func (b *Base) ID() string {
	return b.id
}

// Alias is the human readable name
func (b *Base) Alias() string {
	return b.alias
}

// IsEnabled reports the configured enable state.
func (b *Base) IsEnabled() bool {
	return b.enabled
}

// AddChannels registers channels with the component. Ids must be unique.
func (b *Base) AddChannels(channels ...channel.Channel) error {
	for _, ch := range channels {
		if _, ok := b.channels[ch.ID()]; ok {
			return fmt.Errorf("component %s: duplicate channel %s", b.id, ch.ID())
		}
		b.channels[ch.ID()] = ch
	}
	return nil
}

// Channel looks up a channel by id.
func (b *Base) Channel(id channel.ID) (channel.Channel, error) {
	ch, ok := b.channels[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", fault.ErrUnknownChannel, b.id, id)
	}
	return ch, nil
}

// Channels returns all channels ordered by id.
func (b *Base) Channels() []channel.Channel {
	channels := make([]channel.Channel, 0, len(b.channels))
	for _, ch := range b.channels {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool {
		return channels[i].ID() < channels[j].ID()
	})
	return channels
}

// NextProcessImage advances every channel of the component.
func (b *Base) NextProcessImage() {
	for _, ch := range b.channels {
		ch.NextProcessImage()
	}
}

// Deactivate releases the channels and disables the component.
func (b *Base) Deactivate() {
	b.enabled = false
	b.channels = make(map[channel.ID]channel.Channel)
}

// Get returns the typed channel id of c.
func Get[T any](c Component, id channel.ID) (*channel.Of[T], error) {
	ch, err := c.Channel(id)
	if err != nil {
		return nil, err
	}
	typed, ok := ch.(*channel.Of[T])
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s is %s", fault.ErrTypeMismatch, c.ID(), id, ch.Doc().Type)
	}
	return typed, nil
}
