package component

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ohowland/cgc_offgrid/internal/pkg/channel"
	"github.com/ohowland/cgc_offgrid/internal/pkg/fault"
)

// Manager is the registry of components, keyed by component id.
type Manager struct {
	mux        *sync.RWMutex
	components map[string]Component
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{
		mux:        &sync.RWMutex{},
		components: make(map[string]Component),
	}
}

// Add registers c. Component ids must be unique.
func (m *Manager) Add(c Component) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.components[c.ID()]; ok {
		return fmt.Errorf("duplicate component id %s", c.ID())
	}
	m.components[c.ID()] = c
	return nil
}

// Remove deactivates and unregisters the component.
func (m *Manager) Remove(id string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if c, ok := m.components[id]; ok {
		c.Deactivate()
		delete(m.components, id)
	}
}

// Component looks up a component by id.
func (m *Manager) Component(id string) (Component, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	c, ok := m.components[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", fault.ErrUnknownComponent, id)
	}
	return c, nil
}

// Components returns all registered components ordered by id.
func (m *Manager) Components() []Component {
	m.mux.RLock()
	defer m.mux.RUnlock()
	components := make([]Component, 0, len(m.components))
	for _, c := range m.components {
		components = append(components, c)
	}
	sort.Slice(components, func(i, j int) bool {
		return components[i].ID() < components[j].ID()
	})
	return components
}

// Channel resolves a channel address.
func (m *Manager) Channel(addr channel.Address) (channel.Channel, error) {
	c, err := m.Component(addr.Component)
	if err != nil {
		return nil, err
	}
	return c.Channel(addr.Channel)
}

// NextProcessImage advances the channels of every registered component.
func (m *Manager) NextProcessImage() {
	for _, c := range m.Components() {
		c.NextProcessImage()
	}
}

// GetChannel resolves a typed channel address.
func GetChannel[T any](m *Manager, addr channel.Address) (*channel.Of[T], error) {
	c, err := m.Component(addr.Component)
	if err != nil {
		return nil, err
	}
	return Get[T](c, addr.Channel)
}
