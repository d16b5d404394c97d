package dispatch

import (
	"github.com/google/uuid"

	"github.com/ohowland/cgc_offgrid/internal/pkg/power"
)

// Dispatcher apportions active and reactive power to its member storage
// systems. Dispatch is called once per cycle, after the controllers ran and
// before the write phase.
type Dispatcher interface {
	AddMember(power.ManagedEss)
	DropMember(uuid.UUID)
	Dispatch() error
}
