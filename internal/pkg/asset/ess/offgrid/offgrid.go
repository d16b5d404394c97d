package offgrid

import (
	"errors"

	"github.com/ohowland/cgc_offgrid/internal/pkg/fault"
)

// handleOffGrid keeps the island while the battery is safe. A threshold
// violation stops the inverter and aborts to Undefined regardless of the
// grid status.
func handleOffGrid(ctx Context) (State, error) {
	if err := ctx.checkSafety(); err != nil {
		if !errors.Is(err, fault.ErrSafetyThresholdViolated) {
			return OffGrid, err
		}
		if stopErr := ctx.Inverter.SetInverterOff(); stopErr != nil {
			return Undefined, errors.Join(err, stopErr)
		}
		return Undefined, err
	}

	gridPresent, err := ctx.gridPresent()
	if err != nil {
		return OffGrid, err
	}
	if gridPresent {
		return GoingOnGrid, nil
	}
	return OffGrid, nil
}
