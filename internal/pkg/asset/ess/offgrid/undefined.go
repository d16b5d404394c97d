package offgrid

import "github.com/ohowland/cgc_offgrid/internal/pkg/asset/batteryinverter"

// handleUndefined re-derives the state from the hardware. It always selects a
// concrete successor. Off-grid is only resumed with a battery inside the
// safety limits.
func handleUndefined(ctx Context) (State, error) {
	gridPresent, gridErr := ctx.gridPresent()
	mode, modeErr := ctx.gridMode()
	if gridErr != nil || modeErr != nil {
		return GoingOnGrid, nil
	}

	running := ctx.running()
	if gridPresent && mode == batteryinverter.OnGrid && running {
		return OnGrid, nil
	}
	if !gridPresent && mode == batteryinverter.OffGrid && running && ctx.checkSafety() == nil {
		return OffGrid, nil
	}
	return GoingOnGrid, nil
}
