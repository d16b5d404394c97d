package offgrid

import "github.com/ohowland/cgc_offgrid/internal/pkg/asset/batteryinverter"

// handleGoingOnGrid clears inverter failures, commands on-grid operation and
// restarts a stopped inverter. It never commands on-grid while the grounding
// contactor is engaged, and advances only when grid status, inverter mode and
// inverter state all report on-grid operation.
func handleGoingOnGrid(ctx Context) (State, error) {
	v, err := ctx.Switch.GroundingContactor()
	grounded, err := required("GroundingContactor", v, err)
	if err != nil {
		return GoingOnGrid, err
	}
	if grounded {
		return GoingOnGrid, nil
	}

	gridPresent, err := ctx.gridPresent()
	if err != nil {
		return GoingOnGrid, err
	}
	if !gridPresent {
		return GoingOnGrid, nil
	}

	hasFault, _ := ctx.Inverter.HasFault()
	if hasFault.OrElse(false) {
		return GoingOnGrid, ctx.Inverter.SetClearFailureCommand()
	}

	mode, err := ctx.gridMode()
	if err != nil {
		return GoingOnGrid, err
	}
	if mode != batteryinverter.OnGrid {
		return GoingOnGrid, ctx.Inverter.SetOnGridCommand()
	}
	if !ctx.running() {
		return GoingOnGrid, ctx.Inverter.SetInverterOn()
	}
	return OnGrid, nil
}
