package offgrid

import (
	"errors"

	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/batteryinverter"
	"github.com/ohowland/cgc_offgrid/internal/pkg/fault"
)

// handleGoingOffGrid sequences the inverter into island operation: island
// frequency, off-grid command, then the DC relay soft-start. An unsafe
// battery aborts to Undefined before anything is staged.
func handleGoingOffGrid(ctx Context) (State, error) {
	if err := ctx.checkSafety(); err != nil {
		if errors.Is(err, fault.ErrSafetyThresholdViolated) {
			return Undefined, err
		}
		return GoingOffGrid, err
	}

	gridPresent, err := ctx.gridPresent()
	if err != nil {
		return GoingOffGrid, err
	}
	mode, err := ctx.gridMode()
	if err != nil {
		return GoingOffGrid, err
	}

	if gridPresent {
		// grid came back before the island was established
		if mode == batteryinverter.OnGrid && ctx.running() {
			return OnGrid, nil
		}
		return GoingOnGrid, nil
	}

	v, err := ctx.Switch.MainContactor()
	mainClosed, err := required("MainContactor", v, err)
	if err != nil {
		return GoingOffGrid, err
	}
	if mainClosed {
		return GoingOffGrid, nil
	}

	if hz := ctx.OffGridFrequency; hz > 0 {
		v, _ := ctx.Inverter.OffGridFrequency()
		if actual, ok := v.Get(); ok && actual != hz {
			return GoingOffGrid, ctx.Inverter.SetOffGridFrequency(hz)
		}
	}

	if mode != batteryinverter.OffGrid {
		return GoingOffGrid, ctx.Inverter.SetOffGridCommand()
	}

	if !ctx.running() {
		return GoingOffGrid, ctx.Inverter.SoftStart(true)
	}
	return OffGrid, nil
}
