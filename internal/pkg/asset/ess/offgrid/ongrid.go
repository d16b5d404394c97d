package offgrid

func handleOnGrid(ctx Context) (State, error) {
	gridPresent, err := ctx.gridPresent()
	if err != nil {
		return OnGrid, err
	}
	if !gridPresent {
		return GoingOffGrid, nil
	}
	return OnGrid, nil
}
