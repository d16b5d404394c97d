package digitalio

import (
	"fmt"

	"github.com/ohowland/cgc_offgrid/internal/pkg/channel"
	"github.com/ohowland/cgc_offgrid/internal/pkg/component"
)

// IO is a bank of digital inputs, DigitalInput1..N.
type IO struct {
	component.Base
	inputs []*channel.Of[bool]
}

// InputID returns the channel id of input n, counting from 1.
func InputID(n int) channel.ID {
	return channel.ID(fmt.Sprintf("DigitalInput%d", n))
}

// New returns an IO with n undefined inputs.
func New(id string, alias string, enabled bool, n int) (*IO, error) {
	if n < 1 {
		return nil, fmt.Errorf("io %s: need at least one input, got %d", id, n)
	}
	base, err := component.New(id, alias, enabled)
	if err != nil {
		return nil, err
	}
	io := &IO{Base: base}
	for k := 1; k <= n; k++ {
		in := channel.NewBoolean(channel.Doc{ID: InputID(k)})
		io.inputs = append(io.inputs, in)
		if err := io.AddChannels(in); err != nil {
			return nil, err
		}
	}
	return io, nil
}

// Input returns input n, counting from 1.
func (io *IO) Input(n int) (*channel.Of[bool], error) {
	if n < 1 || n > len(io.inputs) {
		return nil, fmt.Errorf("io %s: no input %d", io.ID(), n)
	}
	return io.inputs[n-1], nil
}

// Len returns the number of inputs.
func (io *IO) Len() int {
	return len(io.inputs)
}
