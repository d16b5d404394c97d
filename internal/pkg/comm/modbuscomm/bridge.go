package modbuscomm

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/ohowland/cgc_offgrid/internal/pkg/channel"
	"github.com/ohowland/cgc_offgrid/internal/pkg/component"
	"github.com/ohowland/cgc_offgrid/internal/pkg/fault"
)

// CommunicationFailed is the channel a Bridge raises when the target cannot
// be reached. Components without it are bridged all the same.
const CommunicationFailed channel.ID = "CommunicationFailed"

// Bridge moves values between a component's channels and a Modbus target.
// Read fills the next values of the mapped channels; Write consumes their
// staged writes.
type Bridge struct {
	comm        ModbusComm
	component   component.Component
	readRegs    []Register
	writeRegs   []Register
	channels    map[string]channel.Channel
	commFailed  *channel.Of[bool]
	writeFailed bool
	logger      *zap.Logger
}

// NewBridge validates registers against the channels of c.
func NewBridge(comm ModbusComm, c component.Component, registers []Register, logger *zap.Logger) (*Bridge, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	channels := make(map[string]channel.Channel)
	for _, reg := range registers {
		if err := reg.Validate(); err != nil {
			return nil, err
		}
		if _, ok := channels[reg.Name]; ok {
			return nil, fmt.Errorf("duplicate register name %s", reg.Name)
		}
		ch, err := c.Channel(reg.Channel)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", reg.Name, err)
		}
		if err := checkAccess(reg, ch.Doc().Access); err != nil {
			return nil, err
		}
		channels[reg.Name] = ch
	}

	commFailed, err := component.Get[bool](c, CommunicationFailed)
	if err != nil {
		commFailed = nil
	}

	return &Bridge{
		comm:       comm,
		component:  c,
		readRegs:   FilterRegisters(registers, ro),
		writeRegs:  FilterRegisters(registers, wo),
		channels:   channels,
		commFailed: commFailed,
		logger:     logger.Named(c.ID()).Named("bridge"),
	}, nil
}

func checkAccess(reg Register, mode channel.AccessMode) error {
	ok := true
	switch reg.AccessType {
	case ro:
		ok = mode.CanRead()
	case wo:
		ok = mode.CanWrite()
	case rw:
		ok = mode == channel.ReadWrite
	}
	if !ok {
		return fmt.Errorf("register %s (%s) cannot map to %s channel %s",
			reg.Name, reg.AccessType, mode, reg.Channel)
	}
	return nil
}

// Read polls the readable registers. Registers the target did not answer
// leave their channel undefined for the next cycle.
func (b *Bridge) Read() error {
	if !b.component.IsEnabled() {
		return nil
	}
	values, err := b.comm.Read(b.readRegs)
	if err != nil {
		b.logger.Warn("read failed", zap.Error(err))
	}
	for _, reg := range b.readRegs {
		ch := b.channels[reg.Name]
		raw, ok := values[reg.Name]
		if !ok {
			ch.SetNextUndefined()
			continue
		}
		if setErr := ch.SetNextNumber(raw * reg.scale()); setErr != nil {
			b.logger.Warn("invalid value", zap.String("register", reg.Name), zap.Error(setErr))
			ch.SetNextUndefined()
		}
	}
	if b.commFailed != nil {
		b.commFailed.SetNext(err != nil || b.writeFailed)
	}
	b.writeFailed = false
	return err
}

// Write sends every staged write. A failure is reported as a rejected
// command and raises CommunicationFailed on the next Read.
func (b *Bridge) Write() error {
	if !b.component.IsEnabled() {
		return nil
	}
	values := make(map[string]float64)
	for _, reg := range b.writeRegs {
		n, ok := b.channels[reg.Name].TakeWriteNumber()
		if !ok {
			continue
		}
		raw := n / reg.scale()
		if reg.DataType != f32 && reg.DataType != f64 {
			raw = math.Round(raw)
		}
		values[reg.Name] = raw
	}
	if len(values) == 0 {
		return nil
	}
	if err := b.comm.Write(b.writeRegs, values); err != nil {
		b.writeFailed = true
		b.logger.Warn("write failed", zap.Error(err))
		return fmt.Errorf("%w: %s: %v", fault.ErrCommandRejected, b.component.ID(), err)
	}
	return nil
}
