package manualdispatch

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ohowland/cgc_offgrid/internal/pkg/power"
)

// Setpoint is a requested active and reactive power in W and var.
type Setpoint struct {
	ActivePower   int `yaml:"activePower"`
	ReactivePower int `yaml:"reactivePower"`
}

// ManualDispatch applies operator setpoints, limited by each member's static
// constraints.
type ManualDispatch struct {
	mux             *sync.Mutex
	logger          *zap.Logger
	defaultSetpoint Setpoint
	members         map[uuid.UUID]power.ManagedEss
	memberSetpoint  map[uuid.UUID]Setpoint
	memberApplied   map[uuid.UUID]Setpoint
}

// New returns a ManualDispatch applying setpoint to members without their
// own setpoint.
func New(setpoint Setpoint, logger *zap.Logger) *ManualDispatch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManualDispatch{
		mux:             &sync.Mutex{},
		logger:          logger.Named("ManualDispatch"),
		defaultSetpoint: setpoint,
		members:         make(map[uuid.UUID]power.ManagedEss),
		memberSetpoint:  make(map[uuid.UUID]Setpoint),
		memberApplied:   make(map[uuid.UUID]Setpoint),
	}
}

// AddMember adds an ESS to the dispatch.
func (d *ManualDispatch) AddMember(ess power.ManagedEss) {
	d.mux.Lock()
	defer d.mux.Unlock()
	d.members[ess.PID()] = ess
}

// DropMember removes an ESS and forgets its setpoints.
func (d *ManualDispatch) DropMember(pid uuid.UUID) {
	d.mux.Lock()
	defer d.mux.Unlock()
	delete(d.members, pid)
	delete(d.memberSetpoint, pid)
	delete(d.memberApplied, pid)
}

// SetSetpoint sets the requested power of one member.
func (d *ManualDispatch) SetSetpoint(pid uuid.UUID, sp Setpoint) {
	d.mux.Lock()
	defer d.mux.Unlock()
	d.memberSetpoint[pid] = sp
}

// Applied returns the setpoint applied to a member in the last dispatch.
func (d *ManualDispatch) Applied(pid uuid.UUID) (Setpoint, bool) {
	d.mux.Lock()
	defer d.mux.Unlock()
	sp, ok := d.memberApplied[pid]
	return sp, ok
}

// Dispatch clamps each member's setpoint to its static constraints and
// applies it. Members are dispatched in id order; a failing member does not
// stop the others.
func (d *ManualDispatch) Dispatch() error {
	d.mux.Lock()
	defer d.mux.Unlock()

	members := make([]power.ManagedEss, 0, len(d.members))
	for _, m := range d.members {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].ID() < members[j].ID()
	})

	var errs []error
	for _, m := range members {
		applied, err := d.dispatchMember(m)
		if err != nil {
			delete(d.memberApplied, m.PID())
			d.logger.Warn("dispatch failed", zap.String("ess", m.ID()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		d.memberApplied[m.PID()] = applied
	}
	return errors.Join(errs...)
}

func (d *ManualDispatch) dispatchMember(m power.ManagedEss) (Setpoint, error) {
	sp, ok := d.memberSetpoint[m.PID()]
	if !ok {
		sp = d.defaultSetpoint
	}
	constraints, err := m.StaticConstraints()
	if err != nil {
		return Setpoint{}, fmt.Errorf("%s: constraints: %w", m.ID(), err)
	}
	p, err := power.Clamp(constraints, power.Active, sp.ActivePower, m.PowerPrecision())
	if err != nil {
		return Setpoint{}, fmt.Errorf("%s: %w", m.ID(), err)
	}
	q, err := power.Clamp(constraints, power.Reactive, sp.ReactivePower, m.PowerPrecision())
	if err != nil {
		return Setpoint{}, fmt.Errorf("%s: %w", m.ID(), err)
	}
	if err := m.ApplyPower(p, q); err != nil {
		return Setpoint{}, fmt.Errorf("%s: apply power: %w", m.ID(), err)
	}
	return Setpoint{ActivePower: p, ReactivePower: q}, nil
}
