package statemachine

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ohowland/cgc_offgrid/internal/pkg/fault"
)

// Runner computes the successor of state from the tick context. Staging
// commands is the runner's only side effect.
type Runner[S comparable, C any] interface {
	Run(state S, ctx C) (S, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc[S comparable, C any] func(S, C) (S, error)

// Run calls f(state, ctx).
func (f RunnerFunc[S, C]) Run(state S, ctx C) (S, error) {
	return f(state, ctx)
}

// Machine holds the current state of one controlled component and advances
// it once per cycle.
//
// A failed run holds the current state, except when the error reports a
// safety threshold violation: the abort transition returned with it is taken
// and the failure is recorded.
type Machine[S comparable, C any] struct {
	mux       *sync.Mutex
	logger    *zap.Logger
	runner    Runner[S, C]
	current   S
	forced    S
	hasForced bool
	runFailed bool
	failures  uint64
	level     fault.Level
	lastErr   error
}

// New returns a Machine in the initial state.
func New[S comparable, C any](initial S, runner Runner[S, C], logger *zap.Logger) *Machine[S, C] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine[S, C]{
		mux:     &sync.Mutex{},
		logger:  logger,
		runner:  runner,
		current: initial,
	}
}

// Tick runs the current state once. A pending force replaces the run.
func (m *Machine[S, C]) Tick(ctx C) error {
	m.mux.Lock()
	defer m.mux.Unlock()

	if m.hasForced {
		forced := m.forced
		m.hasForced = false
		m.runFailed = false
		m.level = fault.OK
		m.logger.Info("forced state",
			zap.String("from", fmt.Sprint(m.current)),
			zap.String("to", fmt.Sprint(forced)))
		m.current = forced
		return nil
	}

	next, err := m.runner.Run(m.current, ctx)
	m.level = fault.LevelOf(err)
	m.runFailed = m.level >= fault.Warning
	if m.runFailed {
		m.failures++
	}
	if err != nil {
		m.lastErr = err
	}

	switch {
	case err == nil, errors.Is(err, fault.ErrSafetyThresholdViolated):
		if next != m.current {
			m.logger.Info("state",
				zap.String("from", fmt.Sprint(m.current)),
				zap.String("to", fmt.Sprint(next)))
			m.current = next
		}
	case m.level == fault.Info:
		m.logger.Debug("holding state", zap.String("state", fmt.Sprint(m.current)), zap.Error(err))
	default:
		m.logger.Error("StateMachine failed", zap.String("state", fmt.Sprint(m.current)), zap.Error(err))
	}
	return err
}

// Force schedules state to replace the next computed transition.
func (m *Machine[S, C]) Force(state S) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.forced = state
	m.hasForced = true
}

// Current returns the current state.
func (m *Machine[S, C]) Current() S {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.current
}

// RunFailed reports whether the last tick failed.
func (m *Machine[S, C]) RunFailed() bool {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.runFailed
}

// Failures is the number of failed ticks since construction.
func (m *Machine[S, C]) Failures() uint64 {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.failures
}

// Level is the severity of the last tick.
func (m *Machine[S, C]) Level() fault.Level {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.level
}

// LastError returns the most recent tick error, or nil if no tick failed yet.
func (m *Machine[S, C]) LastError() error {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.lastErr
}
