package cycle

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Phase names of a control cycle, in execution order.
const (
	BeforeProcessImage = "BEFORE_PROCESS_IMAGE"
	ProcessImage       = "PROCESS_IMAGE"
	AfterProcessImage  = "AFTER_PROCESS_IMAGE"
	BeforeWrite        = "BEFORE_WRITE"
	ExecuteWrite       = "EXECUTE_WRITE"
)

// Phase is one step of the cycle.
type Phase struct {
	Name string
	Run  func() error
}

// Worker runs its phases in order once per period. All component access
// happens on the worker goroutine.
type Worker struct {
	period time.Duration
	phases []Phase
	cycles atomic.Uint64
	logger *zap.Logger
}

// New returns a Worker.
func New(period time.Duration, logger *zap.Logger, phases ...Phase) (*Worker, error) {
	if period <= 0 {
		return nil, fmt.Errorf("cycle period must be positive, got %v", period)
	}
	for _, p := range phases {
		if p.Run == nil {
			return nil, fmt.Errorf("phase %s has no function", p.Name)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		period: period,
		phases: phases,
		logger: logger.Named("cycle"),
	}, nil
}

// RunOnce executes a single cycle. A failing phase does not stop the
// phases after it.
func (w *Worker) RunOnce(ctx context.Context) error {
	var errs []error
	for _, p := range w.phases {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.Run(); err != nil {
			w.logger.Warn("phase failed", zap.String("phase", p.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
		}
	}
	w.cycles.Add(1)
	return errors.Join(errs...)
}

// Run executes a cycle every period until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("started", zap.Duration("period", w.period))
	ticker := time.NewTicker(w.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopped", zap.Uint64("cycles", w.cycles.Load()))
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			_ = w.RunOnce(ctx)
			if d := time.Since(start); d > w.period {
				w.logger.Warn("cycle overrun", zap.Duration("took", d))
			}
		}
	}
}

// Cycles returns the number of completed cycles.
func (w *Worker) Cycles() uint64 {
	return w.cycles.Load()
}
