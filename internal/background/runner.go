// Package background runs periodic maintenance phases next to the API.
package background

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is the pause between maintenance rounds.
const DefaultInterval = 10 * time.Second

// Phase is one named maintenance step.
type Phase struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner executes its phases in order, once per interval. A failing phase is
// logged and does not stop the phases after it.
type Runner struct {
	phases   []Phase
	interval time.Duration
	logger   *zap.Logger
}

// New creates a Runner.
func New(interval time.Duration, logger *zap.Logger, phases ...Phase) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		phases:   phases,
		interval: interval,
		logger:   logger,
	}
}

// RunOnce executes every phase and returns the number that failed.
func (r *Runner) RunOnce(ctx context.Context) int {
	failed := 0
	for _, p := range r.phases {
		if ctx.Err() != nil {
			return failed
		}
		start := time.Now()
		if err := runPhase(ctx, p); err != nil {
			failed++
			r.logger.Error("background phase failed",
				zap.String("phase", p.Name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			continue
		}
		r.logger.Debug("background phase done",
			zap.String("phase", p.Name),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return failed
}

func runPhase(ctx context.Context, p Phase) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	if p.Run == nil {
		return errors.New("phase has no run function")
	}
	return p.Run(ctx)
}

// Run executes a round immediately and then every interval until ctx ends.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}
