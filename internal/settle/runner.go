package settle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/events"
	"github.com/mselser95/exchange-settlement/internal/state"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// Runner executes operations against a store, one unit of work each.
type Runner struct {
	env        *Env
	store      state.Store
	sink       events.Sink
	maxRetries int
	gasPrice   *big.Int
	logger     *zap.Logger
}

// RunnerConfig holds runner configuration.
type RunnerConfig struct {
	Env             *Env
	Store           state.Store
	Sink            events.Sink // Optional
	MaxRetries      int         // Re-executions after a commit conflict (default: 3)
	DefaultGasPrice *big.Int    // Gas price of calls that carry none (default: 0)
	Logger          *zap.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg *RunnerConfig) *Runner {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Runner{
		env:        cfg.Env,
		store:      cfg.Store,
		sink:       cfg.Sink,
		maxRetries: maxRetries,
		gasPrice:   cfg.DefaultGasPrice,
		logger:     cfg.Logger,
	}
}

// Env returns the runner's environment.
func (r *Runner) Env() *Env {
	return r.env
}

// Execute runs fn in a fresh frame and commits its effects atomically. The
// attached value is deposited before fn runs and whatever remains is refunded
// to the caller afterwards. A commit conflict re-executes fn against fresh
// state, so fn must not keep side effects outside the frame.
func (r *Runner) Execute(ctx context.Context, op string, call Call, fn func(f *Frame) error) ([]events.Event, error) {
	start := time.Now()
	defer func() {
		OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	if call.GasPrice == nil && r.gasPrice != nil {
		call.GasPrice = new(big.Int).Set(r.gasPrice)
	}

	for attempt := 0; ; attempt++ {
		f := NewFrame(r.env, call, state.Begin(ctx, r.store))

		err := r.run(f, fn)
		if err != nil {
			OperationsTotal.WithLabelValues(op, string(types.KindOf(err))).Inc()
			r.logger.Debug("settlement-rejected",
				zap.String("operation", op),
				zap.String("kind", string(types.KindOf(err))),
				zap.Error(err))
			return nil, err
		}

		err = f.Tx.Commit()
		if errors.Is(err, state.ErrConflict) && attempt < r.maxRetries {
			RetriesTotal.WithLabelValues(op).Inc()
			r.logger.Debug("settlement-commit-conflict",
				zap.String("operation", op),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			OperationsTotal.WithLabelValues(op, "commit-failed").Inc()
			return nil, fmt.Errorf("commit %s: %w", op, err)
		}

		OperationsTotal.WithLabelValues(op, "ok").Inc()
		committed := events.Seal(op, f.Emitted(), time.Now().UTC())
		r.publish(ctx, op, committed)
		return committed, nil
	}
}

// View runs fn in a frame that is never committed.
func (r *Runner) View(ctx context.Context, call Call, fn func(f *Frame) error) error {
	f := NewFrame(r.env, call, state.Begin(ctx, r.store))
	return fn(f)
}

func (r *Runner) run(f *Frame, fn func(f *Frame) error) error {
	if err := f.DepositEth(f.Call.Sender, f.Call.Value); err != nil {
		return err
	}
	if err := fn(f); err != nil {
		return err
	}
	return f.RefundEth()
}

func (r *Runner) publish(ctx context.Context, op string, committed []events.Event) {
	if r.sink == nil || len(committed) == 0 {
		return
	}
	EventsPublished.Add(float64(len(committed)))
	if err := r.sink.Publish(ctx, committed); err != nil {
		r.logger.Error("publish-events-failed",
			zap.String("operation", op),
			zap.Int("events", len(committed)),
			zap.Error(err))
	}
}
