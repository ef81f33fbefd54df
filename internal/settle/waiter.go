package settle

import (
	"context"
	"time"

	"nano-agent/internal/config"
	"nano-agent/internal/entity"
	"nano-agent/internal/ports"
	"nano-agent/pkg/logg"
	"nano-agent/pkg/pagejs"
	"nano-agent/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	waiterName  = "SettleDetector"
	waiterTrace = "settle.waiter"

	cleanupTimeout = 2 * time.Second
)

// Waiter decides when the page has stopped mutating after an action. The
// first tick never counts as quiet; MaxTicks bounds the wait regardless of
// activity.
type Waiter struct {
	tick      time.Duration
	maxTicks  int
	threshold int
	logger    *zap.Logger
	tracer    trace.Tracer
	page      ports.PageExecutor
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
	Page   ports.PageExecutor
}

func NewWaiter(params Params) *Waiter {
	conf := params.Config.SettleConfig

	return &Waiter{
		tick:      conf.Tick,
		maxTicks:  conf.MaxTicks,
		threshold: conf.Threshold,
		logger:    params.Logger.With(zap.String(logg.Layer, waiterName)),
		tracer:    otel.Tracer(waiterTrace),
		page:      params.Page,
	}
}

// AwaitSettled blocks until the page is judged quiet or the tick cap is hit.
// Page failures while polling count as activity; only ctx ends the wait early
// with an error.
func (w *Waiter) AwaitSettled(ctx context.Context) (report entity.SettleReport, err error) {
	const op = "AwaitSettled"
	logger := w.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, w.tracer, logger, op)
	defer func() {
		step.SetAttributes(
			attribute.Int("ticks", report.Ticks),
			attribute.Int("mutations", report.Mutations),
			attribute.Bool("settled", report.Settled))
		step.End(err)
	}()

	if _, err := w.page.Evaluate(ctx, installScript, nil); err != nil {
		logger.Warn("Failed to install mutation observer", zap.Error(err))
	}

	defer w.disconnect(ctx, logger)

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for report.Ticks < w.maxTicks {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-ticker.C:
		}

		report.Ticks++

		n, quiet := w.poll(ctx, logger)
		report.Mutations += n

		if quiet && report.Ticks > 1 {
			report.Settled = true

			return report, nil
		}
	}

	logger.Debug("Settle cap reached", zap.Int("ticks", report.Ticks), zap.Int("mutations", report.Mutations))

	return report, nil
}

func (w *Waiter) poll(ctx context.Context, logger *zap.Logger) (mutations int, quiet bool) {
	raw, err := w.page.Evaluate(ctx, pollScript, nil)
	if err != nil {
		logger.Debug("Mutation poll failed", zap.Error(err))

		return 0, false
	}

	n, err := pagejs.Decode[int](raw)
	if err != nil {
		logger.Debug("Mutation poll returned unexpected value", zap.Any("value", raw))

		return 0, false
	}

	if n < 0 {
		return 0, false
	}

	return n, n < w.threshold
}

func (w *Waiter) disconnect(ctx context.Context, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if _, err := w.page.Evaluate(ctx, disconnectScript, nil); err != nil {
		logger.Debug("Failed to disconnect mutation observer", zap.Error(err))
	}
}
