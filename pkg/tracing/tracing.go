package tracing

import (
	"context"

	"nano-agent/pkg/logg"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type runKey struct{}

// run identifies the agent run, and the step inside it, a span belongs to.
type run struct {
	id   string
	step int
}

// WithRun tags every span started under ctx with the run id.
func WithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runKey{}, run{id: runID})
}

// WithStep tags every span started under ctx with the step number of the
// run already carried by ctx.
func WithStep(ctx context.Context, step int) context.Context {
	r, _ := ctx.Value(runKey{}).(run)
	r.step = step

	return context.WithValue(ctx, runKey{}, r)
}

// RunAttributes returns the run and step attributes carried by ctx.
func RunAttributes(ctx context.Context) []attribute.KeyValue {
	r, ok := ctx.Value(runKey{}).(run)
	if !ok {
		return nil
	}

	attrs := make([]attribute.KeyValue, 0, 2)
	if r.id != "" {
		attrs = append(attrs, attribute.String(logg.RunID, r.id))
	}

	if r.step > 0 {
		attrs = append(attrs, attribute.Int(logg.Step, r.step))
	}

	return attrs
}

type Span struct {
	name   string
	span   trace.Span
	logger *zap.Logger
	run    run
}

func StartSpan(ctx context.Context, tracer trace.Tracer, logger *zap.Logger, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	attrs = append(RunAttributes(ctx), attrs...)
	r, _ := ctx.Value(runKey{}).(run)

	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))

	return ctx, &Span{
		name:   name,
		span:   span,
		logger: logger,
		run:    r,
	}
}

// End closes the span, recording err when it is non-nil.
func (s *Span) End(err error) {
	if err != nil {
		s.span.SetStatus(codes.Error, err.Error())
		s.span.RecordError(err)

		fields := []zap.Field{zap.String("span", s.name), zap.Error(err)}
		if s.run.id != "" {
			fields = append(fields, zap.String(logg.RunID, s.run.id), zap.Int(logg.Step, s.run.step))
		}

		s.logger.Debug("Span finished with error", fields...)
	} else {
		s.span.SetStatus(codes.Ok, "")
	}

	s.span.End()
}

func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}
