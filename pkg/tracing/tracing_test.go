package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

func TestSpan_RecordsStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")
	logger := zaptest.NewLogger(t)

	_, ok := StartSpan(context.Background(), tracer, logger, "ok", attribute.Int("step", 1))
	ok.AddEvent("scanned")
	ok.End(nil)

	_, failed := StartSpan(context.Background(), tracer, logger, "failed")
	failed.End(errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Len(t, spans[0].Events(), 1)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
}

func TestStartSpan_CarriesRunAndStep(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")
	logger := zaptest.NewLogger(t)

	ctx := WithRun(context.Background(), "run-1")
	ctx, run := StartSpan(ctx, tracer, logger, "Execute")

	stepCtx, step := StartSpan(WithStep(ctx, 3), tracer, logger, "Step")
	_, scan := StartSpan(stepCtx, tracer, logger, "Scan", attribute.Int("elements", 4))

	scan.End(nil)
	step.End(errors.New("boom"))
	run.End(nil)

	attrs := func(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
		out := make(map[attribute.Key]attribute.Value)
		for _, kv := range s.Attributes() {
			out[kv.Key] = kv.Value
		}

		return out
	}

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	scanAttrs := attrs(spans[0])
	assert.Equal(t, "run-1", scanAttrs["run_id"].AsString())
	assert.Equal(t, int64(3), scanAttrs["step"].AsInt64())
	assert.Equal(t, int64(4), scanAttrs["elements"].AsInt64())

	runAttrs := attrs(spans[2])
	assert.Equal(t, "run-1", runAttrs["run_id"].AsString())
	_, hasStep := runAttrs["step"]
	assert.False(t, hasStep, "the run span precedes any step")
}

func TestRunAttributes_Empty(t *testing.T) {
	assert.Empty(t, RunAttributes(context.Background()))
}
