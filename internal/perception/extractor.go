package perception

import (
	"context"
	"strings"

	"nano-agent/internal/config"
	"nano-agent/internal/ports"
	"nano-agent/pkg/apperr"
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
	extractorName = "DataExtractor"

	maxMatchLength   = 100
	contextMinLength = 300
	rawExtractLimit  = 64
	lineSeparator    = " - "
)

// Extractor harvests currency-like snippets for read-only goals. It is
// best-effort and only runs as a terminal action.
type Extractor struct {
	config *config.PerceptionConfig
	logger *zap.Logger
	tracer trace.Tracer
	page   ports.PageExecutor
}

type ExtractorParams struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
	Page   ports.PageExecutor
}

func NewExtractor(params ExtractorParams) *Extractor {
	return &Extractor{
		config: params.Config.PerceptionConfig,
		logger: params.Logger.With(zap.String(logg.Layer, extractorName)),
		tracer: otel.Tracer(perceptionTrace),
		page:   params.Page,
	}
}

func (e *Extractor) Extract(ctx context.Context) (snippets []string, err error) {
	const op = "Extract"
	logger := e.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, e.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	raw, err := e.page.Evaluate(ctx, extractScript, map[string]any{
		"markers":        e.config.CurrencyMarkers,
		"maxMatchLength": maxMatchLength,
		"contextLength":  contextMinLength,
		"rawLimit":       rawExtractLimit,
	})
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "extract_failed",
			apperr.MetaStage:  apperr.StagePerception,
		})
	}

	contexts, err := pagejs.Decode[[]string](raw)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "extract_decode_failed",
			apperr.MetaStage:  apperr.StagePerception,
		})
	}

	snippets = summarize(contexts, e.config.ExtractLimit)
	step.SetAttributes(attribute.Int("snippets", len(snippets)))
	logger.Debug("Extraction completed", zap.Int("contexts", len(contexts)), zap.Int("snippets", len(snippets)))

	return snippets, nil
}

// summarize keeps the first two non-blank lines of each context, de-duplicates
// by exact equality and caps the result.
func summarize(contexts []string, limit int) []string {
	seen := make(map[string]struct{}, len(contexts))
	out := make([]string, 0, min(len(contexts), limit))

	for _, text := range contexts {
		if len(out) >= limit {
			break
		}

		snippet := firstLines(text, 2)
		if snippet == "" {
			continue
		}

		if _, dup := seen[snippet]; dup {
			continue
		}

		seen[snippet] = struct{}{}
		out = append(out, snippet)
	}

	return out
}

func firstLines(text string, n int) string {
	lines := make([]string, 0, n)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}

	return strings.Join(lines, lineSeparator)
}
