package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"nano-agent/internal/config"
	"nano-agent/internal/entity"
	"nano-agent/pkg/apperr"
	"nano-agent/pkg/logg"
	"nano-agent/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	aiClientName = "PlanClient"
	aiTracer     = "ai.client"
)

// backend sends one prompt and returns the textual payload extracted from
// the provider's response envelope.
type backend interface {
	name() string
	complete(ctx context.Context, prompt string) (string, error)
}

// Client turns the current page state into a Plan. The backend family is
// chosen once, from the model name, when the client is built.
type Client struct {
	model   string
	backend backend
	logger  *zap.Logger
	tracer  trace.Tracer
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewClient(params Params) (*Client, error) {
	const op = "NewClient"

	conf := params.Config.AIConfig
	model := strings.TrimSpace(conf.Model)

	if model == "" {
		return nil, apperr.InvalidReqError(op, "AI_MODEL", errors.New("model is not configured"))
	}

	key := conf.KeyFor(model)
	if key == "" {
		return nil, apperr.InvalidReqError(op, "AI_API_KEY", fmt.Errorf("missing API key for %s", model))
	}

	httpClient := &http.Client{Timeout: conf.Timeout}

	var b backend
	if config.IsDeepSeek(model) {
		b = newChatBackend(httpClient, conf.DeepSeekEndpoint, key, model)
	} else {
		b = newGenerativeBackend(httpClient, conf.GeminiBaseURL, key, model)
	}

	logger := params.Logger.With(zap.String(logg.Layer, aiClientName), zap.String(logg.Model, model))
	logger.Info("Plan client ready", zap.String("backend", b.name()))

	return &Client{
		model:   model,
		backend: b,
		logger:  logger,
		tracer:  otel.Tracer(aiTracer),
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// RequestPlan asks the backend for the next action. Failures are never
// retried here.
func (c *Client) RequestPlan(ctx context.Context, req entity.PlanRequest) (plan *entity.Plan, err error) {
	const op = "RequestPlan"
	logger := c.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, c.tracer, logger, op,
		attribute.String("model", c.model),
		attribute.String("backend", c.backend.name()),
		attribute.Int("elements_count", len(req.Elements)),
		attribute.Int("history_len", len(req.History)))
	defer func() {
		step.End(err)
	}()

	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "prompt_build_failed",
			apperr.MetaStage:  apperr.StagePlanning,
		})
	}

	logger.Debug("Requesting plan", zap.Int("prompt_bytes", len(prompt)))
	step.AddEvent("sending request")

	text, err := c.backend.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	step.AddEvent("parsing plan")

	plan, err = parsePlan(text)
	if err != nil {
		logger.Warn("Unusable plan payload", zap.Error(err), zap.String("payload", preview(text)))

		return nil, err
	}

	step.SetAttributes(attribute.String("action", string(plan.Action)))
	logger.Debug("Plan received", zap.Stringer("plan", plan))

	return plan, nil
}

func preview(s string) string {
	const limit = 300

	if len(s) <= limit {
		return s
	}

	return s[:limit] + "..."
}
