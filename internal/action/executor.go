package action

import (
	"context"
	"fmt"

	"nano-agent/internal/config"
	"nano-agent/internal/entity"
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
	executorName = "ActionExecutor"
	actionTrace  = "action.executor"
)

type outcome struct {
	Found     bool `json:"found"`
	Submitted bool `json:"submitted"`
}

type Executor struct {
	config *config.ActionConfig
	logger *zap.Logger
	tracer trace.Tracer
	page   ports.PageExecutor
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
	Page   ports.PageExecutor
}

func NewExecutor(params Params) *Executor {
	return &Executor{
		config: params.Config.ActionConfig,
		logger: params.Logger.With(zap.String(logg.Layer, executorName)),
		tracer: otel.Tracer(actionTrace),
		page:   params.Page,
	}
}

// Resolve finds the descriptor plan.TargetIndex refers to in elements.
func (e *Executor) Resolve(plan *entity.Plan, elements []entity.ElementDescriptor) (entity.ElementDescriptor, error) {
	const op = "Resolve"

	if plan.TargetIndex == nil {
		return entity.ElementDescriptor{}, apperr.Wrap(op, apperr.CodeTargetNotFound,
			fmt.Errorf("%s requires target_index", plan.Action), map[string]any{
				apperr.MetaReason: "missing_target_index",
				apperr.MetaAction: string(plan.Action),
				apperr.MetaStage:  apperr.StageExecution,
			})
	}

	idx := *plan.TargetIndex
	for _, el := range elements {
		if el.Index == idx {
			return el, nil
		}
	}

	return entity.ElementDescriptor{}, apperr.Wrap(op, apperr.CodeTargetNotFound,
		fmt.Errorf("no element with index %d among %d", idx, len(elements)), map[string]any{
			apperr.MetaReason: "stale_index",
			apperr.MetaAction: string(plan.Action),
			apperr.MetaIndex:  idx,
			apperr.MetaStage:  apperr.StageExecution,
		})
}

// Execute applies a click, type or scroll plan to the page. A target that
// can no longer be located is reported through Effect.Vanished.
func (e *Executor) Execute(ctx context.Context, plan *entity.Plan, elements []entity.ElementDescriptor) (effect entity.Effect, err error) {
	const op = "Execute"
	logger := e.logger.With(zap.String(logg.Operation, op), zap.String(logg.Action, string(plan.Action)))

	ctx, step := tracing.StartSpan(ctx, e.tracer, logger, op,
		attribute.String("action", string(plan.Action)))
	defer func() {
		step.End(err)
	}()

	effect.Action = plan.Action

	switch plan.Action {
	case entity.ActionScroll:
		if _, err := e.page.Evaluate(ctx, scrollScript, map[string]any{"amount": e.config.ScrollAmount}); err != nil {
			return effect, e.failed(op, plan, "", err)
		}

		return effect, nil
	case entity.ActionClick, entity.ActionType:
	default:
		return effect, apperr.Wrap(op, apperr.CodeInvalidArgument,
			fmt.Errorf("action %q is not executable", plan.Action), map[string]any{
				apperr.MetaReason: "not_executable",
				apperr.MetaAction: string(plan.Action),
				apperr.MetaStage:  apperr.StageExecution,
			})
	}

	target, err := e.Resolve(plan, elements)
	if err != nil {
		return effect, err
	}

	effect.Target = &target
	logger = logger.With(zap.String(logg.Selector, target.Selector), zap.Int(logg.Index, target.Index))
	step.SetAttributes(attribute.String("selector", target.Selector))

	script := clickScript
	args := map[string]any{"selector": target.Selector}

	if plan.Action == entity.ActionType {
		script = typeScript
		args["value"] = plan.ValueOrEmpty()
		args["submitDelay"] = e.config.SubmitDelay.Milliseconds()
	}

	raw, err := e.page.Evaluate(ctx, script, args)
	if err != nil {
		return effect, e.failed(op, plan, target.Selector, err)
	}

	res, err := pagejs.Decode[outcome](raw)
	if err != nil {
		return effect, e.failed(op, plan, target.Selector, err)
	}

	effect.Vanished = !res.Found
	effect.Submitted = res.Submitted

	if effect.Vanished {
		logger.Info("Target vanished before execution")
	} else {
		logger.Debug("Action applied", zap.Bool("submitted", effect.Submitted))
	}

	return effect, nil
}

func (e *Executor) failed(op string, plan *entity.Plan, selector string, err error) error {
	meta := map[string]any{
		apperr.MetaReason: "page_evaluate_failed",
		apperr.MetaAction: string(plan.Action),
		apperr.MetaStage:  apperr.StageInteraction,
	}

	if selector != "" {
		meta[apperr.MetaSelector] = selector
	}

	return apperr.Wrap(op, apperr.CodeActionFailed, err, meta)
}
