package usecase

import (
	"context"
	"fmt"

	"nano-agent/internal/entity"
	"nano-agent/internal/ports"
	"nano-agent/pkg/apperr"
	"nano-agent/pkg/logg"
	"nano-agent/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	safetyGateName = "SafetyGate"
	safetyTracer   = "usecase.safety"
)

// SafetyGate holds back plans that look irreversible until the operator
// explicitly accepts them. Declining ends the run.
type SafetyGate struct {
	logger     *zap.Logger
	tracer     trace.Tracer
	classifier ports.SensitivityClassifier
	confirmer  ports.Confirmer
	reporter   ports.Reporter
}

func NewSafetyGate(
	logger *zap.Logger,
	classifier ports.SensitivityClassifier,
	confirmer ports.Confirmer,
	reporter ports.Reporter,
) *SafetyGate {
	return &SafetyGate{
		logger:     logger.With(zap.String(logg.Layer, safetyGateName)),
		tracer:     otel.Tracer(safetyTracer),
		classifier: classifier,
		confirmer:  confirmer,
		reporter:   reporter,
	}
}

// flagged returns why plan needs confirmation, or "" when it does not.
func (g *SafetyGate) flagged(plan *entity.Plan, target entity.ElementDescriptor) string {
	if target.Sensitive {
		return fmt.Sprintf("target %q looks high-stakes", target.Text)
	}

	if term, ok := g.classifier.Match(plan.Reasoning); ok {
		return fmt.Sprintf("reasoning mentions %q", term)
	}

	return ""
}

func (g *SafetyGate) Admit(
	ctx context.Context,
	session *entity.Session,
	plan *entity.Plan,
	target entity.ElementDescriptor,
) (decision entity.Decision, err error) {
	const op = "Admit"
	logger := g.logger.With(
		zap.String(logg.Operation, op),
		zap.String(logg.RunID, session.ID.String()),
		zap.Int(logg.Step, session.StepCount))

	reason := g.flagged(plan, target)
	if reason == "" {
		return entity.DecisionProceed, nil
	}

	ctx, step := tracing.StartSpan(ctx, g.tracer, logger, op,
		attribute.String("action", string(plan.Action)),
		attribute.String("reason", reason))
	defer func() {
		step.SetAttributes(attribute.String("decision", decision.String()))
		step.End(err)
	}()

	g.reporter.Report(entity.TraceEvent{
		RunID:   session.ID,
		Step:    session.StepCount,
		Kind:    entity.TracePaused,
		Message: fmt.Sprintf("Confirmation required: %s (%s)", plan, reason),
	})

	logger.Info("Awaiting operator confirmation", zap.String("reason", reason))

	accepted, err := g.confirmer.Confirm(ctx, entity.ConfirmationRequest{
		ID:     uuid.New(),
		Step:   session.StepCount,
		Plan:   *plan,
		Target: target,
		Reason: reason,
	})
	if err != nil {
		return entity.DecisionBlocked, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "confirmation_failed",
			apperr.MetaStage:  apperr.StageSafety,
		})
	}

	if !accepted {
		session.Stop()
		logger.Info("Sensitive action declined")

		return entity.DecisionBlocked, nil
	}

	logger.Info("Sensitive action accepted")

	return entity.DecisionProceed, nil
}
