package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"nano-agent/internal/config"
	"nano-agent/internal/entity"
	"nano-agent/internal/ports"
	"nano-agent/pkg/apperr"
	"nano-agent/pkg/logg"
	"nano-agent/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	agentServiceName = "AgentService"
	agentTracer      = "usecase.agent"

	cleanupTimeout = 5 * time.Second
)

// AgentService drives perceive, plan, gate, act and settle until the goal is
// finished, the step budget runs out, the operator stops the run or a step
// fails. At most one session is active.
type AgentService struct {
	config    *config.AgentConfig
	logger    *zap.Logger
	tracer    trace.Tracer
	browser   ports.BrowserManager
	scanner   ports.Scanner
	extractor ports.Extractor
	settle    ports.SettleDetector
	executor  ports.ActionExecutor
	planner   ports.Planner
	gate      *SafetyGate
	reporter  ports.Reporter

	active atomic.Pointer[entity.Session]
}

type AgentServiceParams struct {
	Config    *config.Config
	Logger    *zap.Logger
	Browser   ports.BrowserManager
	Scanner   ports.Scanner
	Extractor ports.Extractor
	Settle    ports.SettleDetector
	Executor  ports.ActionExecutor
	Planner   ports.Planner
	Gate      *SafetyGate
	Reporter  ports.Reporter
}

func NewAgentService(params AgentServiceParams) *AgentService {
	return &AgentService{
		config:    params.Config.AgentConfig,
		logger:    params.Logger.With(zap.String(logg.Layer, agentServiceName)),
		tracer:    otel.Tracer(agentTracer),
		browser:   params.Browser,
		scanner:   params.Scanner,
		extractor: params.Extractor,
		settle:    params.Settle,
		executor:  params.Executor,
		planner:   params.Planner,
		gate:      params.Gate,
		reporter:  params.Reporter,
	}
}

// Execute runs one goal to a terminal state. Budget exhaustion and operator
// stops are normal outcomes and return a nil error.
func (s *AgentService) Execute(ctx context.Context, goal string, opts entity.RunOptions) (run *entity.Run, err error) {
	const op = "Execute"
	logger := s.logger.With(zap.String(logg.Operation, op))

	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, apperr.InvalidReqError(op, "goal", errors.New("goal cannot be empty"))
	}

	session := entity.NewSession(goal, s.config.MaxSteps, opts)
	if !s.active.CompareAndSwap(nil, session) {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeBusy, "run_in_progress")
	}
	defer s.active.CompareAndSwap(session, nil)

	logger = logger.With(zap.String(logg.RunID, session.ID.String()))

	ctx = tracing.WithRun(ctx, session.ID.String())
	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.String("goal", goal),
		attribute.Int("max_steps", session.MaxSteps))
	defer func() {
		step.End(err)
	}()

	run = &entity.Run{
		ID:        session.ID,
		Goal:      goal,
		Model:     s.planner.Model(),
		State:     entity.RunStateRunning,
		StartedAt: session.StartedAt,
	}

	defer func() {
		s.finish(ctx, session, run, logger)
		step.SetAttributes(attribute.String("state", string(run.State)), attribute.Int("steps", run.Steps))
	}()

	s.report(session, entity.TraceGoal, fmt.Sprintf("Goal: %q", goal))
	s.report(session, entity.TraceModel, "Using planner: "+run.Model)
	logger.Info("Run started", zap.String("goal", goal), zap.String(logg.Model, run.Model))

	if !s.browser.IsReady() {
		return s.fail(ctx, session, run, apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready"))
	}

	if opts.StartURL != "" {
		if err := s.open(ctx, session, opts.StartURL); err != nil {
			return s.fail(ctx, session, run, err)
		}
	}

	for session.BudgetLeft() {
		if !session.Running() {
			return s.stopped(session, run), nil
		}

		if ctx.Err() != nil {
			return s.fail(ctx, session, run, ctx.Err())
		}

		done, err := s.step(ctx, session, run)
		if err != nil {
			return s.fail(ctx, session, run, err)
		}

		if done {
			return run, nil
		}
	}

	if !session.Running() {
		return s.stopped(session, run), nil
	}

	run.State = entity.RunStateBudgetExhausted
	s.report(session, entity.TraceBudget, fmt.Sprintf("Step budget of %d used up", session.MaxSteps))
	logger.Info("Step budget exhausted", zap.Int("steps", session.StepCount))

	return run, nil
}

// Stop asks the active run to end at its next checkpoint.
func (s *AgentService) Stop() {
	const op = "Stop"

	if session := s.active.Load(); session != nil {
		s.logger.Info("Stopping agent", zap.String(logg.Operation, op), zap.String(logg.RunID, session.ID.String()))
		session.Stop()
	}
}

func (s *AgentService) Active() bool {
	return s.active.Load() != nil
}

// step performs one perceive/plan/act cycle and reports whether the run has
// reached a terminal state.
func (s *AgentService) step(ctx context.Context, session *entity.Session, run *entity.Run) (done bool, err error) {
	const op = "Step"

	session.StepCount++
	n := session.StepCount

	logger := s.logger.With(
		zap.String(logg.Operation, op),
		zap.String(logg.RunID, session.ID.String()),
		zap.Int(logg.Step, n))

	ctx, span := tracing.StartSpan(tracing.WithStep(ctx, n), s.tracer, logger, op)
	defer func() {
		span.End(err)
	}()

	s.report(session, entity.TraceStep, fmt.Sprintf("Step %d...", n))

	elements, err := s.scanner.Scan(ctx, session.Options.ShowOverlays)
	if err != nil {
		return false, err
	}

	s.report(session, entity.TracePerceived, fmt.Sprintf("Perceived %d elements", len(elements)))
	span.SetAttributes(attribute.Int("elements", len(elements)))

	url, err := s.browser.URL(ctx)
	if err != nil {
		logger.Debug("Current URL unavailable", zap.Error(err))
	}

	plan, err := s.planner.RequestPlan(ctx, entity.PlanRequest{
		Goal:     session.Goal,
		URL:      url,
		Elements: elements,
		History:  slices.Clone(session.History),
	})
	if err != nil {
		return false, err
	}

	if plan.Reasoning != "" {
		s.report(session, entity.TraceReasoning, plan.Reasoning)
	}

	entry := entity.HistoryEntry{
		Step:   n,
		Action: plan.Action,
		Value:  plan.ValueOrEmpty(),
	}

	var (
		target    entity.ElementDescriptor
		targetErr error
	)

	if plan.Action.Targeted() {
		entry.TargetIndex = plan.TargetIndex
		target, targetErr = s.executor.Resolve(plan, elements)
		if targetErr == nil {
			entry.Target = target.Text
		}
	}

	session.Record(entry)
	s.report(session, entity.TraceAction, "Action: "+entry.String())
	span.SetAttributes(attribute.String("action", string(plan.Action)))
	logger.Info("Plan chosen", zap.String(logg.Action, string(plan.Action)), zap.Stringer("plan", plan))

	switch plan.Action {
	case entity.ActionFinish:
		run.State = entity.RunStateFinished
		s.report(session, entity.TraceDone, "Task complete")

		return true, nil
	case entity.ActionExtract:
		return true, s.extract(ctx, session, run)
	case entity.ActionScroll:
		s.report(session, entity.TraceScroll, "Scrolling...")

		if _, err := s.executor.Execute(ctx, plan, elements); err != nil {
			return false, err
		}

		return false, s.awaitSettled(ctx, logger)
	}

	if targetErr != nil {
		if s.config.SkipMissingTarget && apperr.HasCode(targetErr, apperr.CodeTargetNotFound) {
			s.report(session, entity.TraceSkipped, "Target not in the current scan, skipping step")
			logger.Warn("Skipping step with stale target", zap.Error(targetErr))

			return false, nil
		}

		return false, targetErr
	}

	decision, err := s.gate.Admit(ctx, session, plan, target)
	if err != nil {
		return false, err
	}

	if decision == entity.DecisionBlocked {
		run.State = entity.RunStateCancelled
		s.report(session, entity.TraceStopped, "Sensitive action declined, stopping")

		return true, nil
	}

	effect, err := s.executor.Execute(ctx, plan, elements)
	if err != nil {
		return false, err
	}

	if effect.Vanished {
		s.report(session, entity.TraceVanished, fmt.Sprintf("Element %q vanished before it could be used", target.Text))

		return false, nil
	}

	s.report(session, entity.TraceWait, "Waiting for page to settle...")

	return false, s.awaitSettled(ctx, logger)
}

func (s *AgentService) extract(ctx context.Context, session *entity.Session, run *entity.Run) error {
	snippets, err := s.extractor.Extract(ctx)
	if err != nil {
		return err
	}

	run.Extracted = snippets

	if len(snippets) == 0 {
		s.report(session, entity.TraceExtracted, "No matching data found")
	}

	for _, snippet := range snippets {
		s.report(session, entity.TraceExtracted, snippet)
	}

	run.State = entity.RunStateFinished
	s.report(session, entity.TraceDone, "Task complete")

	return nil
}

func (s *AgentService) open(ctx context.Context, session *entity.Session, url string) error {
	s.report(session, entity.TraceWait, "Opening "+url)

	if err := s.browser.Navigate(ctx, url); err != nil {
		return err
	}

	return s.awaitSettled(ctx, s.logger.With(zap.String(logg.RunID, session.ID.String()), zap.String(logg.URL, url)))
}

func (s *AgentService) awaitSettled(ctx context.Context, logger *zap.Logger) error {
	report, err := s.settle.AwaitSettled(ctx)
	if err != nil {
		return err
	}

	logger.Debug("Page settled",
		zap.Int("ticks", report.Ticks),
		zap.Int("mutations", report.Mutations),
		zap.Bool("settled", report.Settled))

	return nil
}

func (s *AgentService) stopped(session *entity.Session, run *entity.Run) *entity.Run {
	run.State = entity.RunStateCancelled
	s.report(session, entity.TraceStopped, "Stopped by operator")

	return run
}

func (s *AgentService) fail(ctx context.Context, session *entity.Session, run *entity.Run, err error) (*entity.Run, error) {
	run.State = entity.RunStateFailed
	if ctx.Err() != nil {
		run.State = entity.RunStateCancelled
	}

	run.Error = err.Error()
	run.ErrorCode = apperr.CodeOf(err)
	s.report(session, entity.TraceError, "Error: "+err.Error())

	return run, err
}

func (s *AgentService) finish(ctx context.Context, session *entity.Session, run *entity.Run, logger *zap.Logger) {
	completedAt := time.Now()
	run.CompletedAt = &completedAt
	run.Steps = session.StepCount
	run.History = slices.Clone(session.History)

	if s.browser.IsReady() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()

		if err := s.scanner.ClearOverlays(ctx); err != nil {
			logger.Debug("Failed to clear overlays", zap.Error(err))
		}
	}

	logger.Info("Run finished",
		zap.String("state", string(run.State)),
		zap.Int("steps", run.Steps),
		zap.Duration("duration", completedAt.Sub(run.StartedAt)))
}

func (s *AgentService) report(session *entity.Session, kind entity.TraceKind, message string) {
	s.reporter.Report(entity.TraceEvent{
		RunID:   session.ID,
		Step:    session.StepCount,
		Kind:    kind,
		Message: message,
	})
}
