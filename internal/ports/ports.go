package ports

import (
	"context"

	"nano-agent/internal/entity"
)

// PageExecutor runs a function source against the live page and returns its
// serializable result.
type PageExecutor interface {
	Evaluate(ctx context.Context, fn string, arg any) (any, error)
	URL(ctx context.Context) (string, error)
}

type BrowserManager interface {
	PageExecutor
	Launch(ctx context.Context) error
	Close(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	IsReady() bool
}

type Scanner interface {
	Scan(ctx context.Context, showOverlays bool) ([]entity.ElementDescriptor, error)
	ClearOverlays(ctx context.Context) error
}

type Extractor interface {
	Extract(ctx context.Context) ([]string, error)
}

type SettleDetector interface {
	AwaitSettled(ctx context.Context) (entity.SettleReport, error)
}

type ActionExecutor interface {
	Resolve(plan *entity.Plan, elements []entity.ElementDescriptor) (entity.ElementDescriptor, error)
	Execute(ctx context.Context, plan *entity.Plan, elements []entity.ElementDescriptor) (entity.Effect, error)
}

type Planner interface {
	RequestPlan(ctx context.Context, req entity.PlanRequest) (*entity.Plan, error)
	Model() string
}

type Confirmer interface {
	Confirm(ctx context.Context, req entity.ConfirmationRequest) (bool, error)
}

type Reporter interface {
	Report(event entity.TraceEvent)
}

// SensitivityClassifier reports the first high-stakes term found in text.
type SensitivityClassifier interface {
	Match(text string) (term string, ok bool)
}
