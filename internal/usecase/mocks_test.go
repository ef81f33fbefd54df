package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"nano-agent/internal/entity"
	"nano-agent/pkg/apperr"

	"github.com/stretchr/testify/mock"
)

type mockBrowser struct {
	mock.Mock

	ready bool
	url   string
}

func (m *mockBrowser) Evaluate(context.Context, string, any) (any, error) {
	return nil, nil
}

func (m *mockBrowser) URL(context.Context) (string, error) {
	return m.url, nil
}

func (m *mockBrowser) Launch(context.Context) error {
	return nil
}

func (m *mockBrowser) Close(context.Context) error {
	return nil
}

func (m *mockBrowser) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *mockBrowser) IsReady() bool {
	return m.ready
}

type mockScanner struct {
	mock.Mock

	cleared atomic.Int32
}

func (m *mockScanner) Scan(ctx context.Context, showOverlays bool) ([]entity.ElementDescriptor, error) {
	args := m.Called(ctx, showOverlays)
	elements, _ := args.Get(0).([]entity.ElementDescriptor)

	return elements, args.Error(1)
}

func (m *mockScanner) ClearOverlays(context.Context) error {
	m.cleared.Add(1)

	return nil
}

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	snippets, _ := args.Get(0).([]string)

	return snippets, args.Error(1)
}

type mockSettle struct {
	mock.Mock
}

func (m *mockSettle) AwaitSettled(ctx context.Context) (entity.SettleReport, error) {
	args := m.Called(ctx)

	return args.Get(0).(entity.SettleReport), args.Error(1)
}

// mockExecutor records Execute calls; Resolve does a plain index lookup.
type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Resolve(plan *entity.Plan, elements []entity.ElementDescriptor) (entity.ElementDescriptor, error) {
	if plan.TargetIndex != nil {
		for _, el := range elements {
			if el.Index == *plan.TargetIndex {
				return el, nil
			}
		}
	}

	return entity.ElementDescriptor{}, apperr.Wrap("Resolve", apperr.CodeTargetNotFound, fmt.Errorf("no element for %s", plan), nil)
}

func (m *mockExecutor) Execute(ctx context.Context, plan *entity.Plan, elements []entity.ElementDescriptor) (entity.Effect, error) {
	args := m.Called(ctx, plan, elements)

	return args.Get(0).(entity.Effect), args.Error(1)
}

type mockPlanner struct {
	mock.Mock
}

func (m *mockPlanner) RequestPlan(ctx context.Context, req entity.PlanRequest) (*entity.Plan, error) {
	args := m.Called(ctx, req)
	plan, _ := args.Get(0).(*entity.Plan)

	return plan, args.Error(1)
}

func (m *mockPlanner) Model() string {
	return "test-model"
}

type mockConfirmer struct {
	mock.Mock
}

func (m *mockConfirmer) Confirm(ctx context.Context, req entity.ConfirmationRequest) (bool, error) {
	args := m.Called(ctx, req)

	return args.Bool(0), args.Error(1)
}

type recordingReporter struct {
	mu     sync.Mutex
	events []entity.TraceEvent
}

func (r *recordingReporter) Report(event entity.TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *recordingReporter) kinds() []entity.TraceKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make([]entity.TraceKind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}

	return kinds
}

func (r *recordingReporter) messages(kind entity.TraceKind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string

	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e.Message)
		}
	}

	return out
}
