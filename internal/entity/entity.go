package entity

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ActionKind is the closed set of actions a plan may request.
type ActionKind string

const (
	ActionClick   ActionKind = "click"
	ActionType    ActionKind = "type"
	ActionScroll  ActionKind = "scroll"
	ActionExtract ActionKind = "extract"
	ActionFinish  ActionKind = "finish"
)

var ActionKinds = []ActionKind{ActionClick, ActionType, ActionScroll, ActionExtract, ActionFinish}

func (a ActionKind) Valid() bool {
	for _, kind := range ActionKinds {
		if a == kind {
			return true
		}
	}

	return false
}

// Targeted reports whether the action needs an element from the scan.
func (a ActionKind) Targeted() bool {
	return a == ActionClick || a == ActionType
}

// ElementDescriptor is one perceived interactive element. Index is only
// meaningful inside the scan that produced it.
type ElementDescriptor struct {
	Index     int    `json:"index"`
	Tag       string `json:"tag"`
	Text      string `json:"text"`
	Selector  string `json:"selector"`
	Sensitive bool   `json:"sensitive"`
}

// Plan is one decision returned by the reasoning backend.
type Plan struct {
	Reasoning   string     `json:"reasoning"`
	Action      ActionKind `json:"action"`
	TargetIndex *int       `json:"target_index,omitempty"`
	Value       *string    `json:"value,omitempty"`
}

// ValueOrEmpty never returns an undefined value to the page executor.
func (p *Plan) ValueOrEmpty() string {
	if p.Value == nil {
		return ""
	}

	return *p.Value
}

func (p *Plan) String() string {
	var b strings.Builder

	b.WriteString(string(p.Action))

	if p.TargetIndex != nil {
		fmt.Fprintf(&b, " #%d", *p.TargetIndex)
	}

	if p.Value != nil {
		fmt.Fprintf(&b, " %q", *p.Value)
	}

	return b.String()
}

// PlanRequest is everything the reasoning backend sees for one step.
type PlanRequest struct {
	Goal     string
	URL      string
	Elements []ElementDescriptor
	History  []HistoryEntry
}

type HistoryEntry struct {
	Step        int
	Action      ActionKind
	TargetIndex *int
	Target      string
	Value       string
}

func (h HistoryEntry) String() string {
	switch {
	case h.Action == ActionType && h.Target != "":
		return fmt.Sprintf("type(%q into %q)", h.Value, h.Target)
	case h.Target != "":
		return fmt.Sprintf("%s(%q)", h.Action, h.Target)
	case h.TargetIndex != nil:
		return fmt.Sprintf("%s(#%d)", h.Action, *h.TargetIndex)
	default:
		return string(h.Action)
	}
}

type RunState string

const (
	RunStateIdle            RunState = "idle"
	RunStateRunning         RunState = "running"
	RunStateFinished        RunState = "finished"
	RunStateCancelled       RunState = "cancelled"
	RunStateFailed          RunState = "failed"
	RunStateBudgetExhausted RunState = "budget_exhausted"
)

// Terminal reports whether no further step may run in this state.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateFinished, RunStateCancelled, RunStateFailed, RunStateBudgetExhausted:
		return true
	default:
		return false
	}
}

type RunOptions struct {
	ShowOverlays bool
	StartURL     string
}

// Session is the orchestrator-owned state of one run. Only the running flag
// may be touched from another goroutine (Stop).
type Session struct {
	ID        uuid.UUID
	Goal      string
	Options   RunOptions
	MaxSteps  int
	StepCount int
	History   []HistoryEntry
	StartedAt time.Time

	running atomic.Bool
}

func NewSession(goal string, maxSteps int, opts RunOptions) *Session {
	s := &Session{
		ID:        uuid.New(),
		Goal:      goal,
		Options:   opts,
		MaxSteps:  maxSteps,
		History:   make([]HistoryEntry, 0, maxSteps),
		StartedAt: time.Now(),
	}
	s.running.Store(true)

	return s
}

func (s *Session) Running() bool {
	return s.running.Load()
}

func (s *Session) Stop() {
	s.running.Store(false)
}

func (s *Session) BudgetLeft() bool {
	return s.StepCount < s.MaxSteps
}

func (s *Session) Record(entry HistoryEntry) {
	s.History = append(s.History, entry)
}

// Run is the outcome reported to the operator.
type Run struct {
	ID          uuid.UUID
	Goal        string
	Model       string
	State       RunState
	Steps       int
	History     []HistoryEntry
	Extracted   []string
	Error       string
	ErrorCode   string
	StartedAt   time.Time
	CompletedAt *time.Time
}

type Decision int

const (
	DecisionProceed Decision = iota
	DecisionBlocked
)

func (d Decision) String() string {
	if d == DecisionProceed {
		return "proceed"
	}

	return "blocked"
}

type ConfirmationRequest struct {
	ID     uuid.UUID
	Step   int
	Plan   Plan
	Target ElementDescriptor
	Reason string
}

// Effect describes what the action executor did to the page.
type Effect struct {
	Action    ActionKind
	Target    *ElementDescriptor
	Vanished  bool
	Submitted bool
}

type SettleReport struct {
	Ticks     int
	Mutations int
	Settled   bool
}

type TraceKind string

const (
	TraceGoal      TraceKind = "goal"
	TraceModel     TraceKind = "model"
	TraceStep      TraceKind = "step"
	TracePerceived TraceKind = "perceived"
	TraceReasoning TraceKind = "reasoning"
	TraceAction    TraceKind = "action"
	TraceScroll    TraceKind = "scroll"
	TraceWait      TraceKind = "wait"
	TracePaused    TraceKind = "paused"
	TraceExtracted TraceKind = "extracted"
	TraceVanished  TraceKind = "vanished"
	TraceSkipped   TraceKind = "skipped"
	TraceDone      TraceKind = "done"
	TraceStopped   TraceKind = "stopped"
	TraceBudget    TraceKind = "budget"
	TraceError     TraceKind = "error"
)

type TraceEvent struct {
	RunID   uuid.UUID
	Step    int
	Kind    TraceKind
	Message string
}
