package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"nano-agent/internal/entity"
	"nano-agent/pkg/logg"

	"go.uber.org/zap"
)

var traceIcons = map[entity.TraceKind]string{
	entity.TraceGoal:      "🎯",
	entity.TraceModel:     "🧠",
	entity.TraceStep:      "🔄",
	entity.TracePerceived: "👀",
	entity.TraceReasoning: "💭",
	entity.TraceAction:    "⚡",
	entity.TraceScroll:    "📜",
	entity.TraceWait:      "⏳",
	entity.TracePaused:    "⚠️",
	entity.TraceExtracted: "📊",
	entity.TraceVanished:  "👻",
	entity.TraceSkipped:   "⏭️",
	entity.TraceDone:      "✅",
	entity.TraceStopped:   "🛑",
	entity.TraceBudget:    "⌛",
	entity.TraceError:     "❌",
}

// Terminal prints run traces and asks the operator to confirm sensitive
// actions. Answers arrive through Route, fed by the line reader.
type Terminal struct {
	logger *zap.Logger

	mu  sync.Mutex
	out io.Writer

	waiting atomic.Bool
	answers chan string

	closeOnce sync.Once
	closed    chan struct{}
}

func NewTerminal(logger *zap.Logger, out io.Writer) *Terminal {
	return &Terminal{
		logger:  logger.With(zap.String(logg.Layer, "Terminal")),
		out:     out,
		answers: make(chan string, 1),
		closed:  make(chan struct{}),
	}
}

// CloseInput marks operator input as gone. Pending and later confirmations
// are declined.
func (t *Terminal) CloseInput() {
	t.closeOnce.Do(func() {
		close(t.closed)
	})
}

func (t *Terminal) Printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, format, args...)
}

func (t *Terminal) Report(event entity.TraceEvent) {
	icon, ok := traceIcons[event.Kind]
	if !ok {
		icon = "•"
	}

	t.Printf("%s %s\n", icon, event.Message)
}

// Confirm blocks until the operator answers, ctx ends or input closes. Only
// "y" or "yes" accepts; closed input declines.
func (t *Terminal) Confirm(ctx context.Context, req entity.ConfirmationRequest) (bool, error) {
	const op = "Confirm"

	select {
	case <-t.answers:
	default:
	}

	t.Printf("\n⚠️  Security confirmation required (step %d)\n", req.Step)
	t.Printf("   Action: %s on %q\n", req.Plan.String(), req.Target.Text)
	t.Printf("   Reason: %s\n", req.Reason)

	if req.Plan.Reasoning != "" {
		t.Printf("   Planner: %s\n", req.Plan.Reasoning)
	}

	t.Printf("Confirm (yes/no): ")

	t.waiting.Store(true)
	defer t.waiting.Store(false)

	select {
	case <-ctx.Done():
		t.Printf("\n")

		return false, ctx.Err()
	case <-t.closed:
		t.Printf("no input, declined\n")
		t.logger.Warn("Operator input closed, declining confirmation",
			zap.String(logg.Operation, op),
			zap.String("confirmation_id", req.ID.String()))

		return false, nil
	case answer := <-t.answers:
		answer = strings.ToLower(strings.TrimSpace(answer))
		accepted := answer == "y" || answer == "yes"

		t.logger.Info("Operator answered confirmation",
			zap.String(logg.Operation, op),
			zap.String("confirmation_id", req.ID.String()),
			zap.Bool("accepted", accepted))

		return accepted, nil
	}
}

// Route hands line to a pending confirmation and reports whether it was
// consumed.
func (t *Terminal) Route(line string) bool {
	if !t.waiting.Load() {
		return false
	}

	select {
	case t.answers <- line:
		return true
	default:
		return false
	}
}
