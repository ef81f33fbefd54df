package perception

import (
	"context"
	"strings"

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
	scannerName     = "PerceptionScanner"
	perceptionTrace = "perception"

	affordanceSelector = "input, button, a[href], textarea, select, [role='button'], [role='checkbox'], label"
	noTextMarker       = "[No Text]"

	// Raw text crossing the page boundary is clipped well above TextLimit.
	rawTextLimit = 200
)

type rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type candidate struct {
	Ordinal   int    `json:"ordinal"`
	Tag       string `json:"tag"`
	InnerText string `json:"innerText"`
	Value     string `json:"value"`
	AriaLabel string `json:"ariaLabel"`
	Rect      rect   `json:"rect"`
}

type collection struct {
	ViewportHeight float64     `json:"viewportHeight"`
	Candidates     []candidate `json:"candidates"`
}

type describeItem struct {
	Ordinal int `json:"ordinal"`
}

// visible: rendered with a non-zero box whose top edge lies in the viewport band.
func (c candidate) visible(viewportHeight float64) bool {
	return c.Rect.Width > 0 && c.Rect.Height > 0 && c.Rect.Y >= 0 && c.Rect.Y <= viewportHeight
}

func (c candidate) hasContent() bool {
	return len([]rune(strings.TrimSpace(c.InnerText))) > 1 || c.Value != "" || c.AriaLabel != ""
}

type Scanner struct {
	config     *config.PerceptionConfig
	logger     *zap.Logger
	tracer     trace.Tracer
	page       ports.PageExecutor
	classifier *Classifier
}

type Params struct {
	fx.In

	Config     *config.Config
	Logger     *zap.Logger
	Page       ports.PageExecutor
	Classifier *Classifier
}

func NewScanner(params Params) *Scanner {
	return &Scanner{
		config:     params.Config.PerceptionConfig,
		logger:     params.Logger.With(zap.String(logg.Layer, scannerName)),
		tracer:     otel.Tracer(perceptionTrace),
		page:       params.Page,
		classifier: params.Classifier,
	}
}

// NewSensitivityClassifier builds the classifier shared by the scanner and the safety gate.
func NewSensitivityClassifier(conf *config.Config) *Classifier {
	return NewClassifier(conf.PerceptionConfig.SensitiveTerms)
}

// Scan returns the ordered, capped list of actionable elements currently in view.
// An empty list is a valid result.
func (s *Scanner) Scan(ctx context.Context, showOverlays bool) (elements []entity.ElementDescriptor, err error) {
	const op = "Scan"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.Bool("overlays", showOverlays))
	defer func() {
		step.End(err)
	}()

	raw, err := s.page.Evaluate(ctx, collectScript, map[string]any{
		"affordance":   affordanceSelector,
		"rawTextLimit": rawTextLimit,
	})
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "collect_failed",
			apperr.MetaStage:  apperr.StagePerception,
		})
	}

	coll, err := pagejs.Decode[collection](raw)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "collect_decode_failed",
			apperr.MetaStage:  apperr.StagePerception,
		})
	}

	retained := s.filter(coll)
	step.AddEvent("candidates filtered",
		attribute.Int("collected", len(coll.Candidates)),
		attribute.Int("retained", len(retained)))

	if len(retained) == 0 {
		logger.Debug("No actionable elements", zap.Int("collected", len(coll.Candidates)))

		return []entity.ElementDescriptor{}, nil
	}

	items := make([]describeItem, len(retained))
	for i, c := range retained {
		items[i] = describeItem{Ordinal: c.Ordinal}
	}

	raw, err = s.page.Evaluate(ctx, describeScript, map[string]any{
		"items":    items,
		"overlays": showOverlays,
	})
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "describe_failed",
			apperr.MetaStage:  apperr.StagePerception,
		})
	}

	paths, err := pagejs.Decode[[]*NodePath](raw)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "describe_decode_failed",
			apperr.MetaStage:  apperr.StagePerception,
		})
	}

	elements = make([]entity.ElementDescriptor, 0, len(retained))

	for i, c := range retained {
		if i >= len(paths) || paths[i] == nil {
			// Detached between the two round trips.
			continue
		}

		elements = append(elements, s.describe(len(elements), c, *paths[i]))
	}

	if dropped := len(retained) - len(elements); dropped > 0 {
		logger.Debug("Candidates detached during scan", zap.Int("dropped", dropped))
	}

	logger.Debug("Scan completed", zap.Int("elements", len(elements)))

	return elements, nil
}

func (s *Scanner) filter(coll collection) []candidate {
	retained := make([]candidate, 0, min(len(coll.Candidates), s.config.ScanLimit))

	for _, c := range coll.Candidates {
		if !c.visible(coll.ViewportHeight) || !c.hasContent() {
			continue
		}

		retained = append(retained, c)
		if len(retained) == s.config.ScanLimit {
			break
		}
	}

	return retained
}

func (s *Scanner) describe(index int, c candidate, path NodePath) entity.ElementDescriptor {
	text := c.InnerText
	if strings.TrimSpace(text) == "" {
		text = c.Value
	}

	text = clip(singleLine(text), s.config.TextLimit)
	label := clip(c.AriaLabel, s.config.LabelLimit)

	display := text
	if display == "" {
		display = label
	}

	sensitive := s.classifier.Sensitive(display)
	if display == "" {
		display = noTextMarker
	}

	return entity.ElementDescriptor{
		Index:     index,
		Tag:       strings.ToUpper(c.Tag),
		Text:      display,
		Selector:  Synthesize(path),
		Sensitive: sensitive,
	}
}

func (s *Scanner) ClearOverlays(ctx context.Context) error {
	const op = "ClearOverlays"

	if _, err := s.page.Evaluate(ctx, clearOverlaysScript, nil); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "clear_overlays_failed",
			apperr.MetaStage:  apperr.StagePerception,
		})
	}

	return nil
}

func singleLine(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)

	return strings.TrimSpace(s)
}

// clip truncates to limit runes.
func clip(s string, limit int) string {
	if limit <= 0 {
		return s
	}

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return strings.TrimSpace(string(runes[:limit]))
}
