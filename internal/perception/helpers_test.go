package perception

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"nano-agent/internal/config"

	"go.uber.org/zap/zaptest"
)

type evaluateCall struct {
	fn  string
	arg any
}

// fakePage answers in-page functions by script identity.
type fakePage struct {
	handlers map[string]func(arg any) (any, error)
	calls    []evaluateCall
}

func newFakePage() *fakePage {
	return &fakePage{handlers: make(map[string]func(arg any) (any, error))}
}

func (p *fakePage) on(fn string, h func(arg any) (any, error)) {
	p.handlers[fn] = h
}

func (p *fakePage) Evaluate(_ context.Context, fn string, arg any) (any, error) {
	p.calls = append(p.calls, evaluateCall{fn: fn, arg: arg})

	h, ok := p.handlers[fn]
	if !ok {
		return nil, errors.New("unexpected script")
	}

	return h(arg)
}

func (p *fakePage) URL(context.Context) (string, error) {
	return "https://shop.example/", nil
}

func (p *fakePage) count(fn string) int {
	n := 0

	for _, c := range p.calls {
		if c.fn == fn {
			n++
		}
	}

	return n
}

func testConfig() *config.Config {
	return &config.Config{
		PerceptionConfig: &config.PerceptionConfig{
			ScanLimit:       80,
			TextLimit:       50,
			LabelLimit:      30,
			SensitiveTerms:  []string{"buy", "pay", "checkout", "delete", "confirm"},
			ExtractLimit:    8,
			CurrencyMarkers: []string{"$", "₹"},
		},
	}
}

func newTestScanner(t *testing.T, page *fakePage, conf *config.Config) *Scanner {
	t.Helper()

	return NewScanner(Params{
		Config:     conf,
		Logger:     zaptest.NewLogger(t),
		Page:       page,
		Classifier: NewSensitivityClassifier(conf),
	})
}

func button(ordinal int, text string) map[string]any {
	return map[string]any{
		"ordinal":   float64(ordinal),
		"tag":       "BUTTON",
		"innerText": text,
		"value":     "",
		"ariaLabel": "",
		"rect":      map[string]any{"x": 10.0, "y": float64(10 + ordinal), "width": 80.0, "height": 20.0},
	}
}

func pathFor(ordinal int) map[string]any {
	return map[string]any{
		"scopes": []any{
			[]any{
				map[string]any{"tag": "HTML", "position": 1.0, "siblings": 1.0},
				map[string]any{"tag": "BODY", "position": 2.0, "siblings": 2.0},
				map[string]any{"tag": "BUTTON", "position": float64(ordinal + 1), "siblings": 500.0},
			},
		},
	}
}

// describeAll returns a path for every requested ordinal.
func describeAll(arg any) (any, error) {
	args, ok := arg.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected describe args %T", arg)
	}

	items := args["items"].([]describeItem)
	out := make([]any, len(items))

	for i, item := range items {
		out[i] = pathFor(item.Ordinal)
	}

	return out, nil
}

func collected(viewport float64, candidates ...map[string]any) func(any) (any, error) {
	list := make([]any, len(candidates))
	for i, c := range candidates {
		list[i] = c
	}

	return func(any) (any, error) {
		return map[string]any{"viewportHeight": viewport, "candidates": list}, nil
	}
}
