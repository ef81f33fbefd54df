package browser

import (
	"context"
	"errors"

	"nano-agent/pkg/apperr"
	"nano-agent/pkg/logg"
	"nano-agent/pkg/pagejs"
	"nano-agent/pkg/tracing"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// activePage returns the page to drive, reattaching to another open page (or
// opening a new one) when the current one was closed by the operator.
func (m *Manager) activePage() (playwright.Page, error) {
	m.mu.RLock()
	page, ready, browserContext := m.page, m.ready, m.browserContext
	m.mu.RUnlock()

	if !ready || browserContext == nil {
		return nil, errors.New("browser is not launched")
	}

	if page != nil && !page.IsClosed() {
		return page, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page != nil && !m.page.IsClosed() {
		return m.page, nil
	}

	m.logger.Info("Page closed, reconnecting to active page...")

	for _, p := range m.browserContext.Pages() {
		if !p.IsClosed() {
			m.page = p
			m.logger.Info("Reconnected to existing page")

			return p, nil
		}
	}

	p, err := m.browserContext.NewPage()
	if err != nil {
		return nil, err
	}

	m.page = p
	m.logger.Info("Created new page")

	return p, nil
}

// Evaluate runs fn, a JavaScript function source, against the page with arg
// as its single argument.
func (m *Manager) Evaluate(ctx context.Context, fn string, arg any) (any, error) {
	const op = "Evaluate"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := m.activePage()
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_not_active",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}

	var result any
	if arg == nil {
		result, err = page.Evaluate(fn)
	} else {
		plain, perr := pagejs.Plain(arg)
		if perr != nil {
			return nil, apperr.Wrap(op, apperr.CodeInternal, perr, map[string]any{
				apperr.MetaReason: "argument_encode_failed",
				apperr.MetaStage:  apperr.StageBrowser,
			})
		}

		result, err = page.Evaluate(fn, plain)
	}

	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "evaluate_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}

	return result, nil
}

func (m *Manager) URL(ctx context.Context) (string, error) {
	const op = "URL"

	if err := ctx.Err(); err != nil {
		return "", err
	}

	page, err := m.activePage()
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_not_active",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}

	return page.URL(), nil
}

func (m *Manager) Navigate(ctx context.Context, url string) (err error) {
	const op = "Navigate"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("url", url))
	defer func() {
		step.End(err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	page, err := m.activePage()
	if err != nil {
		return apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_not_active",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}

	step.AddEvent("navigating to URL")

	_, err = page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(m.config.Timeout)),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "goto_failed",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    url,
		})
	}

	logger.Info("Navigation completed")

	return nil
}
