package browser

import (
	"context"
	"testing"

	"nano-agent/internal/config"
	"nano-agent/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	return NewManager(Params{
		Config: &config.Config{BrowserConfig: &config.BrowserConfig{ViewportWidth: 1280, ViewportHeight: 800}},
		Logger: zaptest.NewLogger(t),
	})
}

func TestManager_NotLaunched(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	assert.False(t, m.IsReady())

	_, err := m.Evaluate(ctx, "() => 1", nil)
	assert.True(t, apperr.HasCode(err, apperr.CodeBrowserNotReady))

	_, err = m.URL(ctx)
	assert.True(t, apperr.HasCode(err, apperr.CodeBrowserNotReady))

	err = m.Navigate(ctx, "https://example.com")
	assert.True(t, apperr.HasCode(err, apperr.CodeBrowserNotReady))

	assert.NoError(t, m.Close(ctx), "closing an unlaunched browser is a no-op")
}

func TestManager_CancelledContext(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Evaluate(ctx, "() => 1", nil)
	assert.ErrorIs(t, err, context.Canceled)

	assert.ErrorIs(t, m.Navigate(ctx, "https://example.com"), context.Canceled)
}
