package settle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nano-agent/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedPage replays mutation counts (or errors) for successive polls.
type scriptedPage struct {
	mu          sync.Mutex
	polls       []any
	pollCalls   int
	installs    int
	disconnects int
}

func (p *scriptedPage) Evaluate(_ context.Context, fn string, _ any) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch fn {
	case installScript:
		p.installs++

		return true, nil
	case disconnectScript:
		p.disconnects++

		return true, nil
	case pollScript:
		i := p.pollCalls
		p.pollCalls++

		if i >= len(p.polls) {
			return float64(50), nil
		}

		if err, ok := p.polls[i].(error); ok {
			return nil, err
		}

		return p.polls[i], nil
	default:
		return nil, errors.New("unexpected script")
	}
}

func (p *scriptedPage) URL(context.Context) (string, error) {
	return "", nil
}

func newTestWaiter(t *testing.T, page *scriptedPage, tick time.Duration) *Waiter {
	t.Helper()

	return NewWaiter(Params{
		Config: &config.Config{SettleConfig: &config.SettleConfig{Tick: tick, MaxTicks: 8, Threshold: 2}},
		Logger: zaptest.NewLogger(t),
		Page:   page,
	})
}

func TestAwaitSettled_QuietPageSettlesOnSecondTick(t *testing.T) {
	page := &scriptedPage{polls: []any{0.0, 1.0}}

	report, err := newTestWaiter(t, page, time.Millisecond).AwaitSettled(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Settled)
	assert.Equal(t, 2, report.Ticks, "first tick must not count as quiet")
	assert.Equal(t, 1, page.installs)
	assert.Equal(t, 1, page.disconnects)
}

func TestAwaitSettled_WaitsForActivityToDrop(t *testing.T) {
	page := &scriptedPage{polls: []any{30.0, 12.0, 5.0, 1.0}}

	report, err := newTestWaiter(t, page, time.Millisecond).AwaitSettled(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Settled)
	assert.Equal(t, 4, report.Ticks)
	assert.Equal(t, 48, report.Mutations)
}

func TestAwaitSettled_CapUnderContinuousMutation(t *testing.T) {
	page := &scriptedPage{}
	tick := 5 * time.Millisecond

	start := time.Now()
	report, err := newTestWaiter(t, page, tick).AwaitSettled(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, report.Settled)
	assert.Equal(t, 8, report.Ticks)
	assert.Equal(t, 8, page.pollCalls)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, 1, page.disconnects)
}

func TestAwaitSettled_ReinstalledObserverCountsAsBusy(t *testing.T) {
	page := &scriptedPage{polls: []any{0.0, -1.0, 0.0}}

	report, err := newTestWaiter(t, page, time.Millisecond).AwaitSettled(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Settled)
	assert.Equal(t, 3, report.Ticks)
}

func TestAwaitSettled_PollErrorsCountAsBusy(t *testing.T) {
	page := &scriptedPage{polls: []any{0.0, errors.New("context destroyed"), 0.0}}

	report, err := newTestWaiter(t, page, time.Millisecond).AwaitSettled(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Settled)
	assert.Equal(t, 3, report.Ticks)
}

func TestAwaitSettled_ContextCancelled(t *testing.T) {
	page := &scriptedPage{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestWaiter(t, page, time.Hour).AwaitSettled(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, page.disconnects, "observer must be disconnected on every exit")
}
