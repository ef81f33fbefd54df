package adapters

import (
	"context"

	"nano-agent/internal/entity"
)

type BrowserService interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	IsReady() bool
}

type AgentService interface {
	Execute(ctx context.Context, goal string, opts entity.RunOptions) (*entity.Run, error)
	Stop()
	Active() bool
}
