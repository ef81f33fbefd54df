package bootstrap

import (
	"context"
	"os"

	"nano-agent/internal/console"
	"nano-agent/internal/ports"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newTerminal(logger *zap.Logger) *console.Terminal {
	return console.NewTerminal(logger, os.Stdout)
}

func runConsole(lc fx.Lifecycle, consoleInterface *console.Interface, browser ports.BrowserManager, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting agent console...")

			if err := browser.Launch(ctx); err != nil {
				logger.Error("Failed to launch browser", zap.Error(err))

				return err
			}

			go func() {
				if err := consoleInterface.Start(); err != nil {
					logger.Error("Console interface error", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down agent...")

			if err := consoleInterface.Stop(ctx); err != nil {
				logger.Warn("Active run did not stop in time", zap.Error(err))
			}

			if err := browser.Close(ctx); err != nil {
				logger.Error("Failed to close browser", zap.Error(err))
			}

			return nil
		},
	})
}
