package bootstrap

import (
	"time"

	"nano-agent/internal/action"
	"nano-agent/internal/ai"
	"nano-agent/internal/browser"
	"nano-agent/internal/config"
	"nano-agent/internal/console"
	"nano-agent/internal/perception"
	"nano-agent/internal/ports"
	"nano-agent/internal/settle"
	"nano-agent/internal/usecase"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func NewApp(opts console.Options) *fx.App {
	return fx.New(
		fx.Supply(opts),

		fx.Provide(
			config.GetConfig,
			newLogger,
			newTraceProvider,

			fx.Annotate(browser.NewManager,
				fx.As(new(ports.BrowserManager)),
				fx.As(new(ports.PageExecutor))),

			fx.Annotate(perception.NewSensitivityClassifier,
				fx.As(fx.Self()),
				fx.As(new(ports.SensitivityClassifier))),
			fx.Annotate(perception.NewScanner, fx.As(new(ports.Scanner))),
			fx.Annotate(perception.NewExtractor, fx.As(new(ports.Extractor))),
			fx.Annotate(settle.NewWaiter, fx.As(new(ports.SettleDetector))),
			fx.Annotate(action.NewExecutor, fx.As(new(ports.ActionExecutor))),
			fx.Annotate(ai.NewClient, fx.As(new(ports.Planner))),

			newTerminal,
			func(t *console.Terminal) ports.Reporter { return t },
			func(t *console.Terminal) ports.Confirmer { return t },

			usecase.NewUsecase,

			console.NewInterface,
		),

		fx.Invoke(
			func(*sdktrace.TracerProvider) {},
			runConsole,
		),

		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),

		fx.StartTimeout(5*time.Minute),
	)
}
