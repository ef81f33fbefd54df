package usecase

import (
	"nano-agent/internal/config"
	"nano-agent/internal/ports"
	"nano-agent/internal/usecase/adapters"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	Agent   adapters.AgentService
	Browser adapters.BrowserService
}

type Params struct {
	fx.In

	Logger     *zap.Logger
	Config     *config.Config
	Browser    ports.BrowserManager
	Scanner    ports.Scanner
	Extractor  ports.Extractor
	Settle     ports.SettleDetector
	Executor   ports.ActionExecutor
	Planner    ports.Planner
	Classifier ports.SensitivityClassifier
	Confirmer  ports.Confirmer
	Reporter   ports.Reporter
}

func NewUsecase(params Params) *Service {
	factory := newServiceFactory(params)

	return &Service{
		Agent:   factory.CreateAgentService(),
		Browser: factory.CreateBrowserService(),
	}
}
