package usecase

import (
	"nano-agent/internal/usecase/adapters"
)

type serviceFactory struct {
	deps Params
}

func newServiceFactory(deps Params) *serviceFactory {
	return &serviceFactory{
		deps: deps,
	}
}

func (f *serviceFactory) CreateSafetyGate() *SafetyGate {
	return NewSafetyGate(f.deps.Logger, f.deps.Classifier, f.deps.Confirmer, f.deps.Reporter)
}

func (f *serviceFactory) CreateAgentService() adapters.AgentService {
	return NewAgentService(AgentServiceParams{
		Config:    f.deps.Config,
		Logger:    f.deps.Logger,
		Browser:   f.deps.Browser,
		Scanner:   f.deps.Scanner,
		Extractor: f.deps.Extractor,
		Settle:    f.deps.Settle,
		Executor:  f.deps.Executor,
		Planner:   f.deps.Planner,
		Gate:      f.CreateSafetyGate(),
		Reporter:  f.deps.Reporter,
	})
}

func (f *serviceFactory) CreateBrowserService() adapters.BrowserService {
	return f.deps.Browser
}
