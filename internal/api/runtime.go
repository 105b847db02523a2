package api

import (
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/Samy8769/mail-classifier-3/internal/config"
	"github.com/Samy8769/mail-classifier-3/internal/infrastructure"
	"github.com/Samy8769/mail-classifier-3/internal/pipeline"
	"github.com/Samy8769/mail-classifier-3/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Agent      gaconfig.AgentConfig
	Pipeline   pipeline.Config
	Pagination pagination.Config
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
		},
		Agent:      cfg.Agent,
		Pipeline:   cfg.Pipeline.ToPipeline(),
		Pagination: cfg.API.Pagination,
	}
}
