package api

import (
	"github.com/JaimeStill/safestack/internal/config"
	"github.com/JaimeStill/safestack/internal/infrastructure"
	"github.com/JaimeStill/safestack/pkg/pagination"
)

// Runtime is the infrastructure as seen by API domain systems: a logger
// tagged module=api plus the config sections the domains read.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination    pagination.Config
	MaxUploadSize int64
	Analysis      config.AnalysisConfig
	Remediation   config.RemediationConfig
}

func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: infra.Scoped("module", "api"),
		Pagination:     cfg.API.Pagination,
		MaxUploadSize:  cfg.API.MaxUploadSizeBytes(),
		Analysis:       cfg.Analysis,
		Remediation:    cfg.Remediation,
	}
}
