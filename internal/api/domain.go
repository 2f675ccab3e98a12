package api

import (
	"github.com/JaimeStill/safestack/internal/alerts"
	"github.com/JaimeStill/safestack/internal/amendment"
	"github.com/JaimeStill/safestack/internal/analysis"
	"github.com/JaimeStill/safestack/internal/classifier"
	"github.com/JaimeStill/safestack/internal/media"
	"github.com/JaimeStill/safestack/internal/policies"
	"github.com/JaimeStill/safestack/internal/remediation"
	"github.com/JaimeStill/safestack/internal/videos"
	"github.com/JaimeStill/safestack/pkg/lifecycle"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Policies    policies.System
	Alerts      alerts.System
	Videos      videos.System
	Analysis    analysis.System
	Amendment   amendment.System
	Remediation *remediation.Service
}

// NewDomain creates all domain systems from the API runtime.
// Remediation is nil when no image endpoint is configured.
func NewDomain(runtime *Runtime) *Domain {
	db := runtime.Database.Connection()

	policiesSystem := policies.New(db, runtime.Logger, policies.Options{
		PolicyFile: runtime.Analysis.PolicyFile,
		Watch:      runtime.Analysis.WatchPolicies,
	})

	alertsSystem := alerts.New(
		db,
		policiesSystem,
		runtime.Events,
		runtime.Logger,
		runtime.Pagination,
	)

	videosSystem := videos.New(
		db,
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	domain := &Domain{
		Policies: policiesSystem,
		Alerts:   alertsSystem,
		Videos:   videosSystem,
	}

	rt := &analysis.Runtime{
		Classifier: classifier.New(
			&classifier.AgentModel{Config: runtime.Agent},
			runtime.Logger,
			runtime.Analysis.ClassifyTimeoutDuration(),
		),
		Policies:     policiesSystem,
		Alerts:       alertsSystem,
		Videos:       videosSystem,
		Storage:      runtime.Storage,
		Frames:       media.New(runtime.Analysis.FFmpegPath),
		Logger:       runtime.Logger,
		FrameWorkers: runtime.Analysis.FrameWorkers,
	}

	if runtime.Remediation.Enabled() {
		domain.Remediation = remediation.New(
			&remediation.HTTPRenderer{
				Endpoint: runtime.Remediation.Endpoint,
				Model:    runtime.Remediation.Model,
				Token:    runtime.Remediation.Token,
			},
			alertsSystem,
			runtime.Storage,
			runtime.Logger,
			remediation.Options{
				Workers:   runtime.Remediation.Workers,
				QueueSize: runtime.Remediation.QueueSize,
				Timeout:   runtime.Remediation.TimeoutDuration(),
			},
		)
		rt.Remediation = domain.Remediation
	}

	domain.Analysis = analysis.New(rt, runtime.MaxUploadSize)

	domain.Amendment = amendment.New(
		alertsSystem,
		policiesSystem,
		&amendment.AgentRewriter{Config: runtime.Agent},
		runtime.Logger,
		runtime.Analysis.ClassifyTimeoutDuration(),
	)

	return domain
}

// Start registers background work (policy import and remediation workers)
// with the lifecycle coordinator.
func (d *Domain) Start(lc *lifecycle.Coordinator) error {
	if err := d.Policies.Start(lc); err != nil {
		return err
	}
	if d.Remediation != nil {
		return d.Remediation.Start(lc)
	}
	return nil
}
