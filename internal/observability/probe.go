package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ProbeDisabled turns the scheduled probe off.
const ProbeDisabled = "off"

// DependencyProber runs the readiness checks on a cron schedule and publishes
// each result on the dependency_up gauge, so an outage shows up in metrics
// even when nobody polls /readyz.
type DependencyProber struct {
	health   *HealthChecker
	metrics  *MetricsCollector
	logger   *slog.Logger
	schedule cron.Schedule
	spec     string
}

// NewDependencyProber parses spec (standard 5-field cron or a descriptor such
// as "@every 30s"). Returns nil for an empty spec or ProbeDisabled.
func NewDependencyProber(spec string, health *HealthChecker, metrics *MetricsCollector, logger *slog.Logger) (*DependencyProber, error) {
	if spec == "" || spec == ProbeDisabled {
		return nil, nil
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing probe schedule %q: %w", spec, err)
	}
	return &DependencyProber{
		health:   health,
		metrics:  metrics,
		logger:   logger,
		schedule: schedule,
		spec:     spec,
	}, nil
}

// Start probes once immediately, then on every scheduled tick until ctx is
// cancelled or the returned cancel function is called.
func (p *DependencyProber) Start(ctx context.Context) func() {
	if p == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		p.logger.InfoContext(ctx, "dependency probe started", slog.String("schedule", p.spec))
		p.Probe(ctx)

		for {
			next := p.schedule.Next(time.Now())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				p.logger.Info("dependency probe stopped")
				return
			case <-timer.C:
				p.Probe(ctx)
			}
		}
	}()

	return cancel
}

// Probe runs every readiness check once and records the results.
func (p *DependencyProber) Probe(ctx context.Context) HealthStatus {
	status := p.health.CheckReady(ctx)
	if p.metrics != nil {
		for name, res := range status.Checks {
			up := 0.0
			if res.Status == "ok" {
				up = 1
			}
			p.metrics.DependencyUp.WithLabelValues(name).Set(up)
		}
	}
	return status
}
