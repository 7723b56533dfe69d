package usecase

import (
	"context"
	"sort"
	"time"
)

// HealthCheck reports whether an optional backing service is reachable
type HealthCheck func(ctx context.Context) error

type HealthReport struct {
	Status     string            `json:"status"` // ok or degraded
	Components map[string]string `json:"components"`
}

type HealthUsecase interface {
	Check(ctx context.Context) HealthReport
}

type healthUsecase struct {
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthUsecase takes checks for the configured services only
func NewHealthUsecase(checks map[string]HealthCheck) HealthUsecase {
	return &healthUsecase{checks: checks, timeout: 2 * time.Second}
}

func (u *healthUsecase) Check(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	names := make([]string, 0, len(u.checks))
	for name := range u.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report := HealthReport{Status: "ok", Components: make(map[string]string, len(names))}
	for _, name := range names {
		if err := u.checks[name](ctx); err != nil {
			report.Components[name] = "unavailable"
			report.Status = "degraded"
			continue
		}
		report.Components[name] = "ok"
	}
	return report
}
