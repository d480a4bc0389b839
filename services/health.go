package services

import (
	"context"
	"time"

	"github.com/princinho/sahoassist/ai"
	"github.com/princinho/sahoassist/utils"
)

// Health check states.
const (
	CheckOK            = "ok"
	CheckFailed        = "failed"
	CheckNotConfigured = "not_configured"
)

type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthReport struct {
	Status    string           `json:"status"`
	Checks    map[string]Check `json:"checks"`
	Timestamp time.Time        `json:"timestamp"`
}

// HealthService probes the store, the AI provider and object storage.
type HealthService struct {
	deps    Deps
	gateway *ai.Gateway
	storage utils.ObjectStore
	timeout time.Duration
}

func NewHealthService(deps Deps, gateway *ai.Gateway, storage utils.ObjectStore) *HealthService {
	return &HealthService{deps: deps.withDefaults(), gateway: gateway, storage: storage, timeout: 10 * time.Second}
}

// Check is healthy only when no probe failed; unconfigured probes do not degrade it.
func (h *HealthService) Check(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	checks := map[string]Check{
		"database": probe(func() error { return h.deps.Store.Ping(ctx) }, "connected"),
	}

	if h.gateway == nil || !h.gateway.Configured() {
		checks["ai_api"] = Check{Status: CheckNotConfigured, Message: "no AI provider credentials configured"}
	} else {
		checks["ai_api"] = probe(func() error { return h.gateway.Ping(ctx) }, h.gateway.ModelName()+" reachable")
	}

	if h.storage == nil {
		checks["storage"] = Check{Status: CheckNotConfigured, Message: "no object storage configured"}
	} else {
		checks["storage"] = probe(func() error { return h.storage.Ping(ctx) }, h.storage.Name()+" writable")
	}

	status := "healthy"
	for _, c := range checks {
		if c.Status == CheckFailed {
			status = "degraded"
		}
	}
	return HealthReport{Status: status, Checks: checks, Timestamp: h.deps.Now()}
}

func probe(fn func() error, okMsg string) Check {
	if err := fn(); err != nil {
		return Check{Status: CheckFailed, Message: err.Error()}
	}
	return Check{Status: CheckOK, Message: okMsg}
}
