package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"

	"github.com/adpilot/adpilot/internal/core/engine"
	"github.com/adpilot/adpilot/internal/core/store"
	errwrap "github.com/adpilot/adpilot/internal/errors"
	"github.com/adpilot/adpilot/internal/observability"
	"github.com/adpilot/adpilot/internal/server/handlers"
)

// queueDegradedFactor marks a platform degraded once its queue exceeds this
// multiple of its concurrency cap.
const queueDegradedFactor = 4

type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

type identityHealthChecker struct {
	identity *appidentity.Identity
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.identity == nil:
		return errwrap.NewConfigInvalidError("app identity not loaded")
	case i.identity.BinaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.identity.EnvPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.identity.ConfigName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}

// storeHealthChecker pings the verdict and cost store.
type storeHealthChecker struct {
	store *store.Store
}

func (s storeHealthChecker) CheckHealth(ctx context.Context) error {
	if s.store == nil {
		return errwrap.NewDatabaseError("store not opened")
	}
	if err := s.store.Ping(ctx); err != nil {
		return errwrap.WrapDatabaseError(ctx, err, "store ping failed")
	}
	return nil
}

// executorHealthChecker reports degraded when platform queues back up.
type executorHealthChecker struct {
	limiter *engine.Limiter
}

func (e executorHealthChecker) CheckHealth(ctx context.Context) error {
	if e.limiter == nil {
		return errwrap.NewInternalError("executor limiter not initialized")
	}
	var backed []string
	for _, snap := range e.limiter.Snapshots() {
		if snap.Limit.MaxConcurrent > 0 && snap.Queued > snap.Limit.MaxConcurrent*queueDegradedFactor {
			backed = append(backed, fmt.Sprintf("%s queued=%d", snap.Key, snap.Queued))
		}
	}
	if len(backed) > 0 {
		sort.Strings(backed)
		return &handlers.DegradedError{Reason: strings.Join(backed, ", ")}
	}
	return nil
}

// registerHealthChecks wires the server's checkers into hm.
func registerHealthChecks(hm *handlers.HealthManager, identity *appidentity.Identity, rt *appRuntime, metricsEnabled bool) {
	hm.RegisterChecker("app_identity", identityHealthChecker{identity: identity})
	hm.RegisterChecker("store", storeHealthChecker{store: rt.store})
	hm.RegisterChecker("executor", executorHealthChecker{limiter: rt.executor.Limiter})
	if metricsEnabled {
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
	}
}
