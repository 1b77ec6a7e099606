package scorm

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fpkuniversity/scorm-runtime/core"
)

const meterName = "github.com/fpkuniversity/scorm-runtime/core/scorm"

type metrics struct {
	actions metric.Int64Counter
	evicts  metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter(meterName)
	// instrument errors only happen with invalid names; the no-op counters are used then
	actions, _ := meter.Int64Counter("scorm.runtime.actions",
		metric.WithDescription("Runtime API actions by outcome"))
	evicts, _ := meter.Int64Counter("scorm.runtime.sessions.evicted",
		metric.WithDescription("Idle sessions expired by the session store"))
	return &metrics{actions: actions, evicts: evicts}
}

func outcome(err error) string {
	switch errors.Cause(err) {
	case nil:
		return "ok"
	case ErrSessionInactive, ErrSessionNotInitialized:
		return "invalid_state"
	case ErrRateLimited, ErrSetValueRateLimited, ErrCommitRateLimited:
		return "rate_limited"
	case ErrSCONotFound:
		return "not_found"
	case ErrAccessDenied:
		return "denied"
	case ErrPackageNotReady, ErrSCONotLaunchable:
		return "unavailable"
	}
	if core.IsValidationError(err) {
		return "invalid"
	}
	return "error"
}

func (m *metrics) observe(ctx context.Context, action string, err error) {
	if m.actions == nil {
		return
	}
	m.actions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome(err)),
	))
}

func (m *metrics) evicted(ctx context.Context) {
	if m.evicts == nil {
		return
	}
	m.evicts.Add(ctx, 1)
}
