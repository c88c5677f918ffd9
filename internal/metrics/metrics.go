// Package metrics records pipeline instrumentation through the OpenTelemetry
// global meter. Without a configured SDK every instrument is a no-op.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("github.com/thebtf/prism")

	externalCalls, _ = meter.Int64Counter("prism.external_calls",
		metric.WithDescription("External collaborator calls by kind"))
	stageDuration, _ = meter.Float64Histogram("prism.stage_duration_seconds",
		metric.WithDescription("Pipeline stage wall time"),
		metric.WithUnit("s"))
)

// ExternalCall counts one outgoing collaborator call of the given kind
// (embed, label, reduce, summarize, project).
func ExternalCall(ctx context.Context, kind string) {
	externalCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// StageCompleted records the wall time of a finished pipeline stage.
func StageCompleted(ctx context.Context, stage string, took time.Duration) {
	stageDuration.Record(ctx, took.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}
