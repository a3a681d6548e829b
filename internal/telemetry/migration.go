package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/accbmad/accbmad/internal/migrate/apply"
)

// Metric names recorded by migration runs.
const (
	MetricCopied   = "accbmad.migrate.copied"
	MetricSkipped  = "accbmad.migrate.skipped"
	MetricErrors   = "accbmad.migrate.errors"
	MetricDuration = "accbmad.migrate.duration"
)

// MigrationMetrics counts executor outcomes. It implements apply.Observer.
type MigrationMetrics struct {
	copied   metric.Int64Counter
	skipped  metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMigrationMetrics registers the migration instruments on the global meter.
func NewMigrationMetrics() (*MigrationMetrics, error) {
	m := Meter("")
	var (
		mm  MigrationMetrics
		err error
	)
	if mm.copied, err = m.Int64Counter(MetricCopied,
		metric.WithDescription("Manifest entries copied")); err != nil {
		return nil, err
	}
	if mm.skipped, err = m.Int64Counter(MetricSkipped,
		metric.WithDescription("Manifest entries skipped (already present or needs transform)")); err != nil {
		return nil, err
	}
	if mm.errors, err = m.Int64Counter(MetricErrors,
		metric.WithDescription("Manifest entries that failed")); err != nil {
		return nil, err
	}
	if mm.duration, err = m.Float64Histogram(MetricDuration,
		metric.WithDescription("Wall time of a detect or execute run"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return &mm, nil
}

// Observe implements apply.Observer.
func (m *MigrationMetrics) Observe(ctx context.Context, r apply.EntryResult) {
	attrs := metric.WithAttributes(attribute.String("outcome", string(r.Outcome)))
	switch {
	case r.Outcome.IsError():
		m.errors.Add(ctx, 1, attrs)
	case r.Outcome.IsSkip():
		m.skipped.Add(ctx, 1, attrs)
	case r.Outcome == apply.OutcomeCopied:
		m.copied.Add(ctx, 1, attrs)
	}
}

// RecordRun records the duration of one command run.
func (m *MigrationMetrics) RecordRun(ctx context.Context, mode string, d time.Duration) {
	m.duration.Record(ctx, float64(d)/float64(time.Millisecond),
		metric.WithAttributes(attribute.String("mode", mode)))
}
