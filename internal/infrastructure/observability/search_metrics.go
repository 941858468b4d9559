package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SearchMetrics counts hybrid search decisions.
type SearchMetrics struct {
	supplementalInvocations metric.Int64Counter
	supplementalFailures    metric.Int64Counter
	dedupDropped            metric.Int64Counter
	resultCount             metric.Int64Histogram
}

var (
	searchMetricsOnce sync.Once
	searchMetrics     *SearchMetrics
)

// GetSearchMetrics returns the process-wide search instruments, creating
// them on first use against the global meter provider.
func GetSearchMetrics() *SearchMetrics {
	searchMetricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		m := &SearchMetrics{}
		var err error
		if m.supplementalInvocations, err = meter.Int64Counter("search.supplemental.invocations",
			metric.WithDescription("Supplemental lookups triggered by a thin primary result")); err != nil {
			GetLogger().Warn().Err(err).Msg("search metric unavailable")
		}
		if m.supplementalFailures, err = meter.Int64Counter("search.supplemental.failures",
			metric.WithDescription("Supplemental lookups that failed or timed out")); err != nil {
			GetLogger().Warn().Err(err).Msg("search metric unavailable")
		}
		if m.dedupDropped, err = meter.Int64Counter("search.dedup.dropped",
			metric.WithDescription("Supplemental candidates dropped as duplicates")); err != nil {
			GetLogger().Warn().Err(err).Msg("search metric unavailable")
		}
		if m.resultCount, err = meter.Int64Histogram("search.result.count",
			metric.WithDescription("Ranked candidates returned per search")); err != nil {
			GetLogger().Warn().Err(err).Msg("search metric unavailable")
		}
		searchMetrics = m
	})
	return searchMetrics
}

// SupplementalInvoked records a supplemental lookup.
func (m *SearchMetrics) SupplementalInvoked(ctx context.Context) {
	if m == nil || m.supplementalInvocations == nil {
		return
	}
	m.supplementalInvocations.Add(ctx, 1)
}

// SupplementalFailed records a failed supplemental lookup.
func (m *SearchMetrics) SupplementalFailed(ctx context.Context, reason string) {
	if m == nil || m.supplementalFailures == nil {
		return
	}
	m.supplementalFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// DuplicatesDropped records n dropped supplemental duplicates.
func (m *SearchMetrics) DuplicatesDropped(ctx context.Context, n int) {
	if m == nil || m.dedupDropped == nil || n == 0 {
		return
	}
	m.dedupDropped.Add(ctx, int64(n))
}

// Results records the size of a ranked response.
func (m *SearchMetrics) Results(ctx context.Context, n int, assessment bool) {
	if m == nil || m.resultCount == nil {
		return
	}
	m.resultCount.Record(ctx, int64(n), metric.WithAttributes(attribute.Bool("assessment", assessment)))
}
