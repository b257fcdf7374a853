package availability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFetches       = "watchlist.availability.fetches"
	metricFetchDuration = "watchlist.availability.fetch.duration"
	metricEntries       = "watchlist.availability.entries"
)

// instruments holds the OTEL instruments recorded by the manager.
type instruments struct {
	fetches       metric.Int64Counter
	fetchDuration metric.Float64Histogram
	entries       metric.Int64Counter
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	fetches, err := meter.Int64Counter(metricFetches,
		metric.WithDescription("Remote provider lookups by outcome"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", metricFetches, err)
	}
	fetchDuration, err := meter.Float64Histogram(metricFetchDuration,
		metric.WithDescription("Remote provider lookup latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s histogram: %w", metricFetchDuration, err)
	}
	entries, err := meter.Int64Counter(metricEntries,
		metric.WithDescription("Resolved batch entries by status"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", metricEntries, err)
	}
	return &instruments{fetches: fetches, fetchDuration: fetchDuration, entries: entries}, nil
}

func (i *instruments) recordFetch(ctx context.Context, outcome OutcomeKind, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome.String()))
	i.fetches.Add(ctx, 1, attrs)
	i.fetchDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (i *instruments) recordEntries(ctx context.Context, entries []Entry) {
	counts := make(map[Status]int64, 4)
	for _, entry := range entries {
		counts[entry.Status]++
	}
	for status, n := range counts {
		i.entries.Add(ctx, n, metric.WithAttributes(attribute.String("status", string(status))))
	}
}
