package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"watchlist/internal/logging"
	"watchlist/internal/region"
)

const (
	DefaultTTL                  = 24 * time.Hour
	DefaultMaxConcurrentFetches = 4
	DefaultFetchTimeout         = 10 * time.Second
)

const tracerName = "watchlist/internal/availability"

// Store is the persistence contract the Manager depends on.
type Store interface {
	// GetMany returns the records that exist for keys. Missing keys are
	// simply absent from the map.
	GetMany(ctx context.Context, keys []Key) (map[Key]Record, error)
	// Put upserts a single record atomically.
	Put(ctx context.Context, record Record) error
}

// Options controls a single Resolve call.
type Options struct {
	// TTL is the maximum age of a record served without a refresh.
	TTL time.Duration
	// ForceRefresh lists keys refreshed regardless of freshness. Its keys
	// are validated like batch keys; keys outside the batch are ignored.
	ForceRefresh KeySet
	// MaxConcurrentFetches bounds in-flight remote lookups.
	MaxConcurrentFetches int
	// FetchTimeout bounds each remote lookup. A timeout counts as a
	// transient error.
	FetchTimeout time.Duration
	// OfflineOnly serves whatever the store holds, stale or not, and never
	// contacts the remote source. ForceRefresh is ignored.
	OfflineOnly bool
}

// DefaultOptions returns the package defaults.
func DefaultOptions() Options {
	return Options{
		TTL:                  DefaultTTL,
		MaxConcurrentFetches: DefaultMaxConcurrentFetches,
		FetchTimeout:         DefaultFetchTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.MaxConcurrentFetches <= 0 {
		o.MaxConcurrentFetches = DefaultMaxConcurrentFetches
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	return o
}

// Manager resolves batches of keys against the store and the remote source.
type Manager struct {
	store   Store
	fetcher Fetcher
	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter
	metrics *instruments
	now     func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source used for freshness checks and
// fetched_at stamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTracer overrides the tracer. The global provider is used by default.
func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(m *Manager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// WithMeter overrides the meter. The global provider is used by default.
func WithMeter(meter metric.Meter) ManagerOption {
	return func(m *Manager) {
		if meter != nil {
			m.meter = meter
		}
	}
}

// NewManager builds a Manager over store and fetcher.
func NewManager(store Store, fetcher Fetcher, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("availability manager requires a store")
	}
	if fetcher == nil {
		return nil, errors.New("availability manager requires a fetcher")
	}
	m := &Manager{
		store:   store,
		fetcher: fetcher,
		logger:  logging.NewNop(),
		tracer:  otel.Tracer(tracerName),
		meter:   otel.Meter(tracerName),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	metrics, err := newInstruments(m.meter)
	if err != nil {
		return nil, err
	}
	m.metrics = metrics
	m.logger = logging.NewComponentLogger(m.logger, "availability")
	return m, nil
}

// Resolve returns one entry per unique key in first-seen order.
//
// Only ErrInvalidRegion, ErrInvalidKey and ErrCorruptRecord fail the call,
// whether they come from the batch or from ForceRefresh.
// Store outages degrade the batch to remote-only mode and per-key fetch
// failures are reported on the entries.
func (m *Manager) Resolve(ctx context.Context, keys []Key, opts Options) (*BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	opts = opts.withDefaults()

	unique, err := dedupeKeys(keys)
	if err != nil {
		return nil, err
	}
	force, err := normalizeKeySet(opts.ForceRefresh)
	if err != nil {
		return nil, fmt.Errorf("force refresh: %w", err)
	}

	ctx, span := m.tracer.Start(ctx, "availability.Resolve", trace.WithAttributes(
		attribute.Int("batch.requested", len(keys)),
		attribute.Int("batch.unique", len(unique)),
		attribute.Bool("batch.offline", opts.OfflineOnly),
	))
	defer span.End()
	logger := logging.WithContext(ctx, m.logger)

	manifest := Manifest{Requested: len(keys), Unique: len(unique)}
	entries := make([]Entry, len(unique))
	for i, key := range unique {
		entries[i].Key = key
	}
	if len(unique) == 0 {
		return newBatchResult(entries, manifest), nil
	}

	prior, err := m.store.GetMany(ctx, unique)
	if err != nil {
		if errors.Is(err, ErrCorruptRecord) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "corrupt store")
			return nil, fmt.Errorf("read cached availability: %w", err)
		}
		manifest.Degraded = true
		prior = nil
		span.AddEvent("store.degraded")
		logging.WarnWithContext(logger, "availability store unavailable; serving remote results only",
			"availability_store_unavailable",
			logging.Error(err),
			logging.Int("key_count", len(unique)),
			logging.String(logging.FieldErrorHint, "check the cache database path and permissions"),
			logging.String(logging.FieldImpact, "cached providers are ignored for this batch"))
	}

	now := m.now()
	refresh := make([]int, 0, len(unique))
	for i, key := range unique {
		record, found := prior[key]
		if found {
			previous := record
			entries[i].Previous = &previous
		}
		switch {
		case opts.OfflineOnly && !found:
			entries[i].Status = StatusMissing
			manifest.Missing++
		case opts.OfflineOnly:
			entries[i].Record = &record
			entries[i].Status = record.StatusAt(now, opts.TTL)
			if entries[i].Status == StatusFresh {
				manifest.ServedFresh++
			} else {
				manifest.ServedStale++
			}
		case !found, force.Has(key):
			refresh = append(refresh, i)
		case record.StatusAt(now, opts.TTL) == StatusFresh:
			entries[i].Record = &record
			entries[i].Status = StatusFresh
			manifest.ServedFresh++
		default:
			refresh = append(refresh, i)
		}
	}

	logger.Debug("availability batch classified",
		logging.Int("unique", len(unique)),
		logging.Int("fresh", manifest.ServedFresh),
		logging.Int("refresh", len(refresh)),
		logging.Int("forced", len(force)),
		logging.Bool("degraded", manifest.Degraded))

	if len(refresh) > 0 {
		m.refresh(ctx, logger, entries, refresh, prior, opts)
	}

	for _, pos := range refresh {
		entry := entries[pos]
		if entry.Status == StatusFetchFailed {
			manifest.Failed++
			if entry.Record != nil {
				manifest.StaleFallbacks++
			}
			continue
		}
		manifest.Refreshed++
		if !entry.Persisted {
			manifest.WriteFailures++
		}
	}

	m.metrics.recordEntries(ctx, entries)
	span.SetAttributes(
		attribute.Int("batch.served_fresh", manifest.ServedFresh),
		attribute.Int("batch.refreshed", manifest.Refreshed),
		attribute.Int("batch.failed", manifest.Failed),
		attribute.Bool("batch.degraded", manifest.Degraded),
	)
	logger.Info("availability batch resolved",
		logging.Int("unique", manifest.Unique),
		logging.Int("served_fresh", manifest.ServedFresh),
		logging.Int("served_stale", manifest.ServedStale),
		logging.Int("refreshed", manifest.Refreshed),
		logging.Int("failed", manifest.Failed),
		logging.Int("missing", manifest.Missing),
		logging.Bool("degraded", manifest.Degraded))

	return newBatchResult(entries, manifest), nil
}

// refresh fetches every entry at positions. Each goroutine owns a distinct
// slot in entries so no further synchronisation is needed.
func (m *Manager) refresh(ctx context.Context, logger *slog.Logger, entries []Entry, positions []int, prior map[Key]Record, opts Options) {
	var group errgroup.Group
	group.SetLimit(opts.MaxConcurrentFetches)
	for _, pos := range positions {
		group.Go(func() error {
			entries[pos] = m.refreshOne(ctx, logger, entries[pos].Key, prior, opts)
			return nil
		})
	}
	_ = group.Wait()
}

func (m *Manager) refreshOne(ctx context.Context, logger *slog.Logger, key Key, prior map[Key]Record, opts Options) Entry {
	entry := Entry{Key: key}
	previous, hadPrevious := prior[key]
	if hadPrevious {
		stored := previous
		entry.Previous = &stored
	}

	outcome := m.fetch(ctx, key, opts.FetchTimeout)
	entry.Outcome = &outcome

	if !outcome.Cacheable() {
		entry.Status = StatusFetchFailed
		if hadPrevious {
			entry.Record = &previous
		}
		logging.WarnWithContext(logger, "provider lookup failed",
			"availability_fetch_failed",
			logging.String("title_id", key.TitleID),
			logging.String("region", string(key.Region)),
			logging.String("outcome", outcome.Kind.String()),
			logging.Error(outcome.Err),
			logging.Bool("stale_fallback", hadPrevious),
			logging.String(logging.FieldErrorHint, "retry later or force a refresh"),
			logging.String(logging.FieldImpact, "previous providers shown when available"))
		return entry
	}

	fetchedAt := m.now()
	if hadPrevious && previous.FetchedAt.After(fetchedAt) {
		fetchedAt = previous.FetchedAt
	}
	record := Record{Key: key, Providers: outcome.providers(), FetchedAt: fetchedAt}
	entry.Record = &record
	entry.Status = StatusFresh
	entry.Refreshed = true

	if err := m.store.Put(ctx, record); err != nil {
		logging.WarnWithContext(logger, "failed to persist refreshed providers",
			"availability_store_write_failed",
			logging.String("title_id", key.TitleID),
			logging.String("region", string(key.Region)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the cache database is writable"),
			logging.String(logging.FieldImpact, "the lookup will be repeated next time"))
		return entry
	}
	entry.Persisted = true
	logger.Debug("providers refreshed",
		logging.String("title_id", key.TitleID),
		logging.String("region", string(key.Region)),
		logging.Strings("providers", record.Providers))
	return entry
}

// fetch runs one remote lookup under its own timeout. The lookup runs in a
// separate goroutine so a fetcher that ignores its context still cannot hold
// the batch past the deadline.
func (m *Manager) fetch(ctx context.Context, key Key, timeout time.Duration) Outcome {
	if err := ctx.Err(); err != nil {
		return TransientError(err)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fetchCtx, span := m.tracer.Start(fetchCtx, "availability.Fetch", trace.WithAttributes(
		attribute.String("title.id", key.TitleID),
		attribute.String("region", string(key.Region)),
	))
	defer span.End()

	started := time.Now()
	done := make(chan Outcome, 1)
	go func() {
		done <- m.fetcher.Fetch(fetchCtx, key.TitleID, key.Region)
	}()

	var outcome Outcome
	select {
	case outcome = <-done:
	case <-fetchCtx.Done():
		outcome = TransientError(fmt.Errorf("fetch %s: %w", key, fetchCtx.Err()))
	}

	switch outcome.Kind {
	case OutcomeFound, OutcomeNotFound, OutcomeRateLimited:
	case OutcomeTransientError:
		if outcome.Err == nil {
			outcome.Err = errors.New("transient fetch failure")
		}
	default:
		outcome = TransientError(fmt.Errorf("unknown fetch outcome %s", outcome.Kind))
	}

	m.metrics.recordFetch(ctx, outcome.Kind, time.Since(started))
	span.SetAttributes(attribute.String("fetch.outcome", outcome.Kind.String()))
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
	}
	return outcome
}

// dedupeKeys validates and normalizes keys, keeping first-seen order.
func dedupeKeys(keys []Key) ([]Key, error) {
	unique := make([]Key, 0, len(keys))
	seen := make(map[Key]struct{}, len(keys))
	for _, key := range keys {
		normalized, err := normalizeKey(key)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		unique = append(unique, normalized)
	}
	return unique, nil
}

func normalizeKey(key Key) (Key, error) {
	code, err := region.Parse(string(key.Region))
	if err != nil {
		return Key{}, fmt.Errorf("key %s: %w", key, err)
	}
	normalized := NewKey(key.TitleID, code)
	if normalized.TitleID == "" {
		return Key{}, fmt.Errorf("%w: empty title id for region %s", ErrInvalidKey, code)
	}
	return normalized, nil
}

// normalizeKeySet applies the batch key rules to a set, so a bad forced key
// fails the call the same way a bad batch key does.
func normalizeKeySet(set KeySet) (KeySet, error) {
	out := make(KeySet, len(set))
	for key := range set {
		normalized, err := normalizeKey(key)
		if err != nil {
			return nil, err
		}
		out[normalized] = struct{}{}
	}
	return out, nil
}
