// Package app provides the engine's services, orchestrating domain logic
// over the store and configuration ports.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/whovisions/costgate/adapters/metrics"
	"github.com/whovisions/costgate/domain/pricing"
	"github.com/whovisions/costgate/domain/spike"
	"github.com/whovisions/costgate/domain/trend"
	"github.com/whovisions/costgate/ports"
)

// Tracker records price observations and runs spike and trend checks over
// the store.
type Tracker struct {
	store   ports.PriceStore
	clock   ports.Clock
	idgen   ports.IDGenerator
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// TrackerDeps contains dependencies for the tracker service.
type TrackerDeps struct {
	Store   ports.PriceStore
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Metrics *metrics.Collector
	Logger  zerolog.Logger
}

// NewTracker creates a tracker service.
func NewTracker(deps TrackerDeps) *Tracker {
	return &Tracker{
		store:   deps.Store,
		clock:   deps.Clock,
		idgen:   deps.IDGen,
		metrics: deps.Metrics,
		logger:  deps.Logger.With().Str("component", "tracker").Logger(),
	}
}

// RecordParams describes one observation to append.
type RecordParams struct {
	Service     string
	SKUID       string
	Description string
	PriceType   string
	Price       decimal.Decimal
	Unit        string
	TierStart   *decimal.Decimal
	Source      string // import, manual or api
}

// Record appends one observation to the store.
func (t *Tracker) Record(ctx context.Context, p RecordParams) (pricing.Observation, error) {
	source := p.Source
	if source == "" {
		source = pricing.SourceAPI
	}

	obs := pricing.Observation{
		ID: t.idgen.New(),
		Key: pricing.SKUKey{
			Service:   p.Service,
			SKUID:     p.SKUID,
			PriceType: p.PriceType,
		},
		Description:  p.Description,
		PricePerUnit: p.Price,
		Unit:         p.Unit,
		TierStart:    p.TierStart,
		Timestamp:    t.clock.Now(),
		Metadata:     map[string]string{pricing.MetaSource: source},
	}
	if err := t.store.Append(ctx, obs); err != nil {
		return pricing.Observation{}, fmt.Errorf("record observation: %w", err)
	}

	t.metrics.ObservationsAppended.WithLabelValues(p.Service, source).Inc()
	t.logger.Debug().
		Str("key", obs.Key.String()).
		Str("price", obs.PricePerUnit.String()).
		Msg("observation recorded")
	return obs, nil
}

// HistoryParams filters a history query. Days of zero means no window.
type HistoryParams struct {
	Service   string
	SKUID     string
	PriceType string
	Days      int
}

// History returns matching observations, timestamp-ascending.
func (t *Tracker) History(ctx context.Context, p HistoryParams) ([]pricing.Observation, error) {
	return t.store.Query(ctx, pricing.Filter{
		Service:   p.Service,
		SKUID:     p.SKUID,
		PriceType: p.PriceType,
		Since:     t.since(p.Days),
	})
}

// SpikeParams configures a spike check.
type SpikeParams struct {
	Threshold    decimal.Decimal
	Service      string // empty = all services
	LookbackDays int
}

// CheckSpikes runs spike detection across every SKU with observations in the
// lookback window. SKUs with too little data or a zero baseline are skipped,
// not errors. Spikes come back ordered by descending severity, then
// descending percentage increase.
func (t *Tracker) CheckSpikes(ctx context.Context, p SpikeParams) ([]spike.Spike, error) {
	start := time.Now()
	defer func() {
		t.metrics.SpikeCheckDuration.Observe(time.Since(start).Seconds())
	}()

	obs, err := t.store.Query(ctx, pricing.Filter{
		Service: p.Service,
		Since:   t.since(p.LookbackDays),
	})
	if err != nil {
		return nil, fmt.Errorf("check spikes: %w", err)
	}

	var spikes []spike.Spike
	for _, history := range pricing.GroupByKey(obs) {
		if s, ok := spike.Detect(history, p.Threshold); ok {
			spikes = append(spikes, s)
			t.metrics.SpikesDetected.WithLabelValues(string(s.Severity)).Inc()
		}
	}
	spike.Sort(spikes)

	t.logger.Info().
		Int("spikes", len(spikes)).
		Str("threshold", p.Threshold.String()).
		Int("lookback_days", p.LookbackDays).
		Msg("spike check complete")
	return spikes, nil
}

// TrendParams configures a trend report.
type TrendParams struct {
	Service   string
	SKUID     string
	PriceType string
	Days      int
}

// Trends analyzes the price trend of every SKU matching the filters that has
// observations in the window. SKUs with no in-window data or a zero baseline
// are omitted. Reports come back in stable SKU-key order.
func (t *Tracker) Trends(ctx context.Context, p TrendParams) ([]trend.Report, error) {
	obs, err := t.store.Query(ctx, pricing.Filter{
		Service:   p.Service,
		SKUID:     p.SKUID,
		PriceType: p.PriceType,
		Since:     t.since(p.Days),
	})
	if err != nil {
		return nil, fmt.Errorf("analyze trends: %w", err)
	}

	var reports []trend.Report
	for _, history := range pricing.GroupByKey(obs) {
		r, err := trend.Analyze(history)
		if errors.Is(err, trend.ErrInsufficientData) || errors.Is(err, trend.ErrUndefinedBaseline) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("analyze trends: %w", err)
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Key.String() < reports[j].Key.String()
	})
	return reports, nil
}

// since converts a lookback in days to a cutoff time; zero days means no
// cutoff.
func (t *Tracker) since(days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return t.clock.Now().AddDate(0, 0, -days)
}
