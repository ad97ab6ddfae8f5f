package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/whovisions/costgate/adapters/clock"
	"github.com/whovisions/costgate/adapters/idgen"
	"github.com/whovisions/costgate/adapters/memory"
	"github.com/whovisions/costgate/adapters/metrics"
	"github.com/whovisions/costgate/app"
	"github.com/whovisions/costgate/domain/pricing"
	"github.com/whovisions/costgate/domain/spike"
	"github.com/whovisions/costgate/domain/trend"
)

var baseTime = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func newCollector() *metrics.Collector {
	return metrics.NewWithRegistry(prometheus.NewRegistry())
}

func newTracker(store *memory.PriceStore, fake *clock.Fake) *app.Tracker {
	return app.NewTracker(app.TrackerDeps{
		Store:   store,
		Clock:   fake,
		IDGen:   idgen.NewSequential("obs-"),
		Metrics: newCollector(),
		Logger:  zerolog.Nop(),
	})
}

func record(t *testing.T, tr *app.Tracker, sku, ptype string, price float64) {
	t.Helper()
	_, err := tr.Record(context.Background(), app.RecordParams{
		Service:   "GCP",
		SKUID:     sku,
		PriceType: ptype,
		Price:     decimal.NewFromFloat(price),
		Unit:      "1M tokens",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRecordAndHistory(t *testing.T) {
	store := memory.NewPriceStore()
	fake := clock.NewFake(baseTime)
	tr := newTracker(store, fake)

	record(t, tr, "SKU-1", pricing.TypeInput, 0.10)
	fake.Advance(24 * time.Hour)
	record(t, tr, "SKU-1", pricing.TypeInput, 0.12)

	history, err := tr.History(context.Background(), app.HistoryParams{SKUID: "SKU-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d observations, want 2", len(history))
	}
	if history[0].Metadata[pricing.MetaSource] != pricing.SourceAPI {
		t.Errorf("default source = %q, want api", history[0].Metadata[pricing.MetaSource])
	}
}

func TestHistoryWindow(t *testing.T) {
	store := memory.NewPriceStore()
	fake := clock.NewFake(baseTime)
	tr := newTracker(store, fake)

	record(t, tr, "SKU-1", pricing.TypeInput, 0.10)
	fake.Advance(40 * 24 * time.Hour)
	record(t, tr, "SKU-1", pricing.TypeInput, 0.12)

	history, err := tr.History(context.Background(), app.HistoryParams{SKUID: "SKU-1", Days: 30})
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Errorf("windowed history = %d observations, want 1", len(history))
	}
}

func TestCheckSpikes(t *testing.T) {
	store := memory.NewPriceStore()
	fake := clock.NewFake(baseTime)
	tr := newTracker(store, fake)
	ctx := context.Background()

	// SKU-1 triples (critical), SKU-2 rises 12% (low), SKU-3 falls.
	record(t, tr, "SKU-1", pricing.TypeInput, 0.10)
	record(t, tr, "SKU-2", pricing.TypeOutput, 1.00)
	record(t, tr, "SKU-3", pricing.TypeInput, 0.50)
	fake.Advance(7 * 24 * time.Hour)
	record(t, tr, "SKU-1", pricing.TypeInput, 0.30)
	record(t, tr, "SKU-2", pricing.TypeOutput, 1.12)
	record(t, tr, "SKU-3", pricing.TypeInput, 0.25)

	spikes, err := tr.CheckSpikes(ctx, app.SpikeParams{
		Threshold:    decimal.NewFromInt(10),
		LookbackDays: 30,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(spikes) != 2 {
		t.Fatalf("spikes = %d, want 2", len(spikes))
	}
	if spikes[0].Key.SKUID != "SKU-1" || spikes[0].Severity != spike.SeverityCritical {
		t.Errorf("first spike = %s/%s, want SKU-1/critical", spikes[0].Key.SKUID, spikes[0].Severity)
	}
	if spikes[1].Key.SKUID != "SKU-2" || spikes[1].Severity != spike.SeverityLow {
		t.Errorf("second spike = %s/%s, want SKU-2/low", spikes[1].Key.SKUID, spikes[1].Severity)
	}
}

func TestCheckSpikesSkipsZeroBaseline(t *testing.T) {
	store := memory.NewPriceStore()
	fake := clock.NewFake(baseTime)
	tr := newTracker(store, fake)

	record(t, tr, "FREE", pricing.TypeInput, 0)
	fake.Advance(24 * time.Hour)
	record(t, tr, "FREE", pricing.TypeInput, 5.00)

	spikes, err := tr.CheckSpikes(context.Background(), app.SpikeParams{
		Threshold:    decimal.NewFromInt(10),
		LookbackDays: 30,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(spikes) != 0 {
		t.Errorf("spikes = %v, want none for zero baseline", spikes)
	}
}

func TestTrends(t *testing.T) {
	store := memory.NewPriceStore()
	fake := clock.NewFake(baseTime)
	tr := newTracker(store, fake)

	record(t, tr, "UP", pricing.TypeInput, 0.10)
	record(t, tr, "FLAT", pricing.TypeInput, 0.20)
	fake.Advance(24 * time.Hour)
	record(t, tr, "UP", pricing.TypeInput, 0.20)
	record(t, tr, "FLAT", pricing.TypeInput, 0.20)

	reports, err := tr.Trends(context.Background(), app.TrendParams{Days: 30})
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(reports))
	}

	byID := map[string]trend.Report{}
	for _, r := range reports {
		byID[r.Key.SKUID] = r
	}
	if byID["UP"].Direction != trend.Increasing {
		t.Errorf("UP direction = %s, want increasing", byID["UP"].Direction)
	}
	if byID["FLAT"].Direction != trend.Stable {
		t.Errorf("FLAT direction = %s, want stable", byID["FLAT"].Direction)
	}
}
