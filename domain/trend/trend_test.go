package trend_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/whovisions/costgate/domain/pricing"
	"github.com/whovisions/costgate/domain/trend"
)

var baseTime = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func series(prices ...float64) []pricing.Observation {
	obs := make([]pricing.Observation, 0, len(prices))
	for i, p := range prices {
		obs = append(obs, pricing.Observation{
			Key:          pricing.SKUKey{Service: "GCP", SKUID: "SKU-1", PriceType: pricing.TypeInput},
			PricePerUnit: decimal.NewFromFloat(p),
			Timestamp:    baseTime.AddDate(0, 0, i),
		})
	}
	return obs
}

func TestAnalyze_EmptyWindow(t *testing.T) {
	_, err := trend.Analyze(nil)
	if !errors.Is(err, trend.ErrInsufficientData) {
		t.Errorf("err = %v, want ErrInsufficientData", err)
	}
}

func TestAnalyze_ZeroBaseline(t *testing.T) {
	_, err := trend.Analyze(series(0, 1.0, 2.0))
	if !errors.Is(err, trend.ErrUndefinedBaseline) {
		t.Errorf("err = %v, want ErrUndefinedBaseline", err)
	}
}

func TestAnalyze_ConstantSeriesIsStable(t *testing.T) {
	r, err := trend.Analyze(series(0.25, 0.25, 0.25, 0.25))
	if err != nil {
		t.Fatal(err)
	}
	if r.Direction != trend.Stable {
		t.Errorf("direction = %s, want stable", r.Direction)
	}
	if !r.PercentageChange.IsZero() {
		t.Errorf("percentage change = %s, want 0", r.PercentageChange)
	}
}

func TestAnalyze_RisingSeriesIsIncreasing(t *testing.T) {
	r, err := trend.Analyze(series(0.10, 0.15, 0.20, 0.30))
	if err != nil {
		t.Fatal(err)
	}
	if r.Direction != trend.Increasing {
		t.Errorf("direction = %s, want increasing", r.Direction)
	}
	if !r.PercentageChange.Equal(decimal.NewFromInt(200)) {
		t.Errorf("percentage change = %s, want 200", r.PercentageChange)
	}
}

func TestAnalyze_FallingSeriesIsDecreasing(t *testing.T) {
	r, err := trend.Analyze(series(0.40, 0.30, 0.10))
	if err != nil {
		t.Fatal(err)
	}
	if r.Direction != trend.Decreasing {
		t.Errorf("direction = %s, want decreasing", r.Direction)
	}
}

func TestAnalyze_DeadBand(t *testing.T) {
	// A move within 1% of the first price is noise, not a trend.
	r, err := trend.Analyze(series(1.00, 1.009))
	if err != nil {
		t.Fatal(err)
	}
	if r.Direction != trend.Stable {
		t.Errorf("direction = %s, want stable inside dead-band", r.Direction)
	}

	r, err = trend.Analyze(series(1.00, 1.011))
	if err != nil {
		t.Fatal(err)
	}
	if r.Direction != trend.Increasing {
		t.Errorf("direction = %s, want increasing outside dead-band", r.Direction)
	}
}

func TestAnalyze_Aggregates(t *testing.T) {
	r, err := trend.Analyze(series(0.10, 0.40, 0.20, 0.30))
	if err != nil {
		t.Fatal(err)
	}

	if r.DataPoints != 4 {
		t.Errorf("data points = %d, want 4", r.DataPoints)
	}
	if !r.MinPrice.Equal(decimal.NewFromFloat(0.10)) {
		t.Errorf("min = %s, want 0.10", r.MinPrice)
	}
	if !r.MaxPrice.Equal(decimal.NewFromFloat(0.40)) {
		t.Errorf("max = %s, want 0.40", r.MaxPrice)
	}
	if !r.AveragePrice.Equal(decimal.NewFromFloat(0.25)) {
		t.Errorf("average = %s, want 0.25", r.AveragePrice)
	}
	if !r.FirstPrice.Equal(decimal.NewFromFloat(0.10)) || !r.LastPrice.Equal(decimal.NewFromFloat(0.30)) {
		t.Errorf("first/last = %s/%s, want 0.10/0.30", r.FirstPrice, r.LastPrice)
	}
	if len(r.Timeline) != 4 {
		t.Errorf("timeline = %d points, want 4", len(r.Timeline))
	}
}

func TestAnalyze_SinglePointIsStable(t *testing.T) {
	r, err := trend.Analyze(series(0.10))
	if err != nil {
		t.Fatal(err)
	}
	if r.Direction != trend.Stable || r.DataPoints != 1 {
		t.Errorf("got direction=%s points=%d, want stable/1", r.Direction, r.DataPoints)
	}
}
