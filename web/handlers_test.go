package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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
	"github.com/whovisions/costgate/config"
	"github.com/whovisions/costgate/domain/fallback"
	"github.com/whovisions/costgate/domain/route"
	"github.com/whovisions/costgate/domain/tier"
	"github.com/whovisions/costgate/ports"
	"github.com/whovisions/costgate/web"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	handler *web.Handler
	store   *memory.PriceStore
	clock   *clock.Fake
}

func newFixture(t *testing.T, invoker ports.TierInvoker) *fixture {
	t.Helper()

	cfg := config.Default()
	store := memory.NewPriceStore()
	fc := clock.NewFake(baseTime)
	ids := idgen.NewSequential("obs")
	reg := prometheus.NewRegistry()
	coll := metrics.NewWithRegistry(reg)
	logger := zerolog.Nop()

	tracker := app.NewTracker(app.TrackerDeps{
		Store: store, Clock: fc, IDGen: ids, Metrics: coll, Logger: logger,
	})
	specs := cfg.TierSpecs
	estimator := app.NewEstimator(app.EstimatorDeps{
		Store: store, Specs: specs, Clock: fc, Metrics: coll, Logger: logger,
	})
	executor := app.NewExecutor(app.ExecutorDeps{
		Estimator: estimator,
		Specs:     specs,
		Routing: func() (route.Table, fallback.Chains) {
			return cfg.RoutingTable(), cfg.Chains()
		},
		Clock:   fc,
		Metrics: coll,
		Logger:  logger,
	})

	return &fixture{
		handler: web.NewHandler(web.Deps{
			Tracker:   tracker,
			Estimator: estimator,
			Executor:  executor,
			Invoker:   invoker,
			Clock:     fc,
			Registry:  reg,
			Logger:    logger,
		}),
		store: store,
		clock: fc,
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, w.Body.String())
	}
}

func succeedingInvoker() ports.TierInvoker {
	return ports.TierInvokerFunc(func(ctx context.Context, spec tier.Spec) ports.Outcome {
		return ports.Outcome{}
	})
}

func TestHealth(t *testing.T) {
	fx := newFixture(t, succeedingInvoker())
	w := doJSON(t, fx.handler.Router(), http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	fx := newFixture(t, succeedingInvoker())
	w := doJSON(t, fx.handler.Router(), http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRecordAndHistory(t *testing.T) {
	fx := newFixture(t, succeedingInvoker())
	router := fx.handler.Router()

	w := doJSON(t, router, http.MethodPost, "/pricing/record", map[string]any{
		"service":    "Gemini API",
		"sku_id":     "FLASH-IN",
		"price_type": "input",
		"price_per_unit": "0.10",
		"unit":       "1M tokens",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("record status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var created struct {
		ID       string          `json:"id"`
		Price    decimal.Decimal `json:"price_per_unit"`
		Observed time.Time       `json:"observed_at"`
	}
	decodeBody(t, w, &created)
	if created.ID == "" {
		t.Error("created observation has no id")
	}
	if !created.Price.Equal(decimal.RequireFromString("0.10")) {
		t.Errorf("price = %s, want 0.10", created.Price)
	}

	w = doJSON(t, router, http.MethodGet, "/pricing/history?service=Gemini+API&sku_id=FLASH-IN", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d, want 200", w.Code)
	}
	var hist struct {
		Count        int `json:"count"`
		Observations []struct {
			SKUID string `json:"sku_id"`
		} `json:"observations"`
	}
	decodeBody(t, w, &hist)
	if hist.Count != 1 || len(hist.Observations) != 1 {
		t.Fatalf("history count = %d, want 1", hist.Count)
	}
	if hist.Observations[0].SKUID != "FLASH-IN" {
		t.Errorf("sku = %q, want FLASH-IN", hist.Observations[0].SKUID)
	}
}

func TestRecordRejectsInvalid(t *testing.T) {
	fx := newFixture(t, succeedingInvoker())
	router := fx.handler.Router()

	// Missing service and SKU.
	w := doJSON(t, router, http.MethodPost, "/pricing/record", map[string]any{
		"price_per_unit": "0.10",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/pricing/record", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestSpikesEndpoint(t *testing.T) {
	fx := newFixture(t, succeedingInvoker())
	router := fx.handler.Router()

	record := func(price string) {
		w := doJSON(t, router, http.MethodPost, "/pricing/record", map[string]any{
			"service":    "Gemini API",
			"sku_id":     "PRO-OUT",
			"price_type": "output",
			"price_per_unit": price,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("record failed: %d %s", w.Code, w.Body.String())
		}
		fx.clock.Advance(24 * time.Hour)
	}
	record("10.00")
	record("13.00") // +30%

	w := doJSON(t, router, http.MethodGet, "/pricing/spikes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Count  int `json:"count"`
		Spikes []struct {
			Severity           string          `json:"severity"`
			PercentageIncrease decimal.Decimal `json:"percentage_increase"`
		} `json:"spikes"`
	}
	decodeBody(t, w, &resp)
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1 spike", resp.Count)
	}
	if resp.Spikes[0].Severity != "high" {
		t.Errorf("severity = %q, want high", resp.Spikes[0].Severity)
	}
	if !resp.Spikes[0].PercentageIncrease.Equal(decimal.NewFromInt(30)) {
		t.Errorf("pct = %s, want 30", resp.Spikes[0].PercentageIncrease)
	}

	// A 50% threshold filters the spike out.
	w = doJSON(t, router, http.MethodGet, "/pricing/spikes?threshold=50", nil)
	decodeBody(t, w, &resp)
	if resp.Count != 0 {
		t.Errorf("count at threshold 50 = %d, want 0", resp.Count)
	}

	w = doJSON(t, router, http.MethodGet, "/pricing/spikes?threshold=abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad threshold status = %d, want 400", w.Code)
	}
}

func TestTrendsEndpoint(t *testing.T) {
	fx := newFixture(t, succeedingInvoker())
	router := fx.handler.Router()

	for _, price := range []string{"1.00", "1.10", "1.20"} {
		doJSON(t, router, http.MethodPost, "/pricing/record", map[string]any{
			"service":    "Gemini API",
			"sku_id":     "PRO-IN",
			"price_type": "input",
			"price_per_unit": price,
		})
		fx.clock.Advance(24 * time.Hour)
	}

	w := doJSON(t, router, http.MethodGet, "/pricing/trends?service=Gemini+API", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Count  int `json:"count"`
		Trends []struct {
			Direction  string `json:"direction"`
			DataPoints int    `json:"data_points"`
		} `json:"trends"`
	}
	decodeBody(t, w, &resp)
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Trends[0].Direction != "increasing" {
		t.Errorf("direction = %q, want increasing", resp.Trends[0].Direction)
	}
	if resp.Trends[0].DataPoints != 3 {
		t.Errorf("data points = %d, want 3", resp.Trends[0].DataPoints)
	}
}

func TestEstimateEndpoint(t *testing.T) {
	fx := newFixture(t, succeedingInvoker())
	router := fx.handler.Router()

	w := doJSON(t, router, http.MethodPost, "/route/estimate", map[string]any{
		"tier":          "default",
		"input_tokens":  1_000_000,
		"output_tokens": 0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		EstimatedCost decimal.Decimal `json:"estimated_cost"`
	}
	decodeBody(t, w, &resp)
	if !resp.EstimatedCost.Equal(decimal.RequireFromString("0.10")) {
		t.Errorf("cost = %s, want 0.10", resp.EstimatedCost)
	}

	w = doJSON(t, router, http.MethodPost, "/route/estimate", map[string]any{
		"tier": "no_such_tier",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown tier status = %d, want 404", w.Code)
	}
}

func TestExecuteEndpoint(t *testing.T) {
	fx := newFixture(t, succeedingInvoker())
	router := fx.handler.Router()

	w := doJSON(t, router, http.MethodPost, "/route/execute", map[string]any{
		"complexity":    "simple",
		"subscription":  "free",
		"input_tokens":  1000,
		"output_tokens": 500,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		State      string   `json:"state"`
		Tier       string   `json:"tier"`
		Attempts   int      `json:"attempts"`
		TiersTried []string `json:"tiers_tried"`
	}
	decodeBody(t, w, &resp)
	if resp.State != "succeeded" {
		t.Errorf("state = %q, want succeeded", resp.State)
	}
	if resp.Tier != "default" {
		t.Errorf("tier = %q, want default", resp.Tier)
	}
	if resp.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", resp.Attempts)
	}
}

func TestExecuteEndpointBadInput(t *testing.T) {
	invoker := ports.TierInvokerFunc(func(ctx context.Context, spec tier.Spec) ports.Outcome {
		return ports.Outcome{Kind: fallback.KindBadInput, Err: context.Canceled}
	})
	fx := newFixture(t, invoker)

	w := doJSON(t, fx.handler.Router(), http.MethodPost, "/route/execute", map[string]any{
		"complexity":   "simple",
		"subscription": "free",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
	var resp struct {
		State  string `json:"state"`
		Reason string `json:"reason"`
	}
	decodeBody(t, w, &resp)
	if resp.Reason != "bad_input" {
		t.Errorf("reason = %q, want bad_input", resp.Reason)
	}
}

func TestExecuteEndpointChainExhausted(t *testing.T) {
	invoker := ports.TierInvokerFunc(func(ctx context.Context, spec tier.Spec) ports.Outcome {
		return ports.Outcome{Kind: fallback.KindTimeout, Err: context.DeadlineExceeded}
	})
	fx := newFixture(t, invoker)

	w := doJSON(t, fx.handler.Router(), http.MethodPost, "/route/execute", map[string]any{
		"complexity":   "trivial",
		"subscription": "free",
	})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Reason string `json:"reason"`
	}
	decodeBody(t, w, &resp)
	if resp.Reason != "chain_exhausted" {
		t.Errorf("reason = %q, want chain_exhausted", resp.Reason)
	}
}
