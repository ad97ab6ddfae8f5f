package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whovisions/costgate/app"
	"github.com/whovisions/costgate/domain/fallback"
	"github.com/whovisions/costgate/domain/pricing"
	"github.com/whovisions/costgate/domain/route"
	"github.com/whovisions/costgate/domain/tier"
)

type recordRequest struct {
	Service     string           `json:"service"`
	SKUID       string           `json:"sku_id"`
	Description string           `json:"sku_description"`
	PriceType   string           `json:"price_type"`
	Price       decimal.Decimal  `json:"price_per_unit"`
	Unit        string           `json:"unit"`
	TierStart   *decimal.Decimal `json:"tier_start,omitempty"`
}

type observationResponse struct {
	ID          string           `json:"id"`
	Service     string           `json:"service"`
	SKUID       string           `json:"sku_id"`
	Description string           `json:"sku_description,omitempty"`
	PriceType   string           `json:"price_type"`
	Price       decimal.Decimal  `json:"price_per_unit"`
	Unit        string           `json:"unit,omitempty"`
	TierStart   *decimal.Decimal `json:"tier_start,omitempty"`
	ObservedAt  time.Time        `json:"observed_at"`
}

func toObservationResponse(obs pricing.Observation) observationResponse {
	return observationResponse{
		ID:          obs.ID,
		Service:     obs.Key.Service,
		SKUID:       obs.Key.SKUID,
		Description: obs.Description,
		PriceType:   obs.Key.PriceType,
		Price:       obs.PricePerUnit,
		Unit:        obs.Unit,
		TierStart:   obs.TierStart,
		ObservedAt:  obs.Timestamp,
	}
}

// RecordPrice appends one price observation.
func (h *Handler) RecordPrice(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	obs, err := h.tracker.Record(r.Context(), app.RecordParams{
		Service:     req.Service,
		SKUID:       req.SKUID,
		Description: req.Description,
		PriceType:   req.PriceType,
		Price:       req.Price,
		Unit:        req.Unit,
		TierStart:   req.TierStart,
		Source:      pricing.SourceAPI,
	})
	if err != nil {
		if errors.Is(err, pricing.ErrStorageUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toObservationResponse(obs))
}

// PriceHistory returns matching observations, oldest first.
func (h *Handler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	obs, err := h.tracker.History(r.Context(), app.HistoryParams{
		Service:   q.Get("service"),
		SKUID:     q.Get("sku_id"),
		PriceType: q.Get("price_type"),
		Days:      h.intParam(q.Get("days"), h.defaultLookback),
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("price history query failed")
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	out := make([]observationResponse, 0, len(obs))
	for _, o := range obs {
		out = append(out, toObservationResponse(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":        len(out),
		"observations": out,
	})
}

// Spikes runs spike detection over the lookback window.
func (h *Handler) Spikes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	threshold := decimal.NewFromFloat(h.defaultThreshold)
	if raw := q.Get("threshold"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid threshold")
			return
		}
		threshold = parsed
	}

	lookback := h.intParam(q.Get("days"), h.defaultLookback)
	spikes, err := h.tracker.CheckSpikes(r.Context(), app.SpikeParams{
		Threshold:    threshold,
		Service:      q.Get("service"),
		LookbackDays: lookback,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("spike check failed")
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"threshold_percent": threshold,
		"lookback_days":     lookback,
		"count":             len(spikes),
		"spikes":            spikes,
	})
}

// Trends reports the price direction of each matching SKU.
func (h *Handler) Trends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reports, err := h.tracker.Trends(r.Context(), app.TrendParams{
		Service:   q.Get("service"),
		SKUID:     q.Get("sku_id"),
		PriceType: q.Get("price_type"),
		Days:      h.intParam(q.Get("days"), h.defaultLookback),
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("trend analysis failed")
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(reports),
		"trends": reports,
	})
}

type estimateRequest struct {
	Tier         string `json:"tier"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

// EstimateCost prices a hypothetical request against one tier.
func (h *Handler) EstimateCost(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cost, err := h.estimator.Estimate(r.Context(), req.Tier, req.InputTokens, req.OutputTokens)
	if err != nil {
		if errors.Is(err, tier.ErrUnknown) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tier":           req.Tier,
		"estimated_cost": cost,
	})
}

type executeRequest struct {
	Complexity    string          `json:"complexity"`
	Subscription  string          `json:"subscription"`
	NearRateLimit bool            `json:"near_rate_limit"`
	InputTokens   int64           `json:"input_tokens"`
	OutputTokens  int64           `json:"output_tokens"`
	Budget        decimal.Decimal `json:"budget_usd"`
	DeadlineMs    int64           `json:"deadline_ms"`
}

type executeResponse struct {
	State         fallback.State  `json:"state"`
	Reason        fallback.Reason `json:"reason,omitempty"`
	Tier          string          `json:"tier,omitempty"`
	Attempts      int             `json:"attempts"`
	TiersTried    []string        `json:"tiers_tried"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
}

// ExecuteRoute routes a request to a tier and walks the fallback chain.
func (h *Handler) ExecuteRoute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sub := tier.Subscription(req.Subscription)
	if sub == "" {
		sub = tier.SubFree
	}

	execReq := app.ExecRequest{
		Complexity:    route.Complexity(req.Complexity),
		Subscription:  sub,
		NearRateLimit: req.NearRateLimit,
		InputTokens:   req.InputTokens,
		OutputTokens:  req.OutputTokens,
		Budget:        req.Budget,
	}
	if req.DeadlineMs > 0 {
		execReq.Deadline = h.clock.Now().Add(time.Duration(req.DeadlineMs) * time.Millisecond)
	}

	if h.invoker == nil {
		writeError(w, http.StatusServiceUnavailable, "no upstream configured")
		return
	}
	result, err := h.executor.Execute(r.Context(), execReq, h.invoker)
	if err != nil {
		h.logger.Error().Err(err).Msg("route execution failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusOK
	if !result.Succeeded() {
		status = http.StatusBadGateway
		if result.Reason == fallback.ReasonBadInput {
			status = http.StatusBadRequest
		}
	}
	writeJSON(w, status, executeResponse{
		State:         result.State,
		Reason:        result.Reason,
		Tier:          result.Tier,
		Attempts:      result.Attempts,
		TiersTried:    result.TiersTried,
		EstimatedCost: result.EstimatedCost,
	})
}

func (h *Handler) intParam(raw string, fallbackVal int) int {
	if raw == "" {
		return fallbackVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallbackVal
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
