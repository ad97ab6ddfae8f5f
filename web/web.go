// Package web provides the JSON HTTP API: price recording and queries,
// spike and trend reports, and cost-routed execution.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/whovisions/costgate/adapters/clock"
	"github.com/whovisions/costgate/app"
	"github.com/whovisions/costgate/ports"
)

// Handler serves the HTTP API.
type Handler struct {
	tracker   *app.Tracker
	estimator *app.Estimator
	executor  *app.Executor
	invoker   ports.TierInvoker
	clock     ports.Clock
	registry  *prometheus.Registry
	logger    zerolog.Logger

	defaultThreshold float64
	defaultLookback  int
}

// Deps contains dependencies for the API handler.
type Deps struct {
	Tracker   *app.Tracker
	Estimator *app.Estimator
	Executor  *app.Executor
	Invoker   ports.TierInvoker
	Clock     ports.Clock
	Registry  *prometheus.Registry
	Logger    zerolog.Logger

	// Defaults applied when a request omits the corresponding query param.
	DefaultThreshold float64
	DefaultLookback  int
}

// NewHandler creates the API handler.
func NewHandler(deps Deps) *Handler {
	threshold := deps.DefaultThreshold
	if threshold == 0 {
		threshold = 10
	}
	lookback := deps.DefaultLookback
	if lookback == 0 {
		lookback = 30
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	return &Handler{
		tracker:          deps.Tracker,
		estimator:        deps.Estimator,
		executor:         deps.Executor,
		invoker:          deps.Invoker,
		clock:            clk,
		registry:         deps.Registry,
		logger:           deps.Logger,
		defaultThreshold: threshold,
		defaultLookback:  lookback,
	}
}

// Router returns the HTTP routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	if h.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/pricing", func(r chi.Router) {
		r.Post("/record", h.RecordPrice)
		r.Get("/history", h.PriceHistory)
		r.Get("/spikes", h.Spikes)
		r.Get("/trends", h.Trends)
	})

	r.Post("/route/execute", h.ExecuteRoute)
	r.Post("/route/estimate", h.EstimateCost)

	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
