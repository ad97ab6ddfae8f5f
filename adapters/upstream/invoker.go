// Package upstream forwards tier attempts to the model gateway over HTTP.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/whovisions/costgate/domain/fallback"
	"github.com/whovisions/costgate/domain/tier"
	"github.com/whovisions/costgate/ports"
)

// Invoker issues one HTTP call per tier attempt. The attempt deadline comes
// from the caller's context; the client itself carries no timeout.
type Invoker struct {
	client  *http.Client
	baseURL *url.URL
	logger  zerolog.Logger
}

// Config contains configuration for the upstream invoker.
type Config struct {
	BaseURL         string
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	Logger          zerolog.Logger
}

// New creates an upstream invoker.
func New(cfg Config) (*Invoker, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns == 0 {
		maxIdleConns = 100
	}
	idleConnTimeout := cfg.IdleConnTimeout
	if idleConnTimeout == 0 {
		idleConnTimeout = 90 * time.Second
	}

	return &Invoker{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        maxIdleConns,
				MaxIdleConnsPerHost: maxIdleConns,
				IdleConnTimeout:     idleConnTimeout,
			},
		},
		baseURL: baseURL,
		logger:  cfg.Logger.With().Str("component", "upstream").Logger(),
	}, nil
}

type attemptPayload struct {
	Tier    string `json:"tier"`
	ModelID string `json:"model_id"`
}

// Invoke POSTs the attempt to the gateway and classifies the outcome.
// Context expiry maps to a retryable timeout; HTTP status codes map per
// classify.
func (inv *Invoker) Invoke(ctx context.Context, spec tier.Spec) ports.Outcome {
	body, err := json.Marshal(attemptPayload{Tier: spec.Name, ModelID: spec.ModelID})
	if err != nil {
		return ports.Outcome{Kind: fallback.KindBadInput, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inv.baseURL.String(), bytes.NewReader(body))
	if err != nil {
		return ports.Outcome{Kind: fallback.KindBadInput, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := inv.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ports.Outcome{Kind: fallback.KindTimeout, Err: err}
		}
		// Connection failures behave like timeouts: retryable on a
		// cheaper tier, not the caller's fault.
		return ports.Outcome{Kind: fallback.KindTimeout, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if kind, failed := classify(resp.StatusCode); failed {
		inv.logger.Debug().
			Str("tier", spec.Name).
			Int("status", resp.StatusCode).
			Str("kind", string(kind)).
			Msg("attempt failed")
		return ports.Outcome{
			Kind: kind,
			Err:  fmt.Errorf("upstream returned %d for tier %s", resp.StatusCode, spec.Name),
		}
	}
	return ports.Outcome{}
}

// classify maps an HTTP status to a failure kind. 2xx is success.
func classify(status int) (fallback.FailureKind, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == http.StatusTooManyRequests:
		return fallback.KindRateLimited, true
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return fallback.KindBadInput, true
	default:
		return fallback.KindTimeout, true
	}
}
