// Package pricing fetches inventory valuations from the pricing service.
// Calls are paced to the upstream's 50 requests/minute budget and run
// strictly sequentially; the orchestrator never prices concurrently.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/ArtAbreu/SteamApp/pkg/history"
	"github.com/ArtAbreu/SteamApp/pkg/logging"
)

// Prometheus metrics for pricing service operations.
var (
	pricingRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appraiser_pricing_requests_total",
		Help: "Total pricing service requests by operation and status",
	}, []string{"operation", "status"})

	pricingRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "appraiser_pricing_request_duration_seconds",
		Help:    "Pricing service request duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})
)

// APIError represents a failed pricing service response.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("pricing API error (status %d): %s", e.StatusCode, e.Message)
}

// Pacer gates each outbound pricing request. Satisfied by
// *ratelimit.Pacer; tests inject a no-op.
type Pacer interface {
	Acquire(ctx context.Context) error
}

// Valuation is the priced outcome for one identifier, already converted
// to the display currency.
type Valuation struct {
	// TotalBRL is the inventory total in BRL, rounded to cents.
	TotalBRL float64

	// CasesPercent is the cases share of the total, clamped to [0, 100].
	// Zero when the sub-value fetch failed; that failure is non-fatal.
	CasesPercent float64
}

// Config holds the pricing client configuration.
type Config struct {
	// APIKey is sent as the api-key header (required).
	APIKey string

	// BaseURL is the inventory pricing root (required).
	BaseURL string

	// AppID is the fixed inventory namespace (e.g. 730).
	AppID int

	// ConversionRate converts the service's native USD values to BRL.
	ConversionRate float64

	// Timeout per pricing request.
	Timeout time.Duration
}

// Client performs authenticated GETs against the pricing service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	appID      int
	rate       float64
	pacer      Pacer
	logger     zerolog.Logger
}

// NewClient creates a pricing client. The pacer is required: every call
// to the service goes through it, including the first of a batch.
func NewClient(cfg Config, pacer Pacer) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pricing API key is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("pricing base URL is required")
	}
	if cfg.ConversionRate <= 0 {
		return nil, fmt.Errorf("conversion rate must be positive (got %v)", cfg.ConversionRate)
	}
	if pacer == nil {
		return nil, fmt.Errorf("pacer is required")
	}
	if cfg.AppID == 0 {
		cfg.AppID = 730
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		appID:      cfg.AppID,
		rate:       cfg.ConversionRate,
		pacer:      pacer,
		logger:     logging.NewLogger("pricing-client"),
	}, nil
}

// Appraise fetches the total inventory value and, when it is positive,
// the cases sub-value. A total-value failure is returned as an error; a
// cases failure degrades to 0% and still succeeds.
func (c *Client) Appraise(ctx context.Context, steamID string) (*Valuation, error) {
	if err := c.pacer.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("pacer: %w", err)
	}

	totalUSD, err := c.fetchValue(ctx, steamID, "total-value", "total_value")
	if err != nil {
		return nil, err
	}

	totalBRL := history.RoundCents(totalUSD * c.rate)
	if totalBRL <= 0 {
		c.logger.Info().
			Str("steam_id", steamID).
			Msg("Inventory has no value (private profile or empty)")
		return &Valuation{TotalBRL: totalBRL}, nil
	}

	// The sub-value is a second budget-counted request, so it is paced
	// like any other call.
	casesPercent := 0.0
	if err := c.pacer.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("pacer: %w", err)
	}
	casesUSD, err := c.fetchValue(ctx, steamID, "cases-value", "cases_value")
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("steam_id", steamID).
			Msg("Cases sub-value fetch failed, recording 0%")
	} else {
		casesPercent = history.ClampPercent(100 * casesUSD / totalUSD)
	}

	c.logger.Debug().
		Str("steam_id", steamID).
		Float64("total_brl", totalBRL).
		Float64("cases_percent", casesPercent).
		Msg("Inventory appraised")

	return &Valuation{TotalBRL: totalBRL, CasesPercent: casesPercent}, nil
}

// fetchValue performs one GET {base}/{id}/{appID}/{operation} and
// extracts the named field from the JSON body.
func (c *Client) fetchValue(ctx context.Context, steamID, operation, field string) (float64, error) {
	reqURL := fmt.Sprintf("%s/%s/%d/%s", c.baseURL, steamID, c.appID, operation)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	pricingRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		pricingRequestsTotal.WithLabelValues(operation, "network_error").Inc()
		return 0, fmt.Errorf("pricing request: %w", err)
	}
	defer resp.Body.Close()

	pricingRequestsTotal.WithLabelValues(operation, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return 0, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp),
		}
	}

	var payload map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode pricing response: %w", err)
	}

	return payload[field], nil
}

// errorMessage extracts a usable message from a failure body. The service
// answers JSON with a message field on expected errors, but falls back to
// HTML error pages, so a non-JSON body is summarized instead.
func errorMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return resp.Status
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 80 {
		text = text[:80] + "..."
	}
	return fmt.Sprintf("non-JSON response: %s", text)
}
