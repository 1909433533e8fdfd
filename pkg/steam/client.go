// Package steam provides the identity resolver: display-name and
// ban-status lookups against the Steam Web API, with parallel fan-out
// over a batch of identifiers.
package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/ArtAbreu/SteamApp/pkg/logging"
)

// Steam Web API endpoint paths.
const (
	summariesEndpoint = "ISteamUser/GetPlayerSummaries/v0002/"
	bansEndpoint      = "ISteamUser/GetPlayerBans/v1/"
)

// Prometheus metrics for Steam API operations.
var (
	steamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appraiser_steam_requests_total",
		Help: "Total Steam API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	steamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "appraiser_steam_request_duration_seconds",
		Help:    "Steam API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})
)

// BanStatus is the ban information returned for one account.
type BanStatus struct {
	VACBanned bool
	GameBans  int
}

// APIError represents a non-2xx Steam API response.
type APIError struct {
	Endpoint   string
	StatusCode int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("steam API error (status %d) on %s", e.StatusCode, e.Endpoint)
}

// ErrNotFound indicates the Steam API returned an empty player list,
// which is how the API reports an unknown or unreadable account.
var ErrNotFound = fmt.Errorf("player not found")

// Config holds the Steam client configuration.
type Config struct {
	// APIKey is the Steam Web API credential (required).
	APIKey string

	// BaseURL is the API root, e.g. "https://api.steampowered.com/".
	BaseURL string

	// Timeout per lookup request.
	Timeout time.Duration
}

// Client performs keyed GET lookups against the Steam Web API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     zerolog.Logger
}

// NewClient creates a Steam API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("steam API key is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("steam base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/") + "/",
		apiKey:     cfg.APIKey,
		logger:     logging.NewLogger("steam-client"),
	}, nil
}

// summariesResponse mirrors the GetPlayerSummaries payload.
type summariesResponse struct {
	Response struct {
		Players []struct {
			PersonaName string `json:"personaname"`
		} `json:"players"`
	} `json:"response"`
}

// bansResponse mirrors the GetPlayerBans payload.
type bansResponse struct {
	Players []struct {
		VACBanned        bool `json:"VACBanned"`
		NumberOfGameBans int  `json:"NumberOfGameBans"`
	} `json:"players"`
}

// PlayerSummary fetches the display name for one SteamID64.
// Returns ErrNotFound when the API responds with an empty player list.
func (c *Client) PlayerSummary(ctx context.Context, steamID string) (string, error) {
	var payload summariesResponse
	if err := c.get(ctx, summariesEndpoint, steamID, &payload); err != nil {
		return "", err
	}

	if len(payload.Response.Players) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, steamID)
	}

	name := payload.Response.Players[0].PersonaName
	c.logger.Debug().
		Str("steam_id", steamID).
		Str("persona_name", name).
		Msg("Player summary resolved")

	return name, nil
}

// PlayerBans fetches the ban status for one SteamID64.
// Returns ErrNotFound when the API responds with an empty player list.
func (c *Client) PlayerBans(ctx context.Context, steamID string) (*BanStatus, error) {
	var payload bansResponse
	if err := c.get(ctx, bansEndpoint, steamID, &payload); err != nil {
		return nil, err
	}

	if len(payload.Players) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, steamID)
	}

	status := &BanStatus{
		VACBanned: payload.Players[0].VACBanned,
		GameBans:  payload.Players[0].NumberOfGameBans,
	}

	c.logger.Debug().
		Str("steam_id", steamID).
		Bool("vac_banned", status.VACBanned).
		Int("game_bans", status.GameBans).
		Msg("Player bans resolved")

	return status, nil
}

// get performs a keyed GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, endpoint, steamID string, out any) error {
	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("steamids", steamID)

	reqURL := c.baseURL + endpoint + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	steamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		steamRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return fmt.Errorf("steam request: %w", err)
	}
	defer resp.Body.Close()

	steamRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Str("steam_id", steamID).
			Int("status", resp.StatusCode).
			Msg("Steam API request failed")
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode steam response: %w", err)
	}
	return nil
}
