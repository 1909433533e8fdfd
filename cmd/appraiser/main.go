package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ArtAbreu/SteamApp/pkg/batch"
	"github.com/ArtAbreu/SteamApp/pkg/config"
	"github.com/ArtAbreu/SteamApp/pkg/history"
	"github.com/ArtAbreu/SteamApp/pkg/logging"
	"github.com/ArtAbreu/SteamApp/pkg/pricing"
	"github.com/ArtAbreu/SteamApp/pkg/ratelimit"
	"github.com/ArtAbreu/SteamApp/pkg/steam"
)

func main() {
	configPath := getEnv("APPRAISER_CONFIG", "config.yaml")

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
	})

	store, err := buildStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize history store")
	}

	steamClient, err := steam.NewClient(steam.Config{
		APIKey:  cfg.Steam.APIKey,
		BaseURL: cfg.Steam.BaseURL,
		Timeout: cfg.Steam.Timeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create steam client")
	}

	pacer := ratelimit.NewPacer(cfg.Pricing.RequestInterval, ratelimit.SystemClock(), logger)
	pricingClient, err := pricing.NewClient(pricing.Config{
		APIKey:         cfg.Pricing.APIKey,
		BaseURL:        cfg.Pricing.BaseURL,
		AppID:          cfg.Pricing.AppID,
		ConversionRate: cfg.Pricing.ConversionRate,
		Timeout:        cfg.Pricing.Timeout,
	}, pacer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create pricing client")
	}

	orchestrator := batch.New(store, steam.NewResolver(steamClient), pricingClient, cfg.History.ReportWindow)

	mux := http.NewServeMux()
	mux.HandleFunc("/process", processHandler(orchestrator, logger))
	mux.HandleFunc("/lookup/", lookupHandler(orchestrator, logger))
	mux.HandleFunc("/download-history", downloadHandler(orchestrator, logger))
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info().
		Str("listen", cfg.Server.Listen).
		Str("history_backend", cfg.History.Backend).
		Dur("request_interval", cfg.Pricing.RequestInterval).
		Msg("starting appraiser server")

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

// buildStore selects the configured history backend.
func buildStore(cfg *config.Config, logger zerolog.Logger) (history.Store, error) {
	switch cfg.History.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.History.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.History.RedisAddr, err)
		}
		logger.Info().Str("addr", cfg.History.RedisAddr).Msg("connected to redis")
		return history.NewRedisStore(client, cfg.History.RedisKey, logger), nil
	default:
		return history.NewFileStore(cfg.History.FilePath, logger), nil
	}
}

// processRequest is the JSON body accepted by POST /process. The
// steam_ids field also accepts a raw form value for compatibility with
// plain HTML form submissions.
type processRequest struct {
	SteamIDs string `json:"steam_ids"`
}

// processResponse carries the rendered report plus the per-identifier
// processing log back to the caller.
type processResponse struct {
	ReportHTML   string           `json:"report_html"`
	Logs         []batch.LogEntry `json:"logs"`
	SuccessCount int              `json:"success_count"`
	TotalCount   int              `json:"total_count"`
}

func processHandler(o *batch.Orchestrator, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		raw, err := readIdentifiers(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := o.Process(r.Context(), batch.SplitIdentifiers(raw))
		if err != nil {
			if errors.Is(err, batch.ErrNoIdentifiers) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			logger.Error().Err(err).Msg("batch processing failed")
			http.Error(w, "batch processing failed", http.StatusInternalServerError)
			return
		}

		writeResult(w, result, logger)
	}
}

// readIdentifiers pulls the raw identifier text from a JSON body or a
// form field, depending on Content-Type.
func readIdentifiers(r *http.Request) (string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req processRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", fmt.Errorf("invalid json body: %w", err)
		}
		return req.SteamIDs, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("invalid form body: %w", err)
	}
	return r.FormValue("steam_ids"), nil
}

func lookupHandler(o *batch.Orchestrator, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		steamID := strings.TrimPrefix(r.URL.Path, "/lookup/")
		result, err := o.Lookup(r.Context(), steamID)
		if err != nil {
			if errors.Is(err, batch.ErrInvalidIdentifier) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			logger.Error().Err(err).Str("steam_id", steamID).Msg("lookup failed")
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}

		writeResult(w, result, logger)
	}
}

func downloadHandler(o *batch.Orchestrator, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		doc, err := o.DownloadReport(r.Context())
		if err != nil {
			if errors.Is(err, batch.ErrNothingToReport) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			logger.Error().Err(err).Msg("history report failed")
			http.Error(w, "history report failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="inventory_history.html"`)
		if _, err := w.Write([]byte(doc)); err != nil {
			logger.Warn().Err(err).Msg("failed to write history report")
		}
	}
}

func writeResult(w http.ResponseWriter, result *batch.Result, logger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	resp := processResponse{
		ReportHTML:   result.ReportHTML,
		Logs:         result.Logs,
		SuccessCount: result.NewSuccesses,
		TotalCount:   result.TotalConcluded,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Warn().Err(err).Msg("failed to encode response")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
