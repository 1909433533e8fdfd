// Package batch implements the appraisal pipeline: the skip/process
// split over the history store, the parallel identity stage, the paced
// sequential pricing stage, and the merge-and-persist bookkeeping that
// decides what counts as concluded.
package batch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/ArtAbreu/SteamApp/pkg/history"
	"github.com/ArtAbreu/SteamApp/pkg/logging"
	"github.com/ArtAbreu/SteamApp/pkg/pricing"
	"github.com/ArtAbreu/SteamApp/pkg/report"
	"github.com/ArtAbreu/SteamApp/pkg/steam"
)

// Report titles.
const (
	batchReportTitle   = "Inventory Appraisal Report"
	historyReportTitle = "Inventory History Report (Last 24 Hours)"
)

// Prometheus metrics for the batch pipeline.
var (
	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appraiser_batches_total",
		Help: "Total batches processed",
	})

	batchIdentifiersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appraiser_batch_identifiers_total",
		Help: "Identifiers handled by terminal state",
	}, []string{"state"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "appraiser_batch_duration_seconds",
		Help:    "End-to-end batch duration in seconds",
		Buckets: []float64{0.5, 1, 5, 15, 60, 300, 900},
	})
)

// Errors surfaced to the inbound handler layer.
var (
	// ErrNoIdentifiers is returned when the submitted batch is empty
	// after filtering; no store or network access has happened.
	ErrNoIdentifiers = errors.New("no identifiers provided")

	// ErrInvalidIdentifier is returned by Lookup for identifiers that
	// are not a 17-digit SteamID64.
	ErrInvalidIdentifier = errors.New("identifier must be a 17-digit SteamID64")

	// ErrNothingToReport is returned when the history window holds no
	// reportable inventories.
	ErrNothingToReport = errors.New("no inventories with value or bans in the report window")
)

var steamIDPattern = regexp.MustCompile(`^[0-9]{17}$`)

// IdentityResolver is the identity stage dependency.
type IdentityResolver interface {
	ResolveAll(ctx context.Context, steamIDs []string) []steam.Resolution
}

// Appraiser is the pricing stage dependency. Pacing lives behind this
// interface; the orchestrator only sequences the calls.
type Appraiser interface {
	Appraise(ctx context.Context, steamID string) (*pricing.Valuation, error)
}

// Result is the outcome of one batch submission.
type Result struct {
	Items          []Item
	ReportHTML     string
	Logs           []LogEntry
	NewSuccesses   int
	TotalConcluded int
}

// Orchestrator runs batches against an explicit store handle. It is the
// sole writer of the store within a batch; simultaneous batches against
// the same store are not coordinated and race last-write-wins.
type Orchestrator struct {
	store        history.Store
	resolver     IdentityResolver
	appraiser    Appraiser
	reportWindow time.Duration
	logger       zerolog.Logger
	now          func() time.Time
}

// New creates an orchestrator over the given store and fetch stages.
func New(store history.Store, resolver IdentityResolver, appraiser Appraiser, reportWindow time.Duration) *Orchestrator {
	if reportWindow <= 0 {
		reportWindow = 24 * time.Hour
	}
	return &Orchestrator{
		store:        store,
		resolver:     resolver,
		appraiser:    appraiser,
		reportWindow: reportWindow,
		logger:       logging.NewLogger("orchestrator"),
		now:          time.Now,
	}
}

// SplitIdentifiers tokenizes a raw submission on whitespace and commas,
// dropping empty tokens. No format validation happens here; duplicates
// are kept and processed independently unless history dedup applies.
func SplitIdentifiers(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Process runs one batch over the given identifiers.
func (o *Orchestrator) Process(ctx context.Context, steamIDs []string) (*Result, error) {
	ids := make([]string, 0, len(steamIDs))
	for _, id := range steamIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		// Rejected before any store or network access.
		return nil, ErrNoIdentifiers
	}

	start := o.now()
	batchesTotal.Inc()
	defer func() {
		batchDuration.Observe(time.Since(start).Seconds())
	}()

	result := &Result{}
	result.pushLog(o.logger, fmt.Sprintf("Starting batch of %d identifiers.", len(ids)), "info", "")

	records := o.loadHistory(ctx)

	// Stage 1: skip/process split. Only records that concluded with
	// success are skipped; prior failures are re-attempted.
	var toProcess []string
	for _, id := range ids {
		if rec, ok := records[id]; ok && rec.Success {
			result.Items = append(result.Items, Item{SteamID: id, State: StateSkipped, Reason: rec.Reason})
			batchIdentifiersTotal.WithLabelValues(string(StateSkipped)).Inc()
			continue
		}
		toProcess = append(toProcess, id)
	}

	if skipped := len(ids) - len(toProcess); skipped > 0 {
		result.pushLog(o.logger, fmt.Sprintf("Skipping %d identifiers already concluded in history.", skipped), "warn", "")
	}

	if len(toProcess) == 0 {
		// Nothing new: informational result, no store write.
		result.pushLog(o.logger, "No new identifiers to process.", "success", "")
		result.ReportHTML = report.InfoMessage("All submitted identifiers have already been processed or banned.")
		result.TotalConcluded = len(result.Items)
		return result, nil
	}

	result.pushLog(o.logger, fmt.Sprintf("Resolving identity for %d identifiers.", len(toProcess)), "info", "")

	// Stage 2: parallel identity fan-out. Full barrier: pricing starts
	// only after every lookup has settled.
	resolutions := o.resolver.ResolveAll(ctx, toProcess)

	// Stage 3: paced sequential pricing over the eligible subset, in
	// input order.
	updates := make(map[string]history.Record, len(resolutions))
	var priced []history.Snapshot

	for _, res := range resolutions {
		item := o.concludeOne(ctx, res, result)
		result.Items = append(result.Items, item)
		batchIdentifiersTotal.WithLabelValues(string(item.State)).Inc()

		updates[res.SteamID] = o.recordFor(item)
		if item.State == StatePriced {
			priced = append(priced, *item.Snapshot)
		}
	}

	// Single read-modify-write per batch: new findings win for touched
	// identifiers, everything else is preserved.
	merged := history.Merge(records, updates)
	if err := o.store.Save(ctx, merged); err != nil {
		// A failed save does not block returning the computed report.
		o.logger.Error().Err(err).Msg("History save failed")
		result.pushLog(o.logger, "Failed to persist history; results are not cached.", "error", "")
	} else {
		result.pushLog(o.logger, fmt.Sprintf("History of %d identifiers saved.", len(merged)), "info", "")
	}

	result.NewSuccesses = len(priced)
	result.TotalConcluded = (len(ids) - len(toProcess)) + len(priced)
	result.pushLog(o.logger, fmt.Sprintf("Batch complete. %d new inventories appraised.", len(priced)), "success", "")

	rows := make([]report.Row, len(priced))
	date := start.Format(history.TimestampFormat)
	for i, snap := range priced {
		rows[i] = report.Row{Snapshot: snap, Date: date}
	}
	result.ReportHTML = report.Render(batchReportTitle, rows, result.NewSuccesses, result.TotalConcluded, start)

	return result, nil
}

// Lookup is the dedicated single-identifier operation. Unlike batch
// submissions it validates the key shape and fails fast.
func (o *Orchestrator) Lookup(ctx context.Context, steamID string) (*Result, error) {
	steamID = strings.TrimSpace(steamID)
	if !steamIDPattern.MatchString(steamID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, steamID)
	}
	return o.Process(ctx, []string{steamID})
}

// DownloadReport renders the history window (records with a snapshot and
// either positive value or a ban flag) as a standalone document.
func (o *Orchestrator) DownloadReport(ctx context.Context) (string, error) {
	records := o.loadHistory(ctx)

	now := o.now()
	entries := history.ReportWindow(records, now.Add(-o.reportWindow))
	if len(entries) == 0 {
		return "", ErrNothingToReport
	}

	rows := make([]report.Row, len(entries))
	for i, e := range entries {
		rows[i] = report.Row{Snapshot: e.Snapshot, Date: history.FormatTimestamp(e.Timestamp)}
	}

	return report.Render(historyReportTitle, rows, len(entries), len(records), now), nil
}

// loadHistory reads the store, degrading to an empty history on failure
// so a corrupt or unreachable store never fails the batch.
func (o *Orchestrator) loadHistory(ctx context.Context) map[string]history.Record {
	records, err := o.store.Load(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("History load failed, assuming empty history")
		return map[string]history.Record{}
	}
	return records
}

// concludeOne turns an identity resolution into the batch item for this
// request, running the pricing stage for eligible identifiers.
func (o *Orchestrator) concludeOne(ctx context.Context, res steam.Resolution, result *Result) Item {
	switch res.State {
	case steam.StateIdentityFailed:
		result.pushLog(o.logger, "Identity lookup failed: "+res.Reason, "warn", res.SteamID)
		return Item{SteamID: res.SteamID, State: StateIdentityFailed, Reason: res.Reason}

	case steam.StateBanned:
		result.pushLog(o.logger, "VAC ban detected. Inventory skipped.", "error", res.SteamID)
		return Item{
			SteamID: res.SteamID,
			State:   StateBanned,
			Reason:  "VAC ban detected",
			Snapshot: &history.Snapshot{
				SteamID:   res.SteamID,
				RealName:  res.Name,
				VACBanned: true,
				GameBans:  res.GameBans,
			},
		}
	}

	val, err := o.appraiser.Appraise(ctx, res.SteamID)
	if err != nil {
		// Concluded anyway: an exhausted pricing attempt is terminal,
		// not transient.
		reason := "pricing failed: " + err.Error()
		result.pushLog(o.logger, reason, "warn", res.SteamID)
		return Item{SteamID: res.SteamID, State: StatePricingFailed, Reason: reason}
	}

	if val.TotalBRL <= 0 {
		reason := "no inventory value obtained (private profile or empty)"
		result.pushLog(o.logger, reason, "warn", res.SteamID)
		return Item{SteamID: res.SteamID, State: StatePricingFailed, Reason: reason}
	}

	result.pushLog(o.logger, fmt.Sprintf("Inventory value: R$ %s.", report.FormatBRL(val.TotalBRL)), "success", res.SteamID)
	return Item{
		SteamID: res.SteamID,
		State:   StatePriced,
		Reason:  "inventory value recorded",
		Snapshot: &history.Snapshot{
			SteamID:         res.SteamID,
			RealName:        res.Name,
			TotalValueBRL:   val.TotalBRL,
			GameBans:        res.GameBans,
			CasesPercentage: val.CasesPercent,
		},
	}
}

// recordFor derives the persisted record from a batch item. Identity
// failures stay retryable (Success=false); every other terminal state
// concludes the identifier for good.
func (o *Orchestrator) recordFor(item Item) history.Record {
	now := o.now()
	rec := history.Record{
		Success:   item.State != StateIdentityFailed,
		Timestamp: now.UnixMilli(),
		Date:      now.Format(history.TimestampFormat),
		Reason:    item.Reason,
	}
	// A snapshot is persisted only for priced or ban-flagged accounts.
	if item.State == StatePriced || item.State == StateBanned {
		rec.Data = item.Snapshot
	}
	return rec
}

// pushLog appends a caller-visible log line and mirrors it to zerolog.
func (r *Result) pushLog(logger zerolog.Logger, message, level, steamID string) {
	r.Logs = append(r.Logs, LogEntry{Message: message, Level: level, SteamID: steamID})

	event := logger.Info()
	switch level {
	case "warn":
		event = logger.Warn()
	case "error":
		event = logger.Error()
	}
	if steamID != "" {
		event = event.Str("steam_id", steamID)
	}
	event.Msg(message)
}
