// Package history persists batch outcomes so repeated submissions do not
// redo concluded work. The store is a single mapping from SteamID64 to
// Record, always loaded and rewritten as a whole.
//
// Conclusion policy: a Record with Success=true is skipped on every future
// batch, even when no Snapshot was obtained. This deliberately treats an
// exhausted pricing attempt as terminal rather than transient; only
// identity-stage failures (Success=false) are re-attempted on
// resubmission. There is no mechanism to distinguish retry-worthy pricing
// failures from exhausted ones.
package history

import (
	"math"
	"sort"
	"time"
)

// TimestampFormat is the human-readable pt-BR date layout used in records
// and reports.
const TimestampFormat = "02/01/2006 15:04:05"

// Record is the persisted outcome for one identifier. Last write wins;
// records are overwritten wholesale, never merged field by field.
type Record struct {
	// Success marks the identifier as concluded; it will be skipped on
	// all future batches.
	Success bool `json:"success"`

	// Timestamp is the conclusion time in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`

	// Date is the human-readable conclusion time.
	Date string `json:"date"`

	// Reason describes how the identifier concluded.
	Reason string `json:"reason"`

	// Data is present only when an inventory value > 0 was obtained or
	// the account is VAC-flagged.
	Data *Snapshot `json:"data,omitempty"`
}

// Snapshot is the reportable profile state captured at conclusion time.
// Immutable once written.
type Snapshot struct {
	SteamID         string  `json:"steamId"`
	RealName        string  `json:"realName"`
	TotalValueBRL   float64 `json:"totalValueBRL"`
	VACBanned       bool    `json:"vacBanned"`
	GameBans        int     `json:"gameBans"`
	CasesPercentage float64 `json:"casesPercentage"`
}

// RoundCents rounds a currency value to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// ClampPercent clamps a percentage into [0, 100]. Upstream sub-values can
// be inconsistent with the total, so ratios above 100% are stored as 100.
func ClampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// FormatTimestamp renders epoch milliseconds in the report date layout.
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).Format(TimestampFormat)
}

// Merge overlays new entries onto the previous history. Identifiers
// touched by this batch take the new value; untouched identifiers are
// preserved unchanged.
func Merge(old, updates map[string]Record) map[string]Record {
	merged := make(map[string]Record, len(old)+len(updates))
	for id, rec := range old {
		merged[id] = rec
	}
	for id, rec := range updates {
		merged[id] = rec
	}
	return merged
}

// WindowEntry pairs a snapshot with its record timestamp for rendering.
type WindowEntry struct {
	Snapshot  Snapshot
	Timestamp int64
}

// ReportWindow selects the snapshots eligible for the download report:
// concluded records newer than cutoff that carry a snapshot with either a
// positive value or a ban flag. The result is ordered by SteamID so the
// rendered document is deterministic regardless of map iteration order.
func ReportWindow(records map[string]Record, cutoff time.Time) []WindowEntry {
	cutoffMs := cutoff.UnixMilli()

	var entries []WindowEntry
	for _, rec := range records {
		if !rec.Success || rec.Timestamp < cutoffMs || rec.Data == nil {
			continue
		}
		if rec.Data.TotalValueBRL <= 0 && !rec.Data.VACBanned {
			continue
		}
		entries = append(entries, WindowEntry{Snapshot: *rec.Data, Timestamp: rec.Timestamp})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Snapshot.SteamID < entries[j].Snapshot.SteamID
	})
	return entries
}
