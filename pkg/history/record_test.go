package history

import (
	"testing"
	"time"
)

func TestRoundCents(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{63.0, 63.0},
		{12.345, 12.35},
		{12.344, 12.34},
		{0, 0},
		{0.005, 0.01},
	}

	for _, tt := range tests {
		if got := RoundCents(tt.in); got != tt.want {
			t.Errorf("RoundCents(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClampPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{130.7, 100},
	}

	for _, tt := range tests {
		if got := ClampPercent(tt.in); got != tt.want {
			t.Errorf("ClampPercent(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2025, 3, 9, 18, 30, 5, 0, time.Local).UnixMilli()
	if got := FormatTimestamp(ts); got != "09/03/2025 18:30:05" {
		t.Errorf("FormatTimestamp() = %q, want 09/03/2025 18:30:05", got)
	}
}

func TestMerge_NewEntriesTakePrecedence(t *testing.T) {
	old := map[string]Record{
		"a": {Success: false, Reason: "identity lookup failed"},
		"b": {Success: true, Reason: "untouched"},
	}
	updates := map[string]Record{
		"a": {Success: true, Reason: "inventory value recorded"},
		"c": {Success: true, Reason: "new"},
	}

	merged := Merge(old, updates)

	if len(merged) != 3 {
		t.Fatalf("len(merged) = %d, want 3", len(merged))
	}
	if !merged["a"].Success || merged["a"].Reason != "inventory value recorded" {
		t.Errorf("merged[a] = %+v, want the updated record", merged["a"])
	}
	if merged["b"].Reason != "untouched" {
		t.Errorf("merged[b] = %+v, untouched entry must be preserved", merged["b"])
	}
	if _, ok := merged["c"]; !ok {
		t.Error("merged[c] missing")
	}

	// Merge must not mutate its inputs.
	if old["a"].Success {
		t.Error("Merge mutated the old mapping")
	}
}

func TestReportWindow_Filtering(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-24 * time.Hour)
	fresh := now.Add(-1 * time.Hour).UnixMilli()
	stale := now.Add(-30 * time.Hour).UnixMilli()

	records := map[string]Record{
		"valued": {
			Success: true, Timestamp: fresh,
			Data: &Snapshot{SteamID: "valued", TotalValueBRL: 63.00},
		},
		"banned": {
			Success: true, Timestamp: fresh,
			Data: &Snapshot{SteamID: "banned", VACBanned: true},
		},
		"worthless": {
			Success: true, Timestamp: fresh,
			Data: &Snapshot{SteamID: "worthless", TotalValueBRL: 0},
		},
		"no-snapshot": {
			Success: true, Timestamp: fresh,
		},
		"too-old": {
			Success: true, Timestamp: stale,
			Data: &Snapshot{SteamID: "too-old", TotalValueBRL: 10},
		},
		"not-concluded": {
			Success: false, Timestamp: fresh,
			Data: &Snapshot{SteamID: "not-concluded", TotalValueBRL: 10},
		},
	}

	entries := ReportWindow(records, cutoff)

	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2 (%+v)", len(entries), entries)
	}
	// Ordered by SteamID for determinism.
	if entries[0].Snapshot.SteamID != "banned" || entries[1].Snapshot.SteamID != "valued" {
		t.Errorf("entries = [%s %s], want [banned valued]",
			entries[0].Snapshot.SteamID, entries[1].Snapshot.SteamID)
	}
}

func TestReportWindow_ValuePreservedVerbatim(t *testing.T) {
	now := time.Now()
	records := map[string]Record{
		"x": {
			Success:   true,
			Timestamp: now.UnixMilli(),
			Data:      &Snapshot{SteamID: "x", TotalValueBRL: 63.00, CasesPercentage: 41.2},
		},
	}

	entries := ReportWindow(records, now.Add(-24*time.Hour))
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	// No re-derivation: the stored value comes back exactly.
	if entries[0].Snapshot.TotalValueBRL != 63.00 {
		t.Errorf("TotalValueBRL = %v, want 63.00", entries[0].Snapshot.TotalValueBRL)
	}
	if entries[0].Snapshot.CasesPercentage != 41.2 {
		t.Errorf("CasesPercentage = %v, want 41.2", entries[0].Snapshot.CasesPercentage)
	}
}
