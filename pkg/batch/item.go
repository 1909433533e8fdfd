package batch

import "github.com/ArtAbreu/SteamApp/pkg/history"

// State is the terminal per-identifier outcome of one batch.
type State string

const (
	// StateSkipped: the identifier already concluded in a prior batch.
	StateSkipped State = "skipped"

	// StateIdentityFailed: name or ban lookup failed; re-attempted on a
	// future submission.
	StateIdentityFailed State = "identity_failed"

	// StateBanned: VAC flag set; no pricing call was made.
	StateBanned State = "banned"

	// StatePricingFailed: pricing failed or the inventory had no value;
	// the identifier still concluded and is not retried.
	StatePricingFailed State = "pricing_failed"

	// StatePriced: a positive inventory value was recorded.
	StatePriced State = "priced"
)

// Item is the transient per-request resolution for one identifier. Items
// live only for the request that created them; only the derived history
// record is persisted.
type Item struct {
	SteamID  string
	State    State
	Snapshot *history.Snapshot
	Reason   string
}

// LogEntry is one line of the per-request processing log returned to the
// caller alongside the report.
type LogEntry struct {
	Message string `json:"message"`
	Level   string `json:"type"`
	SteamID string `json:"id,omitempty"`
}
