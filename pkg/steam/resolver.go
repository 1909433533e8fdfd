package steam

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ArtAbreu/SteamApp/pkg/logging"
)

// ResolutionState is the terminal identity-stage state for one identifier.
type ResolutionState string

const (
	// StateIdentityFailed means the name or ban lookup failed or came
	// back empty; pricing is skipped and the identifier is retried on a
	// future submission.
	StateIdentityFailed ResolutionState = "identity_failed"

	// StateBanned means the VAC flag is set; pricing is skipped and the
	// ban is recorded instead of a value.
	StateBanned ResolutionState = "banned"

	// StateEligible means the identifier proceeds to the pricing stage.
	StateEligible ResolutionState = "eligible"
)

// Resolution is the identity-stage outcome for one identifier. Exactly
// one Resolution is produced per input identifier.
type Resolution struct {
	SteamID   string
	State     ResolutionState
	Name      string
	VACBanned bool
	GameBans  int
	Reason    string
}

// identityClient is the lookup surface the resolver needs; satisfied by
// *Client and by test fakes.
type identityClient interface {
	PlayerSummary(ctx context.Context, steamID string) (string, error)
	PlayerBans(ctx context.Context, steamID string) (*BanStatus, error)
}

// Resolver fans identity lookups out over a batch.
type Resolver struct {
	client identityClient
	logger zerolog.Logger
}

// NewResolver creates a resolver on top of a Steam client.
func NewResolver(client *Client) *Resolver {
	return &Resolver{
		client: client,
		logger: logging.NewLogger("identity-resolver"),
	}
}

// newResolverWith is the injection point for tests.
func newResolverWith(client identityClient) *Resolver {
	return &Resolver{
		client: client,
		logger: logging.NewLogger("identity-resolver"),
	}
}

// ResolveAll resolves every identifier concurrently and returns one
// Resolution per input, in input order. The call returns only after the
// slowest lookup has settled; the pricing stage never starts early.
func (r *Resolver) ResolveAll(ctx context.Context, steamIDs []string) []Resolution {
	start := time.Now()
	results := make([]Resolution, len(steamIDs))

	var wg sync.WaitGroup
	for i, id := range steamIDs {
		wg.Add(1)
		go func(idx int, steamID string) {
			defer wg.Done()
			results[idx] = r.resolveOne(ctx, steamID)
		}(i, id)
	}
	wg.Wait()

	eligible := 0
	for _, res := range results {
		if res.State == StateEligible {
			eligible++
		}
	}

	r.logger.Info().
		Int("batch_size", len(steamIDs)).
		Int("eligible", eligible).
		Dur("duration", time.Since(start)).
		Msg("Identity stage settled")

	return results
}

// resolveOne runs the name lookup, then the ban lookup. A failure at
// either step skips all remaining work for the identifier.
func (r *Resolver) resolveOne(ctx context.Context, steamID string) Resolution {
	name, err := r.client.PlayerSummary(ctx, steamID)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("steam_id", steamID).
			Msg("Name lookup failed")
		return Resolution{
			SteamID: steamID,
			State:   StateIdentityFailed,
			Reason:  "name lookup failed: " + err.Error(),
		}
	}

	bans, err := r.client.PlayerBans(ctx, steamID)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("steam_id", steamID).
			Msg("Ban lookup failed")
		return Resolution{
			SteamID: steamID,
			State:   StateIdentityFailed,
			Name:    name,
			Reason:  "ban lookup failed: " + err.Error(),
		}
	}

	if bans.VACBanned {
		r.logger.Info().
			Str("steam_id", steamID).
			Msg("VAC ban detected, inventory will be skipped")
		return Resolution{
			SteamID:   steamID,
			State:     StateBanned,
			Name:      name,
			VACBanned: true,
			GameBans:  bans.GameBans,
			Reason:    "VAC ban detected",
		}
	}

	// Game bans without the VAC flag do not block pricing; the count is
	// carried forward for the report.
	return Resolution{
		SteamID:  steamID,
		State:    StateEligible,
		Name:     name,
		GameBans: bans.GameBans,
	}
}
