// Package testutil provides configurable mock upstream servers for tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// Steam Web API paths served by the mock.
const (
	SummariesPath = "/ISteamUser/GetPlayerSummaries/v0002/"
	BansPath      = "/ISteamUser/GetPlayerBans/v1/"
)

// steamProfile is the per-identifier behavior of the mock Steam API.
type steamProfile struct {
	name       string
	known      bool
	vacBanned  bool
	gameBans   int
	bansKnown  bool
	failStatus int // non-zero forces this HTTP status on both endpoints
}

// MockSteam is a configurable mock Steam Web API server.
type MockSteam struct {
	server   *httptest.Server
	mu       sync.RWMutex
	profiles map[string]*steamProfile

	// Tracking
	SummaryRequests int
	BanRequests     int
	LastAPIKey      string
}

// NewMockSteam creates a new mock Steam API server.
func NewMockSteam() *MockSteam {
	mock := &MockSteam{
		profiles: make(map[string]*steamProfile),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(SummariesPath, mock.handleSummaries)
	mux.HandleFunc(BansPath, mock.handleBans)
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server URL.
func (m *MockSteam) URL() string {
	return m.server.URL + "/"
}

// Close shuts down the mock server.
func (m *MockSteam) Close() {
	m.server.Close()
}

// SetProfile registers an account with a display name and ban status.
func (m *MockSteam) SetProfile(steamID, name string, vacBanned bool, gameBans int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[steamID] = &steamProfile{
		name:      name,
		known:     true,
		vacBanned: vacBanned,
		gameBans:  gameBans,
		bansKnown: true,
	}
}

// SetUnknown registers an account that the API reports as not found
// (empty player list) on both endpoints.
func (m *MockSteam) SetUnknown(steamID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[steamID] = &steamProfile{}
}

// SetNameOnly registers an account whose ban lookup returns an empty
// player list even though the name resolves.
func (m *MockSteam) SetNameOnly(steamID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[steamID] = &steamProfile{name: name, known: true}
}

// SetFailure makes both endpoints answer with the given HTTP status for
// the account.
func (m *MockSteam) SetFailure(steamID string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[steamID] = &steamProfile{failStatus: status}
}

// GetSummaryRequests returns the number of summary lookups served.
func (m *MockSteam) GetSummaryRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.SummaryRequests
}

// GetBanRequests returns the number of ban lookups served.
func (m *MockSteam) GetBanRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.BanRequests
}

func (m *MockSteam) lookup(r *http.Request) (*steamProfile, string) {
	steamID := r.URL.Query().Get("steamids")

	m.mu.Lock()
	m.LastAPIKey = r.URL.Query().Get("key")
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profiles[steamID], steamID
}

func (m *MockSteam) handleSummaries(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.SummaryRequests++
	m.mu.Unlock()

	profile, _ := m.lookup(r)
	w.Header().Set("Content-Type", "application/json")

	if profile != nil && profile.failStatus != 0 {
		w.WriteHeader(profile.failStatus)
		fmt.Fprint(w, `{"error": "upstream failure"}`)
		return
	}

	if profile == nil || !profile.known {
		fmt.Fprint(w, `{"response": {"players": []}}`)
		return
	}

	fmt.Fprintf(w, `{"response": {"players": [{"personaname": %q}]}}`, profile.name)
}

func (m *MockSteam) handleBans(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.BanRequests++
	m.mu.Unlock()

	profile, _ := m.lookup(r)
	w.Header().Set("Content-Type", "application/json")

	if profile != nil && profile.failStatus != 0 {
		w.WriteHeader(profile.failStatus)
		fmt.Fprint(w, `{"error": "upstream failure"}`)
		return
	}

	if profile == nil || !profile.bansKnown {
		fmt.Fprint(w, `{"players": []}`)
		return
	}

	fmt.Fprintf(w, `{"players": [{"VACBanned": %t, "NumberOfGameBans": %d}]}`,
		profile.vacBanned, profile.gameBans)
}
