package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// pricingInventory is the per-identifier behavior of the mock pricing API.
type pricingInventory struct {
	totalValueUSD float64
	casesValueUSD float64
	failStatus    int
	failBody      string // raw body for failure responses (may be HTML)
	casesFail     bool
}

// MockPricing is a configurable mock pricing (Montuga-style) server.
// Routes have the shape /{steamID}/{appID}/total-value and
// /{steamID}/{appID}/cases-value.
type MockPricing struct {
	server *httptest.Server
	mu     sync.RWMutex
	items  map[string]*pricingInventory

	// Tracking
	TotalRequests int
	CasesRequests int
	LastAPIKey    string
	RequestedIDs  []string
}

// NewMockPricing creates a new mock pricing server.
func NewMockPricing() *MockPricing {
	mock := &MockPricing{
		items: make(map[string]*pricingInventory),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockPricing) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPricing) Close() {
	m.server.Close()
}

// SetInventory registers total and cases values (in native USD) for an
// account.
func (m *MockPricing) SetInventory(steamID string, totalUSD, casesUSD float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[steamID] = &pricingInventory{totalValueUSD: totalUSD, casesValueUSD: casesUSD}
}

// SetFailure makes both endpoints answer with the given status and body
// for the account.
func (m *MockPricing) SetFailure(steamID string, status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[steamID] = &pricingInventory{failStatus: status, failBody: body}
}

// SetCasesFailure registers an inventory whose cases-value endpoint fails
// while total-value succeeds.
func (m *MockPricing) SetCasesFailure(steamID string, totalUSD float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[steamID] = &pricingInventory{totalValueUSD: totalUSD, casesFail: true}
}

// GetTotalRequests returns the number of total-value requests served.
func (m *MockPricing) GetTotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.TotalRequests
}

// GetCasesRequests returns the number of cases-value requests served.
func (m *MockPricing) GetCasesRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CasesRequests
}

// GetRequestedIDs returns the SteamIDs priced so far, in request order.
func (m *MockPricing) GetRequestedIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.RequestedIDs...)
}

func (m *MockPricing) handle(w http.ResponseWriter, r *http.Request) {
	// Path: /{steamID}/{appID}/{total-value|cases-value}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 {
		http.NotFound(w, r)
		return
	}
	steamID, op := parts[0], parts[2]

	m.mu.Lock()
	m.LastAPIKey = r.Header.Get("api-key")
	switch op {
	case "total-value":
		m.TotalRequests++
		m.RequestedIDs = append(m.RequestedIDs, steamID)
	case "cases-value":
		m.CasesRequests++
	}
	item := m.items[steamID]
	m.mu.Unlock()

	if item == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "inventory not found"}`)
		return
	}

	if item.failStatus != 0 {
		w.WriteHeader(item.failStatus)
		fmt.Fprint(w, item.failBody)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch op {
	case "total-value":
		fmt.Fprintf(w, `{"total_value": %f}`, item.totalValueUSD)
	case "cases-value":
		if item.casesFail {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"message": "cases unavailable"}`)
			return
		}
		fmt.Fprintf(w, `{"cases_value": %f}`, item.casesValueUSD)
	default:
		http.NotFound(w, r)
	}
}
