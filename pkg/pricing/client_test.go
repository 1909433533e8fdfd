package pricing

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ArtAbreu/SteamApp/internal/testutil"
)

// noopPacer counts acquisitions without waiting.
type noopPacer struct {
	acquires int
}

func (p *noopPacer) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.acquires++
	return nil
}

func newTestClient(t *testing.T, mock *testutil.MockPricing, pacer Pacer) *Client {
	t.Helper()

	client, err := NewClient(Config{
		APIKey:         "pricing-key",
		BaseURL:        mock.URL(),
		AppID:          730,
		ConversionRate: 5.25,
		Timeout:        5 * time.Second,
	}, pacer)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestNewClient_Validation(t *testing.T) {
	pacer := &noopPacer{}
	tests := []struct {
		name        string
		config      Config
		pacer       Pacer
		expectError bool
	}{
		{
			name:   "valid config",
			config: Config{APIKey: "k", BaseURL: "http://x", ConversionRate: 5.25},
			pacer:  pacer,
		},
		{
			name:        "missing api key",
			config:      Config{BaseURL: "http://x", ConversionRate: 5.25},
			pacer:       pacer,
			expectError: true,
		},
		{
			name:        "bad conversion rate",
			config:      Config{APIKey: "k", BaseURL: "http://x"},
			pacer:       pacer,
			expectError: true,
		},
		{
			name:        "missing pacer",
			config:      Config{APIKey: "k", BaseURL: "http://x", ConversionRate: 5.25},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.config, tt.pacer)
			if (err != nil) != tt.expectError {
				t.Errorf("NewClient() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}
}

func TestAppraise_ConvertsToBRL(t *testing.T) {
	mock := testutil.NewMockPricing()
	defer mock.Close()
	mock.SetInventory("76561198000000001", 12.00, 3.00)

	client := newTestClient(t, mock, &noopPacer{})

	val, err := client.Appraise(context.Background(), "76561198000000001")
	if err != nil {
		t.Fatalf("Appraise() error = %v", err)
	}

	// 12.00 USD at the fixed 5.25 rate.
	if val.TotalBRL != 63.00 {
		t.Errorf("TotalBRL = %v, want 63.00", val.TotalBRL)
	}
	if val.CasesPercent != 25.0 {
		t.Errorf("CasesPercent = %v, want 25", val.CasesPercent)
	}
	if mock.LastAPIKey != "pricing-key" {
		t.Errorf("api-key header = %q, want pricing-key", mock.LastAPIKey)
	}
}

func TestAppraise_PacesEveryCall(t *testing.T) {
	mock := testutil.NewMockPricing()
	defer mock.Close()
	mock.SetInventory("a", 10.00, 1.00)

	pacer := &noopPacer{}
	client := newTestClient(t, mock, pacer)

	if _, err := client.Appraise(context.Background(), "a"); err != nil {
		t.Fatalf("Appraise() error = %v", err)
	}

	// Total-value and cases-value each consume one pacer slot.
	if pacer.acquires != 2 {
		t.Errorf("pacer acquires = %d, want 2", pacer.acquires)
	}
}

func TestAppraise_ZeroValueSkipsCasesFetch(t *testing.T) {
	mock := testutil.NewMockPricing()
	defer mock.Close()
	mock.SetInventory("empty", 0, 0)

	pacer := &noopPacer{}
	client := newTestClient(t, mock, pacer)

	val, err := client.Appraise(context.Background(), "empty")
	if err != nil {
		t.Fatalf("Appraise() error = %v", err)
	}
	if val.TotalBRL != 0 {
		t.Errorf("TotalBRL = %v, want 0", val.TotalBRL)
	}
	if mock.GetCasesRequests() != 0 {
		t.Errorf("cases requests = %d, want 0 for a worthless inventory", mock.GetCasesRequests())
	}
	if pacer.acquires != 1 {
		t.Errorf("pacer acquires = %d, want 1", pacer.acquires)
	}
}

func TestAppraise_CasesPercentClamped(t *testing.T) {
	mock := testutil.NewMockPricing()
	defer mock.Close()
	// Inconsistent upstream data: sub-value above the total.
	mock.SetInventory("odd", 10.00, 13.00)

	client := newTestClient(t, mock, &noopPacer{})

	val, err := client.Appraise(context.Background(), "odd")
	if err != nil {
		t.Fatalf("Appraise() error = %v", err)
	}
	if val.CasesPercent != 100 {
		t.Errorf("CasesPercent = %v, want exactly 100", val.CasesPercent)
	}
}

func TestAppraise_CasesFailureIsNonFatal(t *testing.T) {
	mock := testutil.NewMockPricing()
	defer mock.Close()
	mock.SetCasesFailure("x", 20.00)

	client := newTestClient(t, mock, &noopPacer{})

	val, err := client.Appraise(context.Background(), "x")
	if err != nil {
		t.Fatalf("Appraise() error = %v, cases failure must not fail the identifier", err)
	}
	if val.TotalBRL != 105.00 {
		t.Errorf("TotalBRL = %v, want 105.00", val.TotalBRL)
	}
	if val.CasesPercent != 0 {
		t.Errorf("CasesPercent = %v, want 0 after cases failure", val.CasesPercent)
	}
}

func TestAppraise_JSONErrorMessage(t *testing.T) {
	mock := testutil.NewMockPricing()
	defer mock.Close()
	mock.SetFailure("bad", http.StatusForbidden, `{"message": "invalid api key"}`)

	client := newTestClient(t, mock, &noopPacer{})

	_, err := client.Appraise(context.Background(), "bad")
	if err == nil {
		t.Fatal("Appraise() expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", apiErr.StatusCode)
	}
	if apiErr.Message != "invalid api key" {
		t.Errorf("Message = %q, want the upstream JSON message", apiErr.Message)
	}
}

func TestAppraise_HTMLErrorBody(t *testing.T) {
	mock := testutil.NewMockPricing()
	defer mock.Close()
	mock.SetFailure("bad", http.StatusBadGateway, "<html><body>Bad Gateway</body></html>")

	client := newTestClient(t, mock, &noopPacer{})

	_, err := client.Appraise(context.Background(), "bad")
	if err == nil {
		t.Fatal("Appraise() expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.Message == "" {
		t.Error("Message must summarize the non-JSON body")
	}
}
