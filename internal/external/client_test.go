package external

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"wpre/internal/types"

	"github.com/sony/gobreaker/v2"
)

func newTestClient(policy BreakerPolicy) *BaseClient {
	return NewBaseClient(&http.Client{Timeout: 5 * time.Second}, policy, "WPRE-Test/1.0")
}

func TestDo_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := newTestClient(BreakerPolicy{})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL+"/test", nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if client.BreakerState() != "disabled" {
		t.Errorf("expected disabled breaker, got %q", client.BreakerState())
	}
}

func TestDo_InjectsHeaders(t *testing.T) {
	var gotReqID, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get("X-Request-Id")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(BreakerPolicy{})
	ctx := types.WithRequestID(context.Background(), "req-abc-123")
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if gotReqID != "req-abc-123" {
		t.Errorf("expected X-Request-Id 'req-abc-123', got %q", gotReqID)
	}
	if gotUA != "WPRE-Test/1.0" {
		t.Errorf("expected User-Agent 'WPRE-Test/1.0', got %q", gotUA)
	}
}

func TestDo_NoRetryOn500(t *testing.T) {
	var callCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(BreakerPolicy{Name: "test", ConsecutiveFailures: 5, Cooldown: time.Minute})
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if resp != nil {
		t.Error("expected nil response on 5xx")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeExternalData {
		t.Errorf("expected code %s, got %s", types.ErrCodeExternalData, appErr.Code)
	}
	if !strings.Contains(appErr.Message, "503") {
		t.Errorf("expected message to mention 503, got %q", appErr.Message)
	}
	if callCount.Load() != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", callCount.Load())
	}
}

func TestDo_ClientErrorReturnedAsIs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(BreakerPolicy{Name: "test", ConsecutiveFailures: 1, Cooldown: time.Minute})
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	}
	if client.BreakerState() != "closed" {
		t.Errorf("4xx must not trip the breaker, state %q", client.BreakerState())
	}
}

func TestDo_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(BreakerPolicy{})
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)

	_, err := client.Do(req)
	if types.Classify(err).Code != types.ErrCodeExternalData {
		t.Fatalf("expected external data error, got %v", err)
	}
}

func TestDo_CircuitBreakerOpensAfterThreshold(t *testing.T) {
	var callCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "test-open",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	client := NewBaseClientWithBreaker(&http.Client{Timeout: 5 * time.Second}, breaker, "WPRE-Test/1.0")

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		_, _ = client.Do(req)
	}
	if client.BreakerState() != "open" {
		t.Fatalf("expected open breaker, got %q", client.BreakerState())
	}

	callsBefore := callCount.Load()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	_, err := client.Do(req)

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if !strings.Contains(appErr.Message, "circuit breaker is open") {
		t.Errorf("unexpected message %q", appErr.Message)
	}
	if callCount.Load() != callsBefore {
		t.Errorf("expected no server call while breaker is open")
	}
}
