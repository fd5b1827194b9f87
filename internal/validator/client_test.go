package validator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testClient(endpoint string, retries int) *Client {
	return NewClient(Config{
		Endpoint: endpoint,
		Timeout:  time.Second,
		Retry: RetryPolicy{
			MaxRetries:   retries,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
		},
	}, zerolog.Nop())
}

func TestCheckHealthHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	got := testClient(srv.URL, 0).CheckHealth(context.Background())
	if !got.Healthy {
		t.Error("expected healthy")
	}
}

func TestCheckHealthUnreachableEndpoint(t *testing.T) {
	// Nothing listens here; must resolve to unhealthy, not panic or error.
	got := testClient("http://127.0.0.1:1", 1).CheckHealth(context.Background())
	if got.Healthy {
		t.Error("expected unhealthy for unreachable endpoint")
	}
}

func TestCheckHealthInvalidEndpoint(t *testing.T) {
	got := testClient("://not a url", 0).CheckHealth(context.Background())
	if got.Healthy {
		t.Error("expected unhealthy for invalid endpoint")
	}
}

func TestCheckHealthRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	got := testClient(srv.URL, 5).CheckHealth(context.Background())
	if !got.Healthy {
		t.Error("expected healthy after retries")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 probes, got %d", calls.Load())
	}
}

func TestCheckHealthGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	got := testClient(srv.URL, 2).CheckHealth(context.Background())
	if got.Healthy {
		t.Error("expected unhealthy")
	}
	if calls.Load() != 3 {
		t.Errorf("expected initial probe plus 2 retries, got %d", calls.Load())
	}
}

func TestCheckHealthHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Config{
		Endpoint: "http://127.0.0.1:1",
		Retry:    RetryPolicy{MaxRetries: 100, InitialDelay: time.Hour},
	}, zerolog.Nop())

	start := time.Now()
	got := client.CheckHealth(ctx)
	if got.Healthy {
		t.Error("expected unhealthy")
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled context must stop the backoff wait")
	}
}
