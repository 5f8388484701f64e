package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mcp-x402-gateway/pkg/errors"
	"mcp-x402-gateway/pkg/logging"
)

func newTestDispatcher(maxAttempts int) (*Dispatcher, *[]time.Duration) {
	loggingManager := logging.NewLoggingManager()
	loggingManager.SetLogLevel("ERROR")

	d := NewDispatcher(maxAttempts, 10*time.Millisecond, loggingManager)

	var delays []time.Duration
	d.sleep = func(delay time.Duration) {
		delays = append(delays, delay)
	}
	return d, &delays
}

func TestDispatchSuccessFirstAttempt(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer server.Close()

	d, delays := newTestDispatcher(3)

	outcome, err := d.Dispatch(context.Background(), server.URL, []byte(`{}`))
	if err != nil {
		t.Fatalf("Dispatch() returned error: %v", err)
	}

	if outcome.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", outcome.StatusCode)
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
	if len(*delays) != 0 {
		t.Errorf("Expected no backoff sleeps, got %d", len(*delays))
	}
}

func TestDispatchSendsJSONPayload(t *testing.T) {
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d, _ := newTestDispatcher(3)

	if _, err := d.Dispatch(context.Background(), server.URL, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Dispatch() returned error: %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %q", contentType)
	}
}

func TestDispatchBelowFiveHundredIsTerminal(t *testing.T) {
	statuses := []int{400, 402, 404, 429}

	for _, status := range statuses {
		status := status
		t.Run(http.StatusText(status), func(t *testing.T) {
			var attempts int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&attempts, 1)
				w.WriteHeader(status)
				w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			d, delays := newTestDispatcher(3)

			outcome, err := d.Dispatch(context.Background(), server.URL, []byte(`{}`))
			if err != nil {
				t.Fatalf("Dispatch() returned error for status %d: %v", status, err)
			}

			if outcome.StatusCode != status {
				t.Errorf("Expected status %d, got %d", status, outcome.StatusCode)
			}
			if atomic.LoadInt32(&attempts) != 1 {
				t.Errorf("Expected 1 attempt for status %d, got %d", status, attempts)
			}
			if len(*delays) != 0 {
				t.Errorf("Expected no retries for status %d", status)
			}
		})
	}
}

func TestDispatchRetriesServerErrorsThenSucceeds(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":"recovered"}`))
	}))
	defer server.Close()

	d, delays := newTestDispatcher(3)

	outcome, err := d.Dispatch(context.Background(), server.URL, []byte(`{}`))
	if err != nil {
		t.Fatalf("Dispatch() returned error: %v", err)
	}

	if outcome.StatusCode != http.StatusOK {
		t.Errorf("Expected eventual status 200, got %d", outcome.StatusCode)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}

	// Backoff doubles per transient attempt
	if len(*delays) != 2 {
		t.Fatalf("Expected 2 backoff sleeps, got %d", len(*delays))
	}
	if (*delays)[0] != 10*time.Millisecond {
		t.Errorf("Expected first delay 10ms, got %v", (*delays)[0])
	}
	if (*delays)[1] != 20*time.Millisecond {
		t.Errorf("Expected second delay 20ms, got %v", (*delays)[1])
	}
}

func TestDispatchExhaustsRetries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d, delays := newTestDispatcher(3)

	outcome, err := d.Dispatch(context.Background(), server.URL, []byte(`{}`))
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if outcome != nil {
		t.Errorf("Expected nil outcome on exhaustion, got %+v", outcome)
	}

	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(*delays) != 2 {
		t.Errorf("Expected 2 backoff sleeps, got %d", len(*delays))
	}

	structuredErr, ok := err.(*errors.StructuredError)
	if !ok {
		t.Fatalf("Expected StructuredError, got %T", err)
	}
	if structuredErr.Code != errors.ErrCodeMaxRetriesExceeded {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeMaxRetriesExceeded, structuredErr.Code)
	}
	if !strings.Contains(structuredErr.Message, "after 3 attempts") {
		t.Errorf("Expected attempt count in message, got %q", structuredErr.Message)
	}
	if structuredErr.Context["last_status"] != http.StatusInternalServerError {
		t.Errorf("Expected last_status 500 in context, got %v", structuredErr.Context["last_status"])
	}
}

func TestDispatchTransportFailureCarriesCause(t *testing.T) {
	// A closed server guarantees a connection failure on every attempt
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	d, delays := newTestDispatcher(2)

	_, err := d.Dispatch(context.Background(), url, []byte(`{}`))
	if err == nil {
		t.Fatal("Expected error for unreachable server")
	}

	structuredErr, ok := err.(*errors.StructuredError)
	if !ok {
		t.Fatalf("Expected StructuredError, got %T", err)
	}
	if structuredErr.Code != errors.ErrCodeMaxRetriesExceeded {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeMaxRetriesExceeded, structuredErr.Code)
	}
	if structuredErr.Unwrap() == nil {
		t.Error("Expected the last transport error as cause")
	}
	if len(*delays) != 1 {
		t.Errorf("Expected 1 backoff sleep for 2 attempts, got %d", len(*delays))
	}
}

func TestNewDispatcherAppliesDefaults(t *testing.T) {
	loggingManager := logging.NewLoggingManager()

	d := NewDispatcher(0, 0, loggingManager)

	if d.maxAttempts != DefaultMaxAttempts {
		t.Errorf("Expected default max attempts %d, got %d", DefaultMaxAttempts, d.maxAttempts)
	}
	if d.baseDelay != DefaultBaseDelay {
		t.Errorf("Expected default base delay %v, got %v", DefaultBaseDelay, d.baseDelay)
	}
}
