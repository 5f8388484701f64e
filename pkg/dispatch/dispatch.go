// Package dispatch sends tool payloads to the remote x402 API with bounded
// retries and exponential backoff.
//
// Any received HTTP response, 2xx through 5xx, is a valid outcome on an
// attempt; the dispatcher never turns a bad status into a raised error.
// Only transient outcomes are retried: a transport failure (no response at
// all) or a status >= 500. Everything below 500 is terminal and returned to
// the caller on the first attempt, so that the classifier can branch on it.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"mcp-x402-gateway/pkg/errors"
	"mcp-x402-gateway/pkg/logging"
)

const (
	// DefaultMaxAttempts bounds retries per dispatched call
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the first backoff delay; it doubles per attempt
	DefaultBaseDelay = 1 * time.Second

	// transientStatusFloor is the lowest status treated as transient
	transientStatusFloor = 500
)

// Outcome is a completed HTTP exchange: status code plus response body.
// A nil Outcome with a non-nil error means no response was ever received.
type Outcome struct {
	StatusCode int
	Body       []byte
}

// Dispatcher performs retrying HTTP POSTs against the remote API
type Dispatcher struct {
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
	logging     *logging.LoggingManager
	logger      *logging.StructuredLogger

	// sleep is replaceable in tests to observe backoff without waiting
	sleep func(time.Duration)
}

// NewDispatcher creates a dispatcher with the given retry bounds
func NewDispatcher(maxAttempts int, baseDelay time.Duration, loggingManager *logging.LoggingManager) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	return &Dispatcher{
		client:      &http.Client{},
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logging:     loggingManager,
		logger:      loggingManager.GetLogger("dispatch"),
		sleep:       time.Sleep,
	}
}

// Dispatch POSTs the payload to the URL and returns the first terminal
// outcome. Transient outcomes are retried with exponential backoff; after
// maxAttempts transient outcomes the call fails with MAX_RETRIES_EXCEEDED
// carrying the last transport error as cause.
func (d *Dispatcher) Dispatch(ctx context.Context, url string, payload []byte) (*Outcome, error) {
	var lastErr error
	var lastStatus int

	for attempt := 0; attempt < d.maxAttempts; attempt++ {
		outcome, err := d.attempt(ctx, url, payload)
		if err == nil && outcome.StatusCode < transientStatusFloor {
			// Terminal: any response below 500, 4xx included
			return outcome, nil
		}

		var cause string
		if err != nil {
			lastErr = err
			cause = err.Error()
		} else {
			lastStatus = outcome.StatusCode
			cause = fmt.Sprintf("status %d", outcome.StatusCode)
		}

		if attempt < d.maxAttempts-1 {
			delay := d.baseDelay * (1 << attempt)
			d.logging.LogDispatchRetry(url, attempt+1, delay, cause)
			d.sleep(delay)
		}
	}

	retryErr := errors.NewTransportError(errors.ErrCodeMaxRetriesExceeded,
		fmt.Sprintf("remote API call failed after %d attempts", d.maxAttempts), lastErr).
		WithContext("url", url).
		WithContext("max_attempts", d.maxAttempts)
	if lastStatus != 0 {
		retryErr = retryErr.WithContext("last_status", lastStatus)
	}

	d.logger.WithError(retryErr).Error("Remote API call exhausted retries")
	return nil, retryErr
}

// attempt performs one HTTP POST. A returned error means no usable response
// was produced (transport failure); any received response is returned as an
// Outcome regardless of status.
func (d *Dispatcher) attempt(ctx context.Context, url string, payload []byte) (*Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Outcome{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}
