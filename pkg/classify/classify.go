// Package classify maps completed HTTP exchanges with the remote x402 API
// onto verdicts, and renders verdicts into MCP tool results.
//
// The remote API's error and 402 body shapes are not fixed per tool, so
// every body-field access goes through an ordered-candidate lookup with an
// explicit fallback instead of assuming a schema.
package classify

import (
	"encoding/json"

	"mcp-x402-gateway/pkg/dispatch"
)

// VerdictKind enumerates the classification outcomes
type VerdictKind int

const (
	// VerdictSuccess - status 200
	VerdictSuccess VerdictKind = iota
	// VerdictPaymentRequired - status 402, caller action needed
	VerdictPaymentRequired
	// VerdictBadRequest - status 400
	VerdictBadRequest
	// VerdictAPIError - any other non-success status
	VerdictAPIError
	// VerdictTransportFailure - the dispatcher raised, no response received
	VerdictTransportFailure
)

// String returns the string representation of the verdict kind
func (k VerdictKind) String() string {
	switch k {
	case VerdictSuccess:
		return "SUCCESS"
	case VerdictPaymentRequired:
		return "PAYMENT_REQUIRED"
	case VerdictBadRequest:
		return "BAD_REQUEST"
	case VerdictAPIError:
		return "API_ERROR"
	case VerdictTransportFailure:
		return "TRANSPORT_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Verdict is the classification of one completed dispatch
type Verdict struct {
	Kind   VerdictKind
	Status int

	// Data carries the success payload (the body's "data" field when
	// present, the whole parsed body otherwise)
	Data interface{}

	// Offer carries the payment offer fields for VerdictPaymentRequired
	Offer map[string]interface{}

	// Message carries the human-readable failure description for the
	// error verdicts
	Message string
}

// Classify inspects a dispatch outcome and maps it onto a verdict. The
// mapping is pure: the same (status, body) pair always yields the same
// verdict.
func Classify(outcome *dispatch.Outcome, dispatchErr error) Verdict {
	if dispatchErr != nil {
		return Verdict{
			Kind:    VerdictTransportFailure,
			Message: dispatchErr.Error(),
		}
	}

	body := parseBody(outcome.Body)

	switch outcome.StatusCode {
	case 200:
		return Verdict{
			Kind:   VerdictSuccess,
			Status: outcome.StatusCode,
			Data:   successData(body, outcome.Body),
		}
	case 402:
		return Verdict{
			Kind:   VerdictPaymentRequired,
			Status: outcome.StatusCode,
			Offer:  extractOffer(body),
		}
	case 400:
		return Verdict{
			Kind:    VerdictBadRequest,
			Status:  outcome.StatusCode,
			Message: stringField(body, "the remote API rejected the request", "error"),
		}
	default:
		return Verdict{
			Kind:    VerdictAPIError,
			Status:  outcome.StatusCode,
			Message: stringField(body, string(outcome.Body), "error"),
		}
	}
}

// parseBody decodes a JSON object body; non-object or malformed bodies
// yield nil so that lookups fall through to their fallbacks
func parseBody(raw []byte) map[string]interface{} {
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	return body
}

// successData returns the body's nested "data" field when present, the
// whole parsed body otherwise, and the raw text when the body is not a
// JSON object
func successData(body map[string]interface{}, raw []byte) interface{} {
	if body == nil {
		return string(raw)
	}
	if data, ok := body["data"]; ok {
		return data
	}
	return body
}

// extractOffer locates the payment offer within a 402 body: "details"
// first, then "x402_offer", then the raw body itself. First present field
// wins; the upstream 402 shape is not fixed per tool.
func extractOffer(body map[string]interface{}) map[string]interface{} {
	if body == nil {
		return map[string]interface{}{}
	}

	if candidate, ok := firstField(body, "details", "x402_offer"); ok {
		if offer, ok := candidate.(map[string]interface{}); ok {
			return offer
		}
	}

	return body
}

// firstField returns the value of the first present key, in order
func firstField(m map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, key := range keys {
		if value, ok := m[key]; ok {
			return value, true
		}
	}
	return nil, false
}

// stringField returns the first present key rendered as a string, or the
// fallback when no candidate is present or the body is not an object
func stringField(m map[string]interface{}, fallback string, keys ...string) string {
	if m == nil {
		return fallback
	}
	if value, ok := firstField(m, keys...); ok {
		if s, ok := value.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
