package classify

import (
	"encoding/json"
	"fmt"
	"strconv"

	"mcp-x402-gateway/internal/models"
)

// DefaultCurrency is assumed when a payment offer omits the token symbol
const DefaultCurrency = "SOL"

// PaymentOffer is the normalized view of a 402 offer, derived from the
// body at render time and never persisted
type PaymentOffer struct {
	Amount    string
	Currency  string
	Recipient string
	Memo      string
}

// OfferFromFields normalizes raw offer fields. Currency defaults to
// DefaultCurrency, recipient checks "address" then "recipient", and the
// memo falls back to the tool name.
func OfferFromFields(offer map[string]interface{}, toolName string) PaymentOffer {
	normalized := PaymentOffer{
		Amount:   "unknown",
		Currency: DefaultCurrency,
		Memo:     toolName,
	}

	if amount, ok := offer["amount"]; ok {
		normalized.Amount = formatAmount(amount)
	}
	if currency, ok := offer["currency"].(string); ok && currency != "" {
		normalized.Currency = currency
	}
	if recipient, ok := firstField(offer, "address", "recipient"); ok {
		if s, ok := recipient.(string); ok && s != "" {
			normalized.Recipient = s
		}
	}
	if memo, ok := offer["memo"].(string); ok && memo != "" {
		normalized.Memo = memo
	}

	return normalized
}

// Render converts a verdict into the MCP tool result returned to the
// calling agent. Success renders the pretty-printed data; every other
// verdict renders exactly one human-readable text block with the error
// flag set.
func Render(verdict Verdict, toolName string) models.MCPToolsCallResult {
	switch verdict.Kind {
	case VerdictSuccess:
		return textResult(prettyJSON(verdict.Data), false)

	case VerdictPaymentRequired:
		offer := OfferFromFields(verdict.Offer, toolName)
		return textResult(paymentInstructions(offer, toolName), true)

	case VerdictBadRequest:
		return textResult(fmt.Sprintf("Bad request: %s. Fix the tool arguments and try again.", verdict.Message), true)

	case VerdictTransportFailure:
		return textResult(fmt.Sprintf("Transport failure: %s. Check connectivity to the remote API and retry.", verdict.Message), true)

	default:
		return textResult(fmt.Sprintf("Remote API error (status %d): %s", verdict.Status, verdict.Message), true)
	}
}

// paymentInstructions renders the fixed 402 template with resubmission
// instructions
func paymentInstructions(offer PaymentOffer, toolName string) string {
	recipient := offer.Recipient
	if recipient == "" {
		recipient = "unknown"
	}

	return fmt.Sprintf(
		"Payment required to run %s.\n\n"+
			"  Amount:    %s %s\n"+
			"  Recipient: %s\n"+
			"  Memo:      %s\n\n"+
			"Send the payment, then call the same tool again with the same "+
			"arguments plus a \"signature\" argument set to the confirmed "+
			"transaction signature.",
		toolName, offer.Amount, offer.Currency, recipient, offer.Memo)
}

// prettyJSON pretty-prints the success payload; values that cannot be
// marshaled fall back to their Go string form
func prettyJSON(data interface{}) string {
	if s, ok := data.(string); ok {
		return s
	}

	pretty, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(pretty)
}

// formatAmount renders a JSON amount (number or string) without float noise
func formatAmount(amount interface{}) string {
	switch v := amount.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// textResult builds a single-text-block tool result
func textResult(text string, isError bool) models.MCPToolsCallResult {
	return models.MCPToolsCallResult{
		Content: []models.MCPToolContent{
			{
				Type: "text",
				Text: text,
			},
		},
		IsError: isError,
	}
}
