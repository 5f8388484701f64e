package tools

// Catalog is the static tool registry: a plain mapping from tool name to
// definition, loaded once at process start. All computation happens on the
// remote API; every entry is only a description of what to forward where.
type Catalog map[string]*ToolDefinition

// signatureField is shared by every tool: the caller resubmits with it
// after settling a 402 payment offer
var signatureField = FieldSpec{
	Type:        "string",
	Description: "Transaction signature of the confirmed payment. Leave empty on the first call.",
}

// NewCatalog builds the gateway's tool catalog
func NewCatalog() Catalog {
	return Catalog{
		"scan_invoice": {
			Name:        "scan_invoice",
			Description: "Scan an invoice document and extract its line items, totals, taxes and party details.",
			Endpoint:    "/api/tools/scan-invoice",
			Fields: map[string]FieldSpec{
				"invoiceBase64": {
					Type:        "string",
					Description: "Base64-encoded invoice document.",
					Required:    true,
				},
				"mimeType": {
					Type:        "string",
					Description: "MIME type of the encoded document.",
					Enum:        []string{"application/pdf", "image/png", "image/jpeg"},
					Required:    true,
				},
				"signature": signatureField,
			},
		},
		"analyze_contract": {
			Name:        "analyze_contract",
			Description: "Analyze a contract document and answer a question about its clauses, obligations and risks.",
			Endpoint:    "/api/tools/analyze-contract",
			Fields: map[string]FieldSpec{
				"contractBase64": {
					Type:        "string",
					Description: "Base64-encoded contract document.",
					Required:    true,
				},
				"mimeType": {
					Type:        "string",
					Description: "MIME type of the encoded document.",
					Enum:        []string{"application/pdf", "image/png", "image/jpeg"},
					Required:    true,
				},
				"question": {
					Type:        "string",
					Description: "Optional question to focus the analysis on.",
				},
				"signature": signatureField,
			},
		},
		"calculate_salary": {
			Name:        "calculate_salary",
			Description: "Calculate net salary, withholdings and employer cost from a gross amount.",
			Endpoint:    "/api/tools/calculate-salary",
			Fields: map[string]FieldSpec{
				"grossAmount": {
					Type:        "number",
					Description: "Gross salary amount.",
					Required:    true,
				},
				"period": {
					Type:        "string",
					Description: "Whether the gross amount is monthly or annual.",
					Enum:        []string{"monthly", "annual"},
					Required:    true,
				},
				"countryCode": {
					Type:        "string",
					Description: "ISO 3166-1 alpha-2 country code for the applicable tax rules.",
					Required:    true,
				},
				"signature": signatureField,
			},
		},
		"generate_pdf": {
			Name:        "generate_pdf",
			Description: "Generate a formatted PDF document from structured content.",
			Endpoint:    "/api/tools/generate-pdf",
			Fields: map[string]FieldSpec{
				"title": {
					Type:        "string",
					Description: "Document title.",
					Required:    true,
				},
				"content": {
					Type:        "string",
					Description: "Document body content.",
					Required:    true,
				},
				"template": {
					Type:        "string",
					Description: "Layout template to render with.",
					Enum:        []string{"invoice", "contract", "report", "letter"},
				},
				"signature": signatureField,
			},
		},
	}
}
