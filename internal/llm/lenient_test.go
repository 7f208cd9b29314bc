package llm

import (
	"encoding/json"
	"testing"
)

func TestSanitizeOptionalFields(t *testing.T) {
	in := []byte(`{
		"invoiceNumber": "F-1",
		"currency": " eur ",
		"vatAmount": null,
		"dueDate": "",
		"articleRows": [
			{"description": "Widget", "exclVAT": 10.5},
			{"description": "Gadget", "unitPrice": "null"}
		]
	}`)

	out, dropped, err := SanitizeOptionalFields(in)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}

	if m["currency"] != "EUR" {
		t.Errorf("currency = %v, want EUR", m["currency"])
	}
	if _, ok := m["vatAmount"]; ok {
		t.Error("null vatAmount should be dropped")
	}
	if _, ok := m["dueDate"]; ok {
		t.Error("empty dueDate should be dropped")
	}

	rows := m["articleRows"].([]any)
	r0 := rows[0].(map[string]any)
	if r0["exclVAT"] != "10.50" {
		t.Errorf("numeric exclVAT = %v, want stringified 10.50", r0["exclVAT"])
	}
	r1 := rows[1].(map[string]any)
	if _, ok := r1["unitPrice"]; ok {
		t.Error(`"null" string unitPrice should be dropped`)
	}

	// Required fields are never touched.
	if m["invoiceNumber"] != "F-1" {
		t.Errorf("invoiceNumber = %v, must be untouched", m["invoiceNumber"])
	}

	if len(dropped) != 3 {
		t.Errorf("dropped = %v, want 3 entries", dropped)
	}
}

func TestSanitizeRejectsNonObject(t *testing.T) {
	if _, _, err := SanitizeOptionalFields([]byte(`[1,2]`)); err == nil {
		t.Error("expected error for non-object document")
	}
}

func TestExtractConfidence(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{`{"confidence": 0.83}`, 0.83},
		{`{"invoiceNumber": "F-1"}`, 0.5},
		{`not json`, 0.5},
	}
	for _, tt := range tests {
		if got := extractConfidence([]byte(tt.in)); got != tt.want {
			t.Errorf("extractConfidence(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := BuildInvoiceJSONSchema()

	good := []byte(`{
		"invoiceNumber": "F-1",
		"invoiceDate": "2024-03-01",
		"currency": "EUR",
		"totalInclVAT": "18,76"
	}`)
	if err := ValidateJSONAgainstSchema(schema, good); err != nil {
		t.Errorf("valid document rejected: %v", err)
	}

	missingRequired := []byte(`{"invoiceDate": "2024-03-01"}`)
	if err := ValidateJSONAgainstSchema(schema, missingRequired); err == nil {
		t.Error("document without required fields accepted")
	}

	badDate := []byte(`{
		"invoiceNumber": "F-1",
		"invoiceDate": "03/01/2024",
		"currency": "EUR",
		"totalInclVAT": "18,76"
	}`)
	if err := ValidateJSONAgainstSchema(schema, badDate); err == nil {
		t.Error("non-ISO date accepted")
	}
}
