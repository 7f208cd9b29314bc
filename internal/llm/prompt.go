package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

func buildSystemPrompt(req ExtractRequest) string {
	var b strings.Builder
	b.WriteString("You are an invoice data extraction engine. ")
	b.WriteString("You receive OCR text of a scanned purchase invoice and return a single JSON object with the extracted fields. ")
	b.WriteString("Dates are ISO 8601 (YYYY-MM-DD). Amounts are decimal strings exactly as printed, keeping the original decimal separator. ")
	b.WriteString("Never invent values: omit any field you cannot read from the text.")
	if req.DefaultCurrency != "" {
		fmt.Fprintf(&b, " When no currency is printed, assume %s.", req.DefaultCurrency)
	}
	if len(req.Languages) > 0 {
		fmt.Fprintf(&b, " The document language is likely one of: %s.", strings.Join(req.Languages, ", "))
	}
	return b.String()
}

func buildUserPrompt(ocrText, filenameHint string) string {
	var b strings.Builder
	if filenameHint != "" {
		fmt.Fprintf(&b, "Original filename: %s\n\n", filenameHint)
	}
	b.WriteString("OCR text of the invoice:\n\n")
	b.WriteString(ocrText)
	return b.String()
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
