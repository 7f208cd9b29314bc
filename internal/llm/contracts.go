// Package llm extracts structured invoice data from OCR text with a chat
// model constrained to a JSON schema. The extraction output stays opaque
// JSON (the raw extraction layer); projecting it into the canonical
// document is the structuring stage's job.
package llm

import (
	"context"
	"encoding/json"
)

// ExtractRequest carries everything the field extraction needs.
type ExtractRequest struct {
	OCRText         string
	FilenameHint    string
	DefaultCurrency string
	Languages       []string // document language hints, e.g. ["nl", "en"]

	// OCRConfidence from the previous stage; low values are logged as a
	// hint that a vision pass would be preferable.
	OCRConfidence float64
}

// ExtractResult pairs the raw extraction JSON with the model's overall
// confidence in it.
type ExtractResult struct {
	Raw        json.RawMessage
	Confidence float64
}

// FieldExtractor is the interface the LLM stage depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (ExtractResult, error)
}
