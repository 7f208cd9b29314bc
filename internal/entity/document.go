package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/scanvoice/invoice-pipeline/constants"
	"github.com/scanvoice/invoice-pipeline/internal/docmodel"
)

// Document represents one uploaded invoice scan moving through the
// pipeline, for data transfer between layers.
//
// RawExtraction is written once by the LLM stage. Predicted is written once
// by the structuring stage and immutable thereafter. Corrections is mutated
// (merged, never replaced) by every human edit. Final is never edited
// directly: it is always recomputed as merge(Predicted, Corrections).
type Document struct {
	ID        uuid.UUID                `json:"id"`
	CompanyID uuid.UUID                `json:"company_id"`
	Status    constants.DocumentStatus `json:"status"`

	SourcePath string `json:"source_path"` // blob path of the uploaded scan
	Format     string `json:"format,omitempty"`
	PageCount  int    `json:"page_count,omitempty"`

	OCRText       string  `json:"ocr_text,omitempty"`
	OCRConfidence float64 `json:"ocr_confidence,omitempty"`

	RawExtraction json.RawMessage `json:"raw_extraction,omitempty"`
	Predicted     *docmodel.Group `json:"predicted_document,omitempty"`
	Corrections   *docmodel.Group `json:"user_corrections,omitempty"`
	Final         *docmodel.Group `json:"final_document,omitempty"`

	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
