package pipeline

import (
	"github.com/scanvoice/invoice-pipeline/constants"
	"github.com/scanvoice/invoice-pipeline/internal/entity"
)

// Progress is the operator-facing view of where a document stands.
type Progress struct {
	Status      constants.DocumentStatus `json:"status"`
	Step        int                      `json:"step"`
	TotalSteps  int                      `json:"total_steps"`
	Percentage  int                      `json:"percentage"`
	Description string                   `json:"description"`
	Failed      bool                     `json:"failed"`
	Error       string                   `json:"error,omitempty"`
}

// ProgressFor renders the progress view for a document.
func ProgressFor(doc *entity.Document) Progress {
	p := Progress{
		Status:      doc.Status,
		Step:        constants.StepIndex(doc.Status),
		TotalSteps:  constants.StepTotal,
		Percentage:  constants.Percentage(doc.Status),
		Description: constants.Describe(doc.Status),
		Failed:      constants.IsError(doc.Status),
	}
	if p.Failed {
		p.Error = doc.ErrorMessage
	}
	return p
}
