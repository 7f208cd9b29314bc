package pipeline

import "github.com/scanvoice/invoice-pipeline/internal/docmodel"

// DefaultTemplate carries the constants every structured invoice gets
// regardless of what the model extracted. Template values win over
// predicted values on merge; a list in the template acts as a row template
// applied to every row of the matching list in the document.
func DefaultTemplate() *docmodel.Group {
	header := docmodel.NewGroup()
	// EN 16931 invoice type code for a commercial invoice.
	header.Set("document_type", docmodel.Scalar{Value: "380", Confidence: 1.0})

	row := docmodel.NewGroup()
	row.Set("tax_scheme", docmodel.Scalar{Value: "VAT", Confidence: 1.0})

	t := docmodel.NewGroup()
	t.Set("header", header)
	t.Set("line_items", docmodel.List{row})
	return t
}
