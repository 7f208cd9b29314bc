package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/scanvoice/invoice-pipeline/constants"
	"github.com/scanvoice/invoice-pipeline/internal/docmodel"
	"github.com/scanvoice/invoice-pipeline/internal/entity"
	"github.com/scanvoice/invoice-pipeline/internal/llm"
)

// preprocess validates the uploaded payload, fixes the document format and
// counts pages. PDFs are parsed with pdfcpu so a corrupt upload fails here
// instead of deep inside OCR.
func (c *Coordinator) preprocess(ctx context.Context, doc *entity.Document) error {
	data, err := c.blobs.Get(ctx, doc.SourcePath)
	if err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}

	ext := constants.NormalizeExt(filepath.Ext(doc.SourcePath))
	format := constants.MapExtToFormat(ext)
	if format == "" {
		return fmt.Errorf("unsupported file type %q", ext)
	}

	pages := 1
	if format == constants.PDF {
		n, err := api.PageCount(bytes.NewReader(data), nil)
		if err != nil {
			return fmt.Errorf("parse pdf: %w", err)
		}
		if n < 1 {
			return fmt.Errorf("pdf has no pages")
		}
		pages = n
	}

	if err := c.repo.SavePreprocess(ctx, doc.ID, format, pages); err != nil {
		return fmt.Errorf("save preprocess result: %w", err)
	}
	doc.Format = format
	doc.PageCount = pages
	c.logger.Info("pipeline.preprocess.ok",
		"document_id", doc.ID, "format", format, "pages", pages, "bytes", len(data))
	return nil
}

// runOCR extracts plain text from the scan.
func (c *Coordinator) runOCR(ctx context.Context, doc *entity.Document) error {
	data, err := c.blobs.Get(ctx, doc.SourcePath)
	if err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}
	res, err := c.text.Extract(ctx, data, doc.Format)
	if err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	if err := c.repo.SaveOCR(ctx, doc.ID, res.Text, res.Confidence); err != nil {
		return fmt.Errorf("save ocr result: %w", err)
	}
	doc.OCRText = res.Text
	doc.OCRConfidence = res.Confidence
	return nil
}

// predict runs the model extraction over the OCR text and stores the raw
// extraction JSON verbatim.
func (c *Coordinator) predict(ctx context.Context, doc *entity.Document) error {
	if doc.OCRText == "" {
		return fmt.Errorf("no ocr text on document")
	}
	res, err := c.fields.ExtractFields(ctx, llm.ExtractRequest{
		OCRText:       doc.OCRText,
		FilenameHint:  filepath.Base(doc.SourcePath),
		OCRConfidence: doc.OCRConfidence,
	})
	if err != nil {
		return fmt.Errorf("extract fields: %w", err)
	}
	if err := c.repo.SaveRawExtraction(ctx, doc.ID, res.Raw); err != nil {
		return fmt.Errorf("save raw extraction: %w", err)
	}
	doc.RawExtraction = res.Raw
	return nil
}

// structure projects the raw extraction through the field catalog, applies
// the fixed template and recomputes the final layer over any corrections
// already present. Re-running is deterministic: predicted is a pure
// function of the raw extraction, catalog and template.
func (c *Coordinator) structure(ctx context.Context, doc *entity.Document) error {
	if len(doc.RawExtraction) == 0 {
		return fmt.Errorf("no raw extraction on document")
	}
	cat := c.catalog.Load()
	predicted := c.mapper.Project(doc.RawExtraction, cat)
	predicted = docmodel.ApplyTemplate(predicted, c.template)
	final := docmodel.Merge(predicted, doc.Corrections)

	if err := c.repo.SavePredicted(ctx, doc.ID, predicted, final); err != nil {
		return fmt.Errorf("save predicted document: %w", err)
	}
	doc.Predicted = predicted
	doc.Final = final
	c.logger.Info("pipeline.structure.ok", "document_id", doc.ID, "sections", predicted.Len())
	return nil
}

// evaluate grades the final document: all required catalog fields present
// and a mean leaf confidence at or above the review threshold complete the
// document, anything less parks it for manual review.
func (c *Coordinator) evaluate(_ context.Context, doc *entity.Document) (constants.DocumentStatus, error) {
	if doc.Final == nil {
		return "", fmt.Errorf("no final document")
	}
	cat := c.catalog.Load()

	missing := missingRequired(doc.Final, cat)
	mean := meanLeafConfidence(doc.Final)

	status := constants.StatusCompleted
	if len(missing) > 0 || mean < c.reviewThreshold {
		status = constants.StatusManualReview
	}
	c.logger.Info("pipeline.evaluate.ok",
		"document_id", doc.ID,
		"missing_required", missing,
		"mean_confidence", mean,
		"result", status,
	)
	return status, nil
}
