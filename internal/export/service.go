// Package export renders finalized invoice documents into XLSX workbooks
// for accounting hand-off.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/scanvoice/invoice-pipeline/constants"
	"github.com/scanvoice/invoice-pipeline/internal/docmodel"
	"github.com/scanvoice/invoice-pipeline/internal/entity"
	"github.com/scanvoice/invoice-pipeline/internal/repository"
)

// Service produces XLSX bytes from finalized documents.
type Service struct {
	repo   repository.DocumentRepository
	logger *slog.Logger
}

func NewService(repo repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportInvoicesXLSX returns a workbook with one invoice per row plus a
// second sheet holding every line item. Only completed documents are
// exported; documents parked in manual review are deliberately excluded
// until a human signs them off.
func (s *Service) ExportInvoicesXLSX(ctx context.Context, companyID uuid.UUID) ([]byte, error) {
	start := time.Now()

	docs, err := s.repo.ListByStatus(ctx, companyID, constants.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	f := excelize.NewFile()
	const invoices = "Invoices"
	const lineItems = "Line Items"

	// excelize starts with "Sheet1"; rename it rather than juggling two.
	if err := f.SetSheetName(f.GetSheetName(0), invoices); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(lineItems); err != nil {
		return nil, err
	}

	writeRow := func(sheet string, row int, values []any) {
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	writeRow(invoices, 1, []any{
		"Document ID", "Invoice Number", "Invoice Date", "Due Date",
		"Seller", "Buyer", "Currency",
		"Total Excl. VAT", "VAT", "Total Incl. VAT", "IBAN",
	})
	writeRow(lineItems, 1, []any{
		"Document ID", "Invoice Number", "#", "Description",
		"Quantity", "Unit Price", "Excl. VAT", "VAT Rate",
	})

	invRow, liRow := 2, 2
	for _, doc := range docs {
		number := leaf(doc.Final, "header", "invoice_number")
		writeRow(invoices, invRow, []any{
			doc.ID.String(),
			number,
			leaf(doc.Final, "header", "issue_date"),
			leaf(doc.Final, "header", "due_date"),
			leaf(doc.Final, "seller", "name"),
			leaf(doc.Final, "buyer", "name"),
			leaf(doc.Final, "header", "currency_code"),
			leaf(doc.Final, "totals", "total_excl_vat"),
			leaf(doc.Final, "totals", "vat_amount"),
			leaf(doc.Final, "totals", "total_incl_vat"),
			leaf(doc.Final, "payment", "iban"),
		})
		invRow++

		for i, row := range rows(doc.Final, "line_items") {
			writeRow(lineItems, liRow, []any{
				doc.ID.String(),
				number,
				i + 1,
				rowLeaf(row, "description"),
				rowLeaf(row, "quantity"),
				rowLeaf(row, "unit_price"),
				rowLeaf(row, "amount_excl_vat"),
				rowLeaf(row, "vat_rate"),
			})
			liRow++
		}
	}

	_ = f.SetColWidth(invoices, "A", "A", 38)
	_ = f.SetColWidth(invoices, "B", "B", 20)
	_ = f.SetColWidth(invoices, "C", "D", 14)
	_ = f.SetColWidth(invoices, "E", "F", 30)
	_ = f.SetColWidth(invoices, "H", "J", 16)
	_ = f.SetColWidth(invoices, "K", "K", 28)
	_ = f.SetColWidth(lineItems, "A", "A", 38)
	_ = f.SetColWidth(lineItems, "D", "D", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"company_id", companyID.String(),
		"invoices", len(docs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ExportDocument returns the final document of one invoice as indented
// JSON, the shape clients render for review screens.
func (s *Service) ExportDocument(ctx context.Context, documentID uuid.UUID) (*entity.Document, error) {
	return s.repo.GetByID(ctx, documentID)
}

func leaf(doc *docmodel.Group, section, field string) string {
	if doc == nil {
		return ""
	}
	v, ok := doc.Get(section)
	if !ok {
		return ""
	}
	g, ok := v.(*docmodel.Group)
	if !ok {
		return ""
	}
	return rowLeaf(g, field)
}

func rowLeaf(g *docmodel.Group, field string) string {
	if g == nil {
		return ""
	}
	v, ok := g.Get(field)
	if !ok {
		return ""
	}
	s, ok := v.(docmodel.Scalar)
	if !ok {
		return ""
	}
	return s.Value
}

func rows(doc *docmodel.Group, section string) []*docmodel.Group {
	if doc == nil {
		return nil
	}
	v, ok := doc.Get(section)
	if !ok {
		return nil
	}
	list, ok := v.(docmodel.List)
	if !ok {
		return nil
	}
	var out []*docmodel.Group
	for _, e := range list {
		if g, ok := e.(*docmodel.Group); ok {
			out = append(out, g)
		}
	}
	return out
}
