// Package repository persists pipeline documents. The production
// implementation runs on Postgres through pgx; an in-memory implementation
// backs tests and single-process setups.
package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/scanvoice/invoice-pipeline/constants"
	"github.com/scanvoice/invoice-pipeline/internal/docmodel"
	"github.com/scanvoice/invoice-pipeline/internal/entity"
)

// ErrNotFound is returned when a document id has no row.
var ErrNotFound = errors.New("document not found")

// DocumentRepository is the row store the pipeline depends on.
//
// UpdateStatus is an unconditional last-write-wins overwrite, applied only
// if the row exists; it reports whether a row was touched so callers can
// treat a vanished row as a no-op instead of an error. All Save* writes are
// idempotent: repeating one for the same document leaves the same state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.DocumentStatus) (bool, error)
	SetError(ctx context.Context, id uuid.UUID, status constants.DocumentStatus, message string) error

	SavePreprocess(ctx context.Context, id uuid.UUID, format string, pageCount int) error
	SaveOCR(ctx context.Context, id uuid.UUID, text string, confidence float64) error
	SaveRawExtraction(ctx context.Context, id uuid.UUID, raw json.RawMessage) error
	SavePredicted(ctx context.Context, id uuid.UUID, predicted, final *docmodel.Group) error
	SaveCorrections(ctx context.Context, id uuid.UUID, corrections, final *docmodel.Group) error

	ListByStatus(ctx context.Context, companyID uuid.UUID, status constants.DocumentStatus) ([]*entity.Document, error)
}
