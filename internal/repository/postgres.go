package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scanvoice/invoice-pipeline/constants"
	"github.com/scanvoice/invoice-pipeline/internal/docmodel"
	"github.com/scanvoice/invoice-pipeline/internal/entity"
)

type postgresRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgresRepository returns a DocumentRepository backed by the
// documents table (see db/migrations).
func NewPostgresRepository(pool *pgxpool.Pool, log *slog.Logger) DocumentRepository {
	if log == nil {
		log = slog.Default()
	}
	return &postgresRepo{pool: pool, log: log}
}

func (r *postgresRepo) Create(ctx context.Context, doc *entity.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (id, company_id, status, source_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.CompanyID, string(doc.Status), doc.SourcePath, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		r.log.Error("document create failed", "document_id", doc.ID, "err", err)
		return fmt.Errorf("insert document: %w", err)
	}
	r.log.Info("document created", "document_id", doc.ID, "company_id", doc.CompanyID)
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, company_id, status, source_path,
		       COALESCE(format, ''), COALESCE(page_count, 0),
		       COALESCE(ocr_text, ''), COALESCE(ocr_confidence, 0),
		       raw_extraction, predicted_document, user_corrections, final_document,
		       COALESCE(error_message, ''), created_at, updated_at
		FROM documents WHERE id = $1`, id)

	var doc entity.Document
	var status string
	var rawExtraction, predicted, corrections, fin []byte
	err := row.Scan(&doc.ID, &doc.CompanyID, &status, &doc.SourcePath,
		&doc.Format, &doc.PageCount, &doc.OCRText, &doc.OCRConfidence,
		&rawExtraction, &predicted, &corrections, &fin,
		&doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	doc.Status = constants.DocumentStatus(status)
	doc.RawExtraction = rawExtraction
	if doc.Predicted, err = decodeDoc(predicted); err != nil {
		return nil, fmt.Errorf("decode predicted_document: %w", err)
	}
	if doc.Corrections, err = decodeDoc(corrections); err != nil {
		return nil, fmt.Errorf("decode user_corrections: %w", err)
	}
	if doc.Final, err = decodeDoc(fin); err != nil {
		return nil, fmt.Errorf("decode final_document: %w", err)
	}
	return &doc, nil
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.DocumentStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *postgresRepo) SetError(ctx context.Context, id uuid.UUID, status constants.DocumentStatus, message string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE documents SET status = $2, error_message = $3, updated_at = now() WHERE id = $1`,
		id, string(status), message)
	if err != nil {
		return fmt.Errorf("set error status: %w", err)
	}
	return nil
}

func (r *postgresRepo) SavePreprocess(ctx context.Context, id uuid.UUID, format string, pageCount int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE documents SET format = $2, page_count = $3, updated_at = now() WHERE id = $1`,
		id, format, pageCount)
	if err != nil {
		return fmt.Errorf("save preprocess result: %w", err)
	}
	return nil
}

func (r *postgresRepo) SaveOCR(ctx context.Context, id uuid.UUID, text string, confidence float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE documents SET ocr_text = $2, ocr_confidence = $3, updated_at = now() WHERE id = $1`,
		id, text, confidence)
	if err != nil {
		return fmt.Errorf("save ocr result: %w", err)
	}
	return nil
}

func (r *postgresRepo) SaveRawExtraction(ctx context.Context, id uuid.UUID, raw json.RawMessage) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE documents SET raw_extraction = $2, updated_at = now() WHERE id = $1`,
		id, []byte(raw))
	if err != nil {
		return fmt.Errorf("save raw extraction: %w", err)
	}
	return nil
}

func (r *postgresRepo) SavePredicted(ctx context.Context, id uuid.UUID, predicted, final *docmodel.Group) error {
	pb, err := json.Marshal(predicted)
	if err != nil {
		return fmt.Errorf("encode predicted_document: %w", err)
	}
	fb, err := json.Marshal(final)
	if err != nil {
		return fmt.Errorf("encode final_document: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE documents SET predicted_document = $2, final_document = $3, updated_at = now()
		WHERE id = $1`, id, pb, fb)
	if err != nil {
		return fmt.Errorf("save predicted document: %w", err)
	}
	return nil
}

func (r *postgresRepo) SaveCorrections(ctx context.Context, id uuid.UUID, corrections, final *docmodel.Group) error {
	cb, err := json.Marshal(corrections)
	if err != nil {
		return fmt.Errorf("encode user_corrections: %w", err)
	}
	fb, err := json.Marshal(final)
	if err != nil {
		return fmt.Errorf("encode final_document: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE documents SET user_corrections = $2, final_document = $3, updated_at = now()
		WHERE id = $1`, id, cb, fb)
	if err != nil {
		return fmt.Errorf("save corrections: %w", err)
	}
	return nil
}

func (r *postgresRepo) ListByStatus(ctx context.Context, companyID uuid.UUID, status constants.DocumentStatus) ([]*entity.Document, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM documents
		WHERE company_id = $1 AND status = $2
		ORDER BY created_at`, companyID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*entity.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func decodeDoc(b []byte) (*docmodel.Group, error) {
	if len(b) == 0 {
		return nil, nil
	}
	return docmodel.FromJSON(b)
}
