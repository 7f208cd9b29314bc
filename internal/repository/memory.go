package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scanvoice/invoice-pipeline/constants"
	"github.com/scanvoice/invoice-pipeline/internal/docmodel"
	"github.com/scanvoice/invoice-pipeline/internal/entity"
)

// MemoryRepository is an in-memory DocumentRepository for tests and
// single-process development runs.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]*entity.Document
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[uuid.UUID]*entity.Document)}
}

func (r *MemoryRepository) Create(_ context.Context, doc *entity.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, status constants.DocumentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return false, nil
	}
	doc.Status = status
	doc.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryRepository) SetError(_ context.Context, id uuid.UUID, status constants.DocumentStatus, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[id]; ok {
		doc.Status = status
		doc.ErrorMessage = message
		doc.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryRepository) SavePreprocess(_ context.Context, id uuid.UUID, format string, pageCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[id]; ok {
		doc.Format = format
		doc.PageCount = pageCount
		doc.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryRepository) SaveOCR(_ context.Context, id uuid.UUID, text string, confidence float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[id]; ok {
		doc.OCRText = text
		doc.OCRConfidence = confidence
		doc.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryRepository) SaveRawExtraction(_ context.Context, id uuid.UUID, raw json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[id]; ok {
		doc.RawExtraction = append(json.RawMessage(nil), raw...)
		doc.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryRepository) SavePredicted(_ context.Context, id uuid.UUID, predicted, final *docmodel.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[id]; ok {
		doc.Predicted = cloneDoc(predicted)
		doc.Final = cloneDoc(final)
		doc.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryRepository) SaveCorrections(_ context.Context, id uuid.UUID, corrections, final *docmodel.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[id]; ok {
		doc.Corrections = cloneDoc(corrections)
		doc.Final = cloneDoc(final)
		doc.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryRepository) ListByStatus(_ context.Context, companyID uuid.UUID, status constants.DocumentStatus) ([]*entity.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Document
	for _, doc := range r.docs {
		if doc.CompanyID == companyID && doc.Status == status {
			cp := *doc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func cloneDoc(g *docmodel.Group) *docmodel.Group {
	if g == nil {
		return nil
	}
	return g.CloneGroup()
}
