package corrections

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/scanvoice/invoice-pipeline/constants"
	"github.com/scanvoice/invoice-pipeline/internal/docmodel"
	"github.com/scanvoice/invoice-pipeline/internal/entity"
	"github.com/scanvoice/invoice-pipeline/internal/repository"
	"github.com/scanvoice/invoice-pipeline/internal/schema"
)

func leaf(v string, p float64) docmodel.Scalar {
	return docmodel.Scalar{Value: v, Confidence: p}
}

// seedDocument stores a structured document ready for corrections.
func seedDocument(t *testing.T, repo repository.DocumentRepository) uuid.UUID {
	t.Helper()

	header := docmodel.NewGroup()
	header.Set("invoice_number", leaf("F-123", 0.8))
	header.Set("issue_date", leaf("2024-03-01", 0.9))

	row0 := docmodel.NewGroup()
	row0.Set("description", leaf("Widget", 0.7))
	row1 := docmodel.NewGroup()
	row1.Set("description", leaf("Gadget", 0.6))

	predicted := docmodel.NewGroup()
	predicted.Set("header", header)
	predicted.Set("line_items", docmodel.List{row0, row1})

	doc := &entity.Document{
		ID:        uuid.New(),
		CompanyID: uuid.New(),
		Status:    constants.StatusManualReview,
		Predicted: predicted,
		Final:     predicted.CloneGroup(),
	}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	return doc.ID
}

func newService(repo repository.DocumentRepository) *Service {
	return NewService(repo, schema.NewRegistry("", nil), nil)
}

func TestApplyFieldEdit(t *testing.T) {
	repo := repository.NewMemoryRepository()
	id := seedDocument(t, repo)
	svc := newService(repo)

	doc, err := svc.Apply(context.Background(), id, Input{
		Fields: map[string]string{"header.invoice_number": "F-999"},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	hv, _ := doc.Final.Get("header")
	num, _ := hv.(*docmodel.Group).Get("invoice_number")
	if num.(docmodel.Scalar) != leaf("F-999", 1.0) {
		t.Errorf("final invoice_number = %+v, want corrected value at confidence 1.0", num)
	}
	// The untouched sibling keeps its predicted value.
	date, _ := hv.(*docmodel.Group).Get("issue_date")
	if date.(docmodel.Scalar).Value != "2024-03-01" {
		t.Errorf("issue_date = %+v, want untouched", date)
	}
	// Predicted layer stays immutable.
	pv, _ := doc.Predicted.Get("header")
	pnum, _ := pv.(*docmodel.Group).Get("invoice_number")
	if pnum.(docmodel.Scalar).Value != "F-123" {
		t.Errorf("predicted invoice_number = %+v, must never change", pnum)
	}
}

func TestApplyAccumulatesAcrossBatches(t *testing.T) {
	repo := repository.NewMemoryRepository()
	id := seedDocument(t, repo)
	svc := newService(repo)
	ctx := context.Background()

	if _, err := svc.Apply(ctx, id, Input{Fields: map[string]string{"header.invoice_number": "F-999"}}); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	doc, err := svc.Apply(ctx, id, Input{Fields: map[string]string{"header.issue_date": "2024-04-01"}})
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}

	hv, _ := doc.Final.Get("header")
	h := hv.(*docmodel.Group)
	num, _ := h.Get("invoice_number")
	if num.(docmodel.Scalar).Value != "F-999" {
		t.Errorf("first batch's edit lost: %+v", num)
	}
	date, _ := h.Get("issue_date")
	if date.(docmodel.Scalar).Value != "2024-04-01" {
		t.Errorf("second batch's edit missing: %+v", date)
	}
}

func TestApplyRowEdit(t *testing.T) {
	repo := repository.NewMemoryRepository()
	id := seedDocument(t, repo)
	svc := newService(repo)

	doc, err := svc.Apply(context.Background(), id, Input{
		Fields: map[string]string{"line_items[1].description": "Better gadget"},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	lv, _ := doc.Final.Get("line_items")
	rows := lv.(docmodel.List)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	d0, _ := rows[0].(*docmodel.Group).Get("description")
	if d0.(docmodel.Scalar).Value != "Widget" {
		t.Errorf("rows[0] = %+v, want untouched", d0)
	}
	d1, _ := rows[1].(*docmodel.Group).Get("description")
	if d1.(docmodel.Scalar) != leaf("Better gadget", 1.0) {
		t.Errorf("rows[1] = %+v, want edited", d1)
	}
}

func TestApplyRemoveRows(t *testing.T) {
	repo := repository.NewMemoryRepository()
	id := seedDocument(t, repo)
	svc := newService(repo)

	doc, err := svc.Apply(context.Background(), id, Input{
		RemoveRows: map[string][]int{"line_items": {0}},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	lv, _ := doc.Final.Get("line_items")
	rows := lv.(docmodel.List)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	d, _ := rows[0].(*docmodel.Group).Get("description")
	if d.(docmodel.Scalar).Value != "Gadget" {
		t.Errorf("surviving row = %+v, want Gadget", d)
	}
}

func TestApplyRemoveRowsIgnoresOutOfRange(t *testing.T) {
	repo := repository.NewMemoryRepository()
	id := seedDocument(t, repo)
	svc := newService(repo)

	doc, err := svc.Apply(context.Background(), id, Input{
		RemoveRows: map[string][]int{"line_items": {5, -1}, "no_such_section": {0}},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	lv, _ := doc.Final.Get("line_items")
	if got := len(lv.(docmodel.List)); got != 2 {
		t.Errorf("rows = %d, want 2 untouched", got)
	}
}

func TestApplyInvalidPaths(t *testing.T) {
	repo := repository.NewMemoryRepository()
	id := seedDocument(t, repo)
	svc := newService(repo)

	bad := []string{
		"noseparator",
		".leadingdot",
		"trailing.",
		"line_items[x].description",
		"line_items[-1].description",
		"a.b.c",
	}
	for _, path := range bad {
		_, err := svc.Apply(context.Background(), id, Input{
			Fields: map[string]string{path: "v"},
		})
		if err == nil {
			t.Errorf("path %q: expected error", path)
		}
	}
}

func TestApplyRequiresStructuredDocument(t *testing.T) {
	repo := repository.NewMemoryRepository()
	doc := &entity.Document{ID: uuid.New(), Status: constants.StatusOCRExtracting}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	svc := newService(repo)

	_, err := svc.Apply(context.Background(), doc.ID, Input{
		Fields: map[string]string{"header.invoice_number": "F-1"},
	})
	if err == nil {
		t.Error("expected error for unstructured document")
	}
}

func TestApplyUnknownDocument(t *testing.T) {
	svc := newService(repository.NewMemoryRepository())
	if _, err := svc.Apply(context.Background(), uuid.New(), Input{}); err == nil {
		t.Error("expected error for unknown document")
	}
}
