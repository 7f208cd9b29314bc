package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/scanvoice/invoice-pipeline/constants"
	"github.com/scanvoice/invoice-pipeline/internal/blob"
	"github.com/scanvoice/invoice-pipeline/internal/corrections"
	"github.com/scanvoice/invoice-pipeline/internal/dispatch"
	"github.com/scanvoice/invoice-pipeline/internal/docmodel"
	"github.com/scanvoice/invoice-pipeline/internal/entity"
	"github.com/scanvoice/invoice-pipeline/internal/export"
	"github.com/scanvoice/invoice-pipeline/internal/ingest"
	"github.com/scanvoice/invoice-pipeline/internal/llm"
	"github.com/scanvoice/invoice-pipeline/internal/ocr"
	"github.com/scanvoice/invoice-pipeline/internal/pipeline"
	"github.com/scanvoice/invoice-pipeline/internal/repository"
	"github.com/scanvoice/invoice-pipeline/internal/schema"
)

type rig struct {
	repo    *repository.MemoryRepository
	backend *dispatch.MockBackend
	srv     *Server
	ts      *httptest.Server
}

func newRig(t *testing.T) *rig {
	t.Helper()
	repo := repository.NewMemoryRepository()
	backend := dispatch.NewMockBackend()
	blobs := blob.NewFSStore(t.TempDir())
	registry := schema.NewRegistry("", nil)
	coord := pipeline.NewCoordinator(
		repo, blobs, backend, registry,
		&ocr.MockExtractor{Text: "x", Confidence: 1},
		&llm.MockExtractor{Raw: json.RawMessage(`{}`)},
		pipeline.Options{},
		nil,
	)
	srv := New(
		"127.0.0.1:0",
		repo,
		coord,
		corrections.NewService(repo, registry, nil),
		export.NewService(repo, nil),
		ingest.NewIngestor(blobs, coord, uuid.New(), nil),
		nil,
	)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &rig{repo: repo, backend: backend, srv: srv, ts: ts}
}

func (r *rig) seed(t *testing.T, status constants.DocumentStatus) *entity.Document {
	t.Helper()
	header := docmodel.NewGroup()
	header.Set("invoice_number", docmodel.Scalar{Value: "F-1", Confidence: 0.8})
	predicted := docmodel.NewGroup()
	predicted.Set("header", header)

	doc := &entity.Document{
		ID:        uuid.New(),
		CompanyID: uuid.New(),
		Status:    status,
		Predicted: predicted,
		Final:     predicted.CloneGroup(),
	}
	if err := r.repo.Create(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	return doc
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	r := newRig(t)
	resp, err := http.Get(r.ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	r := newRig(t)
	doc := r.seed(t, constants.StatusLLMPredicting)

	resp, err := http.Get(fmt.Sprintf("%s/documents/%s/status", r.ts.URL, doc.ID))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var p pipeline.Progress
	decodeBody(t, resp, &p)
	if p.Status != constants.StatusLLMPredicting {
		t.Errorf("progress status = %s", p.Status)
	}
	if p.Step != 3 || p.TotalSteps != 6 || p.Percentage != 50 {
		t.Errorf("progress = %+v, want step 3/6 at 50%%", p)
	}
	if p.Description == "" {
		t.Error("description missing")
	}
}

func TestStatusNotFound(t *testing.T) {
	r := newRig(t)
	resp, err := http.Get(fmt.Sprintf("%s/documents/%s/status", r.ts.URL, uuid.New()))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStatusBadID(t *testing.T) {
	r := newRig(t)
	resp, err := http.Get(r.ts.URL + "/documents/not-a-uuid/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCorrectionsEndpoint(t *testing.T) {
	r := newRig(t)
	doc := r.seed(t, constants.StatusManualReview)

	body := `{"fields": {"header.invoice_number": "F-999"}}`
	resp, err := http.Post(
		fmt.Sprintf("%s/documents/%s/corrections", r.ts.URL, doc.ID),
		"application/json",
		strings.NewReader(body),
	)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got entity.Document
	decodeBody(t, resp, &got)

	hv, _ := got.Final.Get("header")
	num, _ := hv.(*docmodel.Group).Get("invoice_number")
	if num.(docmodel.Scalar).Value != "F-999" {
		t.Errorf("final invoice_number = %+v", num)
	}
}

func TestCorrectionsBadPath(t *testing.T) {
	r := newRig(t)
	doc := r.seed(t, constants.StatusManualReview)

	resp, err := http.Post(
		fmt.Sprintf("%s/documents/%s/corrections", r.ts.URL, doc.ID),
		"application/json",
		strings.NewReader(`{"fields": {"nodot": "x"}}`),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestRestartEndpoint(t *testing.T) {
	r := newRig(t)
	doc := r.seed(t, constants.StatusErrorOCR)

	resp, err := http.Post(fmt.Sprintf("%s/documents/%s/restart", r.ts.URL, doc.ID), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	got, err := r.repo.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != constants.StatusPreprocessing {
		t.Errorf("status = %s, want %s", got.Status, constants.StatusPreprocessing)
	}
	msgs := r.backend.Messages()
	if len(msgs) != 1 || msgs[0].Stage != pipeline.StagePreprocess {
		t.Errorf("dispatches = %+v", msgs)
	}
}

func TestRestartNotFound(t *testing.T) {
	r := newRig(t)
	resp, err := http.Post(fmt.Sprintf("%s/documents/%s/restart", r.ts.URL, uuid.New()), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUploadEndpoint(t *testing.T) {
	r := newRig(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "invoice.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("scan-bytes")); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	resp, err := http.Post(r.ts.URL+"/documents", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var res ingest.Result
	decodeBody(t, resp, &res)
	if res.DocumentID == uuid.Nil {
		t.Fatal("no document id in response")
	}
	if _, err := r.repo.GetByID(context.Background(), res.DocumentID); err != nil {
		t.Errorf("document not created: %v", err)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	r := newRig(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	fw.Write([]byte("text"))
	mw.Close()

	resp, err := http.Post(r.ts.URL+"/documents", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestStageEndpointAcks(t *testing.T) {
	r := newRig(t)
	msg := dispatch.Message{DocumentID: uuid.New(), CompanyID: uuid.New(), Stage: pipeline.StageOCR}
	body, _ := json.Marshal(msg)

	resp, err := http.Post(r.ts.URL+"/internal/pipeline/stage", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
}

func TestStageEndpointRejectsBadBody(t *testing.T) {
	r := newRig(t)
	for _, body := range []string{"not json", `{"stage": "ocr"}`} {
		resp, err := http.Post(r.ts.URL+"/internal/pipeline/stage", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}
