package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scanvoice/invoice-pipeline/internal/corrections"
	"github.com/scanvoice/invoice-pipeline/internal/dispatch"
	"github.com/scanvoice/invoice-pipeline/internal/pipeline"
	"github.com/scanvoice/invoice-pipeline/internal/repository"
)

// Upload size cap. Scans above this are almost certainly not invoices.
const maxUploadBytes = 64 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload accepts a multipart upload under the "file" field and
// starts the pipeline for it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload failed")
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}

	res, err := s.ingestor.IngestBytes(r.Context(), header.Filename, data)
	if err != nil {
		s.logger.Error("server.upload_failed", "filename", header.Filename, "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "documentID")
	if !ok {
		return
	}
	doc, err := s.repo.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "documentID")
	if !ok {
		return
	}
	doc, err := s.repo.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pipeline.ProgressFor(doc))
}

func (s *Server) handleCorrections(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "documentID")
	if !ok {
		return
	}
	var in corrections.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	doc, err := s.corrections.Apply(r.Context(), id, in)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "documentID")
	if !ok {
		return
	}
	if err := s.coordinator.Restart(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "restarted"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company id")
		return
	}
	data, err := s.exporter.ExportInvoicesXLSX(r.Context(), companyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleStage receives a dispatched stage message. The message is acked
// immediately and processed in the background: the dispatcher only needs
// to know the hand-off succeeded.
func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	var msg dispatch.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid stage message")
		return
	}
	if msg.DocumentID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "missing document id")
		return
	}

	// The request context dies with the response; stage work gets its own.
	go func() {
		if err := s.coordinator.Handle(context.Background(), msg); err != nil {
			s.logger.Error("server.stage_failed", "stage", msg.Stage, "document_id", msg.DocumentID, "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeRepoError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
