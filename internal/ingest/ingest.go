// Package ingest brings invoice scans into the pipeline: one-shot paths,
// directory walks and a live inbox watcher. Every accepted file is copied
// into the blob store under its new document id and submitted to the
// pipeline.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/scanvoice/invoice-pipeline/constants"
	"github.com/scanvoice/invoice-pipeline/internal/blob"
	"github.com/scanvoice/invoice-pipeline/internal/entity"
	"github.com/scanvoice/invoice-pipeline/internal/pipeline"
)

// Result describes one ingested file.
type Result struct {
	SourcePath   string    `json:"source_path"`
	DocumentID   uuid.UUID `json:"document_id"`
	HashHex      string    `json:"hash"`
	Deduplicated bool      `json:"deduplicated"`
	Err          string    `json:"error,omitempty"`
}

// DirStats aggregates a directory walk.
type DirStats struct {
	Scanned      int `json:"scanned"`
	Matched      int `json:"matched"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	Deduplicated int `json:"deduplicated"`
}

// Ingestor copies accepted files into the blob store and starts their
// pipeline run. A content-hash table suppresses duplicate submissions of
// identical payloads within the process lifetime.
type Ingestor struct {
	blobs     blob.Store
	pipe      *pipeline.Coordinator
	companyID uuid.UUID
	logger    *slog.Logger

	mu   sync.Mutex
	seen map[string]uuid.UUID
}

func NewIngestor(blobs blob.Store, pipe *pipeline.Coordinator, companyID uuid.UUID, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		blobs:     blobs,
		pipe:      pipe,
		companyID: companyID,
		logger:    logger,
		seen:      make(map[string]uuid.UUID),
	}
}

// IngestPath submits one file from the local filesystem.
func (i *Ingestor) IngestPath(ctx context.Context, path string) (Result, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	if constants.MapExtToFormat(ext) == "" {
		return Result{SourcePath: path}, fmt.Errorf("unsupported or missing extension %q", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{SourcePath: path}, fmt.Errorf("read %s: %w", path, err)
	}
	return i.IngestBytes(ctx, path, data)
}

// IngestBytes submits an in-memory payload, e.g. an HTTP upload. name only
// needs a usable extension.
func (i *Ingestor) IngestBytes(ctx context.Context, name string, data []byte) (Result, error) {
	var out Result
	out.SourcePath = name

	ext := constants.NormalizeExt(filepath.Ext(name))
	if constants.MapExtToFormat(ext) == "" {
		return out, fmt.Errorf("unsupported or missing extension %q", ext)
	}

	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])

	i.mu.Lock()
	if id, dup := i.seen[out.HashHex]; dup {
		i.mu.Unlock()
		out.DocumentID = id
		out.Deduplicated = true
		i.logger.Info("ingest.deduplicated", "path", name, "document_id", id)
		return out, nil
	}
	i.mu.Unlock()

	id := uuid.New()
	blobPath := blob.DocumentPath(i.companyID, id, "source."+ext)
	if err := i.blobs.Save(ctx, blobPath, data); err != nil {
		return out, fmt.Errorf("store blob: %w", err)
	}

	doc := &entity.Document{
		ID:         id,
		CompanyID:  i.companyID,
		SourcePath: blobPath,
	}
	if err := i.pipe.Submit(ctx, doc); err != nil {
		return out, err
	}

	i.mu.Lock()
	i.seen[out.HashHex] = id
	i.mu.Unlock()

	out.DocumentID = id
	i.logger.Info("ingest.submitted", "path", name, "document_id", id, "bytes", len(data))
	return out, nil
}

// IngestDirectory walks root and submits every accepted file, skipping
// hidden entries when asked. Per-file failures are recorded, never abort
// the walk.
func (i *Ingestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Result, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []Result
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := constants.NormalizeExt(filepath.Ext(path))
		if constants.MapExtToFormat(ext) == "" {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
