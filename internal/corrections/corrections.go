// Package corrections applies human edits to a structured document. Edits
// arrive as flat section.field paths, are folded into the persistent
// corrections layer and the final document is recomputed from scratch, so
// the final layer is never edited in place.
package corrections

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/scanvoice/invoice-pipeline/internal/docmodel"
	"github.com/scanvoice/invoice-pipeline/internal/entity"
	"github.com/scanvoice/invoice-pipeline/internal/repository"
	"github.com/scanvoice/invoice-pipeline/internal/schema"
)

// Input is one batch of edits. Fields maps flat paths to new values:
// "seller.name", "line_items[2].description". RemoveRows lists row indices
// to drop per repeated section.
type Input struct {
	Fields     map[string]string `json:"fields"`
	RemoveRows map[string][]int  `json:"remove_rows,omitempty"`
}

// Service folds correction batches into documents.
type Service struct {
	repo    repository.DocumentRepository
	catalog *schema.Registry
	logger  *slog.Logger
}

func NewService(repo repository.DocumentRepository, catalog *schema.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, catalog: catalog, logger: logger}
}

// Apply merges a batch of edits into the document's corrections layer and
// recomputes the final layer. Corrected values carry confidence 1.0: a
// human said so. Paths that do not parse fail the whole batch; paths that
// parse but name no catalog field are applied anyway, the catalog governs
// projection, not editing.
func (s *Service) Apply(ctx context.Context, documentID uuid.UUID, in Input) (*entity.Document, error) {
	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Predicted == nil {
		return nil, fmt.Errorf("document %s has no structured data yet", documentID)
	}

	delta, err := buildDelta(in.Fields)
	if err != nil {
		return nil, err
	}
	s.warnUnknownFields(in.Fields)

	corrections := docmodel.Merge(doc.Corrections, delta)
	final := docmodel.Merge(doc.Predicted, corrections)

	for section, rows := range in.RemoveRows {
		removeRows(corrections, section, rows)
		removeRows(final, section, rows)
	}

	if err := s.repo.SaveCorrections(ctx, documentID, corrections, final); err != nil {
		return nil, fmt.Errorf("save corrections: %w", err)
	}
	doc.Corrections = corrections
	doc.Final = final

	s.logger.Info("corrections.applied",
		"document_id", documentID,
		"fields", len(in.Fields),
		"removed_rows", len(in.RemoveRows),
	)
	return doc, nil
}

// warnUnknownFields flags edits that name no catalog field. They still
// apply, the log line is for spotting typos in clients.
func (s *Service) warnUnknownFields(fields map[string]string) {
	cat := s.catalog.Load()
	for path := range fields {
		section, _, field, err := parsePath(path)
		if err != nil {
			continue
		}
		if _, ok := cat.Field(section, field); !ok {
			s.logger.Warn("corrections.unknown_field", "path", path)
		}
	}
}

// buildDelta turns flat path edits into a correction document. Row edits
// land at their index in a sparse list; the index-aligned merge folds them
// onto the right rows.
func buildDelta(fields map[string]string) (*docmodel.Group, error) {
	delta := docmodel.NewGroup()
	for path, value := range fields {
		section, row, field, err := parsePath(path)
		if err != nil {
			return nil, err
		}
		leaf := docmodel.Scalar{Value: value, Confidence: 1.0}

		if row < 0 {
			g := childGroup(delta, section)
			g.Set(field, leaf)
			continue
		}

		var rows docmodel.List
		if v, ok := delta.Get(section); ok {
			rows, ok = v.(docmodel.List)
			if !ok {
				return nil, fmt.Errorf("path %q: section edited both as group and as rows", path)
			}
		}
		for len(rows) <= row {
			rows = append(rows, docmodel.NewGroup())
		}
		rg, ok := rows[row].(*docmodel.Group)
		if !ok {
			return nil, fmt.Errorf("path %q: row %d is not a group", path, row)
		}
		rg.Set(field, leaf)
		delta.Set(section, rows)
	}
	return delta, nil
}

// parsePath splits "section.field" or "section[idx].field". row is -1 for
// non-repeated paths.
func parsePath(path string) (section string, row int, field string, err error) {
	dot := strings.Index(path, ".")
	if dot <= 0 || dot == len(path)-1 {
		return "", 0, "", fmt.Errorf("invalid correction path %q", path)
	}
	section, field = path[:dot], path[dot+1:]
	if strings.ContainsAny(field, ".[]") {
		return "", 0, "", fmt.Errorf("invalid correction path %q", path)
	}

	row = -1
	if open := strings.Index(section, "["); open >= 0 {
		if !strings.HasSuffix(section, "]") {
			return "", 0, "", fmt.Errorf("invalid correction path %q", path)
		}
		idx, convErr := strconv.Atoi(section[open+1 : len(section)-1])
		if convErr != nil || idx < 0 {
			return "", 0, "", fmt.Errorf("invalid row index in path %q", path)
		}
		section, row = section[:open], idx
	}
	if section == "" {
		return "", 0, "", fmt.Errorf("invalid correction path %q", path)
	}
	return section, row, field, nil
}

func childGroup(parent *docmodel.Group, name string) *docmodel.Group {
	if v, ok := parent.Get(name); ok {
		if g, ok := v.(*docmodel.Group); ok {
			return g
		}
	}
	g := docmodel.NewGroup()
	parent.Set(name, g)
	return g
}

// removeRows drops the given indices from a repeated section, highest
// first so earlier removals do not shift later indices.
func removeRows(doc *docmodel.Group, section string, indices []int) {
	v, ok := doc.Get(section)
	if !ok {
		return
	}
	rows, ok := v.(docmodel.List)
	if !ok {
		return
	}
	sorted := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	for _, i := range sorted {
		if i < 0 || i >= len(rows) {
			continue
		}
		rows = append(rows[:i], rows[i+1:]...)
	}
	if len(rows) == 0 {
		doc.Delete(section)
		return
	}
	doc.Set(section, rows)
}
