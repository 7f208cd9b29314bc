// Package mapper projects the raw model extraction into the canonical
// sectioned document described by the schema catalog.
package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/scanvoice/invoice-pipeline/internal/docmodel"
	"github.com/scanvoice/invoice-pipeline/internal/schema"
)

// Mapper resolves catalog source paths against a raw extraction. Resolution
// is best-effort throughout: a missing key at any depth omits the field,
// never errors.
type Mapper struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{logger: logger}
}

// Project builds a canonical document from raw extraction JSON, in catalog
// order. Fields without a source mapping, and fields whose path does not
// resolve, are omitted. Every resolved scalar is wrapped with confidence
// 1.0: the projection is mechanical, model uncertainty lives in the raw
// extraction layer.
func (m *Mapper) Project(raw json.RawMessage, cat *schema.Catalog) *docmodel.Group {
	doc := docmodel.NewGroup()

	var root map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		m.logger.Warn("mapper.raw_extraction_unparseable", "error", err)
		return doc
	}

	for _, sec := range cat.Sections() {
		if sec.Repeated {
			if rows, ok := m.projectRows(root, sec); ok {
				doc.Set(sec.Name, rows)
			}
			continue
		}
		g := docmodel.NewGroup()
		for _, f := range sec.Fields {
			if f.Source == "" {
				continue
			}
			if v, ok := m.projectField(root, f); ok {
				g.Set(f.Name, v)
			}
		}
		if g.Len() > 0 {
			doc.Set(sec.Name, g)
		}
	}
	return doc
}

// projectRows maps every element of the section's source collection to a
// row group. A missing or non-list source omits the whole section.
func (m *Mapper) projectRows(root map[string]any, sec schema.Section) (docmodel.List, bool) {
	base, ok := resolvePath(root, strings.TrimSuffix(sec.Source, "[]"))
	if !ok {
		return nil, false
	}
	elems, ok := base.([]any)
	if !ok {
		return nil, false
	}
	rows := make(docmodel.List, 0, len(elems))
	for _, el := range elems {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		row := docmodel.NewGroup()
		for _, f := range sec.Fields {
			if f.Source == "" {
				continue
			}
			if v, ok := resolveScalar(obj, f.Source); ok {
				row.Set(f.Name, docmodel.Scalar{Value: v, Confidence: 1.0})
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, false
	}
	return rows, true
}

func (m *Mapper) projectField(root map[string]any, f schema.FieldMeta) (docmodel.Value, bool) {
	if inner, ok := calcExpr(f.Source); ok {
		return m.sumColumn(root, inner, f)
	}
	if base, rest, ok := splitProjection(f.Source); ok {
		return m.projectColumn(root, base, rest)
	}
	v, ok := resolveScalar(root, f.Source)
	if !ok {
		return nil, false
	}
	return docmodel.Scalar{Value: v, Confidence: 1.0}, true
}

// projectColumn applies the remainder path to every element of the base
// array and collects the non-null results.
func (m *Mapper) projectColumn(root map[string]any, base, rest string) (docmodel.Value, bool) {
	bv, ok := resolvePath(root, base)
	if !ok {
		return nil, false
	}
	elems, ok := bv.([]any)
	if !ok {
		return nil, false
	}
	out := make(docmodel.List, 0, len(elems))
	for _, el := range elems {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := resolveScalar(obj, rest); ok {
			out = append(out, docmodel.Scalar{Value: v, Confidence: 1.0})
		}
	}
	return out, true
}

// sumColumn computes the calculated total: the sum of a numeric column
// across every element of an array. Entries that do not parse as a number
// count as zero with a logged warning; the sum itself never fails.
func (m *Mapper) sumColumn(root map[string]any, inner string, f schema.FieldMeta) (docmodel.Value, bool) {
	base, rest, ok := splitProjection(inner)
	if !ok {
		m.logger.Warn("mapper.calc_field_bad_expression", "field", f.Name, "source", f.Source)
		return nil, false
	}
	bv, found := resolvePath(root, base)
	if !found {
		return nil, false
	}
	elems, ok := bv.([]any)
	if !ok {
		return nil, false
	}
	var sum float64
	for i, el := range elems {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		raw, ok := resolveScalar(obj, rest)
		if !ok {
			continue
		}
		n, ok := parseDecimal(raw)
		if !ok {
			m.logger.Warn("mapper.calc_field_unparseable_entry",
				"field", f.Name, "index", i, "value", raw)
			continue
		}
		sum += n
	}
	return docmodel.Scalar{
		Value:      strconv.FormatFloat(sum, 'f', -1, 64),
		Confidence: 1.0,
	}, true
}

// calcExpr unwraps sum(...) source expressions.
func calcExpr(source string) (string, bool) {
	if strings.HasPrefix(source, "sum(") && strings.HasSuffix(source, ")") {
		return source[len("sum(") : len(source)-1], true
	}
	return "", false
}

// splitProjection splits "collection[].remainder" into its two halves.
func splitProjection(source string) (base, rest string, ok bool) {
	i := strings.Index(source, "[]")
	if i < 0 {
		return "", "", false
	}
	base = source[:i]
	rest = strings.TrimPrefix(source[i+2:], ".")
	if base == "" || rest == "" {
		return "", "", false
	}
	return base, rest, true
}

// resolvePath walks a dotted path through nested objects.
func resolvePath(node map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = node
	for _, p := range parts {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// resolveScalar resolves a dotted path and stringifies the scalar at the
// end of it. Objects, arrays and nulls yield no value.
func resolveScalar(node map[string]any, path string) (string, bool) {
	v, ok := resolvePath(node, path)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return fmt.Sprintf("%t", t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}

// parseDecimal parses a decimal that may use a comma or a period as the
// decimal separator, with optional thousands separators of the other kind.
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// The rightmost separator is the decimal one.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
