package pipeline

import (
	"fmt"
	"strings"

	"github.com/scanvoice/invoice-pipeline/internal/docmodel"
	"github.com/scanvoice/invoice-pipeline/internal/schema"
)

// missingRequired lists the required catalog fields that are absent or
// empty in the document, as section.field paths. For a repeated section
// each row is checked and the row index is part of the path.
func missingRequired(doc *docmodel.Group, cat *schema.Catalog) []string {
	var missing []string
	for _, sec := range cat.Sections() {
		required := requiredFields(sec)
		if len(required) == 0 {
			continue
		}
		v, ok := doc.Get(sec.Name)
		if !ok {
			for _, f := range required {
				missing = append(missing, sec.Name+"."+f)
			}
			continue
		}
		if sec.Repeated {
			rows, ok := v.(docmodel.List)
			if !ok {
				for _, f := range required {
					missing = append(missing, sec.Name+"."+f)
				}
				continue
			}
			for i, rv := range rows {
				row, ok := rv.(*docmodel.Group)
				if !ok {
					continue
				}
				for _, f := range required {
					if !hasValue(row, f) {
						missing = append(missing, fmt.Sprintf("%s[%d].%s", sec.Name, i, f))
					}
				}
			}
			continue
		}
		g, ok := v.(*docmodel.Group)
		if !ok {
			continue
		}
		for _, f := range required {
			if !hasValue(g, f) {
				missing = append(missing, sec.Name+"."+f)
			}
		}
	}
	return missing
}

func requiredFields(sec schema.Section) []string {
	var out []string
	for _, f := range sec.Fields {
		if f.Obligation == schema.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

func hasValue(g *docmodel.Group, field string) bool {
	v, ok := g.Get(field)
	if !ok {
		return false
	}
	s, ok := v.(docmodel.Scalar)
	if !ok {
		return true
	}
	return strings.TrimSpace(s.Value) != ""
}

// meanLeafConfidence averages the confidence over every leaf of the
// document. An empty document scores zero.
func meanLeafConfidence(doc *docmodel.Group) float64 {
	sum, n := sumLeaves(doc)
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func sumLeaves(v docmodel.Value) (float64, int) {
	switch t := v.(type) {
	case docmodel.Scalar:
		return t.Confidence, 1
	case *docmodel.Group:
		var sum float64
		var n int
		for _, k := range t.Keys() {
			child, _ := t.Get(k)
			s, c := sumLeaves(child)
			sum += s
			n += c
		}
		return sum, n
	case docmodel.List:
		var sum float64
		var n int
		for _, e := range t {
			s, c := sumLeaves(e)
			sum += s
			n += c
		}
		return sum, n
	}
	return 0, 0
}
