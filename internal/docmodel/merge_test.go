package docmodel

import "testing"

func TestMergeMasterWinsOnLeaves(t *testing.T) {
	slave := group("header", group(
		"invoice_number", leaf("F-123", 0.9),
		"issue_date", leaf("2024-03-01", 0.8),
	))
	master := group("header", group(
		"invoice_number", leaf("F-999", 1.0),
	))

	out := Merge(slave, master)

	h, _ := out.Get("header")
	num, _ := h.(*Group).Get("invoice_number")
	if num.(Scalar) != leaf("F-999", 1.0) {
		t.Errorf("invoice_number = %+v, want master's leaf", num)
	}
	// Non-overridden sibling survives.
	date, ok := h.(*Group).Get("issue_date")
	if !ok || date.(Scalar).Value != "2024-03-01" {
		t.Errorf("issue_date = %+v, want slave's leaf", date)
	}
}

func TestMergeResultIsKeySuperset(t *testing.T) {
	slave := group("a", leaf("1", 1), "b", leaf("2", 1))
	master := group("b", leaf("2x", 1), "c", leaf("3", 1))

	out := Merge(slave, master)
	for _, k := range []string{"a", "b", "c"} {
		if _, ok := out.Get(k); !ok {
			t.Errorf("key %q missing from merge result", k)
		}
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	slave := group("s", group("f", leaf("old", 0.5)))
	master := group("s", group("f", leaf("new", 1.0)))
	slaveBefore := mustMarshal(t, slave)
	masterBefore := mustMarshal(t, master)

	Merge(slave, master)

	if got := mustMarshal(t, slave); got != slaveBefore {
		t.Errorf("slave mutated: %s -> %s", slaveBefore, got)
	}
	if got := mustMarshal(t, master); got != masterBefore {
		t.Errorf("master mutated: %s -> %s", masterBefore, got)
	}
}

func TestMergeIsIdempotentOverMaster(t *testing.T) {
	slave := group("a", leaf("1", 0.5), "rows", List{group("x", leaf("r1", 0.5))})
	master := group("a", leaf("2", 1.0), "rows", List{group("x", leaf("r2", 1.0))})

	once := Merge(slave, master)
	twice := Merge(once, master)
	if !Equal(once, twice) {
		t.Errorf("re-merging master changed the result:\nonce:  %s\ntwice: %s",
			mustMarshal(t, once), mustMarshal(t, twice))
	}
}

func TestMergeListsByIndex(t *testing.T) {
	slave := group("rows", List{
		group("d", leaf("a", 0.5), "q", leaf("1", 0.5)),
		group("d", leaf("b", 0.5)),
	})
	master := group("rows", List{
		group("d", leaf("A", 1.0)),
		group("d", leaf("B", 1.0)),
		group("d", leaf("C", 1.0)),
	})

	out := Merge(slave, master)
	v, _ := out.Get("rows")
	rows := v.(List)
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	r0 := rows[0].(*Group)
	if d, _ := r0.Get("d"); d.(Scalar).Value != "A" {
		t.Errorf("rows[0].d = %+v, want master's", d)
	}
	if q, ok := r0.Get("q"); !ok || q.(Scalar).Value != "1" {
		t.Errorf("rows[0].q = %+v, want slave's retained", q)
	}
	if d, _ := rows[2].(*Group).Get("d"); d.(Scalar).Value != "C" {
		t.Errorf("rows[2].d = %+v, want appended master row", d)
	}
}

func TestMergeExtraSlaveRowsRetained(t *testing.T) {
	slave := group("rows", List{
		group("d", leaf("a", 1)),
		group("d", leaf("b", 1)),
	})
	master := group("rows", List{
		group("d", leaf("A", 1)),
	})

	out := Merge(slave, master)
	v, _ := out.Get("rows")
	rows := v.(List)
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if d, _ := rows[1].(*Group).Get("d"); d.(Scalar).Value != "b" {
		t.Errorf("rows[1].d = %+v, want slave's row", d)
	}
}

func TestMergeKindMismatchMasterWins(t *testing.T) {
	slave := group("x", group("y", leaf("1", 1)))
	master := group("x", leaf("flat", 1))

	out := Merge(slave, master)
	v, _ := out.Get("x")
	if s, ok := v.(Scalar); !ok || s.Value != "flat" {
		t.Errorf("x = %+v, want master's leaf on kind mismatch", v)
	}
}

func TestMergeNilInputs(t *testing.T) {
	doc := group("a", leaf("1", 1))
	if out := Merge(nil, doc); !Equal(out, doc) {
		t.Error("Merge(nil, doc) should equal doc")
	}
	if out := Merge(doc, nil); !Equal(out, doc) {
		t.Error("Merge(doc, nil) should equal doc")
	}
	if out := Merge(nil, nil); out == nil || out.Len() != 0 {
		t.Error("Merge(nil, nil) should be an empty group")
	}
}

func TestApplyTemplateEmptyIsIdentity(t *testing.T) {
	doc := group(
		"header", group("invoice_number", leaf("F-1", 0.9)),
		"rows", List{group("d", leaf("a", 0.9))},
	)
	out := ApplyTemplate(doc, NewGroup())
	if !Equal(out, doc) {
		t.Errorf("ApplyTemplate(doc, empty) = %s, want doc unchanged", mustMarshal(t, out))
	}
}

func TestApplyTemplateWinsOverDocument(t *testing.T) {
	doc := group("header", group("document_type", leaf("999", 0.4)))
	tmpl := group("header", group("document_type", leaf("380", 1.0)))

	out := ApplyTemplate(doc, tmpl)
	h, _ := out.Get("header")
	dt, _ := h.(*Group).Get("document_type")
	if dt.(Scalar) != leaf("380", 1.0) {
		t.Errorf("document_type = %+v, want template value", dt)
	}
}

func TestApplyTemplateRowFanOut(t *testing.T) {
	doc := group("line_items", List{
		group("description", leaf("a", 0.8)),
		group("description", leaf("b", 0.7)),
		group("description", leaf("c", 0.6)),
	})
	tmpl := group("line_items", List{
		group("tax_scheme", leaf("VAT", 1.0)),
	})

	out := ApplyTemplate(doc, tmpl)
	v, _ := out.Get("line_items")
	rows := v.(List)
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3 (row template must not truncate)", len(rows))
	}
	for i, r := range rows {
		g := r.(*Group)
		if ts, ok := g.Get("tax_scheme"); !ok || ts.(Scalar).Value != "VAT" {
			t.Errorf("rows[%d].tax_scheme = %+v, want forced constant", i, ts)
		}
		if _, ok := g.Get("description"); !ok {
			t.Errorf("rows[%d] lost its description", i)
		}
	}
}

func TestApplyTemplateAddsMissingSections(t *testing.T) {
	doc := NewGroup()
	tmpl := group("header", group("document_type", leaf("380", 1.0)))

	out := ApplyTemplate(doc, tmpl)
	h, ok := out.Get("header")
	if !ok {
		t.Fatal("header section not copied in")
	}
	if dt, _ := h.(*Group).Get("document_type"); dt.(Scalar).Value != "380" {
		t.Errorf("document_type = %+v", dt)
	}
}
