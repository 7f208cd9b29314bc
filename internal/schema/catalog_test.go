package schema

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedCatalogLoads(t *testing.T) {
	r := NewRegistry("", nil)
	cat := r.Load()

	if cat.Len() == 0 {
		t.Fatal("embedded catalog is empty")
	}
	for _, name := range []string{"header", "seller", "buyer", "payment", "totals", "line_items"} {
		if _, ok := cat.Section(name); !ok {
			t.Errorf("section %q missing", name)
		}
	}

	li, _ := cat.Section("line_items")
	if !li.Repeated {
		t.Error("line_items should be repeated")
	}
	if li.Source != "articleRows" {
		t.Errorf("line_items source = %q", li.Source)
	}

	f, ok := cat.Field("header", "invoice_number")
	if !ok {
		t.Fatal("header.invoice_number missing")
	}
	if f.ID != "BT-1" {
		t.Errorf("invoice_number id = %q, want BT-1", f.ID)
	}
	if f.Obligation != Required {
		t.Errorf("invoice_number obligation = %q, want required", f.Obligation)
	}
}

func TestSectionOrderIsDeclarationOrder(t *testing.T) {
	cat, err := Parse([]byte(`
sections:
  - name: z
    fields:
      - name: f1
  - name: a
    fields:
      - name: f2
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	order := cat.SectionOrder()
	if len(order) != 2 || order[0] != "z" || order[1] != "a" {
		t.Errorf("order = %v, want [z a]", order)
	}
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"duplicate section", `
sections:
  - name: header
    fields:
      - name: f
  - name: header
    fields:
      - name: g
`},
		{"reserved field name v", `
sections:
  - name: header
    fields:
      - name: v
`},
		{"reserved field name p", `
sections:
  - name: header
    fields:
      - name: p
`},
		{"unknown obligation", `
sections:
  - name: header
    fields:
      - name: f
        obligation: mandatory
`},
		{"not yaml", "{{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestObligationDefaultsToOptional(t *testing.T) {
	cat, err := Parse([]byte(`
sections:
  - name: s
    fields:
      - name: f
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	f, _ := cat.Field("s", "f")
	if f.Obligation != Optional {
		t.Errorf("obligation = %q, want optional", f.Obligation)
	}
}

func TestRegistryCachesAndResets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(`
sections:
  - name: one
    fields:
      - name: f
`)

	r := NewRegistry(path, nil)
	if got := len(r.Load().SectionOrder()); got != 1 {
		t.Fatalf("sections = %d, want 1", got)
	}

	write(`
sections:
  - name: one
    fields:
      - name: f
  - name: two
    fields:
      - name: g
`)
	// Still cached.
	if got := len(r.Load().SectionOrder()); got != 1 {
		t.Errorf("after rewrite without reset, sections = %d, want cached 1", got)
	}

	r.Reset()
	if got := len(r.Load().SectionOrder()); got != 2 {
		t.Errorf("after reset, sections = %d, want 2", got)
	}
}

func TestRegistryDegradesToEmptyCatalog(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "does-not-exist.yaml"), nil)
	cat := r.Load()
	if cat == nil {
		t.Fatal("Load returned nil")
	}
	if cat.Len() != 0 {
		t.Errorf("missing catalog should load empty, got %d fields", cat.Len())
	}
	if _, ok := cat.Section("header"); ok {
		t.Error("empty catalog should have no sections")
	}
}
