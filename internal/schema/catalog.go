// Package schema loads the declarative invoice field catalog: the ordered
// sections and fields of the canonical document, each field carrying its
// business-term id, obligation and optional source-path mapping.
package schema

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed invoice_fields.yaml
var embeddedCatalog []byte

// Obligation marks a field as required or optional for a complete invoice.
type Obligation string

const (
	Required Obligation = "required"
	Optional Obligation = "optional"
)

// FieldMeta describes one canonical field.
type FieldMeta struct {
	Name        string     `yaml:"name"`
	ID          string     `yaml:"id"`
	Description string     `yaml:"description"`
	Type        string     `yaml:"type"`
	Obligation  Obligation `yaml:"obligation"`

	// Source is the path of this field inside the raw extraction. Empty
	// means the field has no mapping and is never projected. For fields in
	// a repeated section the path is relative to the section's source
	// collection. sum(array[].field) marks the calculated total field.
	Source string `yaml:"source"`
}

// Section is an ordered list of fields. A repeated section projects to a
// sequence of rows drawn from Source.
type Section struct {
	Name     string      `yaml:"name"`
	Repeated bool        `yaml:"repeated"`
	Source   string      `yaml:"source"`
	Fields   []FieldMeta `yaml:"fields"`
}

// Catalog is the parsed field catalog. The zero value is a valid empty
// catalog: every lookup degrades to "no mapping found".
type Catalog struct {
	sections []Section
	byName   map[string]*Section
}

// SectionOrder returns section names in declaration order.
func (c *Catalog) SectionOrder() []string {
	out := make([]string, len(c.sections))
	for i, s := range c.sections {
		out[i] = s.Name
	}
	return out
}

// Sections returns all sections in declaration order.
func (c *Catalog) Sections() []Section {
	out := make([]Section, len(c.sections))
	copy(out, c.sections)
	return out
}

// Section returns a section by name.
func (c *Catalog) Section(name string) (Section, bool) {
	s, ok := c.byName[name]
	if !ok {
		return Section{}, false
	}
	return *s, true
}

// Field returns a field's metadata.
func (c *Catalog) Field(section, field string) (FieldMeta, bool) {
	s, ok := c.byName[section]
	if !ok {
		return FieldMeta{}, false
	}
	for _, f := range s.Fields {
		if f.Name == field {
			return f, true
		}
	}
	return FieldMeta{}, false
}

// Len returns the total number of fields across all sections.
func (c *Catalog) Len() int {
	n := 0
	for _, s := range c.sections {
		n += len(s.Fields)
	}
	return n
}

// Parse parses catalog YAML and validates the field names and obligations.
func Parse(data []byte) (*Catalog, error) {
	var raw struct {
		Sections []Section `yaml:"sections"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	cat := &Catalog{byName: make(map[string]*Section)}
	for _, s := range raw.Sections {
		if _, dup := cat.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate section %q", s.Name)
		}
		for i := range s.Fields {
			f := &s.Fields[i]
			// "v" and "p" collide with the leaf wire shape.
			if f.Name == "v" || f.Name == "p" {
				return nil, fmt.Errorf("section %q: field name %q is reserved", s.Name, f.Name)
			}
			if f.Obligation == "" {
				f.Obligation = Optional
			}
			if f.Obligation != Required && f.Obligation != Optional {
				return nil, fmt.Errorf("section %q field %q: unknown obligation %q", s.Name, f.Name, f.Obligation)
			}
		}
		cat.sections = append(cat.sections, s)
	}
	for i := range cat.sections {
		cat.byName[cat.sections[i].Name] = &cat.sections[i]
	}
	return cat, nil
}

// Registry owns the process-wide catalog cache. It is constructed once at
// startup and passed by reference to every component that needs lookups;
// Reset exists for test isolation and hot reload.
type Registry struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	cat    *Catalog
}

// NewRegistry creates a registry. path may be empty, in which case the
// embedded default catalog is used.
func NewRegistry(path string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{path: path, logger: logger}
}

// Load returns the catalog, parsing it on first call and caching the
// result. A missing or malformed catalog source is not fatal: the error is
// logged and an empty catalog is returned (and cached), so dependent
// lookups degrade to "no mapping found" instead of failing.
func (r *Registry) Load() *Catalog {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cat != nil {
		return r.cat
	}

	data := embeddedCatalog
	if r.path != "" {
		b, err := os.ReadFile(r.path)
		if err != nil {
			r.logger.Error("schema.catalog.read_failed", "path", r.path, "error", err)
			r.cat = &Catalog{byName: map[string]*Section{}}
			return r.cat
		}
		data = b
	}

	cat, err := Parse(data)
	if err != nil {
		r.logger.Error("schema.catalog.parse_failed", "path", r.path, "error", err)
		r.cat = &Catalog{byName: map[string]*Section{}}
		return r.cat
	}
	r.logger.Info("schema.catalog.loaded", "sections", len(cat.sections), "fields", cat.Len())
	r.cat = cat
	return r.cat
}

// Reset clears the cache so the next Load re-reads the source.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.cat = nil
	r.mu.Unlock()
}
