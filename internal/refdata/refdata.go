package refdata

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gyeh/pregclass/internal/model"

	"gopkg.in/yaml.v3"
)

//go:embed tables/*.yaml
var tablesFS embed.FS

// Names of the shipped tables.
const (
	Outcome     = "outcome"
	SMM         = "smm"
	Transfusion = "transfusion"
	APO         = "apo"
	Bateman     = "bateman"
	Leonard     = "leonard"
)

// Schema tags carried by outcome rules. Rules without a tag belong to every
// selection.
const (
	SchemaMoll      = "MOLL"
	SchemaCrosswalk = "CROSSWALK"
	SchemaExpanded  = "EXPANDED"
)

// BaselineSchemas is the default outcome selection.
var BaselineSchemas = []string{SchemaMoll, SchemaCrosswalk}

// ExpandedSchemas adds the expanded delivery and abortion rules.
var ExpandedSchemas = []string{SchemaMoll, SchemaCrosswalk, SchemaExpanded}

// document is the on-disk YAML structure of one table.
type document struct {
	Name         string     `yaml:"name"`
	ScoreColumns []string   `yaml:"score_columns"`
	AgeBands     []bandDoc  `yaml:"age_bands"`
	Labels       []labelDoc `yaml:"labels"`
}

type bandDoc struct {
	Name    string   `yaml:"name"`
	From    *float64 `yaml:"from"`
	Below   *float64 `yaml:"below"`
	Weights []int    `yaml:"weights"`
}

type labelDoc struct {
	Name    string    `yaml:"name"`
	Weights []int     `yaml:"weights"`
	Rules   []ruleDoc `yaml:"rules"`
}

type ruleDoc struct {
	Type     string   `yaml:"type"`
	System   string   `yaml:"system"`
	Schema   string   `yaml:"schema"`
	Patterns []string `yaml:"patterns"`
}

// Rule is one compiled pattern. A code matches when the whole normalized
// code satisfies the pattern.
type Rule struct {
	Label   string
	Schema  string
	Pattern string
	Weights []int
	re      *regexp.Regexp
}

// Matches reports whether code satisfies the rule.
func (r *Rule) Matches(code string) bool {
	return r.re.MatchString(code)
}

// AgeBand is a named age range with one weight per score column. From is
// inclusive and Below exclusive; a nil bound is open.
type AgeBand struct {
	Name    string
	From    *float64
	Below   *float64
	Weights []int
}

func (b AgeBand) contains(age float64) bool {
	if b.From != nil && age < *b.From {
		return false
	}
	if b.Below != nil && age >= *b.Below {
		return false
	}
	return true
}

// Table is a compiled, read-only reference table.
type Table struct {
	Name         string
	Labels       []string
	ScoreColumns []string
	AgeBands     []AgeBand

	weights map[string][]int
	cells   map[model.Cell][]*Rule
}

// Rules returns the rules of one (type, system) cell, in table order.
func (t *Table) Rules(cell model.Cell) []*Rule {
	return t.cells[cell]
}

// Cells returns the cells that carry at least one rule, in canonical order.
func (t *Table) Cells() []model.Cell {
	var out []model.Cell
	for _, c := range model.AllCells() {
		if len(t.cells[c]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// PatternCount returns the number of compiled rules.
func (t *Table) PatternCount() int {
	n := 0
	for _, rs := range t.cells {
		n += len(rs)
	}
	return n
}

// Schemas returns the distinct schema tags present, sorted.
func (t *Table) Schemas() []string {
	seen := make(map[string]struct{})
	for _, rs := range t.cells {
		for _, r := range rs {
			if r.Schema != "" {
				seen[r.Schema] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Weights returns the per-score-column weights of label.
func (t *Table) Weights(label string) ([]int, bool) {
	w, ok := t.weights[label]
	return w, ok
}

// Scored reports whether the table carries weights.
func (t *Table) Scored() bool {
	return len(t.ScoreColumns) > 0
}

// Subset returns a view holding only the untagged rules and those tagged
// with one of schemas. Labels are unchanged so the output shape does not
// depend on the selection.
func (t *Table) Subset(schemas ...string) *Table {
	keep := make(map[string]bool, len(schemas))
	for _, s := range schemas {
		keep[strings.ToUpper(s)] = true
	}
	sub := *t
	sub.cells = make(map[model.Cell][]*Rule, len(t.cells))
	for c, rs := range t.cells {
		for _, r := range rs {
			if r.Schema == "" || keep[r.Schema] {
				sub.cells[c] = append(sub.cells[c], r)
			}
		}
	}
	return &sub
}

// Band resolves an age value to a band. The value may be a band name or a
// numeric age. Blank values and values outside every band return ok=false.
func (t *Table) Band(value string) (AgeBand, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return AgeBand{}, false
	}
	for _, b := range t.AgeBands {
		if b.Name == v {
			return b, true
		}
	}
	age, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return AgeBand{}, false
	}
	for _, b := range t.AgeBands {
		if b.contains(age) {
			return b, true
		}
	}
	return AgeBand{}, false
}

// Parse compiles one YAML table document.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("table has no name")
	}

	t := &Table{
		Name:         doc.Name,
		ScoreColumns: doc.ScoreColumns,
		weights:      make(map[string][]int),
		cells:        make(map[model.Cell][]*Rule),
	}
	width := len(doc.ScoreColumns)

	for _, b := range doc.AgeBands {
		if len(b.Weights) != width {
			return nil, fmt.Errorf("table %s: age band %q has %d weights, want %d", doc.Name, b.Name, len(b.Weights), width)
		}
		t.AgeBands = append(t.AgeBands, AgeBand{Name: b.Name, From: b.From, Below: b.Below, Weights: b.Weights})
	}

	seen := make(map[string]struct{}, len(doc.Labels))
	for _, l := range doc.Labels {
		if l.Name == "" {
			return nil, fmt.Errorf("table %s: label with no name", doc.Name)
		}
		if _, dup := seen[l.Name]; dup {
			return nil, fmt.Errorf("table %s: duplicate label %q", doc.Name, l.Name)
		}
		seen[l.Name] = struct{}{}
		if len(l.Weights) != width {
			return nil, fmt.Errorf("table %s: label %q has %d weights, want %d", doc.Name, l.Name, len(l.Weights), width)
		}
		t.Labels = append(t.Labels, l.Name)
		if width > 0 {
			t.weights[l.Name] = l.Weights
		}

		for _, rd := range l.Rules {
			ct, ok := model.CodeTypeByName(rd.Type)
			if !ok {
				return nil, fmt.Errorf("table %s: label %q: unknown code type %q", doc.Name, l.Name, rd.Type)
			}
			cs, ok := model.CodingSystemByName(rd.System)
			if !ok {
				return nil, fmt.Errorf("table %s: label %q: unknown coding system %q", doc.Name, l.Name, rd.System)
			}
			cell := model.Cell{Type: ct, System: cs}
			for _, p := range rd.Patterns {
				re, err := regexp.Compile(`^(?:` + p + `)$`)
				if err != nil {
					return nil, fmt.Errorf("table %s: label %q: pattern %q: %w", doc.Name, l.Name, p, err)
				}
				t.cells[cell] = append(t.cells[cell], &Rule{
					Label:   l.Name,
					Schema:  strings.ToUpper(rd.Schema),
					Pattern: p,
					Weights: t.weights[l.Name],
					re:      re,
				})
			}
		}
	}
	return t, nil
}

// Catalog holds every loaded table by name.
type Catalog struct {
	tables map[string]*Table
	names  []string
}

// Load parses every *.yaml file at the root of fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	c := &Catalog{tables: make(map[string]*Table, len(files))}
	for _, f := range files {
		data, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		t, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path.Base(f), err)
		}
		if _, dup := c.tables[t.Name]; dup {
			return nil, fmt.Errorf("%s: table %q defined twice", path.Base(f), t.Name)
		}
		c.tables[t.Name] = t
		c.names = append(c.names, t.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded catalog, compiled on first use. The
// embedded tables are fixed at build time so a failure here is a
// programming error.
func Default() *Catalog {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(tablesFS, "tables")
		if err != nil {
			panic(err)
		}
		c, err := Load(sub)
		if err != nil {
			panic(fmt.Sprintf("embedded reference tables: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Table returns the named table.
func (c *Catalog) Table(name string) (*Table, error) {
	t, ok := c.tables[name]
	if !ok {
		return nil, fmt.Errorf("unknown reference table %q", name)
	}
	return t, nil
}

// Names returns the table names, sorted.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}
