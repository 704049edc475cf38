package table

import (
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"

	"github.com/gyeh/pregclass/internal/model"
)

// Internal column names that Extract renames the caller's columns to.
const (
	colEntity = "entity_id"
	colSub    = "sub_id"
	colType   = "code_type"
	colSystem = "version"
	colCode   = "code"
	colAge    = "age"
)

// Columns names the caller's columns for each role. Entity holds one
// (encounter id) or two (patient id, pregnancy id) names. Age is optional
// and only read by comorbidity scoring.
type Columns struct {
	Entity []string `yaml:"entity"`
	Type   string   `yaml:"type"`
	System string   `yaml:"version"`
	Code   string   `yaml:"code"`
	Age    string   `yaml:"age"`
}

// DefaultColumns matches the layout written by mkfixture.
func DefaultColumns() Columns {
	return Columns{
		Entity: []string{"patient_id", "pregnancy_id"},
		Type:   "code_type",
		System: "version",
		Code:   "code",
	}
}

// Validate checks the mapping itself, before any data is read.
func (c Columns) Validate() error {
	if len(c.Entity) < 1 || len(c.Entity) > 2 {
		return fmt.Errorf("need one or two entity columns, got %d", len(c.Entity))
	}
	if c.Type == "" || c.System == "" || c.Code == "" {
		return fmt.Errorf("type, version and code columns are required")
	}
	seen := make(map[string]struct{})
	for _, n := range c.names() {
		if n == "" {
			return fmt.Errorf("empty column name in mapping")
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("column %q mapped twice", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// names returns the caller's column names in internal order.
func (c Columns) names() []string {
	out := append([]string(nil), c.Entity...)
	out = append(out, c.Type, c.System, c.Code)
	if c.Age != "" {
		out = append(out, c.Age)
	}
	return out
}

func (c Columns) internal() []string {
	out := []string{colEntity}
	if len(c.Entity) == 2 {
		out = append(out, colSub)
	}
	out = append(out, colType, colSystem, colCode)
	if c.Age != "" {
		out = append(out, colAge)
	}
	return out
}

// ConfigError reports required columns absent from the input. It is the
// only validation failure that stops a run.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ensure that columns [%s] are present in the data", strings.Join(e.Missing, ", "))
}

// Check returns a *ConfigError naming every mapped column missing from df.
func Check(df dataframe.DataFrame, cols Columns) error {
	have := make(map[string]struct{}, df.Ncol())
	for _, n := range df.Names() {
		have[n] = struct{}{}
	}
	var missing []string
	for _, n := range cols.names() {
		if _, ok := have[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// Extract validates df against cols and converts it into code records. The
// mapped columns are selected and renamed into the internal layout first,
// so unrelated columns never collide with internal names. df is not
// modified.
func Extract(df dataframe.DataFrame, cols Columns) ([]model.CodeRecord, error) {
	if err := cols.Validate(); err != nil {
		return nil, err
	}
	if err := Check(df, cols); err != nil {
		return nil, err
	}

	sel := df.Select(cols.names())
	if sel.Err != nil {
		return nil, fmt.Errorf("select columns: %w", sel.Err)
	}
	// Rename through placeholders so a caller column that already carries
	// an internal name cannot collide mid-way.
	names := cols.names()
	for i, name := range names {
		sel = sel.Rename(fmt.Sprintf("_pregclass_%d", i), name)
	}
	for i, name := range cols.internal() {
		sel = sel.Rename(name, fmt.Sprintf("_pregclass_%d", i))
	}
	if sel.Err != nil {
		return nil, fmt.Errorf("rename columns: %w", sel.Err)
	}

	entity := sel.Col(colEntity).Records()
	var sub []string
	if len(cols.Entity) == 2 {
		sub = sel.Col(colSub).Records()
	}
	types := sel.Col(colType).Records()
	systems := sel.Col(colSystem).Records()
	codes := sel.Col(colCode).Records()
	var ages []string
	if cols.Age != "" {
		ages = sel.Col(colAge).Records()
	}

	recs := make([]model.CodeRecord, sel.Nrow())
	for i := range recs {
		key := model.NewEntityKey(entity[i])
		if sub != nil {
			key = model.NewEntityKey(entity[i], sub[i])
		}
		recs[i] = model.CodeRecord{
			Entity: key,
			Type:   types[i],
			System: systems[i],
			Code:   codes[i],
		}
		if ages != nil {
			recs[i].Age = ages[i]
		}
	}
	return recs, nil
}
