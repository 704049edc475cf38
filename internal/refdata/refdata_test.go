package refdata

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gyeh/pregclass/internal/model"
)

var (
	dx9  = model.Cell{Type: model.Diagnosis, System: model.ICD9}
	dx10 = model.Cell{Type: model.Diagnosis, System: model.ICD10}
	px9  = model.Cell{Type: model.Procedure, System: model.ICD9}
	px10 = model.Cell{Type: model.Procedure, System: model.ICD10}
)

func labelsMatching(rules []*Rule, code string) []string {
	var out []string
	for _, r := range rules {
		if r.Matches(code) {
			out = append(out, r.Label)
		}
	}
	return out
}

func mustTable(t *testing.T, name string) *Table {
	t.Helper()
	tbl, err := Default().Table(name)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestDefault_AllTablesLoad(t *testing.T) {
	got := Default().Names()
	want := []string{APO, Bateman, Leonard, Outcome, SMM, Transfusion}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("tables = %v, want %v", got, want)
	}
	if Default() != Default() {
		t.Error("Default should return the same catalog on every call")
	}
}

func TestDefault_LabelCounts(t *testing.T) {
	cases := []struct {
		table  string
		labels int
	}{
		{Outcome, 7},
		{SMM, 20},
		{Transfusion, 1},
		{APO, 5},
		{Bateman, 24},
		{Leonard, 26},
	}
	for _, c := range cases {
		tbl := mustTable(t, c.table)
		if len(tbl.Labels) != c.labels {
			t.Errorf("%s: %d labels, want %d", c.table, len(tbl.Labels), c.labels)
		}
		if tbl.PatternCount() == 0 {
			t.Errorf("%s: no patterns compiled", c.table)
		}
	}
}

func TestOutcomeLabelOrder(t *testing.T) {
	tbl := mustTable(t, Outcome)
	want := "live_birth,stillbirth,delivery,trophoblastic,ectopic,therapeutic_abortion,spontaneous_abortion"
	if got := strings.Join(tbl.Labels, ","); got != want {
		t.Errorf("labels = %s", got)
	}
}

func TestRules_FullMatch(t *testing.T) {
	tbl := mustTable(t, Outcome)
	// ^650$ must not match a longer code.
	if got := labelsMatching(tbl.Rules(dx9), "6501"); len(got) != 0 {
		t.Errorf("6501 matched %v", got)
	}
	if got := labelsMatching(tbl.Rules(dx9), "650"); len(got) != 1 || got[0] != "live_birth" {
		t.Errorf("650 matched %v, want [live_birth]", got)
	}
	if got := labelsMatching(tbl.Rules(dx10), "O800"); len(got) != 1 || got[0] != "live_birth" {
		t.Errorf("O800 matched %v, want [live_birth]", got)
	}
}

func TestRules_CellIsolation(t *testing.T) {
	smm := mustTable(t, SMM)
	// 6426 is an ICD9 diagnosis for eclampsia; it must not fire as a procedure.
	if got := labelsMatching(smm.Rules(dx9), "6426"); len(got) != 1 || got[0] != "eclampsia" {
		t.Errorf("DX ICD9 6426 matched %v", got)
	}
	if got := labelsMatching(smm.Rules(px9), "6426"); len(got) != 0 {
		t.Errorf("PX ICD9 6426 matched %v", got)
	}
	if got := labelsMatching(smm.Rules(dx10), "6426"); len(got) != 0 {
		t.Errorf("DX ICD10 6426 matched %v", got)
	}
}

func TestTransfusionIsSeparate(t *testing.T) {
	smm := mustTable(t, SMM)
	tr := mustTable(t, Transfusion)
	if got := labelsMatching(smm.Rules(px9), "9901"); len(got) != 0 {
		t.Errorf("SMM table matched transfusion code: %v", got)
	}
	if got := labelsMatching(tr.Rules(px9), "9901"); len(got) != 1 {
		t.Errorf("transfusion 9901 matched %v", got)
	}
	if got := labelsMatching(tr.Rules(px10), "30233N1"); len(got) != 1 {
		t.Errorf("transfusion 30233N1 matched %v", got)
	}
}

func TestSubset(t *testing.T) {
	tbl := mustTable(t, Outcome)
	base := tbl.Subset(BaselineSchemas...)
	full := tbl.Subset(ExpandedSchemas...)

	// Z380 live birth is only in the expanded schema.
	if got := labelsMatching(base.Rules(dx10), "Z380"); len(got) != 0 {
		t.Errorf("baseline matched Z380: %v", got)
	}
	if got := labelsMatching(full.Rules(dx10), "Z380"); len(got) != 1 || got[0] != "live_birth" {
		t.Errorf("expanded matched Z380 as %v", got)
	}
	if base.PatternCount() >= full.PatternCount() {
		t.Errorf("baseline has %d patterns, expanded %d", base.PatternCount(), full.PatternCount())
	}
	if len(base.Labels) != len(full.Labels) {
		t.Error("subset must keep every label")
	}
	if tbl.PatternCount() != full.PatternCount() {
		t.Error("expanded subset should keep every outcome rule")
	}
	if got := strings.Join(tbl.Schemas(), ","); got != "CROSSWALK,EXPANDED,MOLL" {
		t.Errorf("schemas = %s", got)
	}
}

func TestWeightsAndBands(t *testing.T) {
	b := mustTable(t, Bateman)
	if w, ok := b.Weights("gestational_hypertension"); !ok || len(w) != 1 || w[0] != 1 {
		t.Errorf("gestational_hypertension weights = %v", w)
	}
	if w, ok := b.Weights("mild_preeclampsia"); !ok || w[0] != 2 {
		t.Errorf("mild_preeclampsia weights = %v", w)
	}

	bands := []struct {
		in   string
		name string
		ok   bool
	}{
		{"<35", "<35", true},
		{"35-39", "35-39", true},
		{" 40-44 ", "40-44", true},
		{">44", ">44", true},
		{"34", "<35", true},
		{"34.9", "<35", true},
		{"35", "35-39", true},
		{"39", "35-39", true},
		{"44", "40-44", true},
		{"45", ">44", true},
		{"", "", false},
		{"unknown", "", false},
		{">=35", "", false},
	}
	for _, c := range bands {
		got, ok := b.Band(c.in)
		if ok != c.ok || got.Name != c.name {
			t.Errorf("Bateman.Band(%q) = (%q, %v), want (%q, %v)", c.in, got.Name, ok, c.name, c.ok)
		}
	}

	l := mustTable(t, Leonard)
	if got := strings.Join(l.ScoreColumns, ","); got != "smm_score,non_transfusion_smm_score" {
		t.Errorf("leonard score columns = %s", got)
	}
	if band, ok := l.Band("38"); !ok || band.Name != ">=35" || band.Weights[0] != 2 || band.Weights[1] != 1 {
		t.Errorf("Leonard.Band(38) = %+v, %v", band, ok)
	}
	if w, ok := l.Weights("placenta_accreta_spectrum"); !ok || w[0] != 59 || w[1] != 36 {
		t.Errorf("accreta weights = %v", w)
	}
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]string{
		"bad type":    "name: x\nlabels:\n  - name: a\n    rules: [{type: LAB, system: ICD9, patterns: ['^1$']}]\n",
		"bad system":  "name: x\nlabels:\n  - name: a\n    rules: [{type: DIAGNOSIS, system: SNOMED, patterns: ['^1$']}]\n",
		"bad regex":   "name: x\nlabels:\n  - name: a\n    rules: [{type: DIAGNOSIS, system: ICD9, patterns: ['^(1$']}]\n",
		"dup label":   "name: x\nlabels:\n  - name: a\n  - name: a\n",
		"weight size": "name: x\nscore_columns: [s1, s2]\nlabels:\n  - name: a\n    weights: [1]\n",
		"no name":     "labels: []\n",
	}
	for name, doc := range cases {
		fsys := fstest.MapFS{"t.yaml": &fstest.MapFile{Data: []byte(doc)}}
		if _, err := Load(fsys); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoad_Custom(t *testing.T) {
	fsys := fstest.MapFS{
		"a.yaml": &fstest.MapFile{Data: []byte("name: alpha\nlabels:\n  - name: one\n    rules: [{type: DRG, system: DRG, patterns: ['^77[0,9]$']}]\n")},
	}
	c, err := Load(fsys)
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := c.Table("alpha")
	if err != nil {
		t.Fatal(err)
	}
	drg := model.Cell{Type: model.DRGType, System: model.DRGSystem}
	if got := labelsMatching(tbl.Rules(drg), "779"); len(got) != 1 {
		t.Errorf("779 matched %v", got)
	}
	if cells := tbl.Cells(); len(cells) != 1 || cells[0] != drg {
		t.Errorf("cells = %v", cells)
	}
	if _, err := c.Table("beta"); err == nil {
		t.Error("expected error for unknown table")
	}
}
