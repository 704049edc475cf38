package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gyeh/pregclass/internal/model"
)

func TestCode(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"642.4", "6424"},
		{"6426.", "6426"},
		{"990.1", "9901"},
		{"o80.0", "O800"},
		{"z37.0", "Z370"},
		{" 01.2", " 012"}, // whitespace and leading zeros untouched
		{"", ""},
	}
	for _, c := range cases {
		if got := Code(c.in); got != c.want {
			t.Errorf("Code(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCodeType(t *testing.T) {
	cases := []struct {
		in   string
		want model.CodeType
		ok   bool
	}{
		{"DX", model.Diagnosis, true},
		{"diagnosis", model.Diagnosis, true},
		{"Diagnosis", model.Diagnosis, true},
		{"px", model.Procedure, true},
		{"PROCEDURE", model.Procedure, true},
		{"DRG", model.DRGType, true},
		{"Diagnostic Related Group", model.DRGType, true},
		{"diagnostic grouping", model.DRGType, true},
		{"LAB", "", false},
		{" dx", "", false},
	}
	for _, c := range cases {
		got, ok := CodeType(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("CodeType(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestCodingSystem(t *testing.T) {
	cases := []struct {
		in   string
		want model.CodingSystem
		ok   bool
	}{
		{"9", model.ICD9, true},
		{"icd9", model.ICD9, true},
		{"10", model.ICD10, true},
		{"ICD10", model.ICD10, true},
		{"icd10-cm", model.ICD10, true},
		{"ICD10-PCS", model.ICD10, true},
		{"MS-DRG", model.DRGSystem, true},
		{"drg", model.DRGSystem, true},
		{"CPT", model.CPT4, true},
		{"cpt4", model.CPT4, true},
		{"HCPCS", "", false},
		{"LOINC", "", false},
	}
	for _, c := range cases {
		got, ok := CodingSystem(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("CodingSystem(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestRecords_Advisory(t *testing.T) {
	recs := []model.CodeRecord{
		{Entity: model.NewEntityKey("P1"), Type: "DX", System: "ICD10", Code: "O80.0"},
		{Entity: model.NewEntityKey("P1"), Type: "LAB", System: "loinc", Code: "1234-5"},
		{Entity: model.NewEntityKey("P2"), Type: "lab", System: "ICD9", Code: "650"},
	}
	orig := recs[0]

	out, adv := Records(recs)
	if len(out) != 3 {
		t.Fatalf("expected 3 normalized codes, got %d", len(out))
	}
	if !out[0].Mapped || out[0].Cell != (model.Cell{Type: model.Diagnosis, System: model.ICD10}) || out[0].Code != "O800" {
		t.Errorf("unexpected first code: %+v", out[0])
	}
	if out[1].Mapped || out[2].Mapped {
		t.Error("rows with an unknown type must not be mapped")
	}
	if len(adv.UnknownTypes) != 1 || adv.UnknownTypes[0] != "lab" {
		t.Errorf("unknown types = %v, want [lab]", adv.UnknownTypes)
	}
	if len(adv.UnknownSystems) != 1 || adv.UnknownSystems[0] != "LOINC" {
		t.Errorf("unknown systems = %v, want [LOINC]", adv.UnknownSystems)
	}
	if recs[0] != orig {
		t.Error("input record was modified")
	}
}

func TestRecords_NoAdvisory(t *testing.T) {
	recs := []model.CodeRecord{
		{Entity: model.NewEntityKey("E1"), Type: "diagnosis", System: "9", Code: "6426."},
		{Entity: model.NewEntityKey("E1"), Type: "PX", System: "ICD9", Code: "990.1"},
	}
	_, adv := Records(recs)
	if !adv.Empty() {
		t.Errorf("expected empty advisory, got %+v", adv)
	}
}

func TestEntities_FirstSeenOrder(t *testing.T) {
	recs := []model.CodeRecord{
		{Entity: model.NewEntityKey("B", "1")},
		{Entity: model.NewEntityKey("A", "1")},
		{Entity: model.NewEntityKey("B", "1")},
		{Entity: model.NewEntityKey("B", "2")},
	}
	got := Entities(recs)
	want := []model.EntityKey{
		model.NewEntityKey("B", "1"),
		model.NewEntityKey("A", "1"),
		model.NewEntityKey("B", "2"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entities, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entity %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFileDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	sha, size, err := FileDigest(path)
	if err != nil {
		t.Fatalf("FileDigest: %v", err)
	}
	if sha != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("unexpected digest %s", sha)
	}
	if size != 3 {
		t.Errorf("size = %d, want 3", size)
	}
}
