package classify

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gyeh/pregclass/internal/model"
	"github.com/gyeh/pregclass/internal/refdata"
)

func newEngine(buf *bytes.Buffer) *Engine {
	log := zerolog.Nop()
	if buf != nil {
		log = zerolog.New(buf)
	}
	return NewEngine(refdata.Default(), 4, log)
}

func rec(entity, typ, sys, code string) model.CodeRecord {
	return model.CodeRecord{Entity: model.NewEntityKey(entity), Type: typ, System: sys, Code: code}
}

func flag(t *testing.T, res *model.Result, entity, label string) bool {
	t.Helper()
	v, ok := res.Flag(model.NewEntityKey(entity), label)
	if !ok {
		t.Fatalf("no value for %s/%s", entity, label)
	}
	return v
}

func TestAggregate(t *testing.T) {
	e1 := model.NewEntityKey("E1")
	e2 := model.NewEntityKey("E2")
	rows := Aggregate(
		[]model.EntityKey{e2, e1},
		[]model.Match{
			{Entity: e1, Label: "b"},
			{Entity: e1, Label: "b"},
			{Entity: e1, Label: "x"},
			{Entity: model.NewEntityKey("E9"), Label: "a"},
		},
		[]string{"a", "b"},
	)
	if len(rows) != 2 || rows[0].Entity != e2 || rows[1].Entity != e1 {
		t.Fatalf("rows = %+v", rows)
	}
	if !reflect.DeepEqual(rows[0].Flags, []bool{false, false}) {
		t.Errorf("E2 flags = %v", rows[0].Flags)
	}
	if !reflect.DeepEqual(rows[1].Flags, []bool{false, true}) {
		t.Errorf("E1 flags = %v", rows[1].Flags)
	}
}

func TestOutcomes_LiveBirth(t *testing.T) {
	res, err := newEngine(nil).Outcomes(context.Background(), []model.CodeRecord{
		rec("E1", "DX", "ICD10", "O80.0"),
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("rows = %d", len(res.Rows))
	}
	for _, l := range res.Labels {
		want := l == "live_birth"
		if got := flag(t, res, "E1", l); got != want {
			t.Errorf("%s = %v, want %v", l, got, want)
		}
	}
	if !res.Advisory.Empty() {
		t.Errorf("advisory = %+v", res.Advisory)
	}
}

func TestOutcomes_ExpandedSchema(t *testing.T) {
	recs := []model.CodeRecord{rec("E1", "DX", "ICD10", "Z38.0")}
	base, err := newEngine(nil).Outcomes(context.Background(), recs, false)
	if err != nil {
		t.Fatal(err)
	}
	full, err := newEngine(nil).Outcomes(context.Background(), recs, true)
	if err != nil {
		t.Fatal(err)
	}
	if flag(t, base, "E1", "live_birth") {
		t.Error("baseline should not flag Z380")
	}
	if !flag(t, full, "E1", "live_birth") {
		t.Error("expanded should flag Z380")
	}
}

func TestOutcomes_MultiLabel(t *testing.T) {
	// One entity with a live birth and a delivery procedure keeps both.
	res, err := newEngine(nil).Outcomes(context.Background(), []model.CodeRecord{
		rec("P1", "DX", "ICD10", "Z37.0"),
		rec("P1", "PX", "CPT", "59410"),
		rec("P1", "DRG", "MS-DRG", "775"),
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !flag(t, res, "P1", "live_birth") || !flag(t, res, "P1", "delivery") {
		t.Errorf("flags = %+v", res.Rows[0].Flags)
	}
	if flag(t, res, "P1", "stillbirth") {
		t.Error("stillbirth should be false")
	}
}

func TestSMM_Scenario(t *testing.T) {
	e := newEngine(nil)
	recs := []model.CodeRecord{
		rec("E1", "DX", "ICD9", "642.6"),
		rec("E1", "PX", "ICD9", "990.1"),
		rec("E2", "DX", "ICD9", "V270"),
	}
	res, err := e.SMM(context.Background(), recs, true)
	if err != nil {
		t.Fatal(err)
	}
	if !flag(t, res, "E1", ColSMM) || !flag(t, res, "E1", ColTransfusion) || !flag(t, res, "E1", "eclampsia") {
		t.Errorf("E1 flags = %v", res.Rows[0].Flags)
	}
	if res.CountTrue("eclampsia") != 1 {
		t.Error("eclampsia should be set once")
	}
	for _, l := range res.Labels {
		if flag(t, res, "E2", l) {
			t.Errorf("E2 %s should be false", l)
		}
	}
	if len(res.Labels) != 22 {
		t.Errorf("labels = %d, want 22", len(res.Labels))
	}

	plain, err := e.SMM(context.Background(), recs, false)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(plain.Labels, []string{ColSMM, ColTransfusion}) {
		t.Errorf("labels without indicators = %v", plain.Labels)
	}
}

func TestSMM_TransfusionAlone(t *testing.T) {
	res, err := newEngine(nil).SMM(context.Background(), []model.CodeRecord{
		rec("E1", "PX", "ICD10", "30233N1"),
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if flag(t, res, "E1", ColSMM) {
		t.Error("transfusion must not set smm")
	}
	if !flag(t, res, "E1", ColTransfusion) {
		t.Error("transfusion should be set")
	}
}

func TestAPO(t *testing.T) {
	res, err := newEngine(nil).APO(context.Background(), []model.CodeRecord{
		{Entity: model.NewEntityKey("P1", "1"), Type: "PX", System: "ICD10", Code: "10D00Z1"},
		{Entity: model.NewEntityKey("P1", "1"), Type: "DX", System: "ICD10", Code: "O24.41"},
		{Entity: model.NewEntityKey("P1", "2"), Type: "DX", System: "ICD10", Code: "O14.1"},
		// APO diagnoses are never matched as procedures.
		{Entity: model.NewEntityKey("P1", "3"), Type: "PX", System: "ICD10", Code: "O141"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.KeyParts != 2 || len(res.Rows) != 3 {
		t.Fatalf("key parts = %d, rows = %d", res.KeyParts, len(res.Rows))
	}
	p11 := model.NewEntityKey("P1", "1")
	p12 := model.NewEntityKey("P1", "2")
	p13 := model.NewEntityKey("P1", "3")
	check := func(e model.EntityKey, label string, want bool) {
		if got, _ := res.Flag(e, label); got != want {
			t.Errorf("%v %s = %v, want %v", e, label, got, want)
		}
	}
	check(p11, "cesarean", true)
	check(p11, "gestational_diabetes", true)
	check(p11, "preeclampsia", false)
	check(p12, "preeclampsia", true)
	check(p13, "preeclampsia", false)
}

func TestComorbidity_BatemanScenario(t *testing.T) {
	recs := []model.CodeRecord{
		{Entity: model.NewEntityKey("E1"), Type: "DX", System: "ICD9", Code: "642.3", Age: "35-39"},
		{Entity: model.NewEntityKey("E1"), Type: "DX", System: "ICD9", Code: "642.4"},
	}
	res, err := newEngine(nil).Comorbidity(context.Background(), recs, "Bateman", true)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := res.Score(model.NewEntityKey("E1"), "bateman_score")
	if !ok || got != 4 {
		t.Errorf("bateman_score = %d (%v), want 4", got, ok)
	}
	if !flag(t, res, "E1", "gestational_hypertension") || !flag(t, res, "E1", "mild_preeclampsia") {
		t.Error("indicator flags missing")
	}
}

func TestComorbidity_LeonardIgnoresICD9(t *testing.T) {
	recs := []model.CodeRecord{
		{Entity: model.NewEntityKey("E1"), Type: "DX", System: "ICD9", Code: "6423", Age: "30"},
		{Entity: model.NewEntityKey("E2"), Type: "DX", System: "ICD10", Code: "O13.1", Age: "36"},
	}
	res, err := newEngine(nil).Comorbidity(context.Background(), recs, SchemeLeonard, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Labels) != 0 {
		t.Errorf("labels = %v, want none", res.Labels)
	}
	if s, _ := res.Score(model.NewEntityKey("E1"), "smm_score"); s != 0 {
		t.Errorf("E1 smm_score = %d, want 0", s)
	}
	// mild preeclampsia (11,6) + age >=35 (2,1)
	if s, _ := res.Score(model.NewEntityKey("E2"), "smm_score"); s != 13 {
		t.Errorf("E2 smm_score = %d, want 13", s)
	}
	if s, _ := res.Score(model.NewEntityKey("E2"), "non_transfusion_smm_score"); s != 7 {
		t.Errorf("E2 non_transfusion_smm_score = %d, want 7", s)
	}
}

func TestComorbidity_UnknownScheme(t *testing.T) {
	if _, err := newEngine(nil).Comorbidity(context.Background(), nil, "charlson", false); err == nil {
		t.Error("expected error")
	}
}

func TestComorbidity_MissingAgeAdvisory(t *testing.T) {
	var buf bytes.Buffer
	res, err := newEngine(&buf).Comorbidity(context.Background(), []model.CodeRecord{
		rec("E1", "DX", "ICD9", "4160"),
	}, SchemeBateman, false)
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := res.Score(model.NewEntityKey("E1"), "bateman_score"); s != 4 {
		t.Errorf("score = %d, want 4", s)
	}
	if res.Advisory.MissingAge != 1 {
		t.Errorf("missing age = %d", res.Advisory.MissingAge)
	}
	if !strings.Contains(buf.String(), "missing_age") {
		t.Errorf("expected age warning in log, got %s", buf.String())
	}
}

func TestUnknownType_Advisory(t *testing.T) {
	var buf bytes.Buffer
	res, err := newEngine(&buf).Outcomes(context.Background(), []model.CodeRecord{
		rec("E1", "LAB", "ICD10", "O80"),
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("entity with only unrecognized rows must still appear, rows = %d", len(res.Rows))
	}
	for _, f := range res.Rows[0].Flags {
		if f {
			t.Error("all flags should be false")
		}
	}
	if !reflect.DeepEqual(res.Advisory.UnknownTypes, []string{"lab"}) {
		t.Errorf("unknown types = %v", res.Advisory.UnknownTypes)
	}
	if res.Unmapped != 1 {
		t.Errorf("unmapped = %d", res.Unmapped)
	}
	if strings.Count(buf.String(), "unknown_types") != 1 {
		t.Errorf("expected one warning, log = %s", buf.String())
	}
}

func TestIdempotent(t *testing.T) {
	e := newEngine(nil)
	recs := []model.CodeRecord{
		rec("E1", "DX", "ICD9", "6426"),
		rec("E2", "DX", "ICD10", "O15.0"),
		rec("E3", "PX", "ICD9", "68.4"),
		rec("E1", "PX", "ICD9", "990"),
	}
	a, err := e.SMM(context.Background(), recs, true)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.SMM(context.Background(), recs, true)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Rows, b.Rows) {
		t.Error("repeated runs differ")
	}
	order := []string{a.Rows[0].Entity.String(), a.Rows[1].Entity.String(), a.Rows[2].Entity.String()}
	if strings.Join(order, ",") != "E1,E2,E3" {
		t.Errorf("row order = %v", order)
	}
}
