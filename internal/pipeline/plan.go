package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gyeh/pregclass/internal/classify"
	"github.com/gyeh/pregclass/internal/config"
	"github.com/gyeh/pregclass/internal/model"
	"github.com/gyeh/pregclass/internal/normalize"
	"github.com/gyeh/pregclass/internal/refdata"
	"github.com/gyeh/pregclass/internal/score"
	"github.com/gyeh/pregclass/internal/table"
)

// TokenCount is how often one raw type or version token occurs. Canonical
// is empty when the token is not recognized.
type TokenCount struct {
	Token     string
	Canonical string
	Rows      int
}

// CellCount pairs the input rows that fall in a cell with the reference
// rules the product would evaluate there.
type CellCount struct {
	Cell  model.Cell
	Rows  int
	Rules int
}

// PlanReport is what a dry run learns about an input without classifying
// or writing anything.
type PlanReport struct {
	InputPath   string
	InputSHA256 string
	InputSize   int64
	Format      string
	Product     string
	Variant     string
	Rows        int
	Entities    int
	KeyParts    int
	Types       []TokenCount
	Systems     []TokenCount
	Cells       []CellCount
	Advisory    model.Advisory
}

// Plan loads and inspects the input for cfg.Product.
func Plan(log zerolog.Logger, cfg *config.Config) (*PlanReport, error) {
	pf, err := Preflight(log, cfg)
	if err != nil {
		return nil, &PipelineError{Phase: PhasePreflight, Err: err}
	}
	recs, err := table.Extract(pf.Frame, cfg.Columns)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseRead, Err: err}
	}
	tables, err := productTables(refdata.Default(), cfg)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseClassify, Err: err}
	}

	codes, adv := normalize.Records(recs)
	entities := normalize.Entities(recs)

	rep := &PlanReport{
		InputPath:   pf.InputPath,
		InputSHA256: pf.InputSHA256,
		InputSize:   pf.InputSize,
		Format:      pf.Format,
		Product:     cfg.Product,
		Variant:     Variant(cfg),
		Rows:        len(recs),
		Entities:    len(entities),
		KeyParts:    len(cfg.Columns.Entity),
		Types:       countTokens(recs, func(r *model.CodeRecord) string { return r.Type }, canonicalType),
		Systems:     countTokens(recs, func(r *model.CodeRecord) string { return r.System }, canonicalSystem),
		Advisory:    adv,
	}

	perCell := make(map[model.Cell]int)
	for i := range codes {
		if codes[i].Mapped {
			perCell[codes[i].Cell]++
		}
	}
	for _, cell := range model.AllCells() {
		rules := 0
		for _, t := range tables {
			rules += len(t.Rules(cell))
		}
		if rules == 0 && perCell[cell] == 0 {
			continue
		}
		rep.Cells = append(rep.Cells, CellCount{Cell: cell, Rows: perCell[cell], Rules: rules})
	}

	if cfg.Product == classify.ProductComorbidity {
		scorer, err := score.New(tables[0])
		if err != nil {
			return nil, &PipelineError{Phase: PhaseClassify, Err: err}
		}
		_, ages := scorer.Score(entities, nil, score.Ages(recs))
		rep.Advisory.MissingAge = ages.Missing
		rep.Advisory.UnknownAges = ages.Unknown
	}
	return rep, nil
}

// productTables returns the reference tables a product matches against.
func productTables(cat *refdata.Catalog, cfg *config.Config) ([]*refdata.Table, error) {
	var names []string
	switch cfg.Product {
	case classify.ProductOutcome:
		t, err := cat.Table(refdata.Outcome)
		if err != nil {
			return nil, err
		}
		if cfg.Expanded {
			return []*refdata.Table{t.Subset(refdata.ExpandedSchemas...)}, nil
		}
		return []*refdata.Table{t.Subset(refdata.BaselineSchemas...)}, nil
	case classify.ProductSMM:
		names = []string{refdata.SMM, refdata.Transfusion}
	case classify.ProductAPO:
		names = []string{refdata.APO}
	case classify.ProductComorbidity:
		names = []string{strings.ToLower(cfg.Scheme)}
	default:
		return nil, fmt.Errorf("unknown product %q", cfg.Product)
	}
	out := make([]*refdata.Table, 0, len(names))
	for _, n := range names {
		t, err := cat.Table(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func canonicalType(token string) string {
	ct, _ := normalize.CodeType(token)
	return string(ct)
}

func canonicalSystem(token string) string {
	cs, _ := normalize.CodingSystem(token)
	return string(cs)
}

// countTokens tallies raw tokens, most frequent first.
func countTokens(recs []model.CodeRecord, field func(*model.CodeRecord) string, canonical func(string) string) []TokenCount {
	counts := make(map[string]int)
	for i := range recs {
		counts[field(&recs[i])]++
	}
	out := make([]TokenCount, 0, len(counts))
	for tok, n := range counts {
		out = append(out, TokenCount{Token: tok, Canonical: canonical(tok), Rows: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rows != out[j].Rows {
			return out[i].Rows > out[j].Rows
		}
		return out[i].Token < out[j].Token
	})
	return out
}
