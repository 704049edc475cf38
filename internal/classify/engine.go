package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gyeh/pregclass/internal/match"
	"github.com/gyeh/pregclass/internal/model"
	"github.com/gyeh/pregclass/internal/normalize"
	"github.com/gyeh/pregclass/internal/refdata"
	"github.com/gyeh/pregclass/internal/score"
)

// Product names, as used on the command line and in stored runs.
const (
	ProductOutcome     = "outcome"
	ProductSMM         = "smm"
	ProductAPO         = "apo"
	ProductComorbidity = "comorbidity"
)

// Comorbidity schemes.
const (
	SchemeBateman = refdata.Bateman
	SchemeLeonard = refdata.Leonard
)

// Column names added by the SMM product.
const (
	ColSMM         = "smm"
	ColTransfusion = "transfusion"
)

// Engine runs the classification products against a reference catalog.
type Engine struct {
	catalog *refdata.Catalog
	matcher *match.Matcher
	log     zerolog.Logger
}

// NewEngine returns an Engine over catalog. workers bounds how many cells
// are matched concurrently.
func NewEngine(catalog *refdata.Catalog, workers int, log zerolog.Logger) *Engine {
	return &Engine{
		catalog: catalog,
		matcher: match.New(workers),
		log:     log,
	}
}

// prepared is the normalized form of one input batch.
type prepared struct {
	codes    []model.NormalizedCode
	entities []model.EntityKey
	advisory model.Advisory
	unmapped int
}

func prepare(recs []model.CodeRecord) prepared {
	codes, adv := normalize.Records(recs)
	unmapped := 0
	for i := range codes {
		if !codes[i].Mapped {
			unmapped++
		}
	}
	return prepared{
		codes:    codes,
		entities: normalize.Entities(recs),
		advisory: adv,
		unmapped: unmapped,
	}
}

func (p prepared) result(product string, labels, scoreCols []string) *model.Result {
	return &model.Result{
		Product:      product,
		KeyParts:     keyParts(p.entities),
		Labels:       labels,
		ScoreColumns: scoreCols,
		Advisory:     p.advisory,
		Unmapped:     p.unmapped,
	}
}

func (e *Engine) table(name string) (*refdata.Table, error) {
	t, err := e.catalog.Table(name)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	return t, nil
}

func (e *Engine) match(ctx context.Context, src match.RuleSource, p prepared) ([]model.Match, error) {
	ms, stats, err := e.matcher.Match(ctx, src, p.codes)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	e.log.Debug().
		Int("cells", stats.Cells).
		Int("distinct", stats.Distinct).
		Int("evaluated", stats.Evaluated).
		Int("unmapped", stats.Unmapped).
		Int("matches", len(ms)).
		Msg("match complete")
	return ms, nil
}

// Outcomes flags the seven pregnancy outcomes. expanded adds the rules
// tagged EXPANDED to the baseline MOLL and CROSSWALK selection.
func (e *Engine) Outcomes(ctx context.Context, recs []model.CodeRecord, expanded bool) (*model.Result, error) {
	t, err := e.table(refdata.Outcome)
	if err != nil {
		return nil, err
	}
	schemas := refdata.BaselineSchemas
	if expanded {
		schemas = refdata.ExpandedSchemas
	}
	src := t.Subset(schemas...)

	p := prepare(recs)
	ms, err := e.match(ctx, src, p)
	if err != nil {
		return nil, err
	}
	res := p.result(ProductOutcome, t.Labels, nil)
	res.Rows = Aggregate(p.entities, ms, t.Labels)
	res.Matches = len(ms)
	e.warn(res)
	return res, nil
}

// SMM flags severe maternal morbidity and transfusion. smm is true when any
// of the sub-indicators matched; transfusion is matched separately and
// never contributes to it. indicators appends the sub-indicator columns.
func (e *Engine) SMM(ctx context.Context, recs []model.CodeRecord, indicators bool) (*model.Result, error) {
	smmTable, err := e.table(refdata.SMM)
	if err != nil {
		return nil, err
	}
	trTable, err := e.table(refdata.Transfusion)
	if err != nil {
		return nil, err
	}

	p := prepare(recs)
	smmHits, err := e.match(ctx, smmTable, p)
	if err != nil {
		return nil, err
	}
	trHits, err := e.match(ctx, trTable, p)
	if err != nil {
		return nil, err
	}

	sub := Aggregate(p.entities, smmHits, smmTable.Labels)
	tr := Aggregate(p.entities, trHits, trTable.Labels)

	labels := []string{ColSMM, ColTransfusion}
	if indicators {
		labels = append(labels, smmTable.Labels...)
	}
	res := p.result(ProductSMM, labels, nil)
	res.Rows = make([]model.ResultRow, len(p.entities))
	for i, ent := range p.entities {
		flags := make([]bool, 0, len(labels))
		flags = append(flags, anyTrue(sub[i].Flags), anyTrue(tr[i].Flags))
		if indicators {
			flags = append(flags, sub[i].Flags...)
		}
		res.Rows[i] = model.ResultRow{Entity: ent, Flags: flags}
	}
	res.Matches = len(smmHits) + len(trHits)
	e.warn(res)
	return res, nil
}

// APO flags the adverse pregnancy outcomes.
func (e *Engine) APO(ctx context.Context, recs []model.CodeRecord) (*model.Result, error) {
	t, err := e.table(refdata.APO)
	if err != nil {
		return nil, err
	}
	p := prepare(recs)
	ms, err := e.match(ctx, t, p)
	if err != nil {
		return nil, err
	}
	res := p.result(ProductAPO, t.Labels, nil)
	res.Rows = Aggregate(p.entities, ms, t.Labels)
	res.Matches = len(ms)
	e.warn(res)
	return res, nil
}

// Comorbidity computes the obstetric comorbidity score for scheme, either
// "bateman" (ICD9) or "leonard" (ICD10). indicators adds one flag column
// per contributing condition.
func (e *Engine) Comorbidity(ctx context.Context, recs []model.CodeRecord, scheme string, indicators bool) (*model.Result, error) {
	scheme = strings.ToLower(scheme)
	if scheme != SchemeBateman && scheme != SchemeLeonard {
		return nil, fmt.Errorf("classify: unknown comorbidity scheme %q", scheme)
	}
	t, err := e.table(scheme)
	if err != nil {
		return nil, err
	}
	scorer, err := score.New(t)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	p := prepare(recs)
	ms, err := e.match(ctx, t, p)
	if err != nil {
		return nil, err
	}
	scores, ages := scorer.Score(p.entities, ms, score.Ages(recs))

	var labels []string
	if indicators {
		labels = t.Labels
	}
	res := p.result(ProductComorbidity, labels, scorer.Columns())
	res.Rows = Aggregate(p.entities, ms, labels)
	for i := range res.Rows {
		res.Rows[i].Scores = scores[i]
	}
	res.Matches = len(ms)
	res.Advisory.MissingAge = ages.Missing
	res.Advisory.UnknownAges = ages.Unknown
	e.warn(res)
	return res, nil
}

// warn logs the advisory once per call.
func (e *Engine) warn(res *model.Result) {
	adv := res.Advisory
	if len(adv.UnknownTypes) > 0 {
		e.log.Warn().
			Str("product", res.Product).
			Strs("unknown_types", adv.UnknownTypes).
			Msg("some code types are not recognized; their rows were ignored")
	}
	if len(adv.UnknownSystems) > 0 {
		e.log.Warn().
			Str("product", res.Product).
			Strs("unknown_systems", adv.UnknownSystems).
			Msg("some code versions are not recognized; their rows were ignored")
	}
	if adv.MissingAge > 0 || len(adv.UnknownAges) > 0 {
		e.log.Warn().
			Str("product", res.Product).
			Int("missing_age", adv.MissingAge).
			Strs("unknown_ages", adv.UnknownAges).
			Msg("age band not applied for some entities")
	}
}

func anyTrue(flags []bool) bool {
	for _, f := range flags {
		if f {
			return true
		}
	}
	return false
}
