package match

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/gyeh/pregclass/internal/model"
	"github.com/gyeh/pregclass/internal/refdata"
)

// RuleSource supplies the compiled rules of one (type, system) cell.
// *refdata.Table satisfies it.
type RuleSource interface {
	Rules(cell model.Cell) []*refdata.Rule
}

// Stats describes the work done by one Match call.
type Stats struct {
	Cells     int // cells that had both input codes and rules
	Distinct  int // distinct (entity, cell, code) triples tested
	Unmapped  int // input rows skipped for lack of a cell
	Evaluated int // distinct (cell, code) pairs run against the rules
}

// Matcher tests normalized codes against a rule source cell by cell.
type Matcher struct {
	workers int
}

// New returns a Matcher running at most workers cells at once. Values
// below one use GOMAXPROCS.
func New(workers int) *Matcher {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Matcher{workers: workers}
}

type entry struct {
	entity model.EntityKey
	code   string
}

// Match returns one Match per (entity, code, rule) hit. A code is only ever
// tested against rules of its own cell. Output is ordered by cell, then by
// first appearance of the (entity, code) pair, then by rule order, so
// repeated calls over the same input yield the same slice.
func (m *Matcher) Match(ctx context.Context, src RuleSource, codes []model.NormalizedCode) ([]model.Match, Stats, error) {
	var stats Stats

	parts := make(map[model.Cell][]entry)
	seen := make(map[model.Cell]map[entry]struct{})
	for i := range codes {
		nc := &codes[i]
		if !nc.Mapped {
			stats.Unmapped++
			continue
		}
		e := entry{entity: nc.Entity, code: nc.Code}
		s, ok := seen[nc.Cell]
		if !ok {
			s = make(map[entry]struct{})
			seen[nc.Cell] = s
		}
		if _, dup := s[e]; dup {
			continue
		}
		s[e] = struct{}{}
		parts[nc.Cell] = append(parts[nc.Cell], e)
		stats.Distinct++
	}

	type job struct {
		rules   []*refdata.Rule
		entries []entry
	}
	var jobs []job
	for _, cell := range model.AllCells() {
		entries := parts[cell]
		rules := src.Rules(cell)
		if len(entries) == 0 || len(rules) == 0 {
			continue
		}
		jobs = append(jobs, job{rules: rules, entries: entries})
	}
	stats.Cells = len(jobs)

	results := make([][]model.Match, len(jobs))
	evaluated := make([]int, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], evaluated[i] = matchCell(j.rules, j.entries)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	total := 0
	for i := range results {
		total += len(results[i])
		stats.Evaluated += evaluated[i]
	}
	out := make([]model.Match, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, stats, nil
}

// matchCell runs every distinct code of one cell against its rules. The
// hit list for a code is computed once and reused for every entity that
// carries it.
func matchCell(rules []*refdata.Rule, entries []entry) ([]model.Match, int) {
	memo := make(map[string][]*refdata.Rule)
	var out []model.Match
	for _, e := range entries {
		hits, ok := memo[e.code]
		if !ok {
			for _, r := range rules {
				if r.Matches(e.code) {
					hits = append(hits, r)
				}
			}
			memo[e.code] = hits
		}
		for _, r := range hits {
			out = append(out, model.Match{Entity: e.entity, Label: r.Label, Weights: r.Weights})
		}
	}
	return out, len(memo)
}
