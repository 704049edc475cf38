package score

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gyeh/pregclass/internal/model"
	"github.com/gyeh/pregclass/internal/refdata"
)

// AgeReport counts entities whose age could not be placed in a band.
type AgeReport struct {
	Missing int      // entities with no age value
	Unknown []string // distinct age values that fit no band, sorted
}

// Scorer sums comorbidity weights for one scheme.
type Scorer struct {
	table *refdata.Table
}

// New returns a Scorer for a weighted table.
func New(t *refdata.Table) (*Scorer, error) {
	if !t.Scored() {
		return nil, fmt.Errorf("table %s carries no weights", t.Name)
	}
	return &Scorer{table: t}, nil
}

// Columns returns the score column names.
func (s *Scorer) Columns() []string {
	return s.table.ScoreColumns
}

// Ages collects the first non-blank age value seen for each entity.
func Ages(recs []model.CodeRecord) map[model.EntityKey]string {
	out := make(map[model.EntityKey]string)
	for i := range recs {
		if _, ok := out[recs[i].Entity]; ok {
			continue
		}
		if v := strings.TrimSpace(recs[i].Age); v != "" {
			out[recs[i].Entity] = v
		}
	}
	return out
}

// Score returns one score vector per entity, parallel to entities. Each
// distinct matched label counts once. The entity's age band weight is
// added when its age resolves to a band; otherwise nothing is added and
// the entity is reported.
func (s *Scorer) Score(entities []model.EntityKey, matches []model.Match, ages map[model.EntityKey]string) ([][]int, AgeReport) {
	width := len(s.table.ScoreColumns)

	labels := make(map[model.EntityKey]map[string]struct{})
	for _, m := range matches {
		set, ok := labels[m.Entity]
		if !ok {
			set = make(map[string]struct{})
			labels[m.Entity] = set
		}
		set[m.Label] = struct{}{}
	}

	var report AgeReport
	unknown := make(map[string]struct{})
	out := make([][]int, len(entities))

	for i, e := range entities {
		scores := make([]int, width)
		for label := range labels[e] {
			w, ok := s.table.Weights(label)
			if !ok {
				continue
			}
			for c := 0; c < width; c++ {
				scores[c] += w[c]
			}
		}

		age, ok := ages[e]
		switch {
		case !ok:
			report.Missing++
		default:
			band, found := s.table.Band(age)
			if !found {
				unknown[age] = struct{}{}
				break
			}
			for c := 0; c < width; c++ {
				scores[c] += band.Weights[c]
			}
		}
		out[i] = scores
	}

	for v := range unknown {
		report.Unknown = append(report.Unknown, v)
	}
	sort.Strings(report.Unknown)
	return out, report
}
