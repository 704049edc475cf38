package classify

import "github.com/gyeh/pregclass/internal/model"

// Aggregate folds raw matches into one row per entity. Rows follow the
// order of entities; a flag is true iff at least one match carries its
// label. Matches for entities not listed, or for labels not requested, are
// ignored.
func Aggregate(entities []model.EntityKey, matches []model.Match, labels []string) []model.ResultRow {
	col := make(map[string]int, len(labels))
	for i, l := range labels {
		col[l] = i
	}
	rowOf := make(map[model.EntityKey]int, len(entities))
	rows := make([]model.ResultRow, len(entities))
	for i, e := range entities {
		rowOf[e] = i
		rows[i] = model.ResultRow{Entity: e, Flags: make([]bool, len(labels))}
	}
	for _, m := range matches {
		r, ok := rowOf[m.Entity]
		if !ok {
			continue
		}
		c, ok := col[m.Label]
		if !ok {
			continue
		}
		rows[r].Flags[c] = true
	}
	return rows
}

// keyParts returns 2 when any entity uses a second identifier part.
func keyParts(entities []model.EntityKey) int {
	for _, e := range entities {
		if e[1] != "" {
			return 2
		}
	}
	return 1
}
