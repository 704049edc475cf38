package model

// Advisory collects non-fatal data-quality findings from one classification
// call. None of them stop processing.
type Advisory struct {
	UnknownTypes   []string `json:"unknown_types,omitempty"`   // type tokens outside the synonym table, case-folded
	UnknownSystems []string `json:"unknown_systems,omitempty"` // system tokens outside the synonym table, case-folded
	MissingAge     int      `json:"missing_age,omitempty"`     // scored entities with no age value
	UnknownAges    []string `json:"unknown_ages,omitempty"`    // age values that fit no band of the scheme
}

// Empty reports whether there is nothing to warn about.
func (a Advisory) Empty() bool {
	return len(a.UnknownTypes) == 0 && len(a.UnknownSystems) == 0 &&
		a.MissingAge == 0 && len(a.UnknownAges) == 0
}

// Result is the wide classification output: one row per distinct input
// entity, one bool per label and one int per score column.
type Result struct {
	Product      string
	KeyParts     int // entity identifier columns, 1 or 2
	Labels       []string
	ScoreColumns []string
	Rows         []ResultRow
	Advisory     Advisory
	Matches      int // raw rule hits before aggregation
	Unmapped     int // input rows with an unrecognized type or system
}

// ResultRow holds the values for one entity. Flags is parallel to
// Result.Labels and Scores to Result.ScoreColumns.
type ResultRow struct {
	Entity EntityKey
	Flags  []bool
	Scores []int
}

// Flag returns the value of label for entity, and whether both exist.
func (r *Result) Flag(entity EntityKey, label string) (bool, bool) {
	li := indexOf(r.Labels, label)
	if li < 0 {
		return false, false
	}
	for _, row := range r.Rows {
		if row.Entity == entity {
			return row.Flags[li], true
		}
	}
	return false, false
}

// Score returns the value of score column col for entity, and whether both exist.
func (r *Result) Score(entity EntityKey, col string) (int, bool) {
	ci := indexOf(r.ScoreColumns, col)
	if ci < 0 {
		return 0, false
	}
	for _, row := range r.Rows {
		if row.Entity == entity {
			return row.Scores[ci], true
		}
	}
	return 0, false
}

// CountTrue returns how many entities have label set.
func (r *Result) CountTrue(label string) int {
	li := indexOf(r.Labels, label)
	if li < 0 {
		return 0
	}
	n := 0
	for _, row := range r.Rows {
		if row.Flags[li] {
			n++
		}
	}
	return n
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
