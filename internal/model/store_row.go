package model

import "github.com/google/uuid"

// FlagRow is the long-format, DB-ready form of one boolean result cell.
type FlagRow struct {
	RunID    uuid.UUID
	EntityID string
	SubID    *string // second key part, nil for single-part keys
	Label    string
	Value    bool
}

// FlagColumns returns the ordered column names for COPY into pregclass.entity_flags.
func FlagColumns() []string {
	return []string{"run_id", "entity_id", "sub_id", "label", "value"}
}

// CopyValues returns the row values in the same order as FlagColumns(),
// suitable for pgx CopyFromSource.
func (r *FlagRow) CopyValues() []any {
	return []any{r.RunID, r.EntityID, r.SubID, r.Label, r.Value}
}

// ScoreRow is the long-format, DB-ready form of one score result cell.
type ScoreRow struct {
	RunID    uuid.UUID
	EntityID string
	SubID    *string
	Column   string
	Score    int32
}

// ScoreColumns returns the ordered column names for COPY into pregclass.entity_scores.
func ScoreColumns() []string {
	return []string{"run_id", "entity_id", "sub_id", "score_column", "score"}
}

// CopyValues returns the row values in the same order as ScoreColumns().
func (r *ScoreRow) CopyValues() []any {
	return []any{r.RunID, r.EntityID, r.SubID, r.Column, r.Score}
}

// LongRows explodes a wide result into flag and score rows for storage.
func LongRows(runID uuid.UUID, res *Result) ([]FlagRow, []ScoreRow) {
	flags := make([]FlagRow, 0, len(res.Rows)*len(res.Labels))
	scores := make([]ScoreRow, 0, len(res.Rows)*len(res.ScoreColumns))
	for _, row := range res.Rows {
		var sub *string
		if res.KeyParts > 1 {
			s := row.Entity[1]
			sub = &s
		}
		for i, label := range res.Labels {
			flags = append(flags, FlagRow{
				RunID:    runID,
				EntityID: row.Entity[0],
				SubID:    sub,
				Label:    label,
				Value:    row.Flags[i],
			})
		}
		for i, col := range res.ScoreColumns {
			scores = append(scores, ScoreRow{
				RunID:    runID,
				EntityID: row.Entity[0],
				SubID:    sub,
				Column:   col,
				Score:    int32(row.Scores[i]),
			})
		}
	}
	return flags, scores
}
