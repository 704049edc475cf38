package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/pregclass/internal/model"
	embedsql "github.com/gyeh/pregclass/internal/sql"
)

const copyBufferSize = 1024

// Run statuses.
const (
	StatusStoring  = "storing"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Run is the bookkeeping record of one stored classification.
type Run struct {
	ID         uuid.UUID
	Product    string
	Variant    string // schema, scheme or indicator choice that shaped the output
	InputPath  string
	InputSHA   string
	InputBytes int64
}

// RegisterRun inserts run in status "storing".
func RegisterRun(ctx context.Context, pool *pgxpool.Pool, run Run) error {
	_, err := pool.Exec(ctx, embedsql.RegisterRun,
		run.ID, run.Product, run.Variant, run.InputPath, run.InputSHA, run.InputBytes)
	if err != nil {
		return fmt.Errorf("register run: %w", err)
	}
	return nil
}

// LookupRun returns the most recent complete run for the same input digest,
// product and variant. ok is false when there is none.
func LookupRun(ctx context.Context, pool *pgxpool.Pool, sha, product, variant string) (id uuid.UUID, ok bool, err error) {
	var status string
	err = pool.QueryRow(ctx, embedsql.LookupRun, sha, product, variant).Scan(&id, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("lookup run: %w", err)
	}
	return id, true, nil
}

// UpdateRunStatus sets the status of a run.
func UpdateRunStatus(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID, status string) error {
	_, err := pool.Exec(ctx, embedsql.UpdateRunStatus, id, status)
	return err
}

// DeleteRun removes a run and, by cascade, its stored results.
func DeleteRun(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID) error {
	tag, err := pool.Exec(ctx, embedsql.DeleteRun, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete run: %s not found", id)
	}
	return nil
}

// StoreResult copies the long form of res into entity_flags and
// entity_scores and marks the run complete, all in one transaction. It
// returns the number of rows copied.
func StoreResult(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, id uuid.UUID, rowsRead int64, res *model.Result) (int64, error) {
	start := time.Now()
	flags, scores := model.LongRows(id, res)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin store: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	nFlags, err := copyRows(ctx, tx, "entity_flags", model.FlagColumns(), flags)
	if err != nil {
		return 0, fmt.Errorf("copy flags: %w", err)
	}
	nScores, err := copyRows(ctx, tx, "entity_scores", model.ScoreColumns(), scores)
	if err != nil {
		return 0, fmt.Errorf("copy scores: %w", err)
	}

	if _, err := tx.Exec(ctx, embedsql.CompleteRun, id,
		rowsRead, int64(res.Unmapped), int64(len(res.Rows)), int64(res.Matches), res.Advisory); err != nil {
		return 0, fmt.Errorf("complete run: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit store: %w", err)
	}

	if _, err := pool.Exec(ctx, embedsql.AnalyzeResults); err != nil {
		log.Warn().Err(err).Msg("analyze results failed (non-fatal)")
	}

	dur := time.Since(start)
	log.Info().
		Str("run_id", id.String()).
		Int64("flag_rows", nFlags).
		Int64("score_rows", nScores).
		Str("duration", dur.String()).
		Msg("store complete")
	return nFlags + nScores, nil
}

// copyRows streams rows through a channel-backed CopyFromSource so the
// long-format expansion and the COPY run concurrently.
func copyRows[T any, R interface {
	*T
	CopyRow
}](ctx context.Context, tx pgx.Tx, table string, cols []string, rows []T) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan R, copyBufferSize)
	errCh := make(chan error, 1)

	go func() {
		defer close(ch)
		for i := range rows {
			select {
			case ch <- R(&rows[i]):
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		errCh <- nil
	}()

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"pregclass", table}, cols, NewChannelSource[R](ch))
	// Unblock the producer if COPY stopped reading early.
	cancel()
	prodErr := <-errCh
	if err != nil {
		return 0, err
	}
	if prodErr != nil {
		return 0, fmt.Errorf("producer: %w", prodErr)
	}
	return n, nil
}
