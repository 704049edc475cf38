package pipeline

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/pregclass/internal/config"
	"github.com/gyeh/pregclass/internal/db"
	"github.com/gyeh/pregclass/internal/model"
)

// Store persists res under pf.RunID. A complete run for the same input,
// product and variant is kept and the new one skipped unless cfg.Force is
// set; with force the older run is removed once the new one is stored.
func Store(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, cfg *config.Config, pf *PreflightResult, rowsRead int64, res *model.Result) (int64, bool, error) {
	variant := Variant(cfg)

	prev, exists, err := db.LookupRun(ctx, pool, pf.InputSHA256, cfg.Product, variant)
	if err != nil {
		return 0, false, err
	}
	if exists && !cfg.Force {
		log.Info().
			Str("run_id", prev.String()).
			Str("sha256", pf.InputSHA256).
			Msg("result already stored, skipping (use --force to replace)")
		return 0, true, nil
	}

	run := db.Run{
		ID:         pf.RunID,
		Product:    cfg.Product,
		Variant:    variant,
		InputPath:  pf.InputPath,
		InputSHA:   pf.InputSHA256,
		InputBytes: pf.InputSize,
	}
	if err := db.RegisterRun(ctx, pool, run); err != nil {
		return 0, false, err
	}

	n, err := db.StoreResult(ctx, pool, log, run.ID, rowsRead, res)
	if err != nil {
		if uerr := db.UpdateRunStatus(ctx, pool, run.ID, db.StatusFailed); uerr != nil {
			log.Warn().Err(uerr).Msg("could not mark run failed")
		}
		return 0, false, err
	}

	if exists {
		if err := db.DeleteRun(ctx, pool, prev); err != nil {
			return n, false, fmt.Errorf("replace run %s: %w", prev, err)
		}
		log.Info().Str("run_id", prev.String()).Msg("replaced previous run")
	}
	return n, false, nil
}
