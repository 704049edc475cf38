package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/pregclass/internal/classify"
	"github.com/gyeh/pregclass/internal/config"
	"github.com/gyeh/pregclass/internal/model"
	"github.com/gyeh/pregclass/internal/refdata"
	"github.com/gyeh/pregclass/internal/table"
)

// Pipeline phases, reported in PipelineError.Phase.
const (
	PhasePreflight = "preflight"
	PhaseRead      = "read"
	PhaseClassify  = "classify"
	PhaseWrite     = "write"
	PhaseStore     = "store"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Run executes one classification: preflight → read → classify → write →
// store. The store phase only runs when pool is non-nil and cfg.Store is set.
func Run(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, cfg *config.Config) (*model.RunSummary, error) {
	totalStart := time.Now()

	// Phase 1: Preflight
	log.Info().Str("file", cfg.InputPath).Str("product", cfg.Product).Msg("starting preflight")
	pf, err := Preflight(log, cfg)
	if err != nil {
		return nil, &PipelineError{Phase: PhasePreflight, Err: err}
	}

	// Phase 2: Read
	readStart := time.Now()
	recs, err := table.Extract(pf.Frame, cfg.Columns)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseRead, Err: err}
	}
	readDur := time.Since(readStart)
	log.Info().
		Int("rows_read", len(recs)).
		Str("duration", readDur.String()).
		Msg("read complete")

	// Phase 3: Classify
	classifyStart := time.Now()
	engine := classify.NewEngine(refdata.Default(), cfg.Workers, log)
	res, err := Classify(ctx, engine, cfg, recs)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseClassify, Err: err}
	}
	classifyDur := time.Since(classifyStart)
	log.Info().
		Int("entities", len(res.Rows)).
		Int("matches", res.Matches).
		Int("rows_unmapped", res.Unmapped).
		Str("duration", classifyDur.String()).
		Msg("classify complete")

	// Phase 4: Write
	writeStart := time.Now()
	df, err := table.ToFrame(res, cfg.Columns)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseWrite, Err: err}
	}
	if err := table.Write(df, cfg.OutputPath, cfg.OutputFormat); err != nil {
		return nil, &PipelineError{Phase: PhaseWrite, Err: err}
	}
	writeDur := time.Since(writeStart)
	log.Info().
		Str("out", cfg.OutputPath).
		Int("columns", df.Ncol()).
		Str("duration", writeDur.String()).
		Msg("write complete")

	summary := &model.RunSummary{
		RunID:            pf.RunID.String(),
		InputPath:        pf.InputPath,
		InputSHA256:      pf.InputSHA256,
		OutputPath:       cfg.OutputPath,
		Product:          cfg.Product,
		Variant:          Variant(cfg),
		RowsRead:         int64(len(recs)),
		RowsUnmapped:     int64(res.Unmapped),
		Entities:         int64(len(res.Rows)),
		Matches:          int64(res.Matches),
		Advisory:         res.Advisory,
		DurationRead:     readDur,
		DurationClassify: classifyDur,
		DurationWrite:    writeDur,
	}

	// Phase 5: Store (optional)
	if pool != nil && cfg.Store {
		storeStart := time.Now()
		stored, skipped, err := Store(ctx, pool, log, cfg, pf, summary.RowsRead, res)
		if err != nil {
			return nil, &PipelineError{Phase: PhaseStore, Err: err}
		}
		summary.RowsStored = stored
		summary.StoreSkipped = skipped
		summary.DurationStore = time.Since(storeStart)
	}

	summary.DurationTotal = time.Since(totalStart)
	log.Info().
		Int64("rows_read", summary.RowsRead).
		Int64("entities", summary.Entities).
		Int64("rows_stored", summary.RowsStored).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("pipeline complete")

	return summary, nil
}

// Classify dispatches recs to the engine operation named by cfg.Product.
// The result's key width follows the configured entity mapping.
func Classify(ctx context.Context, engine *classify.Engine, cfg *config.Config, recs []model.CodeRecord) (*model.Result, error) {
	var (
		res *model.Result
		err error
	)
	switch cfg.Product {
	case classify.ProductOutcome:
		res, err = engine.Outcomes(ctx, recs, cfg.Expanded)
	case classify.ProductSMM:
		res, err = engine.SMM(ctx, recs, cfg.Indicators)
	case classify.ProductAPO:
		res, err = engine.APO(ctx, recs)
	case classify.ProductComorbidity:
		res, err = engine.Comorbidity(ctx, recs, cfg.Scheme, cfg.Indicators)
	default:
		return nil, fmt.Errorf("unknown product %q", cfg.Product)
	}
	if err != nil {
		return nil, err
	}
	if n := len(cfg.Columns.Entity); n > 0 {
		res.KeyParts = n
	}
	return res, nil
}

// Variant names the product options that change the output shape. Stored
// runs are only reused when product and variant both agree.
func Variant(cfg *config.Config) string {
	var v string
	switch cfg.Product {
	case classify.ProductOutcome:
		if cfg.Expanded {
			return "expanded"
		}
		return "baseline"
	case classify.ProductComorbidity:
		v = strings.ToLower(cfg.Scheme)
	}
	if cfg.Indicators {
		if v != "" {
			v += "+"
		}
		v += "indicators"
	}
	return v
}
