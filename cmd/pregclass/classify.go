package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/gyeh/pregclass/internal/classify"
	"github.com/gyeh/pregclass/internal/db"
	"github.com/gyeh/pregclass/internal/exitcode"
	"github.com/gyeh/pregclass/internal/logging"
	"github.com/gyeh/pregclass/internal/model"
	"github.com/gyeh/pregclass/internal/pipeline"
)

var outcomeCmd = &cobra.Command{
	Use:   "outcome",
	Short: "Flag live birth, stillbirth, delivery, trophoblastic, ectopic and abortion outcomes",
	RunE:  runProduct(classify.ProductOutcome),
}

var smmCmd = &cobra.Command{
	Use:   "smm",
	Short: "Flag severe maternal morbidity and transfusion",
	RunE:  runProduct(classify.ProductSMM),
}

var apoCmd = &cobra.Command{
	Use:   "apo",
	Short: "Flag adverse pregnancy outcomes",
	RunE:  runProduct(classify.ProductAPO),
}

var comorbidityCmd = &cobra.Command{
	Use:   "comorbidity",
	Short: "Compute the Bateman or Leonard obstetric comorbidity score",
	RunE:  runProduct(classify.ProductComorbidity),
}

func init() {
	for _, c := range []*cobra.Command{outcomeCmd, smmCmd, apoCmd, comorbidityCmd} {
		f := c.Flags()
		f.StringVar(&cfg.InputPath, "in", "", "Input CSV or Parquet file (required)")
		f.StringVar(&cfg.OutputPath, "out", "", "Output CSV or Parquet file (required)")
		f.StringVar(&cfg.InputFormat, "in-format", "", "Input format: csv or parquet (default from extension)")
		f.StringVar(&cfg.OutputFormat, "format", "", "Output format: csv or parquet (default from extension)")
		f.BoolVar(&cfg.Store, "store", false, "Also store the result in Postgres (needs --dsn)")
		f.BoolVar(&cfg.Force, "force", false, "Replace a stored result of the same input and options")
		_ = c.MarkFlagRequired("in")
		addColumnFlags(c, c == comorbidityCmd)
		rootCmd.AddCommand(c)
	}

	outcomeCmd.Flags().BoolVar(&cfg.Expanded, "expanded", false, "Include the expanded outcome code set")
	smmCmd.Flags().BoolVar(&cfg.Indicators, "indicators", false, "Add one column per SMM indicator")
	comorbidityCmd.Flags().StringVar(&cfg.Scheme, "scheme", "", "Scoring scheme: bateman (ICD9) or leonard (ICD10)")
	comorbidityCmd.Flags().BoolVar(&cfg.Indicators, "indicators", false, "Add one column per contributing condition")
}

func runProduct(product string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
		ctx := context.Background()
		cfg.Product = product

		if err := resolveColumns(cmd); err != nil {
			log.Error().Err(err).Msg("config file invalid")
			os.Exit(exitcode.UsageError)
		}
		cfg.ScopeColumns()
		validate := cfg.Validate
		if cfg.Store {
			validate = cfg.ValidateWithDSN
		}
		if err := validate(); err != nil {
			log.Error().Err(err).Msg("config validation failed")
			os.Exit(exitcode.UsageError)
		}

		var pool *pgxpool.Pool
		if cfg.Store {
			p, err := db.NewPool(ctx, cfg.DSN)
			if err != nil {
				log.Error().Err(err).Msg("database connection failed")
				os.Exit(exitcode.DBConnError)
			}
			defer p.Close()
			pool = p
		}

		summary, err := pipeline.Run(ctx, pool, log, &cfg)
		if err != nil {
			var pe *pipeline.PipelineError
			if errors.As(err, &pe) {
				log.Error().Err(pe.Err).Str("phase", pe.Phase).Msgf("%s failed", product)
			} else {
				log.Error().Err(err).Msgf("%s failed", product)
			}
			os.Exit(exitFor(err))
		}

		printSummary(summary)
		return nil
	}
}

// exitFor maps a pipeline failure onto a process exit code.
func exitFor(err error) int {
	var pe *pipeline.PipelineError
	if !errors.As(err, &pe) {
		return exitcode.ClassifyError
	}
	switch pe.Phase {
	case pipeline.PhasePreflight, pipeline.PhaseRead:
		return exitcode.ValidationError
	case pipeline.PhaseWrite:
		return exitcode.WriteError
	case pipeline.PhaseStore:
		return exitcode.StoreError
	default:
		return exitcode.ClassifyError
	}
}

func printSummary(s *model.RunSummary) {
	fmt.Printf("%s complete: %d entities from %d rows (%d unmapped), %d matches → %s (%.1fs)\n",
		s.Product, s.Entities, s.RowsRead, s.RowsUnmapped, s.Matches, s.OutputPath, s.DurationTotal.Seconds())
	switch {
	case s.StoreSkipped:
		fmt.Println("Store: skipped, identical run already stored (use --force to replace)")
	case s.RowsStored > 0:
		fmt.Printf("Store: run %s, %d rows\n", s.RunID, s.RowsStored)
	}
}
