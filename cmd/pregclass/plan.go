package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyeh/pregclass/internal/classify"
	"github.com/gyeh/pregclass/internal/exitcode"
	"github.com/gyeh/pregclass/internal/logging"
	"github.com/gyeh/pregclass/internal/pipeline"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run validation and input stats (no writes)",
	RunE:  runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringVar(&cfg.InputPath, "in", "", "Input CSV or Parquet file (required)")
	f.StringVar(&cfg.InputFormat, "in-format", "", "Input format: csv or parquet (default from extension)")
	f.StringVar(&cfg.Product, "product", classify.ProductOutcome, "Product to plan for: outcome, smm, apo or comorbidity")
	f.StringVar(&cfg.Scheme, "scheme", "", "Comorbidity scheme: bateman or leonard")
	f.BoolVar(&cfg.Expanded, "expanded", false, "Plan against the expanded outcome code set")
	_ = planCmd.MarkFlagRequired("in")
	addColumnFlags(planCmd, true)
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	cfg.DryRun = true

	if err := resolveColumns(cmd); err != nil {
		log.Error().Err(err).Msg("config file invalid")
		os.Exit(exitcode.UsageError)
	}
	cfg.ScopeColumns()
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	rep, err := pipeline.Plan(log, &cfg)
	if err != nil {
		log.Error().Err(err).Msg("plan failed")
		os.Exit(exitFor(err))
	}

	fmt.Println("=== pregclass plan ===")
	fmt.Printf("File:      %s\n", rep.InputPath)
	fmt.Printf("SHA-256:   %s\n", rep.InputSHA256)
	fmt.Printf("Size:      %d bytes\n", rep.InputSize)
	fmt.Printf("Format:    %s\n", rep.Format)
	fmt.Printf("Product:   %s %s\n", rep.Product, rep.Variant)
	fmt.Printf("Rows:      %d\n", rep.Rows)
	fmt.Printf("Entities:  %d (%d-part key)\n", rep.Entities, rep.KeyParts)

	fmt.Println()
	fmt.Println("Code types:")
	for _, tc := range rep.Types {
		fmt.Printf("  %-28q %8d → %s\n", tc.Token, tc.Rows, orUnknown(tc.Canonical))
	}
	fmt.Println("Code versions:")
	for _, tc := range rep.Systems {
		fmt.Printf("  %-28q %8d → %s\n", tc.Token, tc.Rows, orUnknown(tc.Canonical))
	}

	fmt.Println()
	fmt.Println("Partitions:")
	for _, c := range rep.Cells {
		fmt.Printf("  %-20s %8d rows %6d rules\n", c.Cell, c.Rows, c.Rules)
	}

	adv := rep.Advisory
	fmt.Println()
	if adv.Empty() {
		fmt.Println("Advisories: none")
		return nil
	}
	fmt.Println("Advisories:")
	if len(adv.UnknownTypes) > 0 {
		fmt.Printf("  unrecognized code types: %s\n", strings.Join(adv.UnknownTypes, ", "))
	}
	if len(adv.UnknownSystems) > 0 {
		fmt.Printf("  unrecognized code versions: %s\n", strings.Join(adv.UnknownSystems, ", "))
	}
	if adv.MissingAge > 0 {
		fmt.Printf("  entities without age: %d\n", adv.MissingAge)
	}
	if len(adv.UnknownAges) > 0 {
		fmt.Printf("  ages outside every band: %s\n", strings.Join(adv.UnknownAges, ", "))
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "(unrecognized)"
	}
	return s
}
