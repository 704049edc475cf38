package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyeh/pregclass/internal/refdata"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the built-in reference tables",
	RunE:  runTables,
}

var tablesVerbose bool

func init() {
	tablesCmd.Flags().BoolVarP(&tablesVerbose, "verbose", "v", false, "Also list every label and its weights")
	rootCmd.AddCommand(tablesCmd)
}

func runTables(cmd *cobra.Command, args []string) error {
	cat := refdata.Default()
	w := os.Stdout
	for _, name := range cat.Names() {
		t, err := cat.Table(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-12s %3d labels %4d patterns", t.Name, len(t.Labels), t.PatternCount())
		if s := t.Schemas(); len(s) > 0 {
			fmt.Fprintf(w, "  schemas: %s", strings.Join(s, ", "))
		}
		if t.Scored() {
			fmt.Fprintf(w, "  scores: %s", strings.Join(t.ScoreColumns, ", "))
		}
		fmt.Fprintln(w)

		if !tablesVerbose {
			continue
		}
		for _, label := range t.Labels {
			if weights, ok := t.Weights(label); ok {
				fmt.Fprintf(w, "    %-48s %v\n", label, weights)
				continue
			}
			fmt.Fprintf(w, "    %s\n", label)
		}
		for _, b := range t.AgeBands {
			fmt.Fprintf(w, "    age %-44s %v\n", b.Name, b.Weights)
		}
	}
	return nil
}
