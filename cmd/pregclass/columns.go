package main

import (
	"github.com/spf13/cobra"

	"github.com/gyeh/pregclass/internal/table"
)

// columnFlags holds the column mapping given on the command line.
var columnFlags struct {
	entity  []string
	typ     string
	version string
	code    string
	age     string
}

func addColumnFlags(cmd *cobra.Command, withAge bool) {
	def := table.DefaultColumns()
	f := cmd.Flags()
	f.StringSliceVar(&columnFlags.entity, "entity", def.Entity, "Entity id column(s): one encounter id, or patient and pregnancy ids")
	f.StringVar(&columnFlags.typ, "type-col", def.Type, "Code type column (DX, PX, DRG)")
	f.StringVar(&columnFlags.version, "version-col", def.System, "Coding system column (ICD9, ICD10, CPT4, DRG)")
	f.StringVar(&columnFlags.code, "code-col", def.Code, "Code column")
	if withAge {
		f.StringVar(&columnFlags.age, "age-col", "", "Maternal age or age band column")
	}
}

// resolveColumns builds cfg.Columns from the defaults, then the --config
// file, then any column flag set explicitly.
func resolveColumns(cmd *cobra.Command) error {
	cfg.Columns = table.DefaultColumns()
	if configPath != "" {
		if err := cfg.LoadFromFile(configPath); err != nil {
			return err
		}
	}
	f := cmd.Flags()
	if f.Changed("entity") {
		cfg.Columns.Entity = columnFlags.entity
	}
	if f.Changed("type-col") {
		cfg.Columns.Type = columnFlags.typ
	}
	if f.Changed("version-col") {
		cfg.Columns.System = columnFlags.version
	}
	if f.Changed("code-col") {
		cfg.Columns.Code = columnFlags.code
	}
	if f.Lookup("age-col") != nil && f.Changed("age-col") {
		cfg.Columns.Age = columnFlags.age
	}
	return nil
}
