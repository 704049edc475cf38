package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gyeh/pregclass/internal/config"
)

var (
	cfg        config.Config
	configPath string
	env        = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "pregclass",
	Short: "Pregnancy outcome, SMM, APO and comorbidity classification",
	Long: "Classifies encounter diagnosis, procedure and DRG codes into pregnancy outcomes,\n" +
		"severe maternal morbidity, adverse pregnancy outcomes and obstetric comorbidity scores.",
	SilenceUsage:      true,
	PersistentPreRunE: loadEnv,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("dsn", "", "Postgres connection string (or set PREGCLASS_DSN)")
	pf.String("log-format", "text", "Log format: text or json (or set PREGCLASS_LOG_FORMAT)")
	pf.String("log-level", "info", "Log level: debug, info, warn or error (or set PREGCLASS_LOG_LEVEL)")
	pf.String("config", "", "YAML file with column mapping and defaults (or set PREGCLASS_CONFIG)")
	pf.Int("workers", 0, "Concurrent partition workers, 0 for one per CPU (or set PREGCLASS_WORKERS)")

	env.SetEnvPrefix("PREGCLASS")
	env.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	env.AutomaticEnv()
	for _, name := range []string{"dsn", "log-format", "log-level", "config", "workers"} {
		_ = env.BindPFlag(name, pf.Lookup(name))
	}
}

// loadEnv resolves the persistent settings: flag, then PREGCLASS_* variable,
// then default.
func loadEnv(cmd *cobra.Command, args []string) error {
	cfg.DSN = env.GetString("dsn")
	cfg.LogFormat = env.GetString("log-format")
	cfg.LogLevel = env.GetString("log-level")
	cfg.Workers = env.GetInt("workers")
	configPath = env.GetString("config")
	return nil
}
