package main

import (
	"os"

	"github.com/gyeh/pregclass/internal/exitcode"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.UsageError)
	}
}
