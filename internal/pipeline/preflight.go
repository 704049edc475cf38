package pipeline

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/pregclass/internal/config"
	"github.com/gyeh/pregclass/internal/normalize"
	"github.com/gyeh/pregclass/internal/table"
)

// PreflightResult holds all context resolved during the preflight phase.
type PreflightResult struct {
	// InputPath is the path passed on the command line, stored as-is.
	InputPath string
	// InputSHA256 is the hex-encoded SHA-256 digest of the input file.
	InputSHA256 string
	// InputSize is the input size in bytes.
	InputSize int64
	// Format is the input format actually used, csv or parquet.
	Format string
	// Frame is the loaded input with the caller's column names.
	Frame dataframe.DataFrame
	// RunID identifies this run in the result store.
	RunID uuid.UUID
}

// Preflight digests and loads the input, then checks that every mapped
// column is present.
func Preflight(log zerolog.Logger, cfg *config.Config) (*PreflightResult, error) {
	start := time.Now()

	sha, size, err := normalize.FileDigest(cfg.InputPath)
	if err != nil {
		return nil, fmt.Errorf("preflight digest: %w", err)
	}

	format := cfg.InputFormat
	if format == "" {
		if format, err = table.FormatOf(cfg.InputPath); err != nil {
			return nil, fmt.Errorf("preflight: %w", err)
		}
	}

	df, err := table.Read(cfg.InputPath, format)
	if err != nil {
		return nil, fmt.Errorf("preflight read: %w", err)
	}
	if err := table.Check(df, cfg.Columns); err != nil {
		return nil, err
	}

	log.Info().
		Str("file", filepath.Base(cfg.InputPath)).
		Str("sha256", sha).
		Str("format", format).
		Int("rows", df.Nrow()).
		Dur("duration", time.Since(start)).
		Msg("preflight complete")

	return &PreflightResult{
		InputPath:   cfg.InputPath,
		InputSHA256: sha,
		InputSize:   size,
		Format:      format,
		Frame:       df,
		RunID:       uuid.New(),
	}, nil
}
