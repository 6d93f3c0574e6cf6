// Package pipeline runs the extract, transform and load stages. Each stage
// reads its input from and writes its output to an artifact store, so any
// stage can be rerun on its own.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"books-etl/models"
	"books-etl/services"
	"books-etl/storage"
	"books-etl/utils"
)

// Process exit statuses for the CLI.
const (
	ExitOK                  = 0
	ExitFailure             = 1
	ExitConfig              = 2
	ExitMissingPrecondition = 3
	ExitMalformedData       = 4
	ExitPersistence         = 5
)

var (
	// ErrMissingPrecondition means a stage's input artifact does not exist.
	// The stage produced no output.
	ErrMissingPrecondition = errors.New("missing precondition")
	// ErrConfig means the run configuration is unusable.
	ErrConfig = errors.New("invalid configuration")
)

// Extractor produces the raw listing set.
type Extractor interface {
	Extract(ctx context.Context, targetCount int) ([]models.ListingRecord, error)
}

// TransformResult is the outcome of the transform stage.
type TransformResult struct {
	RawCount int
	Tables   *models.Tables
}

// Runner executes stages against a raw and a processed artifact store.
type Runner struct {
	logger    *utils.Logger
	raw       storage.ArtifactStore
	processed storage.ArtifactStore
}

func NewRunner(raw, processed storage.ArtifactStore, logger *utils.Logger) *Runner {
	return &Runner{logger: logger, raw: raw, processed: processed}
}

// Extract scrapes up to targetCount listings and replaces the raw artifact.
func (r *Runner) Extract(ctx context.Context, ex Extractor, targetCount int) ([]models.ListingRecord, error) {
	log := r.logger.With("extract")

	records, err := ex.Extract(ctx, targetCount)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	if len(records) == 0 {
		log.Warn("No listings qualified; writing an empty raw artifact")
	}

	log.Info("Writing %d listings to %s", len(records), storage.RawArtifact)
	if err := storage.WriteRawListings(r.raw, records); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return records, nil
}

// Transform cleans the raw artifact and replaces both processed artifacts
// together. Nothing is written when the raw artifact is missing, a record is
// malformed or either artifact cannot be stored.
func (r *Runner) Transform(ctx context.Context, tr *services.Transformer) (*TransformResult, error) {
	log := r.logger.With("transform")
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	raw, err := storage.ReadRawListings(r.raw)
	if err != nil {
		return nil, inputError("transform", log, err)
	}

	log.Info("Transforming %d raw listings", len(raw))
	tables, err := tr.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	log.Info("Writing %s (%d rows) and %s (%d rows)",
		storage.FullArtifact, len(tables.Full), storage.TopArtifact, len(tables.Top))
	if err := storage.WriteProcessedTables(r.processed, tables); err != nil {
		log.Error("Processed artifacts left unchanged: %v", err)
		return nil, fmt.Errorf("transform: %w", err)
	}

	return &TransformResult{RawCount: len(raw), Tables: tables}, nil
}

// Load reads both processed artifacts and hands them to loader.
func (r *Runner) Load(ctx context.Context, loader storage.TableLoader) (*models.Tables, error) {
	log := r.logger.With("load")

	full, err := storage.ReadFullTable(r.processed)
	if err != nil {
		return nil, inputError("load", log, err)
	}
	top, err := storage.ReadTopTable(r.processed)
	if err != nil {
		return nil, inputError("load", log, err)
	}

	tables := &models.Tables{Full: full, Top: top}
	if err := loader.Load(ctx, tables); err != nil {
		log.Error("Data loading failed: %v", err)
		return nil, fmt.Errorf("load: %w", err)
	}

	log.Info("Loaded %d books and %d top books", len(full), len(top))
	return tables, nil
}

func inputError(stage string, log *utils.Logger, err error) error {
	if errors.Is(err, storage.ErrArtifactNotFound) {
		log.Error("Input data not found: %v", err)
		return fmt.Errorf("%s: %w: %w", stage, ErrMissingPrecondition, err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}

// ExitCode maps a stage error to the process exit status.
func ExitCode(err error) int {
	var loadErr *storage.LoadError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfig):
		return ExitConfig
	case errors.Is(err, ErrMissingPrecondition):
		return ExitMissingPrecondition
	case errors.Is(err, services.ErrMalformedNumber), errors.Is(err, storage.ErrSchemaMismatch):
		return ExitMalformedData
	case errors.As(err, &loadErr):
		return ExitPersistence
	default:
		return ExitFailure
	}
}
