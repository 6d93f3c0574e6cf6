package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"books-etl/models"
	"books-etl/services"
	"books-etl/storage"
	"books-etl/utils"
)

type stubExtractor struct {
	records []models.ListingRecord
	err     error
}

func (s *stubExtractor) Extract(_ context.Context, targetCount int) ([]models.ListingRecord, error) {
	if len(s.records) > targetCount {
		return s.records[:targetCount], s.err
	}
	return s.records, s.err
}

type stubLoader struct {
	got *models.Tables
	err error
}

func (l *stubLoader) Load(_ context.Context, tables *models.Tables) error {
	if l.err != nil {
		return l.err
	}
	l.got = tables
	return nil
}

func (l *stubLoader) Close() error { return nil }

func listing(title, reviews string) models.ListingRecord {
	return models.ListingRecord{
		Title: title, Author: "Someone", PriceText: "$9.99",
		ReviewsText: reviews, RatingText: "4.7 out of 5 stars",
	}
}

func newRunner() (*Runner, *storage.MemoryStore, *storage.MemoryStore) {
	raw, processed := storage.NewMemoryStore(), storage.NewMemoryStore()
	return NewRunner(raw, processed, utils.NopLogger()), raw, processed
}

func TestRunAllStages(t *testing.T) {
	runner, _, _ := newRunner()
	ctx := context.Background()

	var records []models.ListingRecord
	for i := 0; i < 12; i++ {
		records = append(records, listing(fmt.Sprintf("Book %02d", i), fmt.Sprintf("%d", (i%4)*100)))
	}

	extracted, err := runner.Extract(ctx, &stubExtractor{records: records}, 12)
	if err != nil || len(extracted) != 12 {
		t.Fatalf("Extract: %d records, %v", len(extracted), err)
	}

	res, err := runner.Transform(ctx, services.NewTransformer(utils.NopLogger(), 10, false))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if res.RawCount != 12 || len(res.Tables.Full) != 12 || len(res.Tables.Top) != 10 {
		t.Fatalf("unexpected sizes: raw %d full %d top %d", res.RawCount, len(res.Tables.Full), len(res.Tables.Top))
	}

	loader := &stubLoader{}
	loaded, err := runner.Load(ctx, loader)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loader.got != loaded || len(loaded.Full) != 12 || len(loaded.Top) != 10 {
		t.Errorf("loader received unexpected tables: %+v", loader.got)
	}
	// Reviews 300,300,300,200,200,200,100,... -> ranks 1,1,1,4,4,4,7,7,7,10
	wantRanks := []int{1, 1, 1, 4, 4, 4, 7, 7, 7, 10}
	for i, r := range loaded.Top {
		if r.Rank != wantRanks[i] {
			t.Errorf("top[%d] rank: got %d, want %d", i, r.Rank, wantRanks[i])
		}
	}
}

func TestTransformMissingRawArtifact(t *testing.T) {
	runner, _, processed := newRunner()

	_, err := runner.Transform(context.Background(), services.NewTransformer(utils.NopLogger(), 10, false))
	if !errors.Is(err, ErrMissingPrecondition) {
		t.Fatalf("expected ErrMissingPrecondition, got %v", err)
	}
	if !errors.Is(err, storage.ErrArtifactNotFound) {
		t.Errorf("error should keep its cause: %v", err)
	}
	if processed.Has(storage.FullArtifact) || processed.Has(storage.TopArtifact) {
		t.Error("no processed artifact may be written without raw input")
	}
	if ExitCode(err) != ExitMissingPrecondition {
		t.Errorf("exit code: got %d", ExitCode(err))
	}
}

func TestTransformMalformedWritesNothing(t *testing.T) {
	runner, raw, processed := newRunner()
	if err := storage.WriteRawListings(raw, []models.ListingRecord{listing("A", "12"), listing("B", "twelve")}); err != nil {
		t.Fatal(err)
	}

	_, err := runner.Transform(context.Background(), services.NewTransformer(utils.NopLogger(), 10, false))
	if !errors.Is(err, services.ErrMalformedNumber) {
		t.Fatalf("expected ErrMalformedNumber, got %v", err)
	}
	if processed.Has(storage.FullArtifact) {
		t.Error("processed artifacts must not be written on failure")
	}
	if ExitCode(err) != ExitMalformedData {
		t.Errorf("exit code: got %d", ExitCode(err))
	}
}

// brokenStore refuses any publish that includes the named artifact.
type brokenStore struct {
	*storage.MemoryStore
	failOn string
}

func (s *brokenStore) Publish(artifacts ...storage.Artifact) error {
	for _, a := range artifacts {
		if a.Name == s.failOn {
			return errors.New("disk full")
		}
	}
	return s.MemoryStore.Publish(artifacts...)
}

func TestTransformKeepsProcessedPairOnWriteFailure(t *testing.T) {
	raw := storage.NewMemoryStore()
	processed := &brokenStore{MemoryStore: storage.NewMemoryStore()}
	old := &models.Tables{
		Full: []models.CleanedRecord{{Title: "OLD", Author: "X", Reviews: 1}},
		Top:  []models.RankedRecord{{Rank: 1, CleanedRecord: models.CleanedRecord{Title: "OLD", Author: "X"}}},
	}
	if err := storage.WriteProcessedTables(processed, old); err != nil {
		t.Fatal(err)
	}
	if err := storage.WriteRawListings(raw, []models.ListingRecord{listing("NEW", "5")}); err != nil {
		t.Fatal(err)
	}

	processed.failOn = storage.TopArtifact
	runner := NewRunner(raw, processed, utils.NopLogger())
	if _, err := runner.Transform(context.Background(), services.NewTransformer(utils.NopLogger(), 10, false)); err == nil {
		t.Fatal("expected transform to fail")
	}

	full, err := storage.ReadFullTable(processed)
	if err != nil {
		t.Fatal(err)
	}
	top, err := storage.ReadTopTable(processed)
	if err != nil {
		t.Fatal(err)
	}
	if len(full) != 1 || full[0].Title != "OLD" || len(top) != 1 || top[0].Title != "OLD" {
		t.Errorf("processed artifacts changed: full=%+v top=%+v", full, top)
	}
}

func TestExtractEmptyStillWritesArtifact(t *testing.T) {
	runner, raw, _ := newRunner()
	if _, err := runner.Extract(context.Background(), &stubExtractor{}, 100); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !raw.Has(storage.RawArtifact) {
		t.Error("raw artifact should be written even when empty")
	}
}

func TestExtractErrorWritesNothing(t *testing.T) {
	runner, raw, _ := newRunner()
	_, err := runner.Extract(context.Background(), &stubExtractor{err: context.Canceled}, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if raw.Has(storage.RawArtifact) {
		t.Error("raw artifact must not be written when extraction aborts")
	}
}

func TestLoadMissingProcessed(t *testing.T) {
	runner, _, _ := newRunner()
	_, err := runner.Load(context.Background(), &stubLoader{})
	if ExitCode(err) != ExitMissingPrecondition {
		t.Fatalf("expected missing precondition, got %v", err)
	}
}

func TestLoadFailure(t *testing.T) {
	runner, _, processed := newRunner()
	_ = storage.WriteFullTable(processed, nil)
	_ = storage.WriteTopTable(processed, nil)

	_, err := runner.Load(context.Background(), &stubLoader{err: &storage.LoadError{Table: "books", Err: errors.New("disk full")}})
	if ExitCode(err) != ExitPersistence {
		t.Fatalf("expected persistence exit code, got %d (%v)", ExitCode(err), err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{fmt.Errorf("wrap: %w", ErrConfig), ExitConfig},
		{fmt.Errorf("x: %w", storage.ErrSchemaMismatch), ExitMalformedData},
		{errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d; want %d", tt.err, got, tt.want)
		}
	}
}
