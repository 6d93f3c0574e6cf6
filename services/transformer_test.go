package services

import (
	"errors"
	"fmt"
	"testing"

	"books-etl/models"
	"books-etl/utils"
)

func raw(title, reviews string) models.ListingRecord {
	return models.ListingRecord{
		Title:       title,
		Author:      "Author " + title,
		PriceText:   "$10.00",
		ReviewsText: reviews,
		RatingText:  "4.6 out of 5 stars",
	}
}

func cleaned(title string, reviews int) models.CleanedRecord {
	return models.CleanedRecord{Title: title, Reviews: reviews}
}

func TestRankMinRankOnTies(t *testing.T) {
	got := Rank([]models.CleanedRecord{
		cleaned("A", 500), cleaned("B", 500), cleaned("C", 300),
	}, 10)

	wantRanks := []int{1, 1, 3}
	for i, r := range got {
		if r.Rank != wantRanks[i] {
			t.Errorf("rank[%d] (%s): got %d, want %d", i, r.Title, r.Rank, wantRanks[i])
		}
	}
}

func TestRankSortsDescendingAndKeepsTieOrder(t *testing.T) {
	got := Rank([]models.CleanedRecord{
		cleaned("low", 10), cleaned("tie-first", 50), cleaned("high", 90), cleaned("tie-second", 50),
	}, 10)

	wantTitles := []string{"high", "tie-first", "tie-second", "low"}
	wantRanks := []int{1, 2, 2, 4}
	for i, r := range got {
		if r.Title != wantTitles[i] || r.Rank != wantRanks[i] {
			t.Errorf("row %d: got %s/%d, want %s/%d", i, r.Title, r.Rank, wantTitles[i], wantRanks[i])
		}
	}
}

func TestRankTopNBound(t *testing.T) {
	var records []models.CleanedRecord
	for i := 0; i < 15; i++ {
		records = append(records, cleaned(fmt.Sprint(i), i*10))
	}

	got := Rank(records, 10)
	if len(got) != 10 {
		t.Fatalf("len: got %d, want 10", len(got))
	}
	if got[0].Reviews != 140 || got[9].Reviews != 50 {
		t.Errorf("window should hold the 10 most reviewed, got %d..%d", got[0].Reviews, got[9].Reviews)
	}
	if got[9].Rank != 10 {
		t.Errorf("last rank: got %d, want 10", got[9].Rank)
	}

	if small := Rank(records[:3], 10); len(small) != 3 {
		t.Errorf("fewer than N records: got %d, want 3", len(small))
	}
	if records[0].Title != "0" {
		t.Error("Rank must not reorder its input")
	}
}

func TestRankTiesAcrossWindowEdge(t *testing.T) {
	var records []models.CleanedRecord
	for i := 0; i < 12; i++ {
		records = append(records, cleaned(fmt.Sprint(i), 100))
	}
	got := Rank(records, 10)
	for _, r := range got {
		if r.Rank != 1 {
			t.Fatalf("all ties should rank 1, got %d for %s", r.Rank, r.Title)
		}
	}
}

func TestTransformDedupAndClean(t *testing.T) {
	tr := NewTransformer(utils.NopLogger(), 10, false)
	in := []models.ListingRecord{
		raw("A", "1,234"),
		raw("B", models.NotAvailable),
		raw("A", "9,999"),
		{Title: "C", Author: models.NotAvailable, PriceText: models.NotAvailable, ReviewsText: "7", RatingText: models.NotAvailable},
	}

	tables, err := tr.Transform(in)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}

	if len(tables.Full) != 3 {
		t.Fatalf("full: got %d rows, want 3", len(tables.Full))
	}
	a := tables.Full[0]
	if a.Title != "A" || a.Reviews != 1234 || a.Price != 10 || a.Rating == nil || *a.Rating != 4.6 {
		t.Errorf("first occurrence of A should win: %+v", a)
	}
	if tables.Full[1].Reviews != 0 {
		t.Errorf("missing reviews should be 0, got %d", tables.Full[1].Reviews)
	}
	c := tables.Full[2]
	if c.Rating != nil || c.Price != 0 {
		t.Errorf("N/A rating/price should be absent/0: %+v", c)
	}

	if len(tables.Top) != 3 || tables.Top[0].Title != "A" || tables.Top[2].Title != "B" {
		t.Errorf("unexpected top table: %+v", tables.Top)
	}
}

func TestTransformMalformedFails(t *testing.T) {
	tr := NewTransformer(utils.NopLogger(), 10, false)
	_, err := tr.Transform([]models.ListingRecord{raw("A", "1,234"), raw("Bad", "lots")})

	var recErr *RecordError
	if !errors.As(err, &recErr) || recErr.Title != "Bad" {
		t.Fatalf("expected RecordError for Bad, got %v", err)
	}
	if !errors.Is(err, ErrMalformedNumber) {
		t.Errorf("error should wrap ErrMalformedNumber: %v", err)
	}
}

func TestTransformMalformedSkipped(t *testing.T) {
	tr := NewTransformer(utils.NopLogger(), 10, true)
	tables, err := tr.Transform([]models.ListingRecord{raw("A", "1,234"), raw("Bad", "lots")})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(tables.Full) != 1 || tables.Full[0].Title != "A" {
		t.Errorf("malformed record should be skipped: %+v", tables.Full)
	}
}

func TestTransformEmpty(t *testing.T) {
	tables, err := NewTransformer(utils.NopLogger(), 10, false).Transform(nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(tables.Full) != 0 || len(tables.Top) != 0 {
		t.Errorf("expected empty tables, got %+v", tables)
	}
}
