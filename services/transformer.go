package services

import (
	"fmt"
	"sort"

	"books-etl/models"
	"books-etl/utils"
)

// RecordError reports a raw record whose numeric fields could not be parsed.
type RecordError struct {
	Title string
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %q: %v", e.Title, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Transformer cleans raw listings and derives the ranked top-N view.
type Transformer struct {
	logger        *utils.Logger
	topN          int
	skipMalformed bool
}

// NewTransformer creates a Transformer keeping the topN most reviewed
// records. With skipMalformed set, records with unparseable numbers are
// logged and dropped instead of failing the whole transform.
func NewTransformer(logger *utils.Logger, topN int, skipMalformed bool) *Transformer {
	return &Transformer{logger: logger, topN: topN, skipMalformed: skipMalformed}
}

// Transform deduplicates raw by title (first occurrence wins), parses the
// numeric fields and ranks the most reviewed records.
func (t *Transformer) Transform(raw []models.ListingRecord) (*models.Tables, error) {
	seen := utils.NewKeySet()
	full := make([]models.CleanedRecord, 0, len(raw))

	for _, r := range raw {
		if !seen.Add(r.Title) {
			t.logger.Debug("Duplicate title dropped: %s", r.Title)
			continue
		}

		rec, err := Clean(r)
		if err != nil {
			if !t.skipMalformed {
				return nil, err
			}
			t.logger.Warn("Skipping malformed record: %v", err)
			continue
		}
		full = append(full, rec)
	}

	t.logger.Info("Cleaned %d → %d records (dropped %d)", len(raw), len(full), len(raw)-len(full))

	top := Rank(full, t.topN)
	return &models.Tables{Full: full, Top: top}, nil
}

// Clean parses one raw listing.
func Clean(r models.ListingRecord) (models.CleanedRecord, error) {
	reviews, err := ParseReviewCount(r.ReviewsText)
	if err != nil {
		return models.CleanedRecord{}, &RecordError{Title: r.Title, Err: err}
	}
	rating, err := ParseRating(r.RatingText)
	if err != nil {
		return models.CleanedRecord{}, &RecordError{Title: r.Title, Err: err}
	}
	price, err := ParsePrice(r.PriceText)
	if err != nil {
		return models.CleanedRecord{}, &RecordError{Title: r.Title, Err: err}
	}

	author := r.Author
	if author == "" {
		author = models.NotAvailable
	}

	return models.CleanedRecord{
		Title:   r.Title,
		Author:  author,
		Reviews: reviews,
		Rating:  rating,
		Price:   price,
	}, nil
}

// Rank returns the n most reviewed records, most reviewed first. Records
// with equal review counts keep their input order and share a rank equal to
// one plus the number of records ahead of them with strictly more reviews.
func Rank(records []models.CleanedRecord, n int) []models.RankedRecord {
	sorted := make([]models.CleanedRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Reviews > sorted[j].Reviews
	})

	if n < 0 {
		n = 0
	}
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	ranked := make([]models.RankedRecord, len(sorted))
	for i, rec := range sorted {
		rank := i + 1
		if i > 0 && rec.Reviews == sorted[i-1].Reviews {
			rank = ranked[i-1].Rank
		}
		ranked[i] = models.RankedRecord{Rank: rank, CleanedRecord: rec}
	}
	return ranked
}
