package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"books-etl/models"
)

// Artifact names shared by the stages.
const (
	RawArtifact  = "Books.csv"
	FullArtifact = "Processed_books.csv"
	TopArtifact  = "top_10_books.csv"
)

// Column contracts for each artifact.
var (
	RawColumns  = []string{"Title", "Author", "Price", "Reviews", "Rating"}
	FullColumns = []string{"title", "author", "reviews", "rating", "price"}
	TopColumns  = []string{"rank", "title", "author", "rating", "price"}
)

// ErrSchemaMismatch is returned when an artifact's header row does not match
// its column contract.
var ErrSchemaMismatch = errors.New("artifact schema mismatch")

// WriteRawListings replaces the raw extraction artifact.
func WriteRawListings(store ArtifactStore, records []models.ListingRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Title, r.Author, r.PriceText, r.ReviewsText, r.RatingText})
	}
	return writeTables(store, table{RawArtifact, RawColumns, rows})
}

// ReadRawListings loads the raw extraction artifact. A missing artifact
// yields an error wrapping ErrArtifactNotFound.
func ReadRawListings(store ArtifactStore) ([]models.ListingRecord, error) {
	rows, err := readTable(store, RawArtifact, RawColumns)
	if err != nil {
		return nil, err
	}

	records := make([]models.ListingRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.ListingRecord{
			Title:       row[0],
			Author:      row[1],
			PriceText:   row[2],
			ReviewsText: row[3],
			RatingText:  row[4],
		})
	}
	return records, nil
}

// WriteProcessedTables replaces the full-table and top-N artifacts as a pair.
// When either cannot be written, both keep their previous contents.
func WriteProcessedTables(store ArtifactStore, tables *models.Tables) error {
	return writeTables(store, fullTable(tables.Full), topTable(tables.Top))
}

// WriteFullTable replaces the cleaned full-table artifact.
func WriteFullTable(store ArtifactStore, records []models.CleanedRecord) error {
	return writeTables(store, fullTable(records))
}

func fullTable(records []models.CleanedRecord) table {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Title,
			r.Author,
			strconv.Itoa(r.Reviews),
			formatRating(r.Rating),
			formatFloat(r.Price),
		})
	}
	return table{FullArtifact, FullColumns, rows}
}

// ReadFullTable loads the cleaned full-table artifact.
func ReadFullTable(store ArtifactStore) ([]models.CleanedRecord, error) {
	rows, err := readTable(store, FullArtifact, FullColumns)
	if err != nil {
		return nil, err
	}

	records := make([]models.CleanedRecord, 0, len(rows))
	for i, row := range rows {
		reviews, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, fmt.Errorf("csv: %s row %d: reviews: %w", FullArtifact, i+1, err)
		}
		rating, err := parseRating(row[3])
		if err != nil {
			return nil, fmt.Errorf("csv: %s row %d: rating: %w", FullArtifact, i+1, err)
		}
		price, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("csv: %s row %d: price: %w", FullArtifact, i+1, err)
		}
		records = append(records, models.CleanedRecord{
			Title: row[0], Author: row[1], Reviews: reviews, Rating: rating, Price: price,
		})
	}
	return records, nil
}

// WriteTopTable replaces the ranked top-N artifact. The reviews column is
// not part of this table.
func WriteTopTable(store ArtifactStore, records []models.RankedRecord) error {
	return writeTables(store, topTable(records))
}

func topTable(records []models.RankedRecord) table {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.Itoa(r.Rank),
			r.Title,
			r.Author,
			formatRating(r.Rating),
			formatFloat(r.Price),
		})
	}
	return table{TopArtifact, TopColumns, rows}
}

// ReadTopTable loads the ranked top-N artifact. Reviews are not stored in
// this table and come back as zero.
func ReadTopTable(store ArtifactStore) ([]models.RankedRecord, error) {
	rows, err := readTable(store, TopArtifact, TopColumns)
	if err != nil {
		return nil, err
	}

	records := make([]models.RankedRecord, 0, len(rows))
	for i, row := range rows {
		rank, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("csv: %s row %d: rank: %w", TopArtifact, i+1, err)
		}
		rating, err := parseRating(row[3])
		if err != nil {
			return nil, fmt.Errorf("csv: %s row %d: rating: %w", TopArtifact, i+1, err)
		}
		price, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("csv: %s row %d: price: %w", TopArtifact, i+1, err)
		}
		records = append(records, models.RankedRecord{
			Rank: rank,
			CleanedRecord: models.CleanedRecord{
				Title: row[1], Author: row[2], Rating: rating, Price: price,
			},
		})
	}
	return records, nil
}

type table struct {
	name   string
	header []string
	rows   [][]string
}

func (t table) encode() (Artifact, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.header); err != nil {
		return Artifact{}, fmt.Errorf("csv: %s: write header: %w", t.name, err)
	}
	if err := w.WriteAll(t.rows); err != nil {
		return Artifact{}, fmt.Errorf("csv: %s: write rows: %w", t.name, err)
	}
	return Artifact{Name: t.name, Data: buf.Bytes()}, nil
}

// writeTables encodes every table before publishing any of them.
func writeTables(store ArtifactStore, tables ...table) error {
	artifacts := make([]Artifact, 0, len(tables))
	for _, t := range tables {
		a, err := t.encode()
		if err != nil {
			return err
		}
		artifacts = append(artifacts, a)
	}
	return store.Publish(artifacts...)
}

func readTable(store ArtifactStore, name string, header []string) ([][]string, error) {
	f, err := store.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)

	got, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv: %s: empty file: %w", name, ErrSchemaMismatch)
	}
	if err != nil {
		return nil, fmt.Errorf("csv: %s: read header: %w", name, err)
	}
	if strings.Join(got, ",") != strings.Join(header, ",") {
		return nil, fmt.Errorf("csv: %s: header %v, want %v: %w", name, got, header, ErrSchemaMismatch)
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %s: read rows: %w", name, err)
	}
	return rows, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatRating(r *float64) string {
	if r == nil {
		return ""
	}
	return formatFloat(*r)
}

func parseRating(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
