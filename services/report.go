package services

import (
	"fmt"
	"io"
	"math"
	"strings"

	"books-etl/models"
	"books-etl/utils"
)

// ReportService summarises a pipeline run.
type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger}
}

// Generate computes the run summary. extracted is the raw record count
// before deduplication and cleaning.
func (s *ReportService) Generate(extracted int, tables *models.Tables) *models.RunReport {
	report := &models.RunReport{Extracted: extracted}
	if tables == nil {
		return report
	}

	report.Cleaned = len(tables.Full)
	report.Dropped = extracted - len(tables.Full)
	report.Top = tables.Top

	var priceTotal, ratingTotal float64
	var priced, rated int
	for i := range tables.Full {
		r := &tables.Full[i]
		if r.Price > 0 {
			priceTotal += r.Price
			priced++
		}
		if r.Rating != nil {
			ratingTotal += *r.Rating
			rated++
		}
		if report.MaxReviews == nil || r.Reviews > report.MaxReviews.Reviews {
			report.MaxReviews = r
		}
	}
	if priced > 0 {
		report.AveragePrice = round2(priceTotal / float64(priced))
	}
	if rated > 0 {
		report.AverageRating = round2(ratingTotal / float64(rated))
	}

	s.logger.Debug("Report: %d cleaned, %d priced, %d rated", report.Cleaned, priced, rated)
	return report
}

// Print renders the report as a console table.
func (s *ReportService) Print(w io.Writer, r *models.RunReport) {
	sep := strings.Repeat("═", 64)
	thin := strings.Repeat("─", 64)

	fmt.Fprintf(w, "\n%s\n  BOOKS ETL RUN SUMMARY\n%s\n\n", sep, sep)

	fmt.Fprintf(w, "  Overview\n  %s\n", thin)
	fmt.Fprintf(w, "  Extracted listings : %d\n", r.Extracted)
	fmt.Fprintf(w, "  Cleaned records    : %d\n", r.Cleaned)
	fmt.Fprintf(w, "  Dropped            : %d\n", r.Dropped)
	if r.AveragePrice > 0 {
		fmt.Fprintf(w, "  Average price      : $%.2f\n", r.AveragePrice)
	}
	if r.AverageRating > 0 {
		fmt.Fprintf(w, "  Average rating     : %.2f\n", r.AverageRating)
	}
	if r.MaxReviews != nil {
		fmt.Fprintf(w, "  Most reviewed      : %s (%d reviews)\n", utils.Truncate(r.MaxReviews.Title, 40), r.MaxReviews.Reviews)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Top %d by reviews\n  %s\n", len(r.Top), thin)
	if len(r.Top) == 0 {
		fmt.Fprintf(w, "  No ranked books\n")
	}
	for _, b := range r.Top {
		rating := "  - "
		if b.Rating != nil {
			rating = fmt.Sprintf("%.1f★", *b.Rating)
		}
		fmt.Fprintf(w, "  %3d. %s %s %s $%.2f\n",
			b.Rank, utils.PadRight(b.Title, 34), utils.PadRight(b.Author, 16), rating, b.Price)
	}

	fmt.Fprintf(w, "\n%s\n\n", sep)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
