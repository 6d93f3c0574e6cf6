package models

// RunReport summarises one pipeline run for the console.
type RunReport struct {
	Extracted     int
	Cleaned       int
	Dropped       int
	AveragePrice  float64
	AverageRating float64
	MaxReviews    *CleanedRecord
	Top           []RankedRecord
}
