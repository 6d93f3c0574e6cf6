package models

// NotAvailable marks an optional scraped field that was missing on the page.
const NotAvailable = "N/A"

// ListingRecord holds one scraped search result exactly as it appeared on
// the page. It is written to the raw artifact before any cleaning.
type ListingRecord struct {
	Title       string
	Author      string
	PriceText   string
	ReviewsText string
	RatingText  string
}

// CleanedRecord is a ListingRecord with its numeric fields parsed.
type CleanedRecord struct {
	Title   string
	Author  string
	Reviews int
	Rating  *float64 // nil when the source rating was unavailable
	Price   float64
}

// RankedRecord is one row of the top-N view. Rank uses competition ranking:
// equal review counts share the lowest rank of their group.
type RankedRecord struct {
	Rank int
	CleanedRecord
}

// Tables is the output of the transform stage.
type Tables struct {
	Full []CleanedRecord
	Top  []RankedRecord
}

// Float returns a pointer to v, for building optional ratings.
func Float(v float64) *float64 {
	return &v
}
