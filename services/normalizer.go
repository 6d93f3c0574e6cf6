package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"books-etl/models"
)

// ErrMalformedNumber is wrapped by every parse failure of a numeric field.
var ErrMalformedNumber = errors.New("malformed number")

// ParseReviewCount turns "1,234" into 1234. A missing count is 0.
func ParseReviewCount(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if isAbsent(raw) {
		return 0, nil
	}

	n, err := strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: review count %q", ErrMalformedNumber, raw)
	}
	return n, nil
}

// ParseRating reads the leading number of "4.7 out of 5 stars". It returns
// nil when the rating is unavailable.
func ParseRating(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if isAbsent(raw) {
		return nil, nil
	}

	v, err := strconv.ParseFloat(strings.Fields(raw)[0], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: rating %q", ErrMalformedNumber, raw)
	}
	return &v, nil
}

// ParsePrice reads the amount following the "$" in "$12.99". A missing
// price is 0.
func ParsePrice(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if isAbsent(raw) {
		return 0, nil
	}

	_, amount, found := strings.Cut(raw, "$")
	fields := strings.Fields(amount)
	if !found || len(fields) == 0 {
		return 0, fmt.Errorf("%w: price %q", ErrMalformedNumber, raw)
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: price %q", ErrMalformedNumber, raw)
	}
	return v, nil
}

func isAbsent(raw string) bool {
	return raw == "" || raw == models.NotAvailable
}
