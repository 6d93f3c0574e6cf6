package amazon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"books-etl/models"
	"books-etl/scraper"
	"books-etl/services"
	"books-etl/utils"
)

// Options tune a Scraper.
type Options struct {
	SearchURL string
	MinRating float64
	MaxPages  int
	// RateLimit is the minimum gap between two page fetches.
	RateLimit time.Duration
}

// Scraper walks search result pages and collects highly rated listings.
type Scraper struct {
	fetcher   scraper.PageFetcher
	logger    *utils.Logger
	searchURL *url.URL
	minRating float64
	maxPages  int
	limiter   *rate.Limiter
}

// New creates a ready-to-use Scraper.
func New(fetcher scraper.PageFetcher, opts Options, logger *utils.Logger) (*Scraper, error) {
	u, err := url.Parse(opts.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("amazon: search url: %w", err)
	}
	if opts.MaxPages < 1 {
		return nil, errors.New("amazon: MaxPages must be >= 1")
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Every(opts.RateLimit)
	}

	return &Scraper{
		fetcher:   fetcher,
		logger:    logger,
		searchURL: u,
		minRating: opts.MinRating,
		maxPages:  opts.MaxPages,
		limiter:   rate.NewLimiter(limit, 1),
	}, nil
}

// PageURL returns the search URL for a 1-based page number.
func (s *Scraper) PageURL(page int) string {
	u := *s.searchURL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// Extract collects up to targetCount listings rated at least MinRating,
// unique by title, in page then document order. A page that fails to load
// ends the walk early; whatever was gathered so far is returned without
// error. Only context cancellation is reported as an error.
func (s *Scraper) Extract(ctx context.Context, targetCount int) ([]models.ListingRecord, error) {
	results := make([]models.ListingRecord, 0, max(targetCount, 0))
	seen := utils.NewKeySet()

	s.logger.Info("Starting extraction: target %d listings rated >= %.1f", targetCount, s.minRating)

	for page := 1; len(results) < targetCount; page++ {
		if page > s.maxPages {
			s.logger.Warn("Reached page limit (%d) with %d/%d listings", s.maxPages, len(results), targetCount)
			break
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return results, fmt.Errorf("amazon: page %d: %w", page, err)
		}

		pageURL := s.PageURL(page)
		body, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, fmt.Errorf("amazon: page %d: %w", page, ctxErr)
			}
			s.logger.Error("Failed to retrieve page %d: %v", page, err)
			break
		}

		nodes, err := ParsePage(bytes.NewReader(body))
		if err != nil {
			s.logger.Error("Failed to parse page %d: %v", page, err)
			break
		}
		if len(nodes) == 0 {
			s.logger.Warn("Page %d has no search results, stopping", page)
			break
		}

		before := len(results)
		results = s.collect(nodes, seen, results, targetCount)
		s.logger.Info("Page %d: %d results, %d accepted, %d/%d collected",
			page, len(nodes), len(results)-before, len(results), targetCount)
	}

	s.logger.Info("Extraction complete: %d listings", len(results))
	return results, nil
}

// collect appends qualifying nodes to results, stopping at targetCount.
func (s *Scraper) collect(nodes []ListingNode, seen *utils.KeySet, results []models.ListingRecord, targetCount int) []models.ListingRecord {
	for _, n := range nodes {
		if len(results) >= targetCount {
			break
		}
		if n.Title == "" || n.Price == "" {
			continue
		}
		if seen.Contains(n.Title) {
			s.logger.Debug("Duplicate title skipped: %s", n.Title)
			continue
		}
		if !s.qualifies(n) {
			continue
		}

		results = append(results, models.ListingRecord{
			Title:       n.Title,
			Author:      orNotAvailable(n.Author),
			PriceText:   n.Price,
			ReviewsText: orNotAvailable(n.Reviews),
			RatingText:  n.Rating,
		})
		seen.Add(n.Title)
	}
	return results
}

// qualifies applies the rating gate. Missing or unparseable ratings fail it.
func (s *Scraper) qualifies(n ListingNode) bool {
	rating, err := services.ParseRating(n.Rating)
	if err != nil {
		s.logger.Debug("Unreadable rating %q for %s", n.Rating, n.Title)
		return false
	}
	return rating != nil && *rating >= s.minRating
}

func orNotAvailable(s string) string {
	if s == "" {
		return models.NotAvailable
	}
	return s
}
