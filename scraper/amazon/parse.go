package amazon

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"

	"books-etl/utils"
)

// CSS selectors for the search results layout.
const (
	resultSelector  = `div.s-result-item[data-component-type='s-search-result']`
	titleSelector   = `h2 span`
	authorSelector  = `.a-color-secondary .a-size-base + .a-size-base`
	priceSelector   = `.a-price .a-offscreen`
	reviewsSelector = `span.a-size-base.s-underline-text`
	ratingSelector  = `.a-icon-alt`
)

// ListingNode is one search result with its sub-fields pulled out as text.
// An empty field means the element was missing or blank.
type ListingNode struct {
	Title   string
	Author  string
	Price   string
	Reviews string
	Rating  string
}

// ParsePage returns the result nodes of a search page in document order.
func ParsePage(r io.Reader) ([]ListingNode, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	var nodes []ListingNode
	doc.Find(resultSelector).Each(func(_ int, sel *goquery.Selection) {
		nodes = append(nodes, ListingNode{
			Title:   firstText(sel, titleSelector),
			Author:  firstText(sel, authorSelector),
			Price:   firstText(sel, priceSelector),
			Reviews: firstText(sel, reviewsSelector),
			Rating:  firstText(sel, ratingSelector),
		})
	})
	return nodes, nil
}

// firstText collapses whitespace runs so titles wrapped across lines in the
// markup compare equal.
func firstText(sel *goquery.Selection, selector string) string {
	return utils.NormaliseText(sel.Find(selector).First().Text())
}
