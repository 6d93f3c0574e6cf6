package utils

import (
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"
)

// NormaliseText strips leading/trailing whitespace and collapses internal whitespace.
func NormaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Truncate shortens s to at most width terminal cells, ending in "...".
func Truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "...")
}

// PadRight pads s with spaces to exactly width terminal cells, truncating if needed.
func PadRight(s string, width int) string {
	return runewidth.FillRight(Truncate(s, width), width)
}
