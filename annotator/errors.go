package annotator

import "errors"

var (
	// ErrPageNotFound is returned for operations on a page that was never loaded.
	ErrPageNotFound = errors.New("annotator: page not found")

	// ErrHighlightNotFound is returned when a highlight id is unknown on its page.
	ErrHighlightNotFound = errors.New("annotator: highlight not found")

	// ErrEmptySelection is returned when a selection cannot become a highlight:
	// collapsed, multi-range, or outside the page.
	ErrEmptySelection = errors.New("annotator: empty selection")

	// ErrInvalidColor is returned for colors outside the palette.
	ErrInvalidColor = errors.New("annotator: invalid color")
)
