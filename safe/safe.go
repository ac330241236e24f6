// Package safe holds the input guards shared by the service and the CLI:
// identifier checks for page ids and bounded reads for page sources.
package safe

import (
	"errors"
	"fmt"
	"io"
)

// MaxIdentifier is the longest identifier accepted.
const MaxIdentifier = 256

// ErrInvalidIdentifier is returned for an id unfit for a URL path segment
// or a file name.
var ErrInvalidIdentifier = errors.New("safe: invalid identifier")

// ErrTooLarge is returned when a read exceeds its limit.
var ErrTooLarge = errors.New("safe: input too large")

// ValidateIdentifier accepts non-empty ids of at most MaxIdentifier ASCII
// letters, digits, underscores, hyphens and dots, "." and ".." excepted.
func ValidateIdentifier(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	case len(s) > MaxIdentifier:
		return fmt.Errorf("%w: longer than %d", ErrInvalidIdentifier, MaxIdentifier)
	case s == "." || s == "..":
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("%w: character %q", ErrInvalidIdentifier, r)
		}
	}
	return nil
}

// ReadAll reads at most max bytes from r.
func ReadAll(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, max)
	}
	return data, nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}
