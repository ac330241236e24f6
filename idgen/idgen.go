// Package idgen generates the identifiers of persisted highlights, business
// events and request traces.
//
// Constructors that mint ids accept a Generator so tests can swap in a
// deterministic one.
package idgen

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// Prefixes of the id kinds.
const (
	HighlightPrefix = "hl_"
	EventPrefix     = "evt_"
	TracePrefix     = "trc_"
)

// UUIDv7 returns a Generator of RFC 9562 UUID v7 strings. They sort by
// creation time, which keeps highlight rows in insertion order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every id of gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a Generator of prefix1, prefix2, ... for tests.
func Sequence(prefix string) Generator {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s%d", prefix, n.Add(1))
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// New produces an id with the Default generator.
func New() string {
	return Default()
}

// Highlight is the generator of persisted highlight ids.
func Highlight() Generator { return Prefixed(HighlightPrefix, Default) }

// Event is the generator of business event ids.
func Event() Generator { return Prefixed(EventPrefix, Default) }

// Trace is the generator of request trace ids.
func Trace() Generator { return Prefixed(TracePrefix, Default) }

// Parse validates a possibly prefixed UUID and returns it unchanged.
func Parse(s string) (string, error) {
	raw := s
	for _, p := range []string{HighlightPrefix, EventPrefix, TracePrefix} {
		if rest, ok := strings.CutPrefix(s, p); ok {
			raw = rest
			break
		}
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", fmt.Errorf("idgen: invalid id %q: %w", s, err)
	}
	return s, nil
}
