package safe

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"p1", false},
		{"article-2024_03.v2", false},
		{"", true},
		{".", true},
		{"..", true},
		{"../etc/passwd", true},
		{"has spaces", true},
		{"été", true},
		{strings.Repeat("a", MaxIdentifier), false},
		{strings.Repeat("a", MaxIdentifier+1), true},
	}
	for _, tt := range tests {
		err := ValidateIdentifier(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateIdentifier(%q) error=%v, wantErr=%v", tt.id, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("ValidateIdentifier(%q): %v is not ErrInvalidIdentifier", tt.id, err)
		}
	}
}

func TestReadAll(t *testing.T) {
	data := strings.Repeat("x", 100)
	got, err := ReadAll(strings.NewReader(data), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("expected 100 bytes, got %d", len(got))
	}

	if _, err := ReadAll(strings.NewReader(data), 50); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("oversized read: got %v, want ErrTooLarge", err)
	}
}
