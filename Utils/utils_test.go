package Utils

import (
	"regexp"
	"testing"
)

func TestRandomSlug(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Za-z0-9]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		slug := RandomSlug(8)
		if !pattern.MatchString(slug) {
			t.Fatalf("Unexpected slug %q", slug)
		}
		seen[slug] = true
	}
	if len(seen) < 45 {
		t.Errorf("Expected mostly unique slugs, got %d distinct of 50", len(seen))
	}
}

func TestFormatPhoneNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+90 (532) 111-22-33", "+905321112233"},
		{"0044 20 7946 0958", "+00442079460958"},
		{"no digits", ""},
	}
	for _, tt := range tests {
		if got := FormatPhoneNumber(tt.in); got != tt.want {
			t.Errorf("FormatPhoneNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  John.Doe@Example.COM "); got != "john.doe@example.com" {
		t.Errorf("Unexpected normalised email %q", got)
	}
}

func TestSecureTokenLength(t *testing.T) {
	if got := len(SecureToken(32)); got != 43 {
		t.Errorf("Expected 43 characters for 32 bytes, got %d", got)
	}
}
