package subdomain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{in: "acme", want: nil},
		{in: "acme-promo-2026", want: nil},
		{in: "ab", want: ErrTooShort},
		{in: strings.Repeat("a", 64), want: ErrTooLong},
		{in: "-acme", want: ErrFormat},
		{in: "acme-", want: ErrFormat},
		{in: "ac_me", want: ErrFormat},
		{in: "ACME", want: ErrFormat},
		{in: "www", want: ErrReserved},
		{in: "admin", want: ErrReserved},
	}
	for _, tt := range tests {
		if err := Validate(tt.in); !errors.Is(err, tt.want) {
			t.Errorf("Validate(%q) = %v, want %v", tt.in, err, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Acme "); got != "acme" {
		t.Fatalf("Normalize = %q", got)
	}
}
