package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseMinor(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"70.00", 7000, false},
		{"40", 4000, false},
		{"999.5", 99950, false},
		{"", 0, false},
		{"0.001", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseMinor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseMinor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMinor(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMinorMajorRoundTrip(t *testing.T) {
	minor, err := ToMinor(ToMajor(41000))
	if err != nil {
		t.Fatalf("ToMinor: %v", err)
	}
	if minor != 41000 {
		t.Errorf("round trip = %d, want 41000", minor)
	}
	if got := Format(41000); got != "410.00" {
		t.Errorf("Format(41000) = %q", got)
	}
	if got := Format(5); got != "0.05" {
		t.Errorf("Format(5) = %q", got)
	}
	if _, err := ToMinor(decimal.RequireFromString("1.234")); err == nil {
		t.Error("expected precision error")
	}
}
