package sources

import (
	"testing"
	"time"
)

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units       string
		secsPerUnit float64
		epoch       time.Time
	}{
		{"hours since 1900-01-01 00:00:00.0", 3600, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"seconds since 1970-01-01", 1, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"days since 2000-01-01 12:00:00", 86400, time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"minutes since 2020-06-01T00:00:00Z", 60, time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		secsPerUnit, epoch, err := parseTimeUnits(tc.units)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.units, err)
		}
		if secsPerUnit != tc.secsPerUnit {
			t.Fatalf("%s: expected %g seconds per unit, got %g", tc.units, tc.secsPerUnit, secsPerUnit)
		}
		if !epoch.Equal(tc.epoch) {
			t.Fatalf("%s: expected epoch %v, got %v", tc.units, tc.epoch, epoch)
		}
	}
}

func TestParseTimeUnitsRejectsMalformed(t *testing.T) {
	for _, units := range []string{
		"hours",
		"fortnights since 1900-01-01",
		"hours since someday",
	} {
		if _, _, err := parseTimeUnits(units); err == nil {
			t.Fatalf("expected error for %q", units)
		}
	}
}

func TestToUnixSeconds(t *testing.T) {
	out, err := toUnixSeconds([]float64{0, 24}, "hours since 1970-01-01 00:00:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0] != 0 || out[1] != 86400 {
		t.Fatalf("expected [0 86400], got %v", out)
	}
}
