package sources

import (
	"fmt"
	"strings"
	"time"
)

// parseTimeUnits parses a CF-style time unit string such as
// "hours since 1900-01-01 00:00:00.0" into a per-unit second count and an
// epoch.
func parseTimeUnits(units string) (secsPerUnit float64, epoch time.Time, err error) {
	parts := strings.SplitN(units, " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("time units %q lack a \"since\" epoch", units)
	}

	switch strings.TrimSpace(parts[0]) {
	case "seconds", "second":
		secsPerUnit = 1
	case "minutes", "minute":
		secsPerUnit = 60
	case "hours", "hour":
		secsPerUnit = 3600
	case "days", "day":
		secsPerUnit = 86400
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time unit %q", parts[0])
	}

	stamp := strings.TrimSpace(parts[1])
	for _, layout := range []string{
		"2006-01-02 15:04:05.0",
		"2006-01-02 15:04:05",
		"2006-01-02",
		time.RFC3339,
	} {
		if t, perr := time.Parse(layout, stamp); perr == nil {
			return secsPerUnit, t.UTC(), nil
		}
	}

	return 0, time.Time{}, fmt.Errorf("unsupported time epoch %q", stamp)
}

// toUnixSeconds converts raw time-axis values into unix seconds using the
// axis units.
func toUnixSeconds(raw []float64, units string) ([]float64, error) {
	secsPerUnit, epoch, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	base := float64(epoch.Unix())
	for i, v := range raw {
		out[i] = base + v*secsPerUnit
	}
	return out, nil
}
