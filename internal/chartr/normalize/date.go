package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var tsZoneSuffix = regexp.MustCompile(`[-+]\d{4}$`)

// Date normalizes an HL7 TS or free-form date string to a UTC calendar date.
// Partial dates (YYYY, YYYYMM) snap to the first day of the known period.
// Unparsable input returns nil, never an error: a bad date costs one field.
func Date(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	// HL7 timestamps carry the zone as a bare offset suffix; the date part
	// is institution-local so the offset is dropped, not applied.
	hl7 := tsZoneSuffix.ReplaceAllString(s, "")
	if d := parseHL7(hl7); d != nil {
		return d
	}

	// Fallback for exporters that emit ISO or locale formats.
	if t, err := dateparse.ParseAny(s); err == nil {
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d
	}
	return nil
}

// parseHL7 handles the digit-run TS layouts: YYYY, YYYYMM, YYYYMMDD and
// YYYYMMDDHHMMSS (longer runs are truncated to the date part).
func parseHL7(s string) *time.Time {
	if !isDigits(s) {
		return nil
	}
	layout := ""
	switch {
	case len(s) == 4:
		layout = "2006"
	case len(s) == 6:
		layout = "200601"
	case len(s) == 8:
		layout = "20060102"
	case len(s) >= 14:
		s, layout = s[:14], "20060102150405"
	default:
		return nil
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// Time extracts the clock portion of a full HL7 timestamp as HH:MM:SS.
// Date-only input returns nil.
func Time(s string) *string {
	s = tsZoneSuffix.ReplaceAllString(strings.TrimSpace(s), "")
	if !isDigits(s) || len(s) < 14 {
		return nil
	}
	t, err := time.ParseInLocation("20060102150405", s[:14], time.UTC)
	if err != nil {
		return nil
	}
	clock := t.Format("15:04:05")
	return &clock
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
