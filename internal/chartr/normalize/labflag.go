package normalize

import (
	"strings"

	"github.com/chartr-dev/chartr/internal/chartr/records"
)

// flagSynonyms covers the free-text variants exporters put in place of
// HL7 interpretation codes. Critical markers come first so "critically
// high" does not match the plain High entry.
var flagSynonyms = []struct {
	marker string
	flag   records.AbnormalFlag
}{
	{"critical", records.FlagCritical},
	{"panic", records.FlagCritical},
	{"high", records.FlagHigh},
	{"abnormally elevated", records.FlagHigh},
	{"low", records.FlagLow},
	{"normal", records.FlagNormal},
}

// Flag maps a source abnormal-flag string to the canonical vocabulary.
// Bare HL7 letter codes (H, L, N, A, HH, LL) are matched exactly; longer
// strings are matched substring-tolerant. Unmatched becomes Unknown.
func Flag(s string) records.AbnormalFlag {
	lower := strings.ToLower(strings.TrimSpace(s))
	switch lower {
	case "":
		return records.FlagUnknown
	case "h":
		return records.FlagHigh
	case "l":
		return records.FlagLow
	case "n":
		return records.FlagNormal
	case "a":
		return records.FlagHigh // generic "abnormal" without direction
	case "hh", "ll":
		return records.FlagCritical
	}
	for _, syn := range flagSynonyms {
		if strings.Contains(lower, syn.marker) {
			return syn.flag
		}
	}
	return records.FlagUnknown
}

// DeriveFlag computes an abnormal flag from a result value and reference
// range when no explicit flag was present. Both must parse as comparable
// numerics; otherwise the flag stays Unknown rather than guessing.
func DeriveFlag(value, referenceRange string) records.AbnormalFlag {
	v, ok := Numeric(value)
	if !ok {
		return records.FlagUnknown
	}
	r, ok := ParseRange(referenceRange)
	if !ok {
		return records.FlagUnknown
	}
	switch {
	case r.High != nil && v > *r.High:
		return records.FlagHigh
	case r.Low != nil && v < *r.Low:
		return records.FlagLow
	default:
		return records.FlagNormal
	}
}
