package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numericRun = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Numeric extracts the first numeric value from a string like "6.2",
// "120 mmHg" or ">= 95%". Returns (0, false) when nothing numeric exists.
func Numeric(s string) (float64, bool) {
	m := numericRun.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// BMI computes weight(kg) / height(m)² rounded to one decimal.
// Both components must be positive; otherwise nil.
func BMI(heightCm, weightKg *float64) *float64 {
	if heightCm == nil || weightKg == nil || *heightCm <= 0 || *weightKg <= 0 {
		return nil
	}
	m := *heightCm / 100
	bmi := math.Round(*weightKg/(m*m)*10) / 10
	return &bmi
}

// Range is a parsed numeric reference range. Either bound may be open.
type Range struct {
	Low  *float64
	High *float64
}

// Contains reports whether v falls inside the closed bounds.
func (r Range) Contains(v float64) bool {
	if r.Low != nil && v < *r.Low {
		return false
	}
	if r.High != nil && v > *r.High {
		return false
	}
	return true
}

var (
	rangePair  = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)\s*(?:-|–|to)\s*(-?\d+(?:\.\d+)?)`)
	rangeUpper = regexp.MustCompile(`^(?:<|<=|≤|under|below)\s*(-?\d+(?:\.\d+)?)`)
	rangeLower = regexp.MustCompile(`^(?:>|>=|≥|over|above)\s*(-?\d+(?:\.\d+)?)`)
)

// ParseRange parses reference range text like "4.0-6.0", "4.0 - 6.0 %",
// "< 200" or "> 60". Returns (Range{}, false) for qualitative or empty text.
func ParseRange(s string) (Range, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Range{}, false
	}
	if m := rangePair.FindStringSubmatch(s); m != nil {
		low, err1 := strconv.ParseFloat(m[1], 64)
		high, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil && low <= high {
			return Range{Low: &low, High: &high}, true
		}
		return Range{}, false
	}
	if m := rangeUpper.FindStringSubmatch(s); m != nil {
		if high, err := strconv.ParseFloat(m[1], 64); err == nil {
			return Range{High: &high}, true
		}
	}
	if m := rangeLower.FindStringSubmatch(s); m != nil {
		if low, err := strconv.ParseFloat(m[1], 64); err == nil {
			return Range{Low: &low}, true
		}
	}
	return Range{}, false
}
