package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/chartr-dev/chartr/internal/chartr/normalize"
	"github.com/chartr-dev/chartr/internal/chartr/records"
)

// TrendDirection summarizes the slope of a lab series over time.
type TrendDirection string

const (
	TrendIncreasing       TrendDirection = "Increasing"
	TrendDecreasing       TrendDirection = "Decreasing"
	TrendStable           TrendDirection = "Stable"
	TrendInsufficientData TrendDirection = "InsufficientData"
)

// TrendPoint is one dated numeric observation in a lab series.
type TrendPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// TrendReport is the computed trend for one test series.
type TrendReport struct {
	TestName  string         `json:"test_name"`
	Unit      string         `json:"unit,omitempty"`
	Points    []TrendPoint   `json:"points"`
	Direction TrendDirection `json:"direction"`
	Slope     float64        `json:"slope_per_day"`
	Min       float64        `json:"min"`
	Max       float64        `json:"max"`
	Mean      float64        `json:"mean"`
	First     float64        `json:"first"`
	Last      float64        `json:"last"`
}

// trendPoints keeps the dated rows whose values parse as numbers, oldest
// first. Rows without a date or a numeric value contribute nothing.
func trendPoints(results []records.LabResult) []TrendPoint {
	var pts []TrendPoint
	for _, r := range results {
		if r.TestDate == nil || r.Value == nil {
			continue
		}
		v, ok := normalize.Numeric(*r.Value)
		if !ok {
			continue
		}
		pts = append(pts, TrendPoint{Date: *r.TestDate, Value: v})
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
	return pts
}

// computeTrend fits a least-squares line over (days since first point,
// value) and classifies the direction. The projected change over the whole
// window must exceed 1% of the series mean to count as a real movement;
// anything smaller is Stable. Fewer than two points is InsufficientData.
func computeTrend(report *TrendReport) {
	pts := report.Points
	if len(pts) < 2 {
		report.Direction = TrendInsufficientData
		return
	}

	base := pts[0].Date
	var sumX, sumY, sumXY, sumXX float64
	minV, maxV := pts[0].Value, pts[0].Value
	for _, p := range pts {
		x := p.Date.Sub(base).Hours() / 24
		sumX += x
		sumY += p.Value
		sumXY += x * p.Value
		sumXX += x * x
		minV = math.Min(minV, p.Value)
		maxV = math.Max(maxV, p.Value)
	}
	n := float64(len(pts))
	mean := sumY / n
	report.Min = minV
	report.Max = maxV
	report.Mean = mean
	report.First = pts[0].Value
	report.Last = pts[len(pts)-1].Value

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		// All points share one date; no slope to speak of.
		report.Direction = TrendStable
		return
	}
	slope := (n*sumXY - sumX*sumY) / denom
	report.Slope = slope

	spanDays := pts[len(pts)-1].Date.Sub(base).Hours() / 24
	change := slope * spanDays
	tolerance := 0.01 * math.Abs(mean)
	switch {
	case change > tolerance:
		report.Direction = TrendIncreasing
	case change < -tolerance:
		report.Direction = TrendDecreasing
	default:
		report.Direction = TrendStable
	}
}
