// Package stats computes per-market movement statistics over a price-history window.
package stats

import (
	"math"
	"sort"

	"palpiteiros/internal/models"
)

const (
	weightPriceChange  = 0.5
	weightVolumeChange = 0.3
	weightVolatility   = 0.2

	// trendDeadzone is exclusive: a change of exactly +/-1% is neutral.
	trendDeadzone = 0.01

	DefaultSampleSize = 24
)

type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

type Snapshot struct {
	PriceChangePercent  float64 `json:"price_change_percent"`
	VolumeChangePercent float64 `json:"volume_change_percent"`
	PriceHigh           float64 `json:"price_high"`
	PriceLow            float64 `json:"price_low"`
	VolatilityIndex     float64 `json:"volatility_index"`
	MovementScore       float64 `json:"movement_score"`
	Trend               Trend   `json:"trend"`
	CurrentPrice        float64 `json:"current_price"`
}

// Compute returns false when the window holds fewer than two points.
func Compute(points []models.PriceHistoryPoint) (Snapshot, bool) {
	if len(points) < 2 {
		return Snapshot{}, false
	}
	ordered := sortedCopy(points)
	first := ordered[0]
	last := ordered[len(ordered)-1]

	prices := make([]float64, len(ordered))
	high := math.Inf(-1)
	low := math.Inf(1)
	for i, p := range ordered {
		prices[i] = p.PriceYes
		if p.PriceYes > high {
			high = p.PriceYes
		}
		if p.PriceYes < low {
			low = p.PriceYes
		}
	}

	priceChange := ChangePercent(first.PriceYes, last.PriceYes)
	volumeChange := ChangePercent(first.VolumeFloat(), last.VolumeFloat())
	volatility := PopulationStdDev(prices)

	return Snapshot{
		PriceChangePercent:  priceChange,
		VolumeChangePercent: volumeChange,
		PriceHigh:           high,
		PriceLow:            low,
		VolatilityIndex:     volatility,
		MovementScore:       MovementScore(priceChange, volumeChange, volatility),
		Trend:               ClassifyTrend(priceChange),
		CurrentPrice:        last.PriceYes,
	}, true
}

// ChangePercent is (current-oldest)/oldest as a fraction; 0 when oldest is 0.
func ChangePercent(oldest, current float64) float64 {
	if oldest == 0 {
		return 0
	}
	out := (current - oldest) / oldest
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0
	}
	return out
}

func PopulationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

func MovementScore(priceChange, volumeChange, volatility float64) float64 {
	return weightPriceChange*math.Abs(priceChange) +
		weightVolumeChange*math.Abs(volumeChange) +
		weightVolatility*volatility
}

func ClassifyTrend(priceChange float64) Trend {
	switch {
	case priceChange > trendDeadzone:
		return TrendUp
	case priceChange < -trendDeadzone:
		return TrendDown
	default:
		return TrendNeutral
	}
}

// Sample thins points to at most n evenly spaced entries, keeping first and last.
func Sample(points []models.PriceHistoryPoint, n int) []models.PriceHistoryPoint {
	if n <= 0 {
		n = DefaultSampleSize
	}
	ordered := sortedCopy(points)
	if len(ordered) <= n {
		return ordered
	}
	if n == 1 {
		return ordered[len(ordered)-1:]
	}
	out := make([]models.PriceHistoryPoint, 0, n)
	step := float64(len(ordered)-1) / float64(n-1)
	for i := 0; i < n; i++ {
		idx := int(math.Round(float64(i) * step))
		if idx >= len(ordered) {
			idx = len(ordered) - 1
		}
		out = append(out, ordered[idx])
	}
	return out
}

func sortedCopy(points []models.PriceHistoryPoint) []models.PriceHistoryPoint {
	out := make([]models.PriceHistoryPoint, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
