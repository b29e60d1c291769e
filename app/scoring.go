package app

import "github.com/sweater-ventures/dispatch/geo"

// Factor weights of the composite score. They sum to 1.0 so the composite
// stays within [0,1].
const (
	distanceWeight = 0.40
	loadWeight     = 0.30
	ratingWeight   = 0.20
	priorityWeight = 0.10
)

// Score rates how well a courier fits an order. Pure and deterministic;
// the result is in [0,1].
func Score(c Courier, o Order) (float64, ScoreBreakdown) {
	breakdown := ScoreBreakdown{
		Distance: distanceScore(geo.DistanceKm(c.Location, o.Pickup)),
		Load:     loadScore(c.CurrentLoad, c.Capacity),
		Rating:   ratingScore(c.Rating),
		Priority: priorityScore(o.Priority),
	}
	return weightedScore(breakdown), breakdown
}

func weightedScore(b ScoreBreakdown) float64 {
	return b.Distance*distanceWeight +
		b.Load*loadWeight +
		b.Rating*ratingWeight +
		b.Priority*priorityWeight
}

func distanceScore(km float64) float64 {
	if km < 0 {
		km = 0
	}
	return 1 / (1 + km)
}

func loadScore(currentLoad, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	score := 1 - float64(currentLoad)/float64(capacity)
	return clamp01(score)
}

func ratingScore(rating float64) float64 {
	return clamp01(rating / 5.0)
}

func priorityScore(p Priority) float64 {
	switch p {
	case PriorityUrgent:
		return 1.0
	case PriorityHigh:
		return 0.85
	case PriorityLow:
		return 0.5
	default:
		return 0.7
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
