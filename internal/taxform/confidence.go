package taxform

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultThreshold is the mean confidence at which escalation stops.
const DefaultThreshold = 0.85

// Score rates one extracted value: non-zero amounts 0.95, zero amounts 0.5,
// non-empty strings 0.90, booleans 0.75, missing values 0 and anything else
// 0.85.
func Score(value any) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case decimal.Decimal:
		if v.IsPositive() {
			return 0.95
		}
		return 0.5
	case *decimal.Decimal:
		if v == nil {
			return 0
		}
		return Score(*v)
	case string:
		if v == "" {
			return 0
		}
		return 0.90
	case bool:
		return 0.75
	}
	return 0.85
}

// ScoreFields scores every field of an extraction.
func ScoreFields(fields map[string]any) map[string]float64 {
	scores := make(map[string]float64, len(fields))
	for name, v := range fields {
		scores[name] = Score(v)
	}
	return scores
}

// MeanConfidence averages scores, clamped to [0, 1]. An empty set scores 0.
func MeanConfidence(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += clamp(s)
	}
	return clamp(sum / float64(len(scores)))
}

func clamp(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
