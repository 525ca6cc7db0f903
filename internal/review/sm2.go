// Package review schedules spaced-repetition reviews using an Ebbinghaus
// stage table to seed each lineage and SM-2 to advance it.
package review

import "math"

// SM-2 bounds.
const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
	MinInterval       = 1
	MaxInterval       = 365
	passQuality       = 3
)

// NextInterval applies one SM-2 step. Quality 3 or higher is a pass; a fail
// resets the interval to one day and keeps the ease factor.
func NextInterval(quality, prevInterval int, prevEaseFactor float64) (interval int, easeFactor float64) {
	quality = max(0, min(5, quality))

	if quality < passQuality {
		return MinInterval, prevEaseFactor
	}

	switch prevInterval {
	case 0:
		interval = 1
	case 1:
		interval = 6
	default:
		interval = int(roundHalfUp(float64(prevInterval) * prevEaseFactor))
	}

	miss := float64(5 - quality)
	easeFactor = math.Max(MinEaseFactor, prevEaseFactor+0.1-miss*(0.08+miss*0.02))
	return max(MinInterval, min(MaxInterval, interval)), easeFactor
}

// Step is one SM-2 input in a batch.
type Step struct {
	Quality        int     `json:"quality"`
	PrevInterval   int     `json:"previousInterval"`
	PrevEaseFactor float64 `json:"previousEaseFactor"`
}

// Outcome is the SM-2 result for one Step.
type Outcome struct {
	Interval   int     `json:"nextInterval"`
	EaseFactor float64 `json:"newEaseFactor"`
}

// NextIntervals applies NextInterval to each step independently.
func NextIntervals(steps []Step) []Outcome {
	out := make([]Outcome, len(steps))
	for i, s := range steps {
		out[i].Interval, out[i].EaseFactor = NextInterval(s.Quality, s.PrevInterval, s.PrevEaseFactor)
	}
	return out
}

func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
