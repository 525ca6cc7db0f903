// Package mastery estimates per-learner knowledge mastery with Bayesian
// Knowledge Tracing.
package mastery

import (
	"math"
	"time"
)

// DefaultMastery is reported for pairs with no recorded answers.
const DefaultMastery = 0.5

// minAttemptsForInterval is the sample size below which ConfidenceInterval
// returns the full [0,1] range.
const minAttemptsForInterval = 3

// normalAnswerTime is the expected time to answer one question.
const normalAnswerTime = 30 * time.Second

// Update applies one BKT observation to m.
func Update(m float64, correct bool, p Parameters) float64 {
	if correct {
		m += (1 - m) * p.PLearn
	} else {
		m -= m * p.PForget
	}
	return clamp01(m)
}

// Predict returns the probability of a correct answer at mastery m.
func Predict(m float64, p Parameters) float64 {
	return m*(1-p.PSlip) + (1-m)*p.PGuess
}

// Interval returns a normal-approximation confidence interval for m after n
// attempts. Fewer than three attempts yield [0,1].
func Interval(m float64, n int, confidence float64) (lo, hi float64) {
	if n < minAttemptsForInterval {
		return 0, 1
	}
	margin := zScore(confidence) * math.Sqrt(m*(1-m)/float64(n))
	return math.Max(0, m-margin), math.Min(1, m+margin)
}

func zScore(confidence float64) float64 {
	switch confidence {
	case 0.95:
		return 1.96
	case 0.9:
		return 1.645
	default:
		return 1.0
	}
}

// AdjustForTime discounts m for answers that were suspiciously fast (likely
// a guess) or very slow (likely a struggle).
func AdjustForTime(m float64, spent time.Duration) float64 {
	switch {
	case spent < normalAnswerTime*3/10:
		return m * 0.9
	case spent > normalAnswerTime*3:
		return m * 0.95
	default:
		return m
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
