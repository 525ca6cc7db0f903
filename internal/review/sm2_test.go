package review_test

import (
	"testing"

	"github.com/p-n-ai/pai-adaptive/internal/review"
)

func TestNextInterval_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		quality      int
		prevInterval int
		prevEF       float64
		wantInterval int
		wantEF       float64
	}{
		{"first pass", 4, 0, 2.5, 1, 2.5},
		{"second pass", 4, 1, 2.5, 6, 2.5},
		{"later pass multiplies", 5, 6, 2.5, 15, 2.6},
		{"fair pass lowers ease", 3, 6, 2.5, 15, 2.36},
		{"fail resets", 1, 30, 2.2, 1, 2.2},
		{"ease floor", 3, 10, 1.3, 13, 1.3},
		{"interval ceiling", 5, 300, 2.5, 365, 2.6},
		{"round half up", 4, 5, 2.5, 13, 2.5},
		{"quality clamped", 9, 1, 2.5, 6, 2.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotInterval, gotEF := review.NextInterval(tt.quality, tt.prevInterval, tt.prevEF)
			if gotInterval != tt.wantInterval {
				t.Errorf("interval = %d, want %d", gotInterval, tt.wantInterval)
			}
			if diff := gotEF - tt.wantEF; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("ease factor = %v, want %v", gotEF, tt.wantEF)
			}
		})
	}
}

func TestNextInterval_Properties(t *testing.T) {
	for q := 0; q <= 5; q++ {
		for _, prev := range []int{0, 1, 2, 6, 50, 200, 365} {
			for _, ef := range []float64{1.3, 1.8, 2.5, 3.2} {
				interval, newEF := review.NextInterval(q, prev, ef)
				if interval < review.MinInterval || interval > review.MaxInterval {
					t.Errorf("NextInterval(%d, %d, %v) interval %d out of range", q, prev, ef, interval)
				}
				if newEF < review.MinEaseFactor {
					t.Errorf("NextInterval(%d, %d, %v) ease factor %v below floor", q, prev, ef, newEF)
				}
				if q == 5 && newEF < ef {
					t.Errorf("perfect recall lowered ease factor %v -> %v", ef, newEF)
				}
				if q < 3 && (interval != 1 || newEF != ef) {
					t.Errorf("fail NextInterval(%d, %d, %v) = (%d, %v), want (1, %v)", q, prev, ef, interval, newEF, ef)
				}
			}
		}
	}
}

func TestNextIntervals(t *testing.T) {
	got := review.NextIntervals([]review.Step{
		{Quality: 4, PrevInterval: 0, PrevEaseFactor: 2.5},
		{Quality: 4, PrevInterval: 1, PrevEaseFactor: 2.5},
	})
	if len(got) != 2 || got[0].Interval != 1 || got[1].Interval != 6 {
		t.Errorf("NextIntervals() = %+v", got)
	}
}

func TestStageConfig(t *testing.T) {
	if got := review.StageConfig(3); got.IntervalDays != 7 || got.ExpectedRetention != 0.65 {
		t.Errorf("StageConfig(3) = %+v", got)
	}
	if got := review.StageConfig(42); got.Stage != 1 {
		t.Errorf("StageConfig(42) = %+v, want first stage", got)
	}
}
