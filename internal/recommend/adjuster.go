package recommend

import (
	"context"
	"math"
	"time"

	"github.com/p-n-ai/pai-adaptive/internal/knowledge"
)

const difficultyStep = 0.5

// Answer is one entry of a learner's recent answer window.
type Answer struct {
	Correct   bool          `json:"isCorrect"`
	TimeSpent time.Duration `json:"timeSpent"`
}

// MasteryReader is the read side of the mastery tracker.
type MasteryReader interface {
	GetMastery(ctx context.Context, userID, knowledgeID string) float64
}

// Adjuster nudges target difficulty from recent accuracy.
type Adjuster struct {
	graph   knowledge.Reader
	tracker MasteryReader
}

// NewAdjuster creates an adjuster.
func NewAdjuster(graph knowledge.Reader, tracker MasteryReader) *Adjuster {
	return &Adjuster{graph: graph, tracker: tracker}
}

// AdjustDifficulty returns the next target difficulty for a knowledge point:
// its nominal difficulty raised by 0.5 when accuracy exceeds 80%, lowered by
// 0.5 below 50%, unchanged otherwise or for an empty window. Unknown
// knowledge points return 3.
func (a *Adjuster) AdjustDifficulty(ctx context.Context, userID, knowledgeID string, recent []Answer) float64 {
	node, err := a.graph.Node(ctx, knowledgeID)
	if err != nil {
		return neutralAbility
	}

	delta := 0.0
	if len(recent) > 0 {
		correct := 0
		for _, ans := range recent {
			if ans.Correct {
				correct++
			}
		}
		switch accuracy := float64(correct) / float64(len(recent)); {
		case accuracy > 0.8:
			delta = difficultyStep
		case accuracy < 0.5:
			delta = -difficultyStep
		}
	}

	return clamp(node.Difficulty+delta, knowledge.MinDifficulty, knowledge.MaxDifficulty)
}

// IsAppropriateDifficulty reports whether mastery sits in [0.2, 0.8].
func (a *Adjuster) IsAppropriateDifficulty(ctx context.Context, userID, knowledgeID string) bool {
	m := a.tracker.GetMastery(ctx, userID, knowledgeID)
	return m >= 0.2 && m <= 0.8
}

// AppropriateKnowledge picks the ID whose mastery is closest to 0.5. The
// first ID wins ties; an empty list yields "".
func (a *Adjuster) AppropriateKnowledge(ctx context.Context, userID string, ids []string) string {
	best, bestGap := "", math.Inf(1)
	for _, id := range ids {
		gap := math.Abs(a.tracker.GetMastery(ctx, userID, id) - 0.5)
		if gap < bestGap {
			best, bestGap = id, gap
		}
	}
	return best
}
