package recommend

import (
	"context"
	"time"

	"github.com/p-n-ai/pai-adaptive/internal/knowledge"
	"github.com/p-n-ai/pai-adaptive/internal/locale"
)

const (
	todayPlanSize      = 3
	minutesPerTopic    = 20
	minSuggestedMinute = 20
	maxSuggestedMinute = 60
	focusHintThreshold = 3
)

// Planner turns recommendations and progress into a daily study plan.
type Planner struct {
	engine *Engine
}

// NewPlanner creates a planner on engine.
func NewPlanner(engine *Engine) *Planner {
	return &Planner{engine: engine}
}

// TodayPlan returns the top three recommended knowledge points.
func (p *Planner) TodayPlan(ctx context.Context, userID string) []knowledge.Node {
	results := p.engine.Recommend(ctx, userID, todayPlanSize)
	nodes := make([]knowledge.Node, 0, len(results))
	for _, r := range results {
		nodes = append(nodes, r.Node)
	}
	return nodes
}

// SuggestedDuration allows 20 minutes per unstarted topic, between 20 and
// 60 minutes.
func (p *Planner) SuggestedDuration(ctx context.Context, userID string) time.Duration {
	notStarted := p.engine.LearningProgress(ctx, userID).NotStarted
	minutes := min(maxSuggestedMinute, max(minSuggestedMinute, notStarted*minutesPerTopic))
	return time.Duration(minutes) * time.Minute
}

// Advice returns encouragement for the learner's progress band, plus a
// focus hint when many topics are open at once.
func (p *Planner) Advice(ctx context.Context, userID string) []string {
	pr := p.engine.LearningProgress(ctx, userID)
	pt := locale.PrinterFor(ctx)

	var advice []string
	switch {
	case pr.Percentage < 20:
		advice = append(advice, pt.Sprintf(locale.StartBasics))
	case pr.Percentage < 50:
		advice = append(advice, pt.Sprintf(locale.KeepPace))
	case pr.Percentage < 80:
		advice = append(advice, pt.Sprintf(locale.NearlyDone))
	default:
		advice = append(advice, pt.Sprintf(locale.GradeDone))
	}

	if pr.InProgress > focusHintThreshold {
		advice = append(advice, pt.Sprintf(locale.FocusHint))
	}
	return advice
}
