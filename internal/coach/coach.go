// Package coach writes short encouragement for a learner from their
// progress, today's plan and pending reviews.
package coach

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/p-n-ai/pai-adaptive/internal/ai"
	"github.com/p-n-ai/pai-adaptive/internal/knowledge"
	"github.com/p-n-ai/pai-adaptive/internal/locale"
	"github.com/p-n-ai/pai-adaptive/internal/recommend"
)

const requestTimeout = 20 * time.Second

// Sources of an Encouragement.
const (
	SourceAI       = "ai"
	SourceTemplate = "template"
)

// Completer is the AI gateway surface the coach uses.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
	HasProvider() bool
}

// ReviewLister lists the knowledge points a learner should review today.
type ReviewLister interface {
	TodayReviews(ctx context.Context, userID string) []knowledge.Node
}

// Config holds the coach's collaborators. AI and Reviews are optional.
type Config struct {
	AI      Completer
	Engine  *recommend.Engine
	Planner *recommend.Planner
	Reviews ReviewLister
}

// Encouragement is what the coach says to a learner.
type Encouragement struct {
	Message string           `json:"message"`
	Source  string           `json:"source"`
	Plan    []knowledge.Node `json:"plan"`
	Advice  []string         `json:"advice"`
}

// Coach composes encouragement, preferring AI text and falling back to the
// planner's templated advice.
type Coach struct {
	ai      Completer
	engine  *recommend.Engine
	planner *recommend.Planner
	reviews ReviewLister
}

// New creates a coach.
func New(cfg Config) *Coach {
	planner := cfg.Planner
	if planner == nil {
		planner = recommend.NewPlanner(cfg.Engine)
	}
	return &Coach{
		ai:      cfg.AI,
		engine:  cfg.Engine,
		planner: planner,
		reviews: cfg.Reviews,
	}
}

// Encourage never fails: any AI problem yields the templated advice.
func (c *Coach) Encourage(ctx context.Context, userID string) Encouragement {
	plan := c.planner.TodayPlan(ctx, userID)
	advice := c.planner.Advice(ctx, userID)
	out := Encouragement{
		Message: strings.Join(advice, locale.PrinterFor(ctx).Sprintf(locale.ReasonSeparator)),
		Source:  SourceTemplate,
		Plan:    plan,
		Advice:  advice,
	}

	if c.ai == nil || !c.ai.HasProvider() {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.ai.Complete(ctx, ai.CompletionRequest{
		Messages: c.prompt(ctx, userID, plan),
		Task:     ai.TaskNudge,
		UserID:   userID,
	})
	if err != nil {
		slog.Warn("AI encouragement failed, using template", "user_id", userID, "error", err)
		return out
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		slog.Warn("AI encouragement was empty, using template", "user_id", userID)
		return out
	}

	out.Message = text
	out.Source = SourceAI
	return out
}

func (c *Coach) prompt(ctx context.Context, userID string, plan []knowledge.Node) []ai.Message {
	p := locale.PrinterFor(ctx)
	progress := c.engine.LearningProgress(ctx, userID)

	var user strings.Builder
	user.WriteString(p.Sprintf(locale.CoachProgress,
		progress.Mastered, progress.Total, progress.Percentage, progress.InProgress))
	if len(plan) > 0 {
		names := make([]string, len(plan))
		for i, n := range plan {
			names[i] = n.Name
		}
		user.WriteString("\n")
		user.WriteString(p.Sprintf(locale.CoachPlan, strings.Join(names, p.Sprintf(locale.ReasonSeparator))))
	}
	if c.reviews != nil {
		user.WriteString("\n")
		user.WriteString(p.Sprintf(locale.CoachReviews, len(c.reviews.TodayReviews(ctx, userID))))
	}

	return []ai.Message{
		ai.SystemMessage(p.Sprintf(locale.CoachSystem, c.engine.Grade(ctx, userID))),
		ai.UserMessage(user.String()),
	}
}
