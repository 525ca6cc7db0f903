// Package recommend ranks the knowledge points a learner should study next
// and derives progress statistics, difficulty nudges and a daily plan.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/message"

	"github.com/p-n-ai/pai-adaptive/internal/knowledge"
	"github.com/p-n-ai/pai-adaptive/internal/locale"
	"github.com/p-n-ai/pai-adaptive/internal/mastery"
	"github.com/p-n-ai/pai-adaptive/internal/profile"
)

// Thresholds on the mastery scale.
const (
	MasteredThreshold     = 0.9
	PrerequisiteThreshold = 0.7
	ProgressThreshold     = 0.8
)

const (
	// DefaultCount is used when Recommend is asked for zero or fewer items.
	DefaultCount = 5
	// DefaultGrade applies to learners with no grade on record.
	DefaultGrade = 4
	// neutralAbility is the mid-scale estimate used before any answers.
	neutralAbility = 3.0
)

var (
	// ErrUnknownAction is returned by RecordUserAction for unsupported actions.
	ErrUnknownAction = errors.New("unknown user action")
	// ErrInvalidWeights is returned by SetWeights.
	ErrInvalidWeights = errors.New("invalid priority weights")
)

// Weights balance the four priority factors.
type Weights struct {
	Mastery    float64 `json:"mastery"`
	Difficulty float64 `json:"difficulty"`
	Dependency float64 `json:"dependency"`
	Recency    float64 `json:"recency"`
}

// DefaultWeights favour low mastery, then difficulty fit.
var DefaultWeights = Weights{Mastery: 0.4, Difficulty: 0.3, Dependency: 0.2, Recency: 0.1}

func (w Weights) validate() error {
	for _, v := range []float64{w.Mastery, w.Difficulty, w.Dependency, w.Recency} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: negative weight", ErrInvalidWeights)
		}
	}
	if w.Mastery+w.Difficulty+w.Dependency+w.Recency == 0 {
		return fmt.Errorf("%w: all weights are zero", ErrInvalidWeights)
	}
	return nil
}

// Result is one ranked recommendation.
type Result struct {
	Node               knowledge.Node `json:"knowledgeNode"`
	Priority           float64        `json:"priority"`
	Reason             string         `json:"reason"`
	ExpectedDifficulty float64        `json:"expectedDifficulty"`
}

// Progress summarises a learner's standing in their grade.
type Progress struct {
	Total      int `json:"totalKnowledge"`
	Mastered   int `json:"masteredKnowledge"`
	InProgress int `json:"inProgress"`
	NotStarted int `json:"notStarted"`
	Percentage int `json:"progressPercentage"`
}

// Action is a learner activity reported to the engine.
type Action string

const (
	ActionAnswer Action = "answer"
	ActionLearn  Action = "learn"
	ActionReview Action = "review"
)

// ActionData carries the answer outcome for ActionAnswer.
type ActionData struct {
	Correct   bool
	TimeSpent time.Duration
}

// Tracker is the mastery surface the engine reads and writes.
type Tracker interface {
	GetMastery(ctx context.Context, userID, knowledgeID string) float64
	GetAllMasteries(ctx context.Context, userID string) map[string]mastery.Record
	UpdateMastery(ctx context.Context, userID, knowledgeID string, correct bool, timeSpent time.Duration) (mastery.Record, error)
	RecordReview(ctx context.Context, userID, knowledgeID string) (mastery.Record, error)
}

// EngineConfig configures an Engine. Graph and Tracker are required.
type EngineConfig struct {
	Graph        knowledge.Reader
	Tracker      Tracker
	Grades       profile.Resolver
	DefaultGrade int
	Weights      Weights
	Now          func() time.Time
}

// Engine ranks candidate knowledge points for a learner.
type Engine struct {
	graph        knowledge.Reader
	tracker      Tracker
	grades       profile.Resolver
	defaultGrade int
	now          func() time.Time

	mu        sync.RWMutex
	weights   Weights
	lastStudy map[string]time.Time
}

// NewEngine creates an engine.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		graph:        cfg.Graph,
		tracker:      cfg.Tracker,
		grades:       cfg.Grades,
		defaultGrade: cfg.DefaultGrade,
		now:          cfg.Now,
		weights:      cfg.Weights,
		lastStudy:    make(map[string]time.Time),
	}
	if e.defaultGrade == 0 {
		e.defaultGrade = DefaultGrade
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.weights.validate() != nil {
		e.weights = DefaultWeights
	}
	return e
}

// snapshot is one consistent read of a learner's mastery records.
type snapshot map[string]mastery.Record

func (s snapshot) mastery(id string) float64 {
	if rec, ok := s[id]; ok {
		return rec.Mastery
	}
	return mastery.DefaultMastery
}

// Recommend returns up to count candidates ordered by descending priority.
func (e *Engine) Recommend(ctx context.Context, userID string, count int) []Result {
	if count <= 0 {
		count = DefaultCount
	}

	grade := e.grade(ctx, userID)
	path, err := e.graph.LearningPath(ctx, grade)
	if err != nil {
		slog.Warn("learning path unavailable", "user_id", userID, "grade", grade, "error", err)
		return []Result{}
	}

	snap := snapshot(e.tracker.GetAllMasteries(ctx, userID))
	ability := e.ability(ctx, grade, snap)
	recency := e.recency(userID)
	w := e.Weights()
	p := locale.PrinterFor(ctx)

	results := make([]Result, 0, len(path))
	for _, node := range path {
		m := snap.mastery(node.ID)
		if m >= MasteredThreshold {
			continue
		}

		prereqs, err := e.graph.Prerequisites(ctx, node.ID)
		if err != nil {
			slog.Warn("prerequisites unavailable", "knowledge_id", node.ID, "error", err)
			continue
		}
		if missingPrerequisites(prereqs, snap) > 0 {
			continue
		}

		dependents, err := e.graph.Dependents(ctx, node.ID)
		if err != nil {
			slog.Warn("dependents unavailable", "knowledge_id", node.ID, "error", err)
		}

		score := (1-m)*100*w.Mastery +
			(5-math.Abs(node.Difficulty-ability))*20*w.Difficulty +
			math.Min(float64(len(dependents))*10, 100)*w.Dependency +
			recency*100*w.Recency

		results = append(results, Result{
			Node:               node,
			Priority:           clamp(score, 0, 100),
			Reason:             reason(p, node, m, prereqs, snap),
			ExpectedDifficulty: predictDifficulty(node.Difficulty, ability, m),
		})
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Priority > b.Priority:
			return -1
		case a.Priority < b.Priority:
			return 1
		}
		return 0
	})

	if len(results) > count {
		results = results[:count]
	}
	return results
}

// NextRecommendation returns the single highest-priority candidate.
func (e *Engine) NextRecommendation(ctx context.Context, userID string) (knowledge.Node, bool) {
	results := e.Recommend(ctx, userID, 1)
	if len(results) == 0 {
		return knowledge.Node{}, false
	}
	return results[0].Node, true
}

// Reason explains why a knowledge point is suggested. Unknown IDs yield the
// localized "knowledge point not found" sentinel.
func (e *Engine) Reason(ctx context.Context, userID, knowledgeID string) string {
	p := locale.PrinterFor(ctx)

	node, err := e.graph.Node(ctx, knowledgeID)
	if err != nil {
		return p.Sprintf(locale.NodeNotFound)
	}
	prereqs, err := e.graph.Prerequisites(ctx, knowledgeID)
	if err != nil {
		slog.Warn("prerequisites unavailable", "knowledge_id", knowledgeID, "error", err)
	}

	snap := snapshot(e.tracker.GetAllMasteries(ctx, userID))
	return reason(p, node, snap.mastery(knowledgeID), prereqs, snap)
}

// EstimatedAbility is the mastery-weighted mean difficulty of the grade's
// practised knowledge points, clamped to [1,5]. Unpractised points carry no
// evidence and are left out rather than weighted at the 0.5 prior. It is 3
// without data.
func (e *Engine) EstimatedAbility(ctx context.Context, userID string) float64 {
	snap := snapshot(e.tracker.GetAllMasteries(ctx, userID))
	return e.ability(ctx, e.grade(ctx, userID), snap)
}

// PredictDifficulty estimates how hard a knowledge point will feel: the
// nominal difficulty pulled toward the learner's ability by (1 - mastery).
func (e *Engine) PredictDifficulty(ctx context.Context, userID, knowledgeID string) float64 {
	node, err := e.graph.Node(ctx, knowledgeID)
	if err != nil {
		return neutralAbility
	}
	snap := snapshot(e.tracker.GetAllMasteries(ctx, userID))
	ability := e.ability(ctx, e.grade(ctx, userID), snap)
	return predictDifficulty(node.Difficulty, ability, snap.mastery(knowledgeID))
}

// RecordUserAction routes a learner action to the tracker and stamps the
// learner's last-study time.
func (e *Engine) RecordUserAction(ctx context.Context, userID string, action Action, knowledgeID string, data ActionData) error {
	switch action {
	case ActionAnswer:
		if _, err := e.tracker.UpdateMastery(ctx, userID, knowledgeID, data.Correct, data.TimeSpent); err != nil {
			return fmt.Errorf("record answer: %w", err)
		}
	case ActionReview:
		if _, err := e.tracker.RecordReview(ctx, userID, knowledgeID); err != nil {
			return fmt.Errorf("record review: %w", err)
		}
	case ActionLearn:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	e.mu.Lock()
	e.lastStudy[userID] = e.now()
	e.mu.Unlock()
	return nil
}

// LearningProgress buckets the grade's knowledge points by recorded mastery.
// Knowledge points the learner has never practised count as not started,
// even though GetMastery reports the 0.5 prior for them: the prior is a
// model assumption, not progress.
func (e *Engine) LearningProgress(ctx context.Context, userID string) Progress {
	grade := e.grade(ctx, userID)
	nodes, err := e.graph.NodesByGrade(ctx, grade)
	if err != nil {
		slog.Warn("grade nodes unavailable", "user_id", userID, "grade", grade, "error", err)
		return Progress{}
	}

	snap := snapshot(e.tracker.GetAllMasteries(ctx, userID))
	var pr Progress
	pr.Total = len(nodes)
	for _, n := range nodes {
		rec, ok := snap[n.ID]
		switch {
		case !ok:
		case rec.Mastery >= ProgressThreshold:
			pr.Mastered++
		case rec.Mastery > 0:
			pr.InProgress++
		}
	}
	pr.NotStarted = pr.Total - pr.Mastered - pr.InProgress
	if pr.Total > 0 {
		pr.Percentage = int(math.Floor(float64(pr.Mastered)/float64(pr.Total)*100 + 0.5))
	}
	return pr
}

// SetWeights replaces the priority weights.
func (e *Engine) SetWeights(w Weights) error {
	if err := w.validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.weights = w
	e.mu.Unlock()
	return nil
}

// Weights returns the current priority weights.
func (e *Engine) Weights() Weights {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weights
}

// SetUserGrade records the learner's grade with the profile resolver.
func (e *Engine) SetUserGrade(ctx context.Context, userID string, grade int) error {
	if e.grades == nil {
		return fmt.Errorf("no grade resolver configured")
	}
	return e.grades.SetGrade(ctx, userID, grade)
}

// Grade returns the learner's grade, or the configured default.
func (e *Engine) Grade(ctx context.Context, userID string) int {
	return e.grade(ctx, userID)
}

func (e *Engine) grade(ctx context.Context, userID string) int {
	return profile.GradeOr(ctx, e.grades, userID, e.defaultGrade)
}

func (e *Engine) ability(ctx context.Context, grade int, snap snapshot) float64 {
	nodes, err := e.graph.NodesByGrade(ctx, grade)
	if err != nil {
		slog.Warn("grade nodes unavailable", "grade", grade, "error", err)
		return neutralAbility
	}

	var weighted, total float64
	for _, n := range nodes {
		rec, ok := snap[n.ID]
		if !ok {
			continue
		}
		weighted += n.Difficulty * rec.Mastery
		total += rec.Mastery
	}
	if total == 0 {
		return neutralAbility
	}
	return clamp(weighted/total, knowledge.MinDifficulty, knowledge.MaxDifficulty)
}

// recency is the fraction of a day since the learner last studied, capped
// at 1. Learners who never studied score 1.
func (e *Engine) recency(userID string) float64 {
	e.mu.RLock()
	last, ok := e.lastStudy[userID]
	e.mu.RUnlock()
	if !ok {
		return 1
	}
	return clamp(e.now().Sub(last).Hours()/24, 0, 1)
}

func missingPrerequisites(prereqs []knowledge.Node, snap snapshot) int {
	missing := 0
	for _, pre := range prereqs {
		if snap.mastery(pre.ID) < PrerequisiteThreshold {
			missing++
		}
	}
	return missing
}

func reason(p *message.Printer, node knowledge.Node, m float64, prereqs []knowledge.Node, snap snapshot) string {
	var parts []string
	switch {
	case m < 0.3:
		parts = append(parts, p.Sprintf(locale.NeedsReinforcement))
	case m < 0.7:
		parts = append(parts, p.Sprintf(locale.InProgress))
	default:
		parts = append(parts, p.Sprintf(locale.FinalStretch))
	}

	if len(prereqs) > 0 {
		if missing := missingPrerequisites(prereqs, snap); missing == 0 {
			parts = append(parts, p.Sprintf(locale.PrereqsMet))
		} else {
			parts = append(parts, p.Sprintf(locale.PrereqsMissing, missing))
		}
	}

	switch {
	case node.Difficulty <= 2:
		parts = append(parts, p.Sprintf(locale.EntryPoint))
	case node.Difficulty >= 4:
		parts = append(parts, p.Sprintf(locale.Challenging))
	}

	return strings.Join(parts, p.Sprintf(locale.ReasonSeparator))
}

func predictDifficulty(d, ability, m float64) float64 {
	return clamp(d+(ability-d)*(1-m), knowledge.MinDifficulty, knowledge.MaxDifficulty)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
