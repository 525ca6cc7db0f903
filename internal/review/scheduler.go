package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-adaptive/internal/keylock"
	"github.com/p-n-ai/pai-adaptive/internal/knowledge"
	"github.com/p-n-ai/pai-adaptive/internal/locale"
	"github.com/p-n-ai/pai-adaptive/internal/mastery"
	"github.com/p-n-ai/pai-adaptive/internal/profile"
)

// DefaultMemoryStrength is the forgetting-curve constant in days.
const DefaultMemoryStrength = 30.0

// onTimeGrace is how late a completed review may be and still count as on
// time.
const onTimeGrace = 24 * time.Hour

// Urgency grades a review reminder.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Reminder is the learner-facing summary of today's reviews.
type Reminder struct {
	Message    string           `json:"message"`
	Urgency    Urgency          `json:"urgency"`
	DueReviews []knowledge.Node `json:"dueReviews"`
}

// Stats summarises a learner's review history.
type Stats struct {
	Total      int     `json:"totalReviews"`
	Completed  int     `json:"completedReviews"`
	Pending    int     `json:"pendingReviews"`
	Overdue    int     `json:"overdueReviews"`
	OnTimeRate float64 `json:"onTimeRate"`
}

// Completion is the outcome of CompleteReview.
type Completion struct {
	Completed Schedule `json:"completed"`
	Next      Schedule `json:"next"`
	Passed    bool     `json:"passed"`
}

// Tracker is the part of the mastery tracker the scheduler drives.
type Tracker interface {
	RecordReview(ctx context.Context, userID, knowledgeID string) (mastery.Record, error)
	ScheduleReview(ctx context.Context, userID, knowledgeID string, at time.Time) error
}

// SchedulerConfig configures a Scheduler. Graph is required for TodayReviews
// and Reminder; the rest is optional.
type SchedulerConfig struct {
	Store          Store
	Graph          knowledge.Reader
	Grades         profile.Resolver
	Tracker        Tracker
	MemoryStrength float64
	Now            func() time.Time
}

// Scheduler plans and advances review lineages.
type Scheduler struct {
	store          Store
	graph          knowledge.Reader
	grades         profile.Resolver
	tracker        Tracker
	memoryStrength float64
	now            func() time.Time

	mu            sync.RWMutex
	memoryFactors map[string]float64

	completions keylock.Map[string]
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	s := &Scheduler{
		store:          cfg.Store,
		graph:          cfg.Graph,
		grades:         cfg.Grades,
		tracker:        cfg.Tracker,
		memoryStrength: cfg.MemoryStrength,
		now:            cfg.Now,
		memoryFactors:  make(map[string]float64),
	}
	if s.memoryStrength <= 0 {
		s.memoryStrength = DefaultMemoryStrength
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SetMemoryFactor scales the learner's stage intervals. Factors must be
// positive.
func (s *Scheduler) SetMemoryFactor(userID string, factor float64) error {
	if userID == "" || factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return fmt.Errorf("%w: memory factor %v", ErrInvalidInput, factor)
	}
	s.mu.Lock()
	s.memoryFactors[userID] = factor
	s.mu.Unlock()
	return nil
}

// IntervalDays returns the grade- and memory-adjusted stage interval, at
// least one day. Each scaling step rounds half up.
func (s *Scheduler) IntervalDays(ctx context.Context, userID string, stage int) int {
	grade := profile.GradeOr(ctx, s.grades, userID, 0)
	days := roundHalfUp(standardInterval(stage) * gradeFactor(grade))

	s.mu.RLock()
	factor, ok := s.memoryFactors[userID]
	s.mu.RUnlock()
	if ok {
		days = roundHalfUp(days * factor)
	}
	return max(MinInterval, int(days))
}

// CalculateNextReview returns when a review at the zero-based stage should
// happen.
func (s *Scheduler) CalculateNextReview(ctx context.Context, userID, knowledgeID string, stage int) time.Time {
	return s.now().AddDate(0, 0, s.IntervalDays(ctx, userID, stage))
}

// CreateReviewSchedule starts or continues a lineage at stage. The stage
// table seeds the interval and the ease factor starts at 2.5. Persistence
// failures are logged and the schedule is still returned.
func (s *Scheduler) CreateReviewSchedule(ctx context.Context, userID, knowledgeID string, stage int) (Schedule, error) {
	if userID == "" || knowledgeID == "" || stage < 0 {
		return Schedule{}, fmt.Errorf("%w: user, knowledge point and a non-negative stage are required", ErrInvalidInput)
	}

	now := s.now()
	days := s.IntervalDays(ctx, userID, stage)
	sc := Schedule{
		ID:           uuid.NewString(),
		UserID:       userID,
		KnowledgeID:  knowledgeID,
		Stage:        stage,
		ScheduledAt:  now.AddDate(0, 0, days),
		IntervalDays: days,
		EaseFactor:   DefaultEaseFactor,
		CreatedAt:    now,
	}

	s.save(ctx, sc)
	s.syncTracker(ctx, sc)
	return sc, nil
}

// CompleteReview rates a pending review and schedules the next one with
// SM-2. A pass advances the stage; a fail resets it to zero with a one-day
// interval.
func (s *Scheduler) CompleteReview(ctx context.Context, userID, reviewID string, perf Performance) (Completion, error) {
	quality, ok := perf.Quality()
	if !ok {
		return Completion{}, fmt.Errorf("%w: performance %q", ErrInvalidInput, perf)
	}
	if s.store == nil {
		return Completion{}, fmt.Errorf("complete review %s: %w", reviewID, ErrNotFound)
	}

	unlock := s.completions.Lock(reviewID)
	defer unlock()

	sc, err := s.store.Get(ctx, reviewID)
	if err != nil {
		return Completion{}, fmt.Errorf("complete review %s: %w", reviewID, err)
	}
	if sc.UserID != userID {
		return Completion{}, fmt.Errorf("complete review %s: %w", reviewID, ErrNotFound)
	}
	if !sc.Pending() {
		return Completion{}, fmt.Errorf("complete review %s: %w", reviewID, ErrAlreadyCompleted)
	}

	now := s.now()
	interval, ef := NextInterval(quality, sc.IntervalDays, sc.EaseFactor)
	passed := quality >= passQuality

	sc.CompletedAt = &now
	sc.Performance = perf
	sc.Quality = quality
	// The conditional write guards against other processes sharing the store.
	if err := s.store.Complete(ctx, sc); err != nil {
		return Completion{}, fmt.Errorf("complete review %s: %w", reviewID, err)
	}

	nextStage := 0
	if passed {
		nextStage = sc.Stage + 1
	}
	next := Schedule{
		ID:           uuid.NewString(),
		UserID:       sc.UserID,
		KnowledgeID:  sc.KnowledgeID,
		Stage:        nextStage,
		ScheduledAt:  now.AddDate(0, 0, interval),
		IntervalDays: interval,
		EaseFactor:   ef,
		CreatedAt:    now,
	}
	s.save(ctx, next)

	if passed && s.tracker != nil {
		if _, err := s.tracker.RecordReview(ctx, sc.UserID, sc.KnowledgeID); err != nil {
			slog.Warn("failed to record review recall", "user_id", sc.UserID, "knowledge_id", sc.KnowledgeID, "error", err)
		}
	}
	s.syncTracker(ctx, next)

	slog.Info("review completed",
		"user_id", sc.UserID,
		"knowledge_id", sc.KnowledgeID,
		"quality", quality,
		"next_stage", next.Stage,
		"interval_days", interval,
		"ease_factor", ef,
	)
	return Completion{Completed: sc, Next: next, Passed: passed}, nil
}

// TodayReviews returns the knowledge points with a pending review due by the
// end of today, earliest first. Without a store it returns an empty list.
func (s *Scheduler) TodayReviews(ctx context.Context, userID string) []knowledge.Node {
	due := s.dueSchedules(ctx, userID)
	nodes := make([]knowledge.Node, 0, len(due))
	if s.graph == nil {
		return nodes
	}

	seen := make(map[string]bool, len(due))
	for _, sc := range due {
		if seen[sc.KnowledgeID] {
			continue
		}
		seen[sc.KnowledgeID] = true

		n, err := s.graph.Node(ctx, sc.KnowledgeID)
		if err != nil {
			slog.Warn("review refers to unknown knowledge point", "knowledge_id", sc.KnowledgeID, "error", err)
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// Stats counts a learner's reviews. Without a store it returns zeros.
func (s *Scheduler) Stats(ctx context.Context, userID string) Stats {
	schedules := s.list(ctx, userID)
	now := s.now()

	var st Stats
	onTime := 0
	for _, sc := range schedules {
		st.Total++
		if sc.Pending() {
			st.Pending++
			if sc.ScheduledAt.Before(now) {
				st.Overdue++
			}
			continue
		}
		st.Completed++
		if !sc.CompletedAt.After(sc.ScheduledAt.Add(onTimeGrace)) {
			onTime++
		}
	}
	if st.Completed > 0 {
		st.OnTimeRate = float64(onTime) / float64(st.Completed)
	}
	return st
}

// PredictForgettingProbability returns 1 - e^(-t/S) for t days since the
// last review.
func (s *Scheduler) PredictForgettingProbability(days float64) float64 {
	if days <= 0 {
		return 0
	}
	return 1 - math.Exp(-days/s.memoryStrength)
}

// Reminder grades today's review load: none or up to three is low, up to
// seven is medium, more is high.
func (s *Scheduler) Reminder(ctx context.Context, userID string) Reminder {
	due := s.TodayReviews(ctx, userID)
	p := locale.PrinterFor(ctx)

	r := Reminder{DueReviews: due}
	switch n := len(due); {
	case n == 0:
		r.Urgency, r.Message = UrgencyLow, p.Sprintf(locale.NothingDue)
	case n <= 3:
		r.Urgency, r.Message = UrgencyLow, p.Sprintf(locale.FewDue, n)
	case n <= 7:
		r.Urgency, r.Message = UrgencyMedium, p.Sprintf(locale.SeveralDue, n)
	default:
		r.Urgency, r.Message = UrgencyHigh, p.Sprintf(locale.ManyDue, n)
	}
	return r
}

// DueUsers lists learners with a review pending by the end of today.
func (s *Scheduler) DueUsers(ctx context.Context) ([]string, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.DueUsers(ctx, s.endOfToday())
}

// Schedules lists a learner's reviews, earliest first.
func (s *Scheduler) Schedules(ctx context.Context, userID string) []Schedule {
	return s.list(ctx, userID)
}

func (s *Scheduler) dueSchedules(ctx context.Context, userID string) []Schedule {
	end := s.endOfToday()
	var due []Schedule
	for _, sc := range s.list(ctx, userID) {
		if sc.Pending() && !sc.ScheduledAt.After(end) {
			due = append(due, sc)
		}
	}
	sortSchedules(due)
	return due
}

func (s *Scheduler) list(ctx context.Context, userID string) []Schedule {
	if s.store == nil {
		return nil
	}
	schedules, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		slog.Warn("review schedules unavailable", "user_id", userID, "error", err)
		return nil
	}
	return schedules
}

func (s *Scheduler) endOfToday() time.Time {
	now := s.now()
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Add(-time.Nanosecond)
}

func (s *Scheduler) save(ctx context.Context, sc Schedule) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, sc); err != nil {
		slog.Warn("failed to persist review schedule", "id", sc.ID, "user_id", sc.UserID, "error", err)
	}
}

func (s *Scheduler) syncTracker(ctx context.Context, sc Schedule) {
	if s.tracker == nil {
		return
	}
	err := s.tracker.ScheduleReview(ctx, sc.UserID, sc.KnowledgeID, sc.ScheduledAt)
	if err != nil && !errors.Is(err, mastery.ErrNotFound) {
		slog.Warn("failed to sync next review date", "user_id", sc.UserID, "knowledge_id", sc.KnowledgeID, "error", err)
	}
}
