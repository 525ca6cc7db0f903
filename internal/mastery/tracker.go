package mastery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/p-n-ai/pai-adaptive/internal/keylock"
	"github.com/p-n-ai/pai-adaptive/internal/profile"
)

// nextReviewPlaceholder is stamped on every update until the review
// scheduler supplies a model-driven date.
const nextReviewPlaceholder = 24 * time.Hour

// TrackerConfig configures a Tracker. Every field is optional.
type TrackerConfig struct {
	Store  Store
	Events EventLogger
	Grades profile.Resolver
	Now    func() time.Time
}

// Tracker maintains mastery estimates in a write-through cache over Store.
// Updates to the same (user, knowledge point) pair are serialised; other
// pairs proceed in parallel.
type Tracker struct {
	store  Store
	events EventLogger
	grades profile.Resolver
	now    func() time.Time

	mu       sync.RWMutex
	cache    map[string]map[string]Record
	complete map[string]bool

	paramMu   sync.RWMutex
	overrides map[string]ParameterOverride

	locks keylock.Map[recordKey]
	loads singleflight.Group
}

// NewTracker creates a tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	t := &Tracker{
		store:     cfg.Store,
		events:    cfg.Events,
		grades:    cfg.Grades,
		now:       cfg.Now,
		cache:     make(map[string]map[string]Record),
		complete:  make(map[string]bool),
		overrides: make(map[string]ParameterOverride),
	}
	if t.events == nil {
		t.events = NopEventLogger{}
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// UpdateMastery records one answer and returns the new state. The first
// answer for a pair starts from PInit and applies one update step.
func (t *Tracker) UpdateMastery(ctx context.Context, userID, knowledgeID string, correct bool, timeSpent time.Duration) (Record, error) {
	return t.observe(ctx, userID, knowledgeID, correct, timeSpent, EventAnswer)
}

// RecordReview treats a completed review as a successful recall.
func (t *Tracker) RecordReview(ctx context.Context, userID, knowledgeID string) (Record, error) {
	return t.observe(ctx, userID, knowledgeID, true, 0, EventReview)
}

func (t *Tracker) observe(ctx context.Context, userID, knowledgeID string, correct bool, timeSpent time.Duration, eventType string) (Record, error) {
	if userID == "" || knowledgeID == "" {
		return Record{}, fmt.Errorf("%w: user and knowledge IDs are required", ErrInvalidInput)
	}

	key := recordKey{userID, knowledgeID}
	unlock := t.lock(key)
	defer unlock()

	params := t.Parameters(ctx, userID)
	now := t.now()

	rec, ok := t.load(ctx, key)
	if ok {
		rec.ReviewCount++
	} else {
		rec = Record{
			UserID:      userID,
			KnowledgeID: knowledgeID,
			Mastery:     params.PInit,
			CreatedAt:   now,
		}
	}

	before := rec.Mastery
	rec.Mastery = Update(rec.Mastery, correct, params)
	rec.Attempts++
	if correct {
		rec.Correct++
	}
	rec.LastAttemptAt = now
	rec.LastReviewAt = now
	rec.UpdatedAt = now
	rec.NextReviewAt = now.Add(nextReviewPlaceholder)

	t.put(rec)
	t.persist(ctx, rec)

	if err := t.events.LogEvent(ctx, Event{
		UserID:      userID,
		KnowledgeID: knowledgeID,
		EventType:   eventType,
		Data: map[string]any{
			"correct":       correct,
			"time_spent_ms": timeSpent.Milliseconds(),
			"mastery_from":  before,
			"mastery_to":    rec.Mastery,
		},
		CreatedAt: now,
	}); err != nil {
		slog.Warn("failed to log answer event", "user_id", userID, "knowledge_id", knowledgeID, "error", err)
	}

	return rec, nil
}

// GetMastery returns the recorded mastery, or DefaultMastery when the pair
// has no record or the store is unavailable.
func (t *Tracker) GetMastery(ctx context.Context, userID, knowledgeID string) float64 {
	if rec, ok := t.load(ctx, recordKey{userID, knowledgeID}); ok {
		return rec.Mastery
	}
	return DefaultMastery
}

// Lookup returns the recorded state for a pair, if any.
func (t *Tracker) Lookup(ctx context.Context, userID, knowledgeID string) (Record, bool) {
	return t.load(ctx, recordKey{userID, knowledgeID})
}

// GetAllMasteries returns every recorded pair for userID keyed by
// knowledge ID.
func (t *Tracker) GetAllMasteries(ctx context.Context, userID string) map[string]Record {
	t.mu.RLock()
	complete := t.complete[userID]
	t.mu.RUnlock()

	if t.store != nil && !complete {
		recs, err := t.store.ListByUser(ctx, userID)
		if err != nil {
			slog.Warn("failed to list mastery records", "user_id", userID, "error", err)
		} else {
			t.mu.Lock()
			for _, rec := range recs {
				if _, cached := t.cache[userID][rec.KnowledgeID]; !cached {
					t.putLocked(rec)
				}
			}
			t.complete[userID] = true
			t.mu.Unlock()
		}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Record, len(t.cache[userID]))
	for id, rec := range t.cache[userID] {
		out[id] = rec
	}
	return out
}

// PredictCorrectness estimates the chance of a correct next answer.
func (t *Tracker) PredictCorrectness(ctx context.Context, userID, knowledgeID string) float64 {
	return Predict(t.GetMastery(ctx, userID, knowledgeID), t.Parameters(ctx, userID))
}

// ConfidenceInterval bounds the mastery estimate. Pairs with fewer than
// three attempts get [0,1].
func (t *Tracker) ConfidenceInterval(ctx context.Context, userID, knowledgeID string, confidence float64) (lo, hi float64) {
	rec, ok := t.load(ctx, recordKey{userID, knowledgeID})
	if !ok {
		return 0, 1
	}
	return Interval(rec.Mastery, rec.Attempts, confidence)
}

// SetParameters merges override into the learner's existing override.
func (t *Tracker) SetParameters(userID string, override ParameterOverride) error {
	if userID == "" {
		return fmt.Errorf("%w: user ID is required", ErrInvalidInput)
	}
	if err := override.validate(); err != nil {
		return err
	}

	t.paramMu.Lock()
	t.overrides[userID] = t.overrides[userID].merge(override)
	t.paramMu.Unlock()
	return nil
}

// Parameters resolves the learner's BKT tuple: the learner override on top
// of the grade default, or the global default when the grade is unknown.
func (t *Tracker) Parameters(ctx context.Context, userID string) Parameters {
	base := DefaultParameters
	if t.grades != nil {
		grade, ok, err := t.grades.Lookup(ctx, userID)
		switch {
		case err != nil:
			slog.Warn("grade lookup failed, using default parameters", "user_id", userID, "error", err)
		case ok:
			base, _ = GradeParameters(grade)
		}
	}

	t.paramMu.RLock()
	override, ok := t.overrides[userID]
	t.paramMu.RUnlock()
	if ok {
		base = override.apply(base)
	}
	return base
}

// ScheduleReview replaces the placeholder next-review date of a recorded
// pair.
func (t *Tracker) ScheduleReview(ctx context.Context, userID, knowledgeID string, at time.Time) error {
	key := recordKey{userID, knowledgeID}
	unlock := t.lock(key)
	defer unlock()

	rec, ok := t.load(ctx, key)
	if !ok {
		return fmt.Errorf("schedule review for %s/%s: %w", userID, knowledgeID, ErrNotFound)
	}
	rec.NextReviewAt = at
	rec.UpdatedAt = t.now()

	t.put(rec)
	t.persist(ctx, rec)
	return nil
}

func (t *Tracker) load(ctx context.Context, key recordKey) (Record, bool) {
	t.mu.RLock()
	rec, ok := t.cache[key.user][key.knowledge]
	complete := t.complete[key.user]
	t.mu.RUnlock()
	if ok {
		return rec, true
	}
	if t.store == nil || complete {
		return Record{}, false
	}

	// Shared by every waiter, so one caller's cancellation must not fail
	// the others.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := t.loads.Do(key.user+"\x00"+key.knowledge, func() (any, error) {
		rec, err := t.store.Get(loadCtx, key.user, key.knowledge)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		if cached, ok := t.cache[key.user][key.knowledge]; ok {
			return cached, nil
		}
		t.putLocked(rec)
		return rec, nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("failed to load mastery record", "user_id", key.user, "knowledge_id", key.knowledge, "error", err)
		}
		return Record{}, false
	}
	return v.(Record), true
}

func (t *Tracker) put(rec Record) {
	t.mu.Lock()
	t.putLocked(rec)
	t.mu.Unlock()
}

func (t *Tracker) putLocked(rec Record) {
	byKnowledge, ok := t.cache[rec.UserID]
	if !ok {
		byKnowledge = make(map[string]Record)
		t.cache[rec.UserID] = byKnowledge
	}
	byKnowledge[rec.KnowledgeID] = rec
}

func (t *Tracker) persist(ctx context.Context, rec Record) {
	if t.store == nil {
		return
	}
	if err := t.store.Upsert(ctx, rec); err != nil {
		slog.Warn("failed to persist mastery record",
			"user_id", rec.UserID,
			"knowledge_id", rec.KnowledgeID,
			"error", err,
		)
	}
}

func (t *Tracker) lock(key recordKey) func() {
	return t.locks.Lock(key)
}
