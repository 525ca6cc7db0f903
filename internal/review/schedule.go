package review

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when a schedule does not exist for the user.
	ErrNotFound = errors.New("review schedule not found")
	// ErrAlreadyCompleted is returned when completing a finished schedule.
	ErrAlreadyCompleted = errors.New("review already completed")
	// ErrInvalidInput is returned for empty IDs, negative stages and unknown
	// performance ratings.
	ErrInvalidInput = errors.New("invalid input")
)

// Performance is the learner's self-assessed recall.
type Performance string

const (
	Excellent Performance = "excellent"
	Good      Performance = "good"
	Fair      Performance = "fair"
	Poor      Performance = "poor"
)

// Quality maps a performance rating to an SM-2 quality score.
func (p Performance) Quality() (int, bool) {
	switch p {
	case Excellent:
		return 5, true
	case Good:
		return 4, true
	case Fair:
		return 3, true
	case Poor:
		return 1, true
	default:
		return 0, false
	}
}

// Schedule is one planned review in a knowledge point's review lineage.
type Schedule struct {
	ID           string      `json:"id"`
	UserID       string      `json:"userId"`
	KnowledgeID  string      `json:"knowledgeId"`
	Stage        int         `json:"reviewStage"`
	ScheduledAt  time.Time   `json:"scheduledAt"`
	CompletedAt  *time.Time  `json:"completedAt,omitempty"`
	Performance  Performance `json:"performance,omitempty"`
	Quality      int         `json:"quality,omitempty"`
	IntervalDays int         `json:"intervalDays"`
	EaseFactor   float64     `json:"easeFactor"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Pending reports whether the review has not been completed.
func (s Schedule) Pending() bool {
	return s.CompletedAt == nil
}

// Store persists review schedules.
type Store interface {
	Save(ctx context.Context, s Schedule) error
	// Complete stores the completion of s only while the stored schedule is
	// still pending, returning ErrAlreadyCompleted otherwise.
	Complete(ctx context.Context, s Schedule) error
	Get(ctx context.Context, id string) (Schedule, error)
	ListByUser(ctx context.Context, userID string) ([]Schedule, error)
	// DueUsers lists users with a pending review scheduled at or before t.
	DueUsers(ctx context.Context, t time.Time) ([]string, error)
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu        sync.RWMutex
	schedules map[string]Schedule
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{schedules: make(map[string]Schedule)}
}

func (s *MemoryStore) Save(_ context.Context, sc Schedule) error {
	if sc.ID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	s.schedules[sc.ID] = sc
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Complete(_ context.Context, sc Schedule) error {
	if sc.ID == "" || sc.CompletedAt == nil {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.schedules[sc.ID]
	if !ok {
		return ErrNotFound
	}
	if !cur.Pending() {
		return ErrAlreadyCompleted
	}
	s.schedules[sc.ID] = sc
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.schedules[id]
	if !ok {
		return Schedule{}, ErrNotFound
	}
	return sc, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Schedule
	for _, sc := range s.schedules {
		if sc.UserID == userID {
			out = append(out, sc)
		}
	}
	sortSchedules(out)
	return out, nil
}

func (s *MemoryStore) DueUsers(_ context.Context, t time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, sc := range s.schedules {
		if sc.Pending() && !sc.ScheduledAt.After(t) && !seen[sc.UserID] {
			seen[sc.UserID] = true
			out = append(out, sc.UserID)
		}
	}
	slices.Sort(out)
	return out, nil
}

func sortSchedules(s []Schedule) {
	slices.SortFunc(s, func(a, b Schedule) int {
		if c := a.ScheduledAt.Compare(b.ScheduledAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
