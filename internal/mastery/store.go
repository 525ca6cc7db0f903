package mastery

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned by stores when no record exists for a pair.
	ErrNotFound = errors.New("mastery record not found")
	// ErrInvalidInput is returned for empty identifiers or out-of-range
	// parameters.
	ErrInvalidInput = errors.New("invalid input")
)

// Record is the latest mastery state of one (user, knowledge point) pair.
type Record struct {
	UserID        string    `json:"userId"`
	KnowledgeID   string    `json:"knowledgeId"`
	Mastery       float64   `json:"mastery"`
	Attempts      int       `json:"attempts"`
	Correct       int       `json:"correct"`
	LastAttemptAt time.Time `json:"lastAttemptAt"`
	LastReviewAt  time.Time `json:"lastReviewAt"`
	ReviewCount   int       `json:"reviewCount"`
	NextReviewAt  time.Time `json:"nextReviewAt"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Store persists mastery records. Records are never deleted.
type Store interface {
	Get(ctx context.Context, userID, knowledgeID string) (Record, error)
	ListByUser(ctx context.Context, userID string) ([]Record, error)
	Upsert(ctx context.Context, rec Record) error
}

type recordKey struct {
	user, knowledge string
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[recordKey]Record)}
}

func (s *MemoryStore) Get(_ context.Context, userID, knowledgeID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordKey{userID, knowledgeID}]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for k, rec := range s.records {
		if k.user == userID {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b Record) int {
		return cmp.Compare(a.KnowledgeID, b.KnowledgeID)
	})
	return out, nil
}

func (s *MemoryStore) Upsert(_ context.Context, rec Record) error {
	if rec.UserID == "" || rec.KnowledgeID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	s.records[recordKey{rec.UserID, rec.KnowledgeID}] = rec
	s.mu.Unlock()
	return nil
}
