// Package profile resolves learner attributes the adaptive core treats as
// external signals, currently the school grade.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrInvalidGrade is returned when a grade outside 4-6 is recorded.
var ErrInvalidGrade = errors.New("grade must be between 4 and 6")

// Resolver looks up and records a learner's grade.
type Resolver interface {
	// Lookup reports the learner's grade and whether one is on record.
	Lookup(ctx context.Context, userID string) (grade int, ok bool, err error)
	SetGrade(ctx context.Context, userID string, grade int) error
}

// GradeOr returns the learner's grade, or fallback when the resolver is nil,
// has nothing on record or fails.
func GradeOr(ctx context.Context, r Resolver, userID string, fallback int) int {
	if r == nil {
		return fallback
	}
	grade, ok, err := r.Lookup(ctx, userID)
	if err != nil {
		slog.Warn("grade lookup failed, using fallback", "user_id", userID, "fallback", fallback, "error", err)
		return fallback
	}
	if !ok {
		return fallback
	}
	return grade
}

func validGrade(grade int) error {
	if grade < 4 || grade > 6 {
		return fmt.Errorf("%w: got %d", ErrInvalidGrade, grade)
	}
	return nil
}

// MemoryResolver keeps grades in process memory.
type MemoryResolver struct {
	mu     sync.RWMutex
	grades map[string]int
}

// NewMemoryResolver creates an empty in-memory resolver.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{grades: make(map[string]int)}
}

func (r *MemoryResolver) Lookup(_ context.Context, userID string) (int, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grades[userID]
	return g, ok, nil
}

func (r *MemoryResolver) SetGrade(_ context.Context, userID string, grade int) error {
	if err := validGrade(grade); err != nil {
		return err
	}
	r.mu.Lock()
	r.grades[userID] = grade
	r.mu.Unlock()
	return nil
}
