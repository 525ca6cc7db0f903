package ai

import (
	"fmt"
	"sync"
	"time"
)

// BudgetChecker checks and records token usage against daily budgets.
type BudgetChecker interface {
	// Check returns true if the user, and the service as a whole, have
	// budget remaining today.
	Check(userID string) (bool, error)
	// Record records token usage for a user.
	Record(userID string, tokens int) error
}

// InMemoryBudget tracks token usage per calendar day. Counters reset at
// local midnight.
type InMemoryBudget struct {
	mu         sync.Mutex
	dailyLimit int64            // service-wide, zero means unlimited
	budgets    map[string]int64 // userID -> daily limit
	usage      map[string]int64 // userID -> tokens used today
	total      int64
	day        time.Time
	now        func() time.Time
}

// NewInMemoryBudget creates a budget tracker with a service-wide daily
// token limit. A limit of zero or less is unlimited.
func NewInMemoryBudget(dailyLimit int64, now func() time.Time) *InMemoryBudget {
	if now == nil {
		now = time.Now
	}
	return &InMemoryBudget{
		dailyLimit: max(dailyLimit, 0),
		budgets:    make(map[string]int64),
		usage:      make(map[string]int64),
		day:        startOfDay(now()),
		now:        now,
	}
}

// SetBudget sets a user's daily token budget.
func (b *InMemoryBudget) SetBudget(userID string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budgets[userID] = tokens
}

func (b *InMemoryBudget) Check(userID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()

	if b.dailyLimit > 0 && b.total >= b.dailyLimit {
		return false, nil
	}
	budget, hasBudget := b.budgets[userID]
	if !hasBudget {
		return true, nil
	}
	return b.usage[userID] < budget, nil
}

func (b *InMemoryBudget) Record(userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()

	b.usage[userID] += int64(tokens)
	b.total += int64(tokens)
	return nil
}

// Usage returns today's usage and budget for a user, and the service-wide
// total.
func (b *InMemoryBudget) Usage(userID string) (used, budget, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return b.usage[userID], b.budgets[userID], b.total
}

// rollover clears counters when the day changes. Callers hold mu.
func (b *InMemoryBudget) rollover() {
	today := startOfDay(b.now())
	if today.Equal(b.day) {
		return
	}
	b.day = today
	b.total = 0
	clear(b.usage)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
