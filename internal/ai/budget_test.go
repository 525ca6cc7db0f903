package ai

import (
	"testing"
	"time"
)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestInMemoryBudget_NoBudgetSet(t *testing.T) {
	b := NewInMemoryBudget(0, nil)

	ok, err := b.Check("user1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !ok {
		t.Error("Check() = false, want true (no budget means unlimited)")
	}
}

func TestInMemoryBudget_WithinBudget(t *testing.T) {
	b := NewInMemoryBudget(0, nil)
	b.SetBudget("user1", 1000)

	if err := b.Record("user1", 500); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	ok, _ := b.Check("user1")
	if !ok {
		t.Error("Check() = false, want true (500 < 1000)")
	}
}

func TestInMemoryBudget_OverBudget(t *testing.T) {
	b := NewInMemoryBudget(0, nil)
	b.SetBudget("user1", 100)

	if err := b.Record("user1", 150); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	ok, _ := b.Check("user1")
	if ok {
		t.Error("Check() = true, want false (150 >= 100)")
	}
	if ok, _ := b.Check("user2"); !ok {
		t.Error("Check(user2) = false, other users are unaffected")
	}
}

func TestInMemoryBudget_DailyLimit(t *testing.T) {
	b := NewInMemoryBudget(200, nil)

	_ = b.Record("user1", 120)
	_ = b.Record("user2", 90)

	if ok, _ := b.Check("user3"); ok {
		t.Error("Check() = true, want false once the service-wide limit is spent")
	}
}

func TestInMemoryBudget_ResetsAtMidnight(t *testing.T) {
	now := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
	b := NewInMemoryBudget(100, fixedClock(&now))
	b.SetBudget("user1", 50)

	_ = b.Record("user1", 100)
	if ok, _ := b.Check("user1"); ok {
		t.Fatal("Check() = true before midnight, want false")
	}

	now = now.Add(time.Hour)
	if ok, _ := b.Check("user1"); !ok {
		t.Error("Check() = false after midnight, want true")
	}
	used, budget, total := b.Usage("user1")
	if used != 0 || budget != 50 || total != 0 {
		t.Errorf("Usage() = (%d, %d, %d), want (0, 50, 0)", used, budget, total)
	}
}

func TestInMemoryBudget_NegativeTokens(t *testing.T) {
	b := NewInMemoryBudget(0, nil)

	if err := b.Record("user1", -10); err == nil {
		t.Error("Record() should reject negative tokens")
	}
}

func TestInMemoryBudget_Usage(t *testing.T) {
	b := NewInMemoryBudget(0, nil)
	b.SetBudget("user1", 5000)
	_ = b.Record("user1", 1000)
	_ = b.Record("user1", 500)

	used, budget, total := b.Usage("user1")
	if used != 1500 {
		t.Errorf("used = %d, want 1500", used)
	}
	if budget != 5000 {
		t.Errorf("budget = %d, want 5000", budget)
	}
	if total != 1500 {
		t.Errorf("total = %d, want 1500", total)
	}
}
