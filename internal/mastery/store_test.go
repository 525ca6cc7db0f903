package mastery_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/pai-adaptive/internal/mastery"
)

func TestMemoryStore(t *testing.T) {
	s := mastery.NewMemoryStore()
	ctx := t.Context()

	if _, err := s.Get(ctx, "u1", "k1"); !errors.Is(err, mastery.ErrNotFound) {
		t.Errorf("Get() on empty store error = %v, want ErrNotFound", err)
	}
	if err := s.Upsert(ctx, mastery.Record{UserID: "u1"}); !errors.Is(err, mastery.ErrInvalidInput) {
		t.Errorf("Upsert(no knowledge id) error = %v, want ErrInvalidInput", err)
	}

	_ = s.Upsert(ctx, mastery.Record{UserID: "u1", KnowledgeID: "k2", Mastery: 0.3})
	_ = s.Upsert(ctx, mastery.Record{UserID: "u1", KnowledgeID: "k1", Mastery: 0.4})
	_ = s.Upsert(ctx, mastery.Record{UserID: "u1", KnowledgeID: "k1", Mastery: 0.6})
	_ = s.Upsert(ctx, mastery.Record{UserID: "u2", KnowledgeID: "k1", Mastery: 0.9})

	rec, err := s.Get(ctx, "u1", "k1")
	if err != nil || rec.Mastery != 0.6 {
		t.Errorf("Get() = %+v, %v, want mastery 0.6", rec, err)
	}

	list, _ := s.ListByUser(ctx, "u1")
	if len(list) != 2 || list[0].KnowledgeID != "k1" || list[1].KnowledgeID != "k2" {
		t.Errorf("ListByUser() = %+v, want k1, k2", list)
	}
}

func TestMemoryEventLogger_RequiresType(t *testing.T) {
	l := mastery.NewMemoryEventLogger()
	if err := l.LogEvent(t.Context(), mastery.Event{UserID: "u1"}); err == nil {
		t.Error("LogEvent() without type should fail")
	}
	if err := l.LogEvent(t.Context(), mastery.Event{UserID: "u1", EventType: mastery.EventAnswer}); err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}
	if got := l.Events(); len(got) != 1 || got[0].CreatedAt.IsZero() {
		t.Errorf("Events() = %+v, want one stamped event", got)
	}
}
