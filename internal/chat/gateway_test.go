package chat_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-adaptive/internal/chat"
	"github.com/p-n-ai/pai-adaptive/internal/knowledge"
	"github.com/p-n-ai/pai-adaptive/internal/review"
)

func TestGateway_RegisterChannel(t *testing.T) {
	gw := chat.NewGateway()
	gw.Register("telegram", &chat.MockChannel{})

	if !gw.HasChannel("telegram") {
		t.Error("HasChannel(telegram) should be true after Register")
	}
	if gw.HasChannel("whatsapp") {
		t.Error("HasChannel(whatsapp) should be false when not registered")
	}
}

func TestGateway_SendMessage(t *testing.T) {
	gw := chat.NewGateway()
	mock := &chat.MockChannel{}
	gw.Register("telegram", mock)

	err := gw.Send(context.Background(), chat.OutboundMessage{
		Channel: "telegram",
		UserID:  "123",
		Text:    "Hello!",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Errorf("SentMessages = %d, want 1", len(mock.SentMessages))
	}
}

func TestGateway_SendMessage_UnknownChannel(t *testing.T) {
	gw := chat.NewGateway()

	err := gw.Send(context.Background(), chat.OutboundMessage{
		Channel: "unknown",
		UserID:  "123",
		Text:    "Hello!",
	})
	if err == nil {
		t.Error("Send() should error for unknown channel")
	}
}

func TestGateway_Notify(t *testing.T) {
	reminder := review.Reminder{
		Message: "今天有2个知识点需要复习。",
		Urgency: review.UrgencyLow,
		DueReviews: []knowledge.Node{
			{ID: "g4-comp-01", Name: "四则运算"},
			{ID: "g4-geo-01", Name: "角的度量"},
		},
	}

	t.Run("every channel", func(t *testing.T) {
		gw := chat.NewGateway()
		a, b := &chat.MockChannel{}, &chat.MockChannel{}
		gw.Register("a", a)
		gw.Register("b", b)

		if err := gw.Notify(context.Background(), "42", reminder); err != nil {
			t.Fatalf("Notify() error = %v", err)
		}
		for name, ch := range map[string]*chat.MockChannel{"a": a, "b": b} {
			if len(ch.SentMessages) != 1 {
				t.Fatalf("channel %s got %d messages, want 1", name, len(ch.SentMessages))
			}
			msg := ch.SentMessages[0]
			if msg.UserID != "42" || msg.Channel != name {
				t.Errorf("channel %s message = %+v", name, msg)
			}
			if !strings.Contains(msg.Text, "角的度量") {
				t.Errorf("message %q should list due knowledge points", msg.Text)
			}
		}
	})

	t.Run("failure is reported", func(t *testing.T) {
		gw := chat.NewGateway()
		ok := &chat.MockChannel{}
		gw.Register("ok", ok)
		gw.Register("broken", &chat.MockChannel{Err: errors.New("boom")})

		err := gw.Notify(context.Background(), "42", reminder)
		if err == nil || !strings.Contains(err.Error(), "broken") {
			t.Errorf("Notify() error = %v, want broken channel error", err)
		}
		if len(ok.SentMessages) != 1 {
			t.Error("healthy channel should still receive the reminder")
		}
	})

	t.Run("no channels", func(t *testing.T) {
		if err := chat.NewGateway().Notify(context.Background(), "42", reminder); err == nil {
			t.Error("Notify() should error without channels")
		}
	})
}

func TestFormatReminder(t *testing.T) {
	got := chat.FormatReminder(review.Reminder{
		Message:    "Review time",
		DueReviews: []knowledge.Node{{Name: "Fractions"}},
	})
	if want := "Review time\n• Fractions"; got != want {
		t.Errorf("FormatReminder() = %q, want %q", got, want)
	}
	if got := chat.FormatReminder(review.Reminder{Message: "All done"}); got != "All done" {
		t.Errorf("FormatReminder() without reviews = %q", got)
	}
}
