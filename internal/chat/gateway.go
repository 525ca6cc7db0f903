// Package chat delivers learner-facing messages over messaging channels.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/p-n-ai/pai-adaptive/internal/review"
)

// OutboundMessage is a message to send via any channel.
type OutboundMessage struct {
	Channel   string
	UserID    string
	Text      string
	ParseMode string // "Markdown", "HTML", or ""
}

// Channel is the interface each messaging platform must implement.
type Channel interface {
	SendMessage(ctx context.Context, userID string, msg OutboundMessage) error
}

// Gateway routes messages to registered channels.
type Gateway struct {
	channels map[string]Channel
	mu       sync.RWMutex
}

// NewGateway creates a new chat gateway.
func NewGateway() *Gateway {
	return &Gateway{
		channels: make(map[string]Channel),
	}
}

// Register adds a channel to the gateway.
func (g *Gateway) Register(name string, ch Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[name] = ch
	slog.Info("chat channel registered", "channel", name)
}

// HasChannel returns true if the named channel is registered.
func (g *Gateway) HasChannel(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.channels[name]
	return ok
}

// Send dispatches a message to the appropriate channel.
func (g *Gateway) Send(ctx context.Context, msg OutboundMessage) error {
	g.mu.RLock()
	ch, ok := g.channels[msg.Channel]
	g.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown channel: %s", msg.Channel)
	}

	return ch.SendMessage(ctx, msg.UserID, msg)
}

// Notify sends a review reminder through every registered channel. It
// satisfies the reminder job's notifier.
func (g *Gateway) Notify(ctx context.Context, userID string, r review.Reminder) error {
	g.mu.RLock()
	names := make([]string, 0, len(g.channels))
	for name := range g.channels {
		names = append(names, name)
	}
	g.mu.RUnlock()
	if len(names) == 0 {
		return errors.New("no chat channel registered")
	}
	sort.Strings(names)

	text := FormatReminder(r)
	var errs []error
	for _, name := range names {
		msg := OutboundMessage{Channel: name, UserID: userID, Text: text}
		if err := g.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// FormatReminder renders a reminder as plain text: the message followed by
// one bullet per due knowledge point.
func FormatReminder(r review.Reminder) string {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, n := range r.DueReviews {
		b.WriteString("\n• ")
		b.WriteString(n.Name)
	}
	return b.String()
}

// MockChannel is a test double for Channel.
type MockChannel struct {
	mu           sync.Mutex
	SentMessages []OutboundMessage
	Err          error
}

func (m *MockChannel) SendMessage(_ context.Context, _ string, msg OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, msg)
	return nil
}
