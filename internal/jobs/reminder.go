// Package jobs runs periodic background work.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/p-n-ai/pai-adaptive/internal/review"
)

const runTimeout = 2 * time.Minute

// Notifier delivers a review reminder to a learner.
type Notifier interface {
	Notify(ctx context.Context, userID string, r review.Reminder) error
}

// LogNotifier writes reminders to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userID string, r review.Reminder) error {
	slog.Info("review reminder",
		"user_id", userID,
		"urgency", r.Urgency,
		"due", len(r.DueReviews),
		"message", r.Message,
	)
	return nil
}

// ReminderSource is the review scheduler surface the job reads.
type ReminderSource interface {
	DueUsers(ctx context.Context) ([]string, error)
	Reminder(ctx context.Context, userID string) review.Reminder
}

// ReminderConfig configures a ReminderJob.
type ReminderConfig struct {
	Source   ReminderSource
	Notifier Notifier
	Interval time.Duration
	// Reminders are only sent between StartHour and EndHour inclusive.
	StartHour int
	EndHour   int
	Location  *time.Location
	Now       func() time.Time
}

// ReminderJob periodically reminds learners with reviews due today.
type ReminderJob struct {
	cron      *gocron.Scheduler
	source    ReminderSource
	notifier  Notifier
	interval  time.Duration
	startHour int
	endHour   int
	now       func() time.Time

	mu sync.Mutex
	// notified maps a learner to the local date of their last reminder.
	notified map[string]string
}

// NewReminderJob creates a reminder job. It does nothing until Start.
func NewReminderJob(cfg ReminderConfig) *ReminderJob {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	j := &ReminderJob{
		cron:      gocron.NewScheduler(loc),
		source:    cfg.Source,
		notifier:  cfg.Notifier,
		interval:  cfg.Interval,
		startHour: cfg.StartHour,
		endHour:   cfg.EndHour,
		now:       cfg.Now,
		notified:  make(map[string]string),
	}
	if j.notifier == nil {
		j.notifier = LogNotifier{}
	}
	if j.interval <= 0 {
		j.interval = time.Hour
	}
	if j.endHour == 0 {
		j.endHour = 23
	}
	if j.now == nil {
		j.now = func() time.Time { return time.Now().In(loc) }
	}
	return j
}

// Start schedules the job and returns without blocking.
func (j *ReminderJob) Start() error {
	if _, err := j.cron.Every(j.interval).Do(j.run); err != nil {
		return fmt.Errorf("scheduling reminder job: %w", err)
	}
	j.cron.StartAsync()
	slog.Info("reminder job started", "interval", j.interval.String())
	return nil
}

// Stop halts the schedule.
func (j *ReminderJob) Stop() {
	j.cron.Stop()
}

func (j *ReminderJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	j.RunOnce(ctx)
}

// RunOnce sends one round of reminders and returns how many were delivered.
// Outside the notification window it sends nothing. A learner receives at
// most one reminder per day; failed deliveries are retried on later runs.
func (j *ReminderJob) RunOnce(ctx context.Context) int {
	now := j.now()
	hour := now.Hour()
	if hour < j.startHour || hour > j.endHour {
		slog.Debug("outside notification hours, skipping reminders",
			"hour", hour, "start", j.startHour, "end", j.endHour)
		return 0
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	today := now.Format(time.DateOnly)
	for userID, day := range j.notified {
		if day != today {
			delete(j.notified, userID)
		}
	}

	users, err := j.source.DueUsers(ctx)
	if err != nil {
		slog.Warn("listing users with due reviews failed", "error", err)
		return 0
	}

	sent := 0
	for _, userID := range users {
		if j.notified[userID] == today {
			continue
		}
		r := j.source.Reminder(ctx, userID)
		if len(r.DueReviews) == 0 {
			continue
		}
		if err := j.notifier.Notify(ctx, userID, r); err != nil {
			slog.Warn("sending reminder failed", "user_id", userID, "error", err)
			continue
		}
		j.notified[userID] = today
		sent++
	}
	return sent
}
