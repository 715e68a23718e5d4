package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "spousedetails/internal/log"
	"spousedetails/internal/model"
)

// Due is a reminder whose notice day (or the day itself) is today.
type Due struct {
	Reminder  model.Reminder
	Date      string
	DaysUntil int
}

// Notifier delivers due reminders to their owners.
type Notifier interface {
	Notify(ctx context.Context, due Due) error
}

// LogNotifier writes due reminders to the application log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, d Due) error {
	appLog.Info("reminder due",
		"user_id", d.Reminder.UserID,
		"reminder_id", d.Reminder.ID,
		"title", d.Reminder.Title,
		"date", d.Date,
		"days_until", d.DaysUntil,
	)
	return nil
}

// Source lists the reminders to consider on each scan.
type Source interface {
	ListEnabledReminders(ctx context.Context) ([]model.Reminder, error)
}

// Scanner periodically looks for due reminders.
type Scanner struct {
	src      Source
	notifier Notifier
	loc      *time.Location
	now      func() time.Time

	cron *cron.Cron
}

// NewScanner builds a scanner evaluating "today" in loc (nil means
// time.Local).
func NewScanner(src Source, notifier Notifier, loc *time.Location) *Scanner {
	if loc == nil {
		loc = time.Local
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Scanner{src: src, notifier: notifier, loc: loc, now: time.Now}
}

// FindDue returns reminders that are due on today: the occurrence is
// AdvanceNoticeDays away, or it is the day itself.
func FindDue(reminders []model.Reminder, today time.Time) []Due {
	out := make([]Due, 0)
	for _, r := range reminders {
		if !r.Enabled {
			continue
		}
		next, ok := NextOccurrence(r.Date, r.Recurring, today)
		if !ok {
			continue
		}
		days := DaysUntil(next, today)
		if days == 0 || days == r.AdvanceNoticeDays {
			out = append(out, Due{Reminder: r, Date: next.Format(model.DateLayout), DaysUntil: days})
		}
	}
	return out
}

// ScanOnce runs one scan and notifies every due reminder. Notify errors
// are collected; one failing reminder does not stop the others.
func (s *Scanner) ScanOnce(ctx context.Context) (int, error) {
	reminders, err := s.src.ListEnabledReminders(ctx)
	if err != nil {
		return 0, fmt.Errorf("reminder scan: %w", err)
	}

	today := s.now().In(s.loc)
	due := FindDue(reminders, today)

	var errs []error
	for _, d := range due {
		if err := s.notifier.Notify(ctx, d); err != nil {
			appLog.Error("reminder notify failed", err, "reminder_id", d.Reminder.ID)
			errs = append(errs, err)
		}
	}
	appLog.Debug("reminder scan completed", "considered", len(reminders), "due", len(due))
	return len(due), errors.Join(errs...)
}

// Start runs ScanOnce on a standard 5-field cron schedule until ctx is
// canceled or Stop is called.
func (s *Scanner) Start(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.ScanOnce(ctx); err != nil {
			appLog.Error("scheduled reminder scan failed", err)
		}
	}); err != nil {
		return fmt.Errorf("reminder scan schedule %q: %w", schedule, err)
	}
	s.cron = c
	c.Start()
	appLog.Info("reminder scanner started", "schedule", schedule, "timezone", s.loc.String())

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running scan to finish.
func (s *Scanner) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
