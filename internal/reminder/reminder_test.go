package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"spousedetails/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 15, 30, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	today := day(2025, 6, 1)

	cases := []struct {
		name      string
		date      string
		recurring bool
		want      string
		ok        bool
	}{
		{"recurring later this year", "1990-09-22", true, "2025-09-22", true},
		{"recurring already passed", "1990-05-15", true, "2026-05-15", true},
		{"recurring today", "2000-06-01", true, "2025-06-01", true},
		{"recurring future base", "2030-01-01", true, "2030-01-01", true},
		{"leap day", "2024-02-29", true, "2028-02-29", true},
		{"one-off future", "2025-12-24", false, "2025-12-24", true},
		{"one-off past", "2025-05-01", false, "", false},
		{"garbage", "soon", true, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NextOccurrence(tc.date, tc.recurring, today)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got.Format(model.DateLayout))
			}
		})
	}
}

func TestDaysUntil(t *testing.T) {
	today := day(2025, 6, 1)
	assert.Equal(t, 0, DaysUntil(day(2025, 6, 1), today))
	assert.Equal(t, 113, DaysUntil(time.Date(2025, 9, 22, 0, 0, 0, 0, time.UTC), today))

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// Spans the March DST change.
	assert.Equal(t, 30, DaysUntil(time.Date(2025, 3, 31, 0, 0, 0, 0, ny), time.Date(2025, 3, 1, 23, 0, 0, 0, ny)))
}

func TestUpcoming(t *testing.T) {
	today := day(2025, 9, 1)
	bday := "1990-09-10"
	anniv := "2015-12-01"
	profile := &model.Profile{ID: "p1", Name: "Sarah", Birthday: &bday, Anniversary: &anniv}
	notes := "Dinner reservation at 7pm"
	reminders := []model.Reminder{
		{ID: "r1", Title: "Anniversary dinner", Type: model.ReminderAnniversary, Date: "2024-09-22", Enabled: true, Recurring: true, Notes: &notes},
		{ID: "r2", Title: "Disabled", Type: model.ReminderCustom, Date: "2025-09-02", Enabled: false, Recurring: false},
		{ID: "r3", Title: "Far away", Type: model.ReminderCustom, Date: "2026-01-01", Enabled: true, Recurring: false},
	}

	got := Upcoming(reminders, profile, today, 30)
	require.Len(t, got, 2)

	assert.Equal(t, model.SourceBirthday, got[0].Source)
	assert.Equal(t, "Sarah's Birthday", got[0].Title)
	assert.Equal(t, "2025-09-10", got[0].Date)
	assert.Equal(t, 9, got[0].DaysUntil)

	assert.Equal(t, "r1", got[1].RefID)
	assert.Equal(t, 21, got[1].DaysUntil)
	assert.Equal(t, notes, got[1].Notes)

	wide := Upcoming(reminders, profile, today, 365)
	assert.Len(t, wide, 4)
	assert.Empty(t, Upcoming(nil, nil, today, 30))
}

func TestFindDue(t *testing.T) {
	today := day(2025, 9, 15)
	reminders := []model.Reminder{
		{ID: "week-ahead", Date: "2020-09-22", Enabled: true, Recurring: true, AdvanceNoticeDays: 7},
		{ID: "day-of", Date: "2025-09-15", Enabled: true, Recurring: false, AdvanceNoticeDays: 3},
		{ID: "not-yet", Date: "2020-09-30", Enabled: true, Recurring: true, AdvanceNoticeDays: 7},
		{ID: "off", Date: "2025-09-15", Enabled: false},
	}

	due := FindDue(reminders, today)
	require.Len(t, due, 2)
	assert.Equal(t, "week-ahead", due[0].Reminder.ID)
	assert.Equal(t, 7, due[0].DaysUntil)
	assert.Equal(t, "2025-09-22", due[0].Date)
	assert.Equal(t, "day-of", due[1].Reminder.ID)
	assert.Equal(t, 0, due[1].DaysUntil)
}

type fakeSource struct {
	reminders []model.Reminder
	err       error
}

func (f fakeSource) ListEnabledReminders(context.Context) ([]model.Reminder, error) {
	return f.reminders, f.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	seen []string
	fail string
}

func (n *recordingNotifier) Notify(_ context.Context, d Due) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen = append(n.seen, d.Reminder.ID)
	if d.Reminder.ID == n.fail {
		return errors.New("mailbox full")
	}
	return nil
}

func TestScanOnce(t *testing.T) {
	src := fakeSource{reminders: []model.Reminder{
		{ID: "a", Date: "2025-09-15", Enabled: true},
		{ID: "b", Date: "2025-09-15", Enabled: true},
		{ID: "c", Date: "2025-10-15", Enabled: true},
	}}
	n := &recordingNotifier{fail: "a"}
	s := NewScanner(src, n, time.UTC)
	s.now = func() time.Time { return day(2025, 9, 15) }

	count, err := s.ScanOnce(context.Background())
	assert.Equal(t, 2, count)
	assert.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, n.seen)

	s = NewScanner(fakeSource{err: errors.New("db down")}, n, time.UTC)
	_, err = s.ScanOnce(context.Background())
	assert.Error(t, err)
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	s := NewScanner(fakeSource{}, nil, nil)
	assert.Error(t, s.Start(context.Background(), "not a cron"))
}

func TestStart_StopsWithContext(t *testing.T) {
	s := NewScanner(fakeSource{}, nil, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx, "0 8 * * *"))
	cancel()
	s.Stop()
}
