// Package reminder computes upcoming dates and notifies about due ones.
package reminder

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "spousedetails/internal/log"
	"spousedetails/internal/model"
)

// NextOccurrence returns the first date on or after today (a midnight in
// loc) for a YYYY-MM-DD date. Recurring dates repeat yearly from their
// original year; Feb 29 falls on leap years only. ok is false for
// unparseable dates and for one-off dates already in the past.
func NextOccurrence(date string, recurring bool, today time.Time) (time.Time, bool) {
	loc := today.Location()
	base, err := time.ParseInLocation(model.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, false
	}
	today = midnight(today)

	if !recurring {
		if base.Before(today) {
			return time.Time{}, false
		}
		return base, true
	}
	if !base.Before(today) {
		return base, true
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.YEARLY,
		Dtstart: base,
	})
	if err != nil {
		appLog.Error("reminder: building yearly rule failed", err, "date", date)
		return time.Time{}, false
	}
	next := r.After(today, true)
	if next.IsZero() {
		return time.Time{}, false
	}
	return midnight(next.In(loc)), true
}

// DaysUntil counts whole days from today to t, both taken as calendar
// dates in today's location.
func DaysUntil(t, today time.Time) int {
	a := midnight(today)
	b := midnight(t.In(today.Location()))
	// Use UTC dates so DST shifts never produce 23h/25h days.
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua) / (24 * time.Hour))
}

// Upcoming returns occurrences of enabled reminders and of the profile's
// birthday and anniversary that fall within horizonDays of today, sorted
// by date then title.
func Upcoming(reminders []model.Reminder, profile *model.Profile, today time.Time, horizonDays int) []model.Occurrence {
	out := make([]model.Occurrence, 0)

	add := func(o model.Occurrence, date string, recurring bool) {
		next, ok := NextOccurrence(date, recurring, today)
		if !ok {
			return
		}
		days := DaysUntil(next, today)
		if days > horizonDays {
			return
		}
		o.Date = next.Format(model.DateLayout)
		o.DaysUntil = days
		out = append(out, o)
	}

	for _, r := range reminders {
		if !r.Enabled {
			continue
		}
		o := model.Occurrence{
			Source: model.SourceReminder,
			RefID:  r.ID,
			Type:   r.Type,
			Title:  r.Title,
		}
		if r.Notes != nil {
			o.Notes = *r.Notes
		}
		add(o, r.Date, r.Recurring)
	}

	if profile != nil {
		name := profile.Name
		if name == "" {
			name = "Partner"
		}
		if profile.Birthday != nil {
			add(model.Occurrence{
				Source: model.SourceBirthday,
				RefID:  profile.ID,
				Type:   model.ReminderBirthday,
				Title:  name + "'s Birthday",
			}, *profile.Birthday, true)
		}
		if profile.Anniversary != nil {
			add(model.Occurrence{
				Source: model.SourceAnniversary,
				RefID:  profile.ID,
				Type:   model.ReminderAnniversary,
				Title:  "Anniversary",
			}, *profile.Anniversary, true)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Title < out[j].Title
	})
	return out
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
