package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"spousedetails/internal/model"
)

// FeedFileName is the download name for a whole-calendar feed.
const FeedFileName = "reminders.ics"

// BuildFeed renders all given reminders into one calendar. Recurring
// reminders carry a yearly RRULE; disabled reminders are skipped. Unlike
// Encode, text goes through the library serializer and is escaped and
// folded.
func (e *Encoder) BuildFeed(reminders []model.Reminder) Document {
	now := e.now().UTC()

	cal := ical.NewCalendar()
	cal.SetProductId("-//" + e.productID() + "//EN")
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)

	for _, r := range reminders {
		if !r.Enabled {
			continue
		}
		start, err := time.Parse(model.DateLayout, r.Date)
		if err != nil {
			// Garbage dates are still emitted, same as the single-event path.
			start = time.Time{}
		}
		date := strings.ReplaceAll(r.Date, "-", "")
		if !start.IsZero() {
			date = start.Format("20060102")
		}

		ev := cal.AddEvent(r.ID + "@" + e.uidDomain())
		ev.SetSummary(r.Title)
		notes := e.placeholder()
		if r.Notes != nil && *r.Notes != "" {
			notes = *r.Notes
		}
		ev.SetDescription(notes)
		ev.AddProperty(ical.ComponentPropertyDtStart, date, ical.WithValue(string(ical.ValueDataTypeDate)))
		ev.AddProperty(ical.ComponentPropertyDtEnd, date, ical.WithValue(string(ical.ValueDataTypeDate)))
		ev.SetDtStampTime(now)
		ev.SetCreatedTime(r.CreatedAt.UTC())
		ev.AddProperty(ical.ComponentPropertyStatus, "CONFIRMED")
		ev.AddProperty(ical.ComponentPropertySequence, "0")
		ev.AddProperty(ical.ComponentPropertyTransp, "OPAQUE")
		if r.Recurring {
			ev.AddRrule("FREQ=YEARLY")
		}
		ev.AddProperty(ical.ComponentPropertyCategories, string(r.Type))
	}

	return Document{
		FileName: FeedFileName,
		MIMEType: MIMEType,
		Body:     []byte(cal.Serialize()),
	}
}
