package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "spousedetails/internal/log"
	"spousedetails/internal/model"
)

// ParsedEvent is the normalized view of a VEVENT needed to turn it into a
// reminder.
type ParsedEvent struct {
	UID         string
	Summary     string
	Description string

	// Date is the DTSTART calendar date as YYYY-MM-DD.
	Date   string
	AllDay bool

	RawRRule string
	// Yearly is true when the RRULE repeats every year.
	Yearly bool
}

// ParseICS parses a calendar payload into a list of ParsedEvent.
//
//   - Events without UID or DTSTART are logged and skipped.
//   - All-day detection looks at VALUE=DATE or a DTSTART without 'T'.
//   - RRULE is kept raw; only FREQ=YEARLY is interpreted.
func ParseICS(body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = UnescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = UnescapeText(p.Value)
	}

	dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStartProp == nil || dtStartProp.Value == "" {
		return out, errors.New("missing DTSTART")
	}
	val := strings.TrimSpace(dtStartProp.Value)
	if vs, ok := dtStartProp.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		out.AllDay = true
	}
	if !strings.Contains(val, "T") {
		out.AllDay = true
	}

	start, err := parseICSTime(val)
	if err != nil {
		return out, err
	}
	out.Date = start.Format(model.DateLayout)

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
		out.Yearly = ruleIsYearly(rruleProp.Value)
	}

	return out, nil
}

func ruleIsYearly(rule string) bool {
	for _, part := range strings.Split(rule, ";") {
		k, v, ok := strings.Cut(part, "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), "FREQ") {
			return strings.EqualFold(strings.TrimSpace(v), "YEARLY")
		}
	}
	return false
}

// parseICSTime parses a basic ICS date/date-time string. Only the
// calendar date is used downstream, so TZID is not consulted.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.UTC)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, time.UTC)
}

// UnescapeText reverses EscapeText. Unknown escapes keep the escaped
// character.
func UnescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
