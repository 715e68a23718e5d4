package ics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf16"

	"spousedetails/internal/model"
)

// MIMEType is the content type of every generated document.
const MIMEType = "text/calendar; charset=utf-8"

const (
	defaultProductID   = "Spouse Details App"
	defaultUIDDomain   = "spousedetails.app"
	defaultPlaceholder = "Reminder from Spouse Details App"

	stampLayout = "20060102T150405Z"
)

// ErrInvalidDate is returned by strict encoding for dates that are not
// real YYYY-MM-DD calendar dates.
var ErrInvalidDate = errors.New("ics: date must be YYYY-MM-DD")

// Request is the title/date/notes triple behind one all-day event.
type Request struct {
	Title string `json:"title"`
	Date  string `json:"date"`
	Notes string `json:"notes,omitempty"`
}

// Document is an encoded calendar file ready to be offered to a user.
type Document struct {
	FileName string
	MIMEType string
	Body     []byte
}

// Encoder renders single-event calendar documents.
// The zero value is usable and writes the default product strings.
type Encoder struct {
	ProductID   string
	UIDDomain   string
	Placeholder string

	// Now is the clock; nil means time.Now.
	Now func() time.Time

	// lastUID holds the last issued millisecond token.
	lastUID atomic.Int64
}

// NewEncoder returns an Encoder with the given product strings; empty
// values fall back to the defaults.
func NewEncoder(productID, uidDomain, placeholder string) *Encoder {
	return &Encoder{
		ProductID:   productID,
		UIDDomain:   uidDomain,
		Placeholder: placeholder,
	}
}

// Encode renders req as-is. Text is written verbatim and the date is only
// stripped of '-' separators, so Encode never fails.
func (e *Encoder) Encode(req Request) Document {
	return e.encode(req, func(s string) string { return s })
}

// EncodeStrict validates the date and escapes SUMMARY/DESCRIPTION text
// per RFC 5545 before encoding.
func (e *Encoder) EncodeStrict(req Request) (Document, error) {
	if _, err := time.Parse(model.DateLayout, req.Date); err != nil {
		return Document{}, fmt.Errorf("%w: %q", ErrInvalidDate, req.Date)
	}
	return e.encode(req, EscapeText), nil
}

func (e *Encoder) encode(req Request, text func(string) string) Document {
	now := e.now()
	startDate := strings.ReplaceAll(req.Date, "-", "")
	stamp := now.UTC().Format(stampLayout)

	notes := req.Notes
	if notes == "" {
		notes = e.placeholder()
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//" + e.productID() + "//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"UID:" + strconv.FormatInt(e.nextToken(now), 10) + "@" + e.uidDomain(),
		"SUMMARY:" + text(req.Title),
		"DESCRIPTION:" + text(notes),
		"DTSTART;VALUE=DATE:" + startDate,
		"DTEND;VALUE=DATE:" + startDate,
		"DTSTAMP:" + stamp,
		"CREATED:" + stamp,
		"STATUS:CONFIRMED",
		"SEQUENCE:0",
		"TRANSP:OPAQUE",
		"END:VEVENT",
		"END:VCALENDAR",
	}

	return Document{
		FileName: FileName(req.Title),
		MIMEType: MIMEType,
		Body:     []byte(strings.Join(lines, "\r\n")),
	}
}

// nextToken returns the epoch-millisecond token for now, bumped past the
// previously issued one so that calls within the same millisecond still
// get distinct UIDs.
func (e *Encoder) nextToken(now time.Time) int64 {
	ms := now.UnixMilli()
	for {
		last := e.lastUID.Load()
		next := ms
		if next <= last {
			next = last + 1
		}
		if e.lastUID.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (e *Encoder) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Encoder) productID() string {
	if e.ProductID == "" {
		return defaultProductID
	}
	return e.ProductID
}

func (e *Encoder) uidDomain() string {
	if e.UIDDomain == "" {
		return defaultUIDDomain
	}
	return e.UIDDomain
}

func (e *Encoder) placeholder() string {
	if e.Placeholder == "" {
		return defaultPlaceholder
	}
	return e.Placeholder
}

// FileName derives the download name from a title: every character
// outside [A-Za-z0-9] becomes '_' and ".ics" is appended. Characters
// outside the Basic Multilingual Plane become two underscores, one per
// UTF-16 code unit, matching what browsers produce for the same title.
func FileName(title string) string {
	var b strings.Builder
	b.Grow(len(title) + 4)
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			n := utf16.RuneLen(r)
			if n < 1 {
				n = 1
			}
			b.WriteString(strings.Repeat("_", n))
		}
	}
	b.WriteString(".ics")
	return b.String()
}

// EscapeText applies the RFC 5545 TEXT escaping rules.
func EscapeText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\r\n", `\n`,
		"\n", `\n`,
		"\r", `\n`,
	)
	return r.Replace(s)
}
