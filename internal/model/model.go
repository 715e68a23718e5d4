package model

import "time"

// DateLayout is the wire format for calendar dates (birthdays, reminders).
const DateLayout = "2006-01-02"

// Identity is the authenticated user behind a bearer token.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Profile is the single partner profile a user keeps.
type Profile struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	PhotoURL    *string   `json:"photo_url,omitempty"`
	Birthday    *string   `json:"birthday,omitempty"`
	Anniversary *string   `json:"anniversary,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileFields is the user-submitted payload for an upsert. Values are
// taken as submitted; the store applies the empty-string policy.
type ProfileFields struct {
	Name        string `json:"name"`
	PhotoURL    string `json:"photo_url"`
	Birthday    string `json:"birthday"`
	Anniversary string `json:"anniversary"`
	Notes       string `json:"notes"`
}

// Category groups custom fields on the dashboard.
type Category string

const (
	CategoryClothing  Category = "clothing"
	CategoryFavorites Category = "favorites"
	CategoryPlaces    Category = "places"
	CategoryGifts     Category = "gifts"
	CategoryHealth    Category = "health"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryClothing, CategoryFavorites, CategoryPlaces, CategoryGifts, CategoryHealth:
		return true
	}
	return false
}

// CustomField is a labelled free-form detail attached to a profile.
type CustomField struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProfileID string    `json:"profile_id"`
	Category  Category  `json:"category"`
	Label     string    `json:"label"`
	Value     *string   `json:"value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReminderType tags what a reminder is about.
type ReminderType string

const (
	ReminderBirthday    ReminderType = "birthday"
	ReminderAnniversary ReminderType = "anniversary"
	ReminderCustom      ReminderType = "custom"
)

func (t ReminderType) Valid() bool {
	switch t {
	case ReminderBirthday, ReminderAnniversary, ReminderCustom:
		return true
	}
	return false
}

// DefaultAdvanceNoticeDays is used when a reminder is created without one.
const DefaultAdvanceNoticeDays = 7

// Reminder is a date the user wants to be told about ahead of time.
type Reminder struct {
	ID                string       `json:"id"`
	UserID            string       `json:"user_id"`
	ProfileID         *string      `json:"profile_id,omitempty"`
	Type              ReminderType `json:"type"`
	Title             string       `json:"title"`
	Date              string       `json:"date"`
	Enabled           bool         `json:"enabled"`
	AdvanceNoticeDays int          `json:"advance_notice_days"`
	Recurring         bool         `json:"recurring"`
	Notes             *string      `json:"notes,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// ReminderPatch is a partial update; nil fields are left unchanged.
type ReminderPatch struct {
	Type              *ReminderType `json:"type,omitempty"`
	Title             *string       `json:"title,omitempty"`
	Date              *string       `json:"date,omitempty"`
	Enabled           *bool         `json:"enabled,omitempty"`
	AdvanceNoticeDays *int          `json:"advance_notice_days,omitempty"`
	Recurring         *bool         `json:"recurring,omitempty"`
	Notes             *string       `json:"notes,omitempty"`
}

// Apply copies the non-nil patch fields onto r.
func (p ReminderPatch) Apply(r *Reminder) {
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
	if p.AdvanceNoticeDays != nil {
		r.AdvanceNoticeDays = *p.AdvanceNoticeDays
	}
	if p.Recurring != nil {
		r.Recurring = *p.Recurring
	}
	if p.Notes != nil {
		if *p.Notes == "" {
			r.Notes = nil
		} else {
			n := *p.Notes
			r.Notes = &n
		}
	}
}

// OccurrenceSource tells where an upcoming date came from.
type OccurrenceSource string

const (
	SourceReminder    OccurrenceSource = "reminder"
	SourceBirthday    OccurrenceSource = "profile_birthday"
	SourceAnniversary OccurrenceSource = "profile_anniversary"
)

// Occurrence is a single concrete upcoming instance of a reminder or a
// profile date.
type Occurrence struct {
	Source    OccurrenceSource `json:"source"`
	RefID     string           `json:"ref_id"`
	Type      ReminderType     `json:"type"`
	Title     string           `json:"title"`
	Date      string           `json:"date"`
	DaysUntil int              `json:"days_until"`
	Notes     string           `json:"notes,omitempty"`
}
