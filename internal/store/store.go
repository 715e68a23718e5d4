// Package store persists profiles, custom fields and reminders.
package store

import (
	"context"
	"errors"

	"spousedetails/internal/model"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by
	// the requesting user.
	ErrNotFound = errors.New("store: not found")
	// ErrInvalid wraps validation failures on input values.
	ErrInvalid = errors.New("store: invalid input")
)

// Tables lists every table the service relies on.
var Tables = []string{"spouse_profiles", "custom_fields", "reminders"}

// TableStatus is one entry of a CheckTables report.
type TableStatus struct {
	Exists bool   `json:"exists"`
	Rows   int64  `json:"rows,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Store is the persistence boundary used by the HTTP layer and the
// reminder scanner. Every user-scoped call filters by userID.
type Store interface {
	GetProfile(ctx context.Context, userID string) (model.Profile, error)
	UpsertProfile(ctx context.Context, userID string, fields model.ProfileFields) (model.Profile, error)

	ListCustomFields(ctx context.Context, userID string, category model.Category) ([]model.CustomField, error)
	CreateCustomField(ctx context.Context, f model.CustomField) (model.CustomField, error)
	DeleteCustomField(ctx context.Context, userID, id string) error

	ListReminders(ctx context.Context, userID string) ([]model.Reminder, error)
	ListEnabledReminders(ctx context.Context) ([]model.Reminder, error)
	GetReminder(ctx context.Context, userID, id string) (model.Reminder, error)
	CreateReminder(ctx context.Context, r model.Reminder) (model.Reminder, error)
	CreateReminders(ctx context.Context, rs []model.Reminder) ([]model.Reminder, error)
	UpdateReminder(ctx context.Context, userID, id string, patch model.ReminderPatch) (model.Reminder, error)
	DeleteReminder(ctx context.Context, userID, id string) error

	Ping(ctx context.Context) error
	CheckTables(ctx context.Context) map[string]TableStatus
	Close() error
}
