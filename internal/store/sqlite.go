package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	appLog "spousedetails/internal/log"
	"spousedetails/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS spouse_profiles (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL UNIQUE,
	name        TEXT,
	photo_url   TEXT,
	birthday    TEXT,
	anniversary TEXT,
	notes       TEXT,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS custom_fields (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	profile_id TEXT NOT NULL REFERENCES spouse_profiles(id) ON DELETE CASCADE,
	category   TEXT NOT NULL CHECK (category IN ('clothing','favorites','places','gifts','health')),
	label      TEXT NOT NULL,
	value      TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_custom_fields_user ON custom_fields(user_id, category);

CREATE TABLE IF NOT EXISTS reminders (
	id                  TEXT PRIMARY KEY,
	user_id             TEXT NOT NULL,
	profile_id          TEXT REFERENCES spouse_profiles(id) ON DELETE SET NULL,
	type                TEXT NOT NULL CHECK (type IN ('birthday','anniversary','custom')),
	title               TEXT NOT NULL,
	date                TEXT NOT NULL,
	enabled             INTEGER NOT NULL DEFAULT 1,
	advance_notice_days INTEGER NOT NULL DEFAULT 7,
	recurring           INTEGER NOT NULL DEFAULT 1,
	notes               TEXT,
	created_at          TEXT NOT NULL,
	updated_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reminders_user ON reminders(user_id, date);
`

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite implements Store on an embedded SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema. path may be ":memory:".
func Open(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("store: database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes
	// writers, which SQLite does anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	appLog.Info("store opened", "path", path)
	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// CheckTables reports, per table, whether it can be queried.
func (s *SQLite) CheckTables(ctx context.Context) map[string]TableStatus {
	out := make(map[string]TableStatus, len(Tables))
	for _, table := range Tables {
		var n int64
		// Table names come from the fixed Tables list.
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
		if err != nil {
			out[table] = TableStatus{Exists: false, Error: err.Error()}
			continue
		}
		out[table] = TableStatus{Exists: true, Rows: n}
	}
	return out
}

func (s *SQLite) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

// ---- profiles ----

const profileColumns = `id, user_id, name, photo_url, birthday, anniversary, notes, created_at, updated_at`

func (s *SQLite) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM spouse_profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, ErrNotFound
	}
	return p, err
}

// UpsertProfile creates the user's profile or replaces every field of the
// existing one in a single statement. Empty strings are stored as NULL.
func (s *SQLite) UpsertProfile(ctx context.Context, userID string, fields model.ProfileFields) (model.Profile, error) {
	if userID == "" {
		return model.Profile{}, fmt.Errorf("%w: user id is empty", ErrInvalid)
	}
	if err := validateProfile(fields); err != nil {
		return model.Profile{}, err
	}

	now := s.stamp()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO spouse_profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name        = excluded.name,
			photo_url   = excluded.photo_url,
			birthday    = excluded.birthday,
			anniversary = excluded.anniversary,
			notes       = excluded.notes,
			updated_at  = excluded.updated_at
		RETURNING `+profileColumns,
		uuid.NewString(), userID,
		nullIfEmpty(fields.Name), nullIfEmpty(fields.PhotoURL), nullIfEmpty(fields.Birthday),
		nullIfEmpty(fields.Anniversary), nullIfEmpty(fields.Notes),
		now, now,
	)
	p, err := scanProfile(row)
	if err != nil {
		return model.Profile{}, fmt.Errorf("store: upsert profile: %w", err)
	}
	appLog.Debug("profile upserted", "user_id", userID, "profile_id", p.ID)
	return p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (model.Profile, error) {
	var (
		p                                         model.Profile
		name, photo, birthday, anniversary, notes sql.NullString
		created, updated                          string
	)
	if err := row.Scan(&p.ID, &p.UserID, &name, &photo, &birthday, &anniversary, &notes, &created, &updated); err != nil {
		return model.Profile{}, err
	}
	p.Name = name.String
	p.PhotoURL = ptr(photo)
	p.Birthday = ptr(birthday)
	p.Anniversary = ptr(anniversary)
	p.Notes = ptr(notes)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

// ---- custom fields ----

const fieldColumns = `id, user_id, profile_id, category, label, value, created_at, updated_at`

func (s *SQLite) ListCustomFields(ctx context.Context, userID string, category model.Category) ([]model.CustomField, error) {
	q := `SELECT ` + fieldColumns + ` FROM custom_fields WHERE user_id = ?`
	args := []any{userID}
	if category != "" {
		q += ` AND category = ?`
		args = append(args, string(category))
	}
	q += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list custom fields: %w", err)
	}
	defer rows.Close()

	out := make([]model.CustomField, 0)
	for rows.Next() {
		var (
			f                model.CustomField
			cat              string
			value            sql.NullString
			created, updated string
		)
		if err := rows.Scan(&f.ID, &f.UserID, &f.ProfileID, &cat, &f.Label, &value, &created, &updated); err != nil {
			return nil, err
		}
		f.Category = model.Category(cat)
		f.Value = ptr(value)
		f.CreatedAt = parseTime(created)
		f.UpdatedAt = parseTime(updated)
		out = append(out, f)
	}
	return out, rows.Err()
}

// CreateCustomField inserts f for f.UserID. The referenced profile must
// belong to the same user.
func (s *SQLite) CreateCustomField(ctx context.Context, f model.CustomField) (model.CustomField, error) {
	if err := validateField(f); err != nil {
		return model.CustomField{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.CustomField{}, err
	}
	defer tx.Rollback()

	if err := ownsProfile(ctx, tx, f.UserID, f.ProfileID); err != nil {
		return model.CustomField{}, err
	}

	f.ID = uuid.NewString()
	now := s.now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	if f.Value != nil && *f.Value == "" {
		f.Value = nil
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO custom_fields (`+fieldColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.ProfileID, string(f.Category), f.Label, nullable(f.Value),
		now.Format(timeLayout), now.Format(timeLayout),
	); err != nil {
		return model.CustomField{}, fmt.Errorf("store: insert custom field: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.CustomField{}, err
	}
	return f, nil
}

// ownsProfile returns ErrNotFound unless profileID belongs to userID.
func ownsProfile(ctx context.Context, tx *sql.Tx, userID, profileID string) error {
	var owned int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM spouse_profiles WHERE id = ? AND user_id = ?`, profileID, userID,
	).Scan(&owned); err != nil {
		return err
	}
	if owned == 0 {
		return fmt.Errorf("profile %q: %w", profileID, ErrNotFound)
	}
	return nil
}

func (s *SQLite) DeleteCustomField(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM custom_fields WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete custom field: %w", err)
	}
	return expectOne(res)
}

// ---- reminders ----

const reminderColumns = `id, user_id, profile_id, type, title, date, enabled, advance_notice_days, recurring, notes, created_at, updated_at`

func (s *SQLite) ListReminders(ctx context.Context, userID string) ([]model.Reminder, error) {
	return s.queryReminders(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE user_id = ? ORDER BY date, id`, userID)
}

// ListEnabledReminders returns enabled reminders of every user.
func (s *SQLite) ListEnabledReminders(ctx context.Context) ([]model.Reminder, error) {
	return s.queryReminders(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE enabled = 1 ORDER BY user_id, date, id`)
}

func (s *SQLite) GetReminder(ctx context.Context, userID, id string) (model.Reminder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = ? AND user_id = ?`, id, userID)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reminder{}, ErrNotFound
	}
	return r, err
}

// CreateReminder inserts r. An empty type becomes "custom". A set
// ProfileID must name a profile owned by r.UserID.
func (s *SQLite) CreateReminder(ctx context.Context, r model.Reminder) (model.Reminder, error) {
	created, err := s.CreateReminders(ctx, []model.Reminder{r})
	if err != nil {
		return model.Reminder{}, err
	}
	return created[0], nil
}

// CreateReminders inserts every reminder in one transaction. Any failure
// leaves nothing written.
func (s *SQLite) CreateReminders(ctx context.Context, rs []model.Reminder) ([]model.Reminder, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]model.Reminder, 0, len(rs))
	for _, r := range rs {
		created, err := s.insertReminder(ctx, tx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLite) insertReminder(ctx context.Context, tx *sql.Tx, r model.Reminder) (model.Reminder, error) {
	if r.Type == "" {
		r.Type = model.ReminderCustom
	}
	if r.Notes != nil && *r.Notes == "" {
		r.Notes = nil
	}
	if r.ProfileID != nil && *r.ProfileID == "" {
		r.ProfileID = nil
	}
	if err := validateReminder(r); err != nil {
		return model.Reminder{}, err
	}
	if r.ProfileID != nil {
		if err := ownsProfile(ctx, tx, r.UserID, *r.ProfileID); err != nil {
			return model.Reminder{}, err
		}
	}

	r.ID = uuid.NewString()
	now := s.now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	if _, err := tx.ExecContext(ctx, `INSERT INTO reminders (`+reminderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, nullable(r.ProfileID), string(r.Type), r.Title, r.Date,
		r.Enabled, r.AdvanceNoticeDays, r.Recurring, nullable(r.Notes),
		now.Format(timeLayout), now.Format(timeLayout),
	); err != nil {
		return model.Reminder{}, fmt.Errorf("store: insert reminder: %w", err)
	}
	return r, nil
}

// UpdateReminder applies patch to the user's reminder inside a transaction.
func (s *SQLite) UpdateReminder(ctx context.Context, userID, id string, patch model.ReminderPatch) (model.Reminder, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Reminder{}, err
	}
	defer tx.Rollback()

	r, err := scanReminder(tx.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reminder{}, ErrNotFound
	}
	if err != nil {
		return model.Reminder{}, err
	}

	patch.Apply(&r)
	if err := validateReminder(r); err != nil {
		return model.Reminder{}, err
	}
	r.UpdatedAt = s.now().UTC()

	if _, err := tx.ExecContext(ctx, `
		UPDATE reminders SET type = ?, title = ?, date = ?, enabled = ?, advance_notice_days = ?,
			recurring = ?, notes = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		string(r.Type), r.Title, r.Date, r.Enabled, r.AdvanceNoticeDays, r.Recurring, nullable(r.Notes),
		r.UpdatedAt.Format(timeLayout), id, userID,
	); err != nil {
		return model.Reminder{}, fmt.Errorf("store: update reminder: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Reminder{}, err
	}
	return r, nil
}

func (s *SQLite) DeleteReminder(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete reminder: %w", err)
	}
	return expectOne(res)
}

func (s *SQLite) queryReminders(ctx context.Context, q string, args ...any) ([]model.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list reminders: %w", err)
	}
	defer rows.Close()

	out := make([]model.Reminder, 0)
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReminder(row scanner) (model.Reminder, error) {
	var (
		r                model.Reminder
		profileID, notes sql.NullString
		typ              string
		created, updated string
	)
	if err := row.Scan(&r.ID, &r.UserID, &profileID, &typ, &r.Title, &r.Date, &r.Enabled,
		&r.AdvanceNoticeDays, &r.Recurring, &notes, &created, &updated); err != nil {
		return model.Reminder{}, err
	}
	r.ProfileID = ptr(profileID)
	r.Type = model.ReminderType(typ)
	r.Notes = ptr(notes)
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return r, nil
}

// ---- helpers ----

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// nullIfEmpty is the single empty-string policy for profile fields: values
// are stored trimmed, and blank ones as NULL.
func nullIfEmpty(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func ptr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
