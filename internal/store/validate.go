package store

import (
	"fmt"
	"strings"
	"time"

	"spousedetails/internal/model"
)

func validDate(s string) bool {
	_, err := time.Parse(model.DateLayout, s)
	return err == nil
}

func validateProfile(f model.ProfileFields) error {
	if v := strings.TrimSpace(f.Birthday); v != "" && !validDate(v) {
		return fmt.Errorf("%w: birthday must be YYYY-MM-DD", ErrInvalid)
	}
	if v := strings.TrimSpace(f.Anniversary); v != "" && !validDate(v) {
		return fmt.Errorf("%w: anniversary must be YYYY-MM-DD", ErrInvalid)
	}
	return nil
}

func validateField(f model.CustomField) error {
	switch {
	case f.UserID == "":
		return fmt.Errorf("%w: user id is empty", ErrInvalid)
	case f.ProfileID == "":
		return fmt.Errorf("%w: profile_id is required", ErrInvalid)
	case !f.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, f.Category)
	case strings.TrimSpace(f.Label) == "":
		return fmt.Errorf("%w: label is required", ErrInvalid)
	}
	return nil
}

func validateReminder(r model.Reminder) error {
	switch {
	case r.UserID == "":
		return fmt.Errorf("%w: user id is empty", ErrInvalid)
	case strings.TrimSpace(r.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalid)
	case !validDate(r.Date):
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalid)
	case !r.Type.Valid():
		return fmt.Errorf("%w: unknown reminder type %q", ErrInvalid, r.Type)
	case r.AdvanceNoticeDays < 0 || r.AdvanceNoticeDays > 365:
		return fmt.Errorf("%w: advance_notice_days must be between 0 and 365", ErrInvalid)
	}
	return nil
}
