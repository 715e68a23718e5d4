package web

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"spousedetails/internal/ics"
	appLog "spousedetails/internal/log"
	"spousedetails/internal/model"
	"spousedetails/internal/reminder"
	"spousedetails/internal/store"
)

type createReminderRequest struct {
	ProfileID         *string            `json:"profile_id"`
	Type              model.ReminderType `json:"type"`
	Title             string             `json:"title"`
	Date              string             `json:"date"`
	Enabled           *bool              `json:"enabled"`
	AdvanceNoticeDays *int               `json:"advance_notice_days"`
	Recurring         *bool              `json:"recurring"`
	Notes             *string            `json:"notes"`
}

func (req createReminderRequest) toModel(userID string) model.Reminder {
	r := model.Reminder{
		UserID:            userID,
		ProfileID:         req.ProfileID,
		Type:              req.Type,
		Title:             req.Title,
		Date:              req.Date,
		Enabled:           true,
		AdvanceNoticeDays: model.DefaultAdvanceNoticeDays,
		Recurring:         true,
		Notes:             req.Notes,
	}
	if req.Enabled != nil {
		r.Enabled = *req.Enabled
	}
	if req.AdvanceNoticeDays != nil {
		r.AdvanceNoticeDays = *req.AdvanceNoticeDays
	}
	if req.Recurring != nil {
		r.Recurring = *req.Recurring
	}
	return r
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListReminders(r.Context(), identity(r).ID)
	if err != nil {
		writeStoreError(w, "list reminders", err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req createReminderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := s.store.CreateReminder(r.Context(), req.toModel(identity(r).ID))
	if err != nil {
		writeStoreError(w, "create reminder", err)
		return
	}
	writeData(w, http.StatusCreated, created)
}

func (s *Server) handleGetReminder(w http.ResponseWriter, r *http.Request) {
	rem, err := s.store.GetReminder(r.Context(), identity(r).ID, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, "get reminder", err)
		return
	}
	writeData(w, http.StatusOK, rem)
}

func (s *Server) handlePatchReminder(w http.ResponseWriter, r *http.Request) {
	var patch model.ReminderPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	updated, err := s.store.UpdateReminder(r.Context(), identity(r).ID, r.PathValue("id"), patch)
	if err != nil {
		writeStoreError(w, "update reminder", err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteReminder(r.Context(), identity(r).ID, r.PathValue("id")); err != nil {
		writeStoreError(w, "delete reminder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpcoming lists reminder and profile dates within ?days=N.
func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity(r).ID

	days := parseIntDefault(r.URL.Query().Get("days"), s.cfg.Reminders.HorizonDays)
	if days < 0 {
		days = s.cfg.Reminders.HorizonDays
	}

	list, err := s.store.ListReminders(ctx, userID)
	if err != nil {
		writeStoreError(w, "list reminders", err)
		return
	}

	var profile *model.Profile
	p, err := s.store.GetProfile(ctx, userID)
	switch {
	case err == nil:
		profile = &p
	case errors.Is(err, store.ErrNotFound):
	default:
		writeStoreError(w, "get profile", err)
		return
	}

	today := s.now().In(s.loc)
	writeData(w, http.StatusOK, reminder.Upcoming(list, profile, today, days))
}

// handleReminderICS offers one reminder as a single-event calendar file.
func (s *Server) handleReminderICS(w http.ResponseWriter, r *http.Request) {
	rem, err := s.store.GetReminder(r.Context(), identity(r).ID, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, "get reminder", err)
		return
	}
	req := ics.Request{Title: rem.Title, Date: rem.Date}
	if rem.Notes != nil {
		req.Notes = *rem.Notes
	}
	s.encodeAndOffer(w, r, req)
}

// handleEncode offers an arbitrary title/date/notes triple as a file.
func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req ics.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	s.encodeAndOffer(w, r, req)
}

func (s *Server) encodeAndOffer(w http.ResponseWriter, r *http.Request, req ics.Request) {
	if !s.cfg.Calendar.Strict {
		s.offer(w, r, s.encoder.Encode(req))
		return
	}
	doc, err := s.encoder.EncodeStrict(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.offer(w, r, doc)
}

// handleFeed offers every enabled reminder as one subscribable calendar.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListReminders(r.Context(), identity(r).ID)
	if err != nil {
		writeStoreError(w, "list reminders", err)
		return
	}
	s.offer(w, r, s.encoder.BuildFeed(list))
}

type importResponse struct {
	Data    []model.Reminder `json:"data"`
	Skipped int              `json:"skipped"`
}

// handleImport creates one custom reminder per VEVENT of an uploaded
// calendar body, or of the calendar at ?url= when given. Events without a
// usable date are skipped; the rest are written all or nothing.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity(r).ID

	var body []byte
	if src := r.URL.Query().Get("url"); src != "" {
		fetched, err := s.fetcher.Fetch(ctx, src)
		if err != nil {
			appLog.Error("calendar fetch failed", err)
			writeError(w, http.StatusBadGateway, "could not fetch calendar")
			return
		}
		body = fetched
	} else {
		read, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "calendar body too large")
			return
		}
		body = read
	}

	events, err := ics.ParseICS(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid calendar file")
		return
	}

	var (
		batch   = make([]model.Reminder, 0, len(events))
		skipped int
	)
	for _, ev := range events {
		if _, err := time.Parse(model.DateLayout, ev.Date); err != nil {
			skipped++
			continue
		}
		title := strings.TrimSpace(ev.Summary)
		if title == "" {
			title = "Imported event"
		}
		rem := model.Reminder{
			UserID:            userID,
			Type:              model.ReminderCustom,
			Title:             title,
			Date:              ev.Date,
			Enabled:           true,
			AdvanceNoticeDays: model.DefaultAdvanceNoticeDays,
			Recurring:         ev.Yearly,
		}
		if ev.Description != "" {
			d := ev.Description
			rem.Notes = &d
		}
		batch = append(batch, rem)
	}

	created, err := s.store.CreateReminders(ctx, batch)
	if err != nil {
		writeStoreError(w, "import reminders", err)
		return
	}
	resp := importResponse{Data: created, Skipped: skipped}

	appLog.Info("calendar imported", "user_id", userID, "created", len(resp.Data), "skipped", resp.Skipped)
	writeJSON(w, http.StatusCreated, resp)
}
