package web

import (
	"errors"
	"net/http"

	"spousedetails/internal/model"
	"spousedetails/internal/store"
)

// handleGetProfile returns the caller's profile, or data:null when none
// has been saved yet.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProfile(r.Context(), identity(r).ID)
	if errors.Is(err, store.ErrNotFound) {
		writeData(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		writeStoreError(w, "get profile", err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var fields model.ProfileFields
	if !decodeJSON(w, r, &fields) {
		return
	}
	p, err := s.store.UpsertProfile(r.Context(), identity(r).ID, fields)
	if err != nil {
		writeStoreError(w, "upsert profile", err)
		return
	}
	writeData(w, http.StatusOK, p)
}

type createFieldRequest struct {
	ProfileID string         `json:"profile_id"`
	Category  model.Category `json:"category"`
	Label     string         `json:"label"`
	Value     *string        `json:"value"`
}

func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	category := model.Category(r.URL.Query().Get("category"))
	if category != "" && !category.Valid() {
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}
	fields, err := s.store.ListCustomFields(r.Context(), identity(r).ID, category)
	if err != nil {
		writeStoreError(w, "list custom fields", err)
		return
	}
	writeData(w, http.StatusOK, fields)
}

func (s *Server) handleCreateField(w http.ResponseWriter, r *http.Request) {
	var req createFieldRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := s.store.CreateCustomField(r.Context(), model.CustomField{
		UserID:    identity(r).ID,
		ProfileID: req.ProfileID,
		Category:  req.Category,
		Label:     req.Label,
		Value:     req.Value,
	})
	if err != nil {
		writeStoreError(w, "create custom field", err)
		return
	}
	writeData(w, http.StatusCreated, f)
}

func (s *Server) handleDeleteField(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := s.store.DeleteCustomField(r.Context(), identity(r).ID, id); err != nil {
		writeStoreError(w, "delete custom field", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
