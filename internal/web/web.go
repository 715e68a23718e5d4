package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"spousedetails/internal/auth"
	"spousedetails/internal/config"
	"spousedetails/internal/ics"
	appLog "spousedetails/internal/log"
	"spousedetails/internal/model"
	"spousedetails/internal/store"
)

const maxBodyBytes = 1 << 20

// Server provides the HTTP API for profiles, custom fields and reminders.
type Server struct {
	cfg      *config.Config
	store    store.Store
	verifier auth.Verifier
	encoder  *ics.Encoder
	fetcher  *ics.Fetcher
	loc      *time.Location
	now      func() time.Time

	mux *http.ServeMux
}

// NewServer constructs a new Server. All collaborators are required.
func NewServer(cfg *config.Config, st store.Store, verifier auth.Verifier, enc *ics.Encoder) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		verifier: verifier,
		encoder:  enc,
		fetcher:  ics.NewFetcher(0),
		loc:      cfg.Location(),
		now:      time.Now,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return requestLogger(s.mux)
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/auth-test", s.handleAuthTest)
	api.HandleFunc("GET /api/db-check", s.handleDBCheck)

	api.HandleFunc("GET /api/spouse-profiles", s.handleGetProfile)
	api.HandleFunc("POST /api/spouse-profiles", s.handleUpsertProfile)

	api.HandleFunc("GET /api/custom-fields", s.handleListFields)
	api.HandleFunc("POST /api/custom-fields", s.handleCreateField)
	api.HandleFunc("DELETE /api/custom-fields", s.handleDeleteField)

	api.HandleFunc("GET /api/reminders", s.handleListReminders)
	api.HandleFunc("POST /api/reminders", s.handleCreateReminder)
	api.HandleFunc("GET /api/reminders/upcoming", s.handleUpcoming)
	api.HandleFunc("POST /api/reminders/import", s.handleImport)
	api.HandleFunc("GET /api/reminders/{id}", s.handleGetReminder)
	api.HandleFunc("PATCH /api/reminders/{id}", s.handlePatchReminder)
	api.HandleFunc("DELETE /api/reminders/{id}", s.handleDeleteReminder)
	api.HandleFunc("GET /api/reminders/{id}/ics", s.handleReminderICS)

	api.HandleFunc("GET /api/calendar.ics", s.handleFeed)
	api.HandleFunc("POST /api/ics", s.handleEncode)

	s.mux.Handle("/api/", auth.Middleware(s.verifier, func(w http.ResponseWriter, r *http.Request, err error) {
		appLog.Debug("request rejected", "path", r.URL.Path, "reason", err.Error())
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	})(api))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// identity returns the caller set by the auth middleware.
func identity(r *http.Request) model.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func (s *Server) handleAuthTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"user":      identity(r),
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDBCheck(w http.ResponseWriter, r *http.Request) {
	tables := s.store.CheckTables(r.Context())
	status := "success"
	for _, t := range tables {
		if !t.Exists {
			status = "error"
		}
	}
	appLog.Info("database check", "status", status)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"tables":    tables,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

// dataResponse is the success envelope for every JSON API response.
type dataResponse struct {
	Data any `json:"data"`
}

func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, dataResponse{Data: v})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// writeStoreError maps store errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		appLog.Error(op+" failed", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "request body is empty")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// offer hands doc to the client as a download. Once headers are out the
// failure can only be logged.
func (s *Server) offer(w http.ResponseWriter, r *http.Request, doc ics.Document) {
	if err := ics.Offer(r.Context(), ics.ResponseSink{W: w}, doc); err != nil {
		appLog.Error("file offer failed", err, "file", doc.FileName)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
