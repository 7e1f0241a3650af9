package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Handler exposes session control endpoints using go-chi.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler returns a Handler that uses the given Service and Logger.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sessionID(r *http.Request) SessionID {
	return SessionID(chi.URLParam(r, "session_id"))
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrUnknownManifest):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrLoadFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Create handles POST /sessions.
// Body: { "manifest": "bbb", "period": 0, "autoplay": true }.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid session body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.Manifest == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	id, err := h.svc.Create(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error("create session failed", slog.String("error", err.Error()))
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, CreateResponse{ID: id})
}

// Get handles GET /sessions/{session_id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Get(sessionID(r))
	if err != nil {
		w.WriteHeader(statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Play handles POST /sessions/{session_id}/play.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Play(sessionID(r)); err != nil {
		w.WriteHeader(statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Pause handles POST /sessions/{session_id}/pause.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Pause(sessionID(r)); err != nil {
		w.WriteHeader(statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Seek handles POST /sessions/{session_id}/seek.
// Body: { "time": 12.5 }.
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid seek body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	t := time.Duration(req.Time * float64(time.Second))
	if err := h.svc.Seek(sessionID(r), t); err != nil {
		w.WriteHeader(statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /sessions/{session_id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if err := h.svc.Delete(id); err != nil {
		h.log.Error("delete session failed", slog.String("session_id", string(id)), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Routes registers the session endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/sessions", h.Create)
	r.Route("/sessions/{session_id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Post("/play", h.Play)
		r.Post("/pause", h.Pause)
		r.Post("/seek", h.Seek)
	})
}
