package session

import (
	"sync"
	"time"

	"playback-orchestrator/internal/playback"
	"playback-orchestrator/internal/simhost"
)

// SessionID uniquely identifies a playback session.
type SessionID string

// CreateRequest is the JSON payload for creating a session.
type CreateRequest struct {
	Manifest string `json:"manifest"`
	Period   int    `json:"period"`
	// AutoPlay overrides the server default when set.
	AutoPlay *bool `json:"autoplay,omitempty"`
}

// SeekRequest is the JSON payload for seeking. Time is in seconds.
type SeekRequest struct {
	Time float64 `json:"time"`
}

// CreateResponse is returned when a session is created.
type CreateResponse struct {
	ID SessionID `json:"id"`
}

// View is the JSON representation of a session.
type View struct {
	ID          SessionID `json:"id"`
	Manifest    string    `json:"manifest"`
	CreatedAt   time.Time `json:"created_at"`
	Diagnostics []string  `json:"diagnostics,omitempty"`
	playback.Snapshot
}

// Session is one registered playback controller and the simulated host it
// drives.
type Session struct {
	ID         SessionID
	Manifest   string
	Period     int
	CreatedAt  time.Time
	Controller *playback.Controller
	Host       *simhost.Host

	mu          sync.Mutex
	diagnostics []string
}

// HandleError implements playback.ErrorHandler by keeping the diagnostic for
// the session view.
func (s *Session) HandleError(e *playback.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics = append(s.diagnostics, e.Error())
}

// Diagnostics returns a copy of the diagnostics reported so far.
func (s *Session) Diagnostics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.diagnostics...)
}
