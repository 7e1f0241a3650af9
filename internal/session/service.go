package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"playback-orchestrator/internal/platform/logger"
	"playback-orchestrator/internal/platform/metrics"
	"playback-orchestrator/internal/playback"
	"playback-orchestrator/internal/simhost"

	"github.com/google/uuid"
)

// DefaultLoadTimeout bounds how long Create waits for a session to load.
const DefaultLoadTimeout = 30 * time.Second

var (
	// ErrUnknownManifest is returned when the requested fixture is not in
	// the catalog.
	ErrUnknownManifest = errors.New("unknown manifest")

	// ErrSessionNotFound is returned for operations on unregistered sessions.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidRequest is returned for out-of-range periods and negative
	// seek targets.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrLoadFailed wraps the reason a session could not be loaded.
	ErrLoadFailed = errors.New("load failed")
)

// Options configures a Service.
type Options struct {
	Host        simhost.Config
	AutoPlay    bool
	LoadTimeout time.Duration
}

// Service creates playback controllers over simulated hosts and keeps them
// in a Registry.
type Service struct {
	registry Registry
	catalog  simhost.Catalog
	opts     Options
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewService returns a Service. If opts.LoadTimeout <= 0, DefaultLoadTimeout
// is used. m may be nil.
func NewService(reg Registry, catalog simhost.Catalog, opts Options, log *slog.Logger, m *metrics.Metrics) *Service {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{registry: reg, catalog: catalog, opts: opts, log: log, metrics: m}
}

// Create loads the requested period of a catalog manifest and registers the
// session once it is ready. A session that fails to load is torn down and
// not registered.
func (s *Service) Create(ctx context.Context, req CreateRequest) (SessionID, error) {
	m, ok := s.catalog[req.Manifest]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownManifest, req.Manifest)
	}
	if req.Period < 0 || req.Period >= len(m.Periods) {
		return "", fmt.Errorf("%w: period %d of %d", ErrInvalidRequest, req.Period, len(m.Periods))
	}
	autoPlay := s.opts.AutoPlay
	if req.AutoPlay != nil {
		autoPlay = *req.AutoPlay
	}

	sess := &Session{
		ID:        SessionID(uuid.NewString()),
		Manifest:  req.Manifest,
		Period:    req.Period,
		CreatedAt: time.Now().UTC(),
	}
	log := logger.ForSession(s.log, string(sess.ID), req.Period)
	sess.Host = simhost.New(s.opts.Host, log)

	ctrl, err := playback.New(sess.Host.Deps(sess), playback.Config{AutoPlay: autoPlay}, log, s.metrics)
	if err != nil {
		return "", err
	}
	sess.Controller = ctrl

	ctx, cancel := context.WithTimeout(ctx, s.opts.LoadTimeout)
	defer cancel()
	if err := ctrl.Load(ctx, m, req.Period); err != nil {
		_ = ctrl.Close()
		log.Warn("session load failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	if err := s.registry.Add(sess); err != nil {
		_ = ctrl.Close()
		return "", err
	}
	s.updateGauge()
	log.Info("session created",
		slog.String("manifest", req.Manifest),
		slog.Bool("autoplay", autoPlay),
		slog.String("state", string(ctrl.State())))
	return sess.ID, nil
}

// Get returns the view of a session.
func (s *Service) Get(id SessionID) (View, error) {
	sess, ok := s.registry.Get(id)
	if !ok {
		return View{}, ErrSessionNotFound
	}
	return View{
		ID:          sess.ID,
		Manifest:    sess.Manifest,
		CreatedAt:   sess.CreatedAt,
		Diagnostics: sess.Diagnostics(),
		Snapshot:    sess.Controller.Snapshot(),
	}, nil
}

// Play starts playback of a session.
func (s *Service) Play(id SessionID) error {
	sess, ok := s.registry.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	sess.Controller.Play()
	return nil
}

// Pause pauses a session.
func (s *Service) Pause(id SessionID) error {
	sess, ok := s.registry.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	sess.Controller.Pause()
	return nil
}

// Seek moves a session's playhead to t.
func (s *Service) Seek(id SessionID, t time.Duration) error {
	if t < 0 {
		return fmt.Errorf("%w: negative seek target", ErrInvalidRequest)
	}
	sess, ok := s.registry.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	sess.Controller.Seek(t)
	return nil
}

// Delete resets and closes a session. Deleting an unknown session is a
// no-op for idempotency.
func (s *Service) Delete(id SessionID) error {
	sess, ok := s.registry.Remove(id)
	if !ok {
		return nil
	}
	sess.Controller.Reset()
	err := sess.Controller.Close()
	s.updateGauge()
	s.log.Info("session deleted", slog.String("session_id", string(id)))
	return err
}

// Close deletes every session.
func (s *Service) Close() error {
	var errs []error
	for _, sess := range s.registry.List() {
		errs = append(errs, s.Delete(sess.ID))
	}
	return errors.Join(errs...)
}

// ActiveSessionCount returns the number of registered sessions.
func (s *Service) ActiveSessionCount() int {
	return s.registry.ActiveSessionCount()
}

func (s *Service) updateGauge() {
	if s.metrics != nil {
		s.metrics.SetActiveSessions(s.registry.ActiveSessionCount())
	}
}
