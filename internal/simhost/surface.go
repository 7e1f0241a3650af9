package simhost

import (
	"sync"
	"time"

	"playback-orchestrator/internal/playback"
)

// Surface is an in-memory render surface. It raises the events a media
// element would, synchronously from the calling goroutine.
type Surface struct {
	mu        sync.Mutex
	listeners []func(playback.SurfaceEvent)
	current   time.Duration
	paused    bool
	loaded    bool
	attached  int
}

// NewSurface returns a paused surface at time zero.
func NewSurface() *Surface {
	return &Surface{paused: true}
}

// Subscribe implements playback.RenderSurface.Subscribe.
func (s *Surface) Subscribe(fn func(playback.SurfaceEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Surface) emit(events ...playback.SurfaceEvent) {
	s.mu.Lock()
	ls := make([]func(playback.SurfaceEvent), len(s.listeners))
	copy(ls, s.listeners)
	s.mu.Unlock()
	for _, ev := range events {
		for _, fn := range ls {
			fn(ev)
		}
	}
}

// Play implements playback.RenderSurface.Play. The first play on an
// attached surface also reports metadata as loaded.
func (s *Surface) Play() {
	s.mu.Lock()
	s.paused = false
	first := !s.loaded && s.attached > 0
	if first {
		s.loaded = true
	}
	s.mu.Unlock()

	s.emit(playback.SurfaceEvent{Type: playback.SurfacePlay})
	if first {
		s.emit(playback.SurfaceEvent{Type: playback.SurfaceLoadedMetadata})
	}
}

// Pause implements playback.RenderSurface.Pause. Pausing a paused surface
// raises nothing.
func (s *Surface) Pause() {
	s.mu.Lock()
	was := s.paused
	s.paused = true
	s.mu.Unlock()
	if !was {
		s.emit(playback.SurfaceEvent{Type: playback.SurfacePause})
	}
}

// SetCurrentTime implements playback.RenderSurface.SetCurrentTime.
func (s *Surface) SetCurrentTime(t time.Duration) {
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
	s.emit(
		playback.SurfaceEvent{Type: playback.SurfaceSeeking},
		playback.SurfaceEvent{Type: playback.SurfaceSeeked},
	)
}

// CurrentTime implements playback.RenderSurface.CurrentTime.
func (s *Surface) CurrentTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Paused reports whether the surface is paused.
func (s *Surface) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// UserSeek moves the playhead as a viewer would, raising seeking and seeked.
func (s *Surface) UserSeek(t time.Duration) { s.SetCurrentTime(t) }

// Fail raises a media error.
func (s *Surface) Fail(code playback.HostErrorCode) {
	s.emit(playback.SurfaceEvent{Type: playback.SurfaceError, Code: code})
}

func (s *Surface) attach() {
	s.mu.Lock()
	s.attached++
	s.mu.Unlock()
}

func (s *Surface) detach() {
	s.mu.Lock()
	if s.attached > 0 {
		s.attached--
	}
	s.loaded = false
	s.mu.Unlock()
}
