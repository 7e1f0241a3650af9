package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"playback-orchestrator/internal/platform/metrics"
)

// Deps are the host collaborators a Controller drives. Protection, Errors,
// Scheduler and Fragments are optional.
type Deps struct {
	Surface      RenderSurface
	Manifest     ManifestAccessor
	Pipelines    MediaPipelineHost
	Capabilities CapabilityProbe
	Protection   ContentProtectionHost
	Controllers  BufferControllerFactory
	Scheduler    Scheduler
	Fragments    FragmentCoordinator
	Errors       ErrorHandler
}

func (d Deps) validate() error {
	switch {
	case d.Surface == nil:
		return errors.New("playback: render surface is required")
	case d.Manifest == nil:
		return errors.New("playback: manifest accessor is required")
	case d.Pipelines == nil:
		return errors.New("playback: media pipeline host is required")
	case d.Capabilities == nil:
		return errors.New("playback: capability probe is required")
	case d.Controllers == nil:
		return errors.New("playback: buffer controller factory is required")
	}
	return nil
}

// Config holds per-controller options.
type Config struct {
	AutoPlay bool
}

// session is the state of one loaded period. It is created by Load and
// dropped by Reset, and is only touched from the event loop.
type session struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc

	manifest Manifest
	period   int
	pipeline Pipeline

	barrier     *joinBarrier
	tracks      map[TrackKind]*TrackDescriptor
	controllers map[TrackKind]BufferController
	protection  *ProtectionManager

	duration    time.Duration
	startTime   time.Duration
	initialized bool
	errored     bool

	loaded         bool
	awaitingLoaded bool
	started        bool

	programmaticSeek bool
	resumeState      State
	endOfStream      bool

	done     chan error
	loadedAt time.Time
}

func (s *session) codec(kind TrackKind) string {
	if d := s.tracks[kind]; d != nil {
		return d.Codec
	}
	return ""
}

// protectionData prefers the video track's descriptor.
func (s *session) protectionData() *ProtectionData {
	for _, k := range []TrackKind{KindVideo, KindAudio} {
		if d := s.tracks[k]; d != nil && d.Protection != nil {
			return d.Protection
		}
	}
	return nil
}

// active returns the live buffer controllers in a stable order.
func (s *session) active() []BufferController {
	out := make([]BufferController, 0, len(s.controllers))
	for _, k := range trackKinds {
		if c := s.controllers[k]; c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Controller is the playback lifecycle controller for one period. All
// session state is owned by a single event loop goroutine; public methods
// post work to that loop and wait for it to run.
//
// Public methods must not be called from inside a collaborator method the
// controller itself invoked (they would wait on the loop that is calling
// them). Subscription callbacks are exempt: they never wait.
type Controller struct {
	deps    Deps
	log     *slog.Logger
	metrics *metrics.Metrics
	boot    *Bootstrapper
	tracks  *TrackInitializer

	inbox     *mailbox
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	tasks     sync.WaitGroup
	baseCtx   context.Context
	stopTasks context.CancelFunc

	// Owned by the event loop.
	state    State
	gen      uint64
	sess     *session
	autoPlay bool
}

// New returns a running Controller. log and m may be nil.
func New(deps Deps, cfg Config, log *slog.Logger, m *metrics.Metrics) (*Controller, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		deps:      deps,
		log:       log,
		metrics:   m,
		boot:      NewBootstrapper(deps.Pipelines, log),
		tracks:    newTrackInitializer(deps, log),
		inbox:     newMailbox(),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
		baseCtx:   ctx,
		stopTasks: cancel,
		state:     StateIdle,
		autoPlay:  cfg.AutoPlay,
	}

	deps.Surface.Subscribe(func(ev SurfaceEvent) {
		c.inbox.post(func() { c.onSurfaceEvent(ev) })
	})
	if deps.Protection != nil {
		if err := deps.Protection.Init(deps.Surface); err != nil {
			cancel()
			return nil, err
		}
		deps.Protection.Subscribe(func(ev KeyEvent) {
			c.inbox.post(func() { c.onKeyEvent(ev) })
		})
	}

	go c.run()
	return c, nil
}

func (c *Controller) run() {
	defer close(c.stopped)
	for {
		select {
		case <-c.quit:
			return
		case <-c.inbox.notify:
			for _, fn := range c.inbox.drain() {
				fn()
			}
		}
	}
}

// call runs fn on the event loop and waits for it. It reports false if the
// controller is closed.
func (c *Controller) call(fn func()) bool {
	done := make(chan struct{})
	if !c.inbox.post(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-c.stopped:
		return false
	}
}

// spawn runs fn on a task goroutine tracked by Close.
func (c *Controller) spawn(fn func()) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		fn()
	}()
}

// deliver posts a task result back to the loop. apply runs only if the
// session that issued the task is still current; otherwise discard runs so
// whatever the task produced can be released.
func (c *Controller) deliver(gen uint64, apply, discard func()) {
	ok := c.inbox.post(func() {
		if c.sess == nil || c.sess.gen != gen {
			c.log.Debug("discarding stale completion", slog.Uint64("generation", gen))
			if discard != nil {
				discard()
			}
			return
		}
		apply()
	})
	if !ok && discard != nil {
		discard()
	}
}

// Close resets the session and stops the event loop. It waits for in-flight
// collaborator calls to return.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.call(c.reset)
		c.inbox.close()
		close(c.quit)
		c.stopTasks()
		<-c.stopped
		c.tasks.Wait()
	})
	return nil
}

// Load stands up the media pipeline and tracks of period in m and returns
// once the session is ready (and, with autoplay, once the surface has
// loaded). If ctx ends first Load returns ctx.Err() and loading continues;
// call Reset to abandon it.
func (c *Controller) Load(ctx context.Context, m Manifest, period int) error {
	var (
		done <-chan error
		err  error
	)
	if !c.call(func() { done, err = c.startLoad(m, period) }) {
		return ErrClosed
	}
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrClosed
	}
}

// Play starts playback. It does nothing until the session is initialized.
func (c *Controller) Play() { c.call(c.play) }

// Pause pauses the surface and stops every active buffer controller.
func (c *Controller) Pause() { c.call(c.pause) }

// Seek moves playback to t. It does nothing until the session is initialized.
func (c *Controller) Seek(t time.Duration) { c.call(func() { c.seek(t) }) }

// OnError handles a render surface error code.
func (c *Controller) OnError(code HostErrorCode) { c.call(func() { c.onError(code) }) }

// BufferingCompleted is called by buffer controllers when they have no more
// data to append.
func (c *Controller) BufferingCompleted() { c.call(c.bufferingCompleted) }

// ManifestHasUpdated pushes refreshed track data from m to every active
// buffer controller.
func (c *Controller) ManifestHasUpdated(m Manifest) { c.call(func() { c.manifestHasUpdated(m) }) }

// Reset tears the session down. Calling it again is a no-op.
func (c *Controller) Reset() { c.call(c.reset) }

// State returns the lifecycle state.
func (c *Controller) State() State {
	st := StateTornDown
	c.call(func() { st = c.state })
	return st
}

// Initialized reports whether the session reached Ready.
func (c *Controller) Initialized() bool {
	var ok bool
	c.call(func() { ok = c.sess != nil && c.sess.initialized })
	return ok
}

// Duration returns the resolved duration of the loaded period.
func (c *Controller) Duration() time.Duration {
	var d time.Duration
	c.call(func() {
		if c.sess != nil {
			d = c.sess.duration
		}
	})
	return d
}

// StartTime returns the resolved start of the loaded period.
func (c *Controller) StartTime() time.Duration {
	var d time.Duration
	c.call(func() {
		if c.sess != nil {
			d = c.sess.startTime
		}
	})
	return d
}

// PeriodIndex returns the loaded period, or -1.
func (c *Controller) PeriodIndex() int {
	idx := -1
	c.call(func() {
		if c.sess != nil {
			idx = c.sess.period
		}
	})
	return idx
}

// AutoPlay reports whether Load starts playback on its own.
func (c *Controller) AutoPlay() bool {
	var v bool
	c.call(func() { v = c.autoPlay })
	return v
}

// SetAutoPlay changes autoplay for subsequent loads.
func (c *Controller) SetAutoPlay(v bool) { c.call(func() { c.autoPlay = v }) }

// BufferController returns the active controller for kind, or nil.
func (c *Controller) BufferController(kind TrackKind) BufferController {
	var bc BufferController
	c.call(func() {
		if c.sess != nil {
			bc = c.sess.controllers[kind]
		}
	})
	return bc
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{State: StateTornDown, PeriodIndex: -1}
	c.call(func() {
		snap = Snapshot{State: c.state, PeriodIndex: -1, AutoPlay: c.autoPlay, Controllers: map[TrackKind]int{}}
		s := c.sess
		if s == nil {
			return
		}
		snap.PeriodIndex = s.period
		snap.Initialized = s.initialized
		snap.Errored = s.errored
		snap.Duration = s.duration
		snap.StartTime = s.startTime
		snap.VideoCodec = s.codec(KindVideo)
		snap.AudioCodec = s.codec(KindAudio)
		snap.EndOfStream = s.endOfStream
		for kind := range s.controllers {
			idx := -1
			if d := s.tracks[kind]; d != nil {
				idx = d.Index
			}
			snap.Controllers[kind] = idx
		}
		if s.protection != nil {
			snap.KeySystem = s.protection.KeySystem()
			snap.PendingInits = s.protection.Pending()
		}
	})
	return snap
}

// setState moves to st. An errored session only leaves Errored by being
// torn down.
func (c *Controller) setState(st State) {
	if c.state == st {
		return
	}
	if c.state == StateErrored && st != StateTornDown {
		c.log.Debug("errored session, transition refused", slog.String("to", string(st)))
		return
	}
	c.log.Debug("state transition", slog.String("from", string(c.state)), slog.String("to", string(st)))
	c.state = st
}

// settle moves to st, or records st as the state to return to once an
// in-flight seek completes.
func (c *Controller) settle(st State) {
	if c.state == StateSeeking && c.sess != nil {
		c.sess.resumeState = st
		return
	}
	c.setState(st)
}

func (c *Controller) report(e *Error) {
	c.log.Warn("playback diagnostic",
		slog.String("kind", string(e.Kind)),
		slog.String("id", e.ID),
		slog.String("error", e.Error()))
	if c.metrics != nil {
		c.metrics.IncErrors(string(e.Kind))
	}
	if c.deps.Errors != nil {
		c.deps.Errors.HandleError(e)
	}
}
