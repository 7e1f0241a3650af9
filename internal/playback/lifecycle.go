package playback

import (
	"context"
	"log/slog"
	"time"
)

func (c *Controller) startLoad(m Manifest, period int) (<-chan error, error) {
	if c.sess != nil {
		return nil, ErrAlreadyLoaded
	}

	c.gen++
	ctx, cancel := context.WithCancel(c.baseCtx)
	s := &session{
		gen:         c.gen,
		ctx:         ctx,
		cancel:      cancel,
		manifest:    m,
		period:      period,
		tracks:      make(map[TrackKind]*TrackDescriptor),
		controllers: make(map[TrackKind]BufferController),
		done:        make(chan error, 1),
		loadedAt:    time.Now(),
	}
	if c.deps.Protection != nil {
		s.protection = newProtectionManager(c.deps.Protection, c.log)
	}
	c.sess = s
	done := s.done

	c.setState(StateBootstrapping)
	c.log.Info("stream start loading", slog.Int("period", period))

	surface := c.deps.Surface
	c.spawn(func() {
		p, err := c.boot.Open(ctx, surface)
		c.deliver(s.gen,
			func() { c.onBootstrapped(p, err) },
			func() {
				if p != nil {
					c.deps.Pipelines.Detach(p, surface)
				}
			})
	})
	return done, nil
}

func (c *Controller) onBootstrapped(p Pipeline, err error) {
	s := c.sess
	if err != nil {
		c.failLoad(newError(KindMediaPipelineError, "pipeline", "open media pipeline", err))
		return
	}
	s.pipeline = p
	s.barrier = newJoinBarrier(trackKinds...)
	c.setState(StateTrackInitializing)
	c.log.Debug("media pipeline set up, initializing tracks")

	req := trackRequest{manifest: s.manifest, period: s.period, pipeline: p}
	for _, kind := range trackKinds {
		c.spawn(func() {
			out := c.tracks.run(s.ctx, req, kind)
			c.deliver(s.gen,
				func() { c.onTrackReady(out) },
				func() {
					if out.ctrl != nil {
						out.ctrl.Reset(true, p)
					}
				})
		})
	}
}

func (c *Controller) onTrackReady(out trackOutcome) {
	s := c.sess
	outcome := "ready"
	switch {
	case out.desc == nil && out.diag == nil:
		outcome = "absent"
	case out.ctrl == nil:
		outcome = "degraded"
	}

	if out.desc != nil {
		s.tracks[out.kind] = out.desc
	}
	if out.diag != nil {
		c.report(out.diag)
	}
	if out.ctrl != nil {
		s.controllers[out.kind] = out.ctrl
	}
	if c.metrics != nil {
		c.metrics.IncTracks(string(out.kind), outcome)
	}
	c.log.Debug("track pipeline reported",
		slog.String("kind", string(out.kind)),
		slog.String("outcome", outcome),
		slog.Int("pending", s.barrier.pending()-1))

	if s.barrier.report(out.kind) {
		c.onTracksJoined()
	}
}

func (c *Controller) onTracksJoined() {
	s := c.sess
	if len(s.controllers) == 0 {
		c.failLoad(newError(KindManifestError, "nostreams", "no streams to play", ErrNoPlayableStreams))
		return
	}
	c.log.Info("media pipeline initialized", slog.Int("controllers", len(s.controllers)))

	if s.protection != nil && s.protection.Pending() > 0 {
		if e := s.protection.Resolve(s.codec(KindVideo), s.protectionData()); e != nil {
			c.pause()
			c.report(e)
		}
	}

	req := trackRequest{manifest: s.manifest, period: s.period, pipeline: s.pipeline}
	c.spawn(func() {
		res := c.initPlayback(s.ctx, req)
		c.deliver(s.gen, func() { c.onPlaybackInitialized(res) }, nil)
	})
}

type playbackInit struct {
	duration time.Duration
	start    time.Duration
	err      *Error
}

// initPlayback resolves period duration, sets the total duration on the
// pipeline and resolves the period start. It runs on a task goroutine.
func (c *Controller) initPlayback(ctx context.Context, req trackRequest) playbackInit {
	var res playbackInit
	acc := c.deps.Manifest
	live := acc.IsLive(req.manifest)

	d, err := acc.DurationForPeriod(ctx, req.manifest, req.period, live)
	if err != nil {
		res.err = newError(KindManifestError, "duration", "resolve period duration", err)
		return res
	}
	res.duration = d

	total, err := acc.Duration(ctx, req.manifest, live)
	if err != nil {
		res.err = newError(KindManifestError, "duration", "resolve presentation duration", err)
		return res
	}
	c.log.Debug("setting duration", slog.Duration("duration", total))
	if err := c.deps.Pipelines.SetDuration(ctx, req.pipeline, total); err != nil {
		res.err = newError(KindMediaPipelineError, "duration", "set pipeline duration", err)
		return res
	}

	start, err := acc.PeriodStart(ctx, req.manifest, req.period)
	if err != nil {
		res.err = newError(KindManifestError, "periodstart", "resolve period start", err)
		return res
	}
	res.start = start
	return res
}

func (c *Controller) onPlaybackInitialized(res playbackInit) {
	s := c.sess
	if res.err != nil {
		c.failLoad(res.err)
		return
	}
	s.duration = res.duration
	s.startTime = res.start
	s.initialized = true
	if s.errored {
		c.log.Warn("render surface errored during load")
		c.finishLoad(ErrSessionErrored)
		return
	}
	c.setState(StateReady)
	c.log.Info("playback initialized",
		slog.Duration("duration", s.duration),
		slog.Duration("start", s.startTime),
		slog.Duration("elapsed", time.Since(s.loadedAt)))
	if c.metrics != nil {
		c.metrics.IncLoads("ready")
	}

	if !c.autoPlay {
		c.finishLoad(nil)
		return
	}
	c.play()
	s.awaitingLoaded = true
	if s.loaded {
		c.onLoaded()
	}
}

// onLoaded completes an autoplay load once the surface has loaded. Periods
// after the first are paused straight away so they do not buffer early.
func (c *Controller) onLoaded() {
	s := c.sess
	if s == nil {
		return
	}
	s.loaded = true
	if !s.awaitingLoaded {
		return
	}
	s.awaitingLoaded = false
	c.log.Debug("surface loaded")
	if s.period > 0 {
		c.pause()
	}
	c.finishLoad(nil)
}

func (c *Controller) failLoad(e *Error) {
	c.log.Error("load failed", slog.String("error", e.Error()))
	c.report(e)
	c.setState(StateErrored)
	if c.metrics != nil {
		c.metrics.IncLoads("failed")
	}
	c.finishLoad(e)
}

func (c *Controller) finishLoad(err error) {
	s := c.sess
	if s == nil || s.done == nil {
		return
	}
	s.done <- err
	s.done = nil
}

func (c *Controller) play() {
	s := c.sess
	if s == nil || !s.initialized {
		c.log.Debug("play ignored before initialization")
		return
	}
	if c.state == StateErrored {
		c.log.Debug("play ignored on errored session")
		return
	}
	c.log.Debug("do play")
	c.deps.Surface.Play()
	c.settle(StatePlaying)
}

func (c *Controller) pause() {
	c.log.Debug("do pause")
	c.deps.Surface.Pause()
	s := c.sess
	if s == nil {
		return
	}
	for _, bc := range s.active() {
		bc.Stop()
	}
	if s.initialized && c.state != StateErrored {
		c.settle(StatePaused)
	}
}

func (c *Controller) seek(t time.Duration) {
	s := c.sess
	if s == nil || !s.initialized {
		c.log.Debug("seek ignored before initialization")
		return
	}
	if c.state == StateErrored {
		c.log.Debug("seek ignored on errored session")
		return
	}
	c.log.Debug("do seek", slog.Duration("time", t))
	s.programmaticSeek = true
	if c.state != StateSeeking {
		s.resumeState = c.state
	}
	c.setState(StateSeeking)
	c.deps.Surface.SetCurrentTime(t)
	for _, bc := range s.active() {
		bc.Seek(t)
	}
}

func (c *Controller) onError(code HostErrorCode) {
	if code == HostErrNone {
		return
	}
	c.log.Error("render surface error", slog.String("code", code.String()))
	c.report(newError(KindHostPlaybackError, "mediaerror", code.String(), nil))
	c.pause()
	s := c.sess
	if s == nil {
		return
	}
	s.errored = true
	c.setState(StateErrored)
	if s.awaitingLoaded {
		s.awaitingLoaded = false
		c.finishLoad(ErrSessionErrored)
	}
}

// bufferingCompleted signals end of stream once every active controller has
// run out of data. It fires at most once per session.
func (c *Controller) bufferingCompleted() {
	s := c.sess
	if s == nil || s.pipeline == nil || s.endOfStream {
		return
	}
	active := s.active()
	if len(active) == 0 {
		return
	}
	for _, bc := range active {
		if !bc.IsBufferingCompleted() {
			return
		}
	}
	s.endOfStream = true
	c.log.Info("buffering completed, signalling end of stream")
	if err := c.deps.Pipelines.SignalEndOfStream(s.pipeline); err != nil {
		c.report(newError(KindMediaPipelineError, "endofstream", "signal end of stream", err))
		return
	}
	if c.metrics != nil {
		c.metrics.IncEndOfStream()
	}
}

func (c *Controller) manifestHasUpdated(m Manifest) {
	s := c.sess
	if s == nil {
		return
	}
	s.manifest = m
	c.log.Debug("manifest updated, refreshing track data")

	for kind, bc := range s.controllers {
		index := -1
		if d := s.tracks[kind]; d != nil {
			index = d.Index
		}
		current := bc.Data()
		period := s.period
		c.spawn(func() {
			var (
				data *TrackData
				err  error
			)
			if current != nil && current.ID != "" {
				data, err = c.deps.Manifest.DataForID(s.ctx, current.ID, m, period)
			} else {
				data, err = c.deps.Manifest.DataForIndex(s.ctx, index, m, period)
			}
			c.deliver(s.gen, func() { c.applyTrackData(kind, bc, data, err) }, nil)
		})
	}
}

func (c *Controller) applyTrackData(kind TrackKind, bc BufferController, data *TrackData, err error) {
	s := c.sess
	if err != nil {
		c.report(newError(KindManifestError, "trackdata", "refresh "+string(kind)+" track", err))
		return
	}
	if data == nil || s.controllers[kind] != bc {
		return
	}
	bc.SetData(data)
	if d := s.tracks[kind]; d != nil {
		replaced := *d
		replaced.Data = data
		s.tracks[kind] = &replaced
	}
}

func (c *Controller) reset() {
	s := c.sess
	if s == nil {
		return
	}
	c.pause()
	for _, bc := range s.active() {
		bc.Reset(s.errored, s.pipeline)
	}
	if s.protection != nil {
		s.protection.Teardown()
	}
	if s.pipeline != nil {
		c.deps.Pipelines.Detach(s.pipeline, c.deps.Surface)
	}
	s.cancel()
	c.finishLoad(ErrLoadAborted)

	c.sess = nil
	c.setState(StateTornDown)
	c.log.Info("session torn down", slog.Bool("errored", s.errored))
}
