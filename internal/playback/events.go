package playback

import "log/slog"

func (c *Controller) onSurfaceEvent(ev SurfaceEvent) {
	switch ev.Type {
	case SurfacePlay:
		c.onSurfacePlay()
	case SurfacePause:
		c.onSurfacePause()
	case SurfaceError:
		c.onError(ev.Code)
	case SurfaceSeeking:
		c.onSurfaceSeeking()
	case SurfaceSeeked:
		c.onSurfaceSeeked()
	case SurfaceLoadedMetadata:
		c.onLoaded()
	case SurfaceTimeUpdate:
	}
}

// onSurfacePlay starts segment loading. The first play after Ready seeks
// every controller to the period start; later ones resume in place.
func (c *Controller) onSurfacePlay() {
	s := c.sess
	if s == nil || !s.initialized || c.state == StateErrored {
		return
	}
	if !s.started {
		s.started = true
		c.log.Debug("starting segment loading", slog.Duration("offset", s.startTime))
		for _, bc := range s.active() {
			bc.Seek(s.startTime)
		}
	} else {
		for _, bc := range s.active() {
			bc.Start()
		}
	}
	c.settle(StatePlaying)
}

func (c *Controller) onSurfacePause() {
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

// onSurfaceSeeking follows a user seek on the surface. Seeks the controller
// issued itself are skipped until the surface reports them complete.
func (c *Controller) onSurfaceSeeking() {
	s := c.sess
	if s == nil || !s.initialized || c.state == StateErrored {
		return
	}
	if s.programmaticSeek {
		c.log.Debug("programmatic seek, ignoring seeking event")
		return
	}
	t := c.deps.Surface.CurrentTime()
	c.log.Debug("user seek", slog.Duration("time", t))
	if c.state != StateSeeking {
		s.resumeState = c.state
	}
	c.setState(StateSeeking)
	for _, bc := range s.active() {
		bc.Seek(t)
	}
}

func (c *Controller) onSurfaceSeeked() {
	s := c.sess
	if s == nil {
		return
	}
	s.programmaticSeek = false
	if c.state == StateSeeking {
		next := s.resumeState
		if next == "" {
			next = StateReady
		}
		c.setState(next)
	}
	c.log.Debug("seek complete")
}

func (c *Controller) onKeyEvent(ev KeyEvent) {
	s := c.sess
	switch ev.Type {
	case KeyNeeded:
		if s == nil || s.protection == nil {
			c.log.Debug("need-key without a session, dropped")
			return
		}
		if e := s.protection.NeedKey(ev.InitDataType, ev.InitData, s.codec(KindVideo), s.protectionData()); e != nil {
			c.pause()
			c.report(e)
		}

	case KeyMessage:
		if s == nil || s.protection == nil {
			return
		}
		kid := s.protection.KeySystem()
		if kid == "" {
			c.pause()
			c.report(keyMessageError(ErrNoKeySystem))
			return
		}
		msg := DecodeMessage(ev.Message)
		ctx, gen := s.ctx, s.gen
		c.log.Debug("got a key message", slog.String("kid", string(kid)))
		c.spawn(func() {
			err := c.deps.Protection.UpdateFromMessage(ctx, kid, ev.Session, msg, ev.DestinationURL)
			if err == nil {
				return
			}
			c.deliver(gen, func() {
				c.pause()
				c.report(keyMessageError(err))
			}, nil)
		})

	case KeyAdded:
		c.log.Info("key added")

	case KeyError:
		// Key session errors are surfaced without pausing; playback may
		// continue on keys that are still valid.
		c.report(keySessionError(ev))
	}
}
