package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Bootstrapper creates a host pipeline and attaches it to the render surface.
type Bootstrapper struct {
	host MediaPipelineHost
	log  *slog.Logger
}

// NewBootstrapper returns a Bootstrapper over host.
func NewBootstrapper(host MediaPipelineHost, log *slog.Logger) *Bootstrapper {
	return &Bootstrapper{host: host, log: log}
}

// Open creates a pipeline, attaches it to s and waits for the first of the
// open or closed signals. Signals after the first are ignored. On failure
// after creation the pipeline is detached before returning.
func (b *Bootstrapper) Open(ctx context.Context, s RenderSurface) (Pipeline, error) {
	p, err := b.host.CreatePipeline(ctx)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	b.log.Debug("media pipeline created")

	outcome := make(chan error, 1)
	var once sync.Once
	settle := func(err error) {
		once.Do(func() { outcome <- err })
	}

	notify := func(sig PipelineSignal) {
		switch sig {
		case PipelineOpen:
			settle(nil)
		case PipelineClosed:
			settle(ErrPipelineClosed)
		}
	}
	if err := b.host.Attach(p, s, notify); err != nil {
		return nil, fmt.Errorf("attach pipeline: %w", err)
	}
	b.log.Debug("media pipeline attached, waiting on open")

	select {
	case err := <-outcome:
		if err != nil {
			b.host.Detach(p, s)
			return nil, err
		}
		b.log.Debug("media pipeline open")
		return p, nil
	case <-ctx.Done():
		b.host.Detach(p, s)
		return nil, ctx.Err()
	}
}
