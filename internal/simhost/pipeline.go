package simhost

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"playback-orchestrator/internal/playback"

	"github.com/samber/lo"
)

// ErrPipelineEnded is returned when a pipeline is used after end of stream.
var ErrPipelineEnded = errors.New("pipeline already ended")

// Pipeline is the simulated host media pipeline.
type Pipeline struct {
	ID int

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	attached bool
	sinks    []string
}

// Duration returns the duration set on the pipeline.
func (p *Pipeline) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// Ended reports whether end of stream was signalled.
func (p *Pipeline) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ended
}

// Attached reports whether the pipeline is bound to a surface.
func (p *Pipeline) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attached
}

// Sinks returns the codec or MIME type of every sink created on p.
func (p *Pipeline) Sinks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sinks...)
}

// Sink is a buffer sink on a simulated pipeline.
type Sink struct {
	Type string
}

// TextSink is a sink with its own text renderer.
type TextSink struct {
	Sink

	mu       sync.Mutex
	mimeType string
	ctrl     playback.BufferController
}

// InitializeText implements playback.TextSink.InitializeText.
func (t *TextSink) InitializeText(mimeType string, ctrl playback.BufferController) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mimeType, t.ctrl = mimeType, ctrl
	return nil
}

// Renderer returns the MIME type and controller the renderer was bound to.
func (t *TextSink) Renderer() (string, playback.BufferController) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mimeType, t.ctrl
}

// PipelineHost implements playback.MediaPipelineHost.
type PipelineHost struct {
	log      *slog.Logger
	failOpen bool

	mu        sync.Mutex
	next      int
	pipelines []*Pipeline
}

// NewPipelineHost returns a host. With failOpen set, attached pipelines
// close instead of opening.
func NewPipelineHost(log *slog.Logger, failOpen bool) *PipelineHost {
	return &PipelineHost{log: log, failOpen: failOpen}
}

// CreatePipeline implements playback.MediaPipelineHost.CreatePipeline.
func (h *PipelineHost) CreatePipeline(ctx context.Context) (playback.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	p := &Pipeline{ID: h.next}
	h.pipelines = append(h.pipelines, p)
	return p, nil
}

// Attach implements playback.MediaPipelineHost.Attach. The signal is raised
// before Attach returns.
func (h *PipelineHost) Attach(p playback.Pipeline, s playback.RenderSurface, notify func(playback.PipelineSignal)) error {
	pl, err := h.pipeline(p)
	if err != nil {
		return err
	}
	if h.failOpen {
		h.log.Debug("pipeline refused to open", slog.Int("pipeline", pl.ID))
		notify(playback.PipelineClosed)
		return nil
	}
	pl.mu.Lock()
	pl.attached = true
	pl.mu.Unlock()
	if surf, ok := s.(*Surface); ok {
		surf.attach()
	}
	notify(playback.PipelineOpen)
	return nil
}

// Detach implements playback.MediaPipelineHost.Detach.
func (h *PipelineHost) Detach(p playback.Pipeline, s playback.RenderSurface) {
	pl, err := h.pipeline(p)
	if err != nil {
		return
	}
	pl.mu.Lock()
	was := pl.attached
	pl.attached = false
	pl.mu.Unlock()
	if surf, ok := s.(*Surface); ok && was {
		surf.detach()
	}
}

// SetDuration implements playback.MediaPipelineHost.SetDuration.
func (h *PipelineHost) SetDuration(ctx context.Context, p playback.Pipeline, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pl, err := h.pipeline(p)
	if err != nil {
		return err
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.duration = d
	return nil
}

// SignalEndOfStream implements playback.MediaPipelineHost.SignalEndOfStream.
func (h *PipelineHost) SignalEndOfStream(p playback.Pipeline) error {
	pl, err := h.pipeline(p)
	if err != nil {
		return err
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.ended {
		return ErrPipelineEnded
	}
	pl.ended = true
	return nil
}

// CreateSink implements playback.MediaPipelineHost.CreateSink. Text types
// get a TextSink.
func (h *PipelineHost) CreateSink(ctx context.Context, p playback.Pipeline, codecOrMime string) (playback.Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pl, err := h.pipeline(p)
	if err != nil {
		return nil, err
	}
	pl.mu.Lock()
	pl.sinks = append(pl.sinks, codecOrMime)
	pl.mu.Unlock()
	if strings.HasPrefix(codecOrMime, "text/") {
		return &TextSink{Sink: Sink{Type: codecOrMime}}, nil
	}
	return &Sink{Type: codecOrMime}, nil
}

// Pipelines returns every pipeline created so far.
func (h *PipelineHost) Pipelines() []*Pipeline {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Pipeline(nil), h.pipelines...)
}

// Attached returns the pipelines currently bound to a surface.
func (h *PipelineHost) Attached() []*Pipeline {
	return lo.Filter(h.Pipelines(), func(p *Pipeline, _ int) bool { return p.Attached() })
}

func (h *PipelineHost) pipeline(p playback.Pipeline) (*Pipeline, error) {
	pl, ok := p.(*Pipeline)
	if !ok || pl == nil {
		return nil, errors.New("simhost: foreign pipeline handle")
	}
	return pl, nil
}

// Capabilities implements playback.CapabilityProbe from a list of codec
// families ("avc1", "mp4a") or exact codec strings.
type Capabilities struct {
	protected bool
	codecs    map[string]bool
}

// NewCapabilities returns a probe supporting codecs.
func NewCapabilities(codecs []string, protected bool) *Capabilities {
	return &Capabilities{
		protected: protected,
		codecs:    lo.Associate(codecs, func(c string) (string, bool) { return strings.ToLower(c), true }),
	}
}

// SupportsProtectedPlayback implements playback.CapabilityProbe.
func (c *Capabilities) SupportsProtectedPlayback() bool { return c.protected }

// SupportsCodec implements playback.CapabilityProbe.
func (c *Capabilities) SupportsCodec(_ playback.RenderSurface, codec string) bool {
	codec = strings.ToLower(strings.TrimSpace(codec))
	if codec == "" {
		return false
	}
	if c.codecs[codec] {
		return true
	}
	family, _, _ := strings.Cut(codec, ".")
	return c.codecs[family]
}
