package simhost

import (
	"context"
	"sync"
	"time"

	"playback-orchestrator/internal/playback"
)

// Buffer is a simulated buffer controller. It does no I/O; it records what
// the lifecycle core asks of it. A protected track raises need-key the first
// time it starts loading.
type Buffer struct {
	kind       playback.TrackKind
	protection *Protection

	mu        sync.Mutex
	cfg       playback.BufferConfig
	data      *playback.TrackData
	running   bool
	position  time.Duration
	completed bool
	requested bool
	resets    []bool
}

// Initialize implements playback.BufferController.Initialize.
func (b *Buffer) Initialize(ctx context.Context, cfg playback.BufferConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg, b.data = cfg, cfg.Data
	return nil
}

// Start implements playback.BufferController.Start.
func (b *Buffer) Start() {
	b.mu.Lock()
	b.running = true
	b.mu.Unlock()
	b.requestKey()
}

// Stop implements playback.BufferController.Stop.
func (b *Buffer) Stop() {
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()
}

// Seek implements playback.BufferController.Seek. Seeking restarts loading
// from t.
func (b *Buffer) Seek(t time.Duration) {
	b.mu.Lock()
	b.position = t
	b.running = true
	b.completed = false
	b.mu.Unlock()
	b.requestKey()
}

// Reset implements playback.BufferController.Reset.
func (b *Buffer) Reset(errored bool, _ playback.Pipeline) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = false
	b.resets = append(b.resets, errored)
}

// Data implements playback.BufferController.Data.
func (b *Buffer) Data() *playback.TrackData {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// SetData implements playback.BufferController.SetData.
func (b *Buffer) SetData(d *playback.TrackData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = d
}

// IsBufferingCompleted implements playback.BufferController.IsBufferingCompleted.
func (b *Buffer) IsBufferingCompleted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed
}

// Kind returns the track kind the buffer was created for.
func (b *Buffer) Kind() playback.TrackKind { return b.kind }

// Running reports whether the buffer is loading segments.
func (b *Buffer) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Position returns the last seek target.
func (b *Buffer) Position() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position
}

// Resets returns the errored flag of every Reset call.
func (b *Buffer) Resets() []bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bool(nil), b.resets...)
}

// finish marks the last segment appended.
func (b *Buffer) finish() {
	b.mu.Lock()
	b.completed = true
	b.running = false
	b.mu.Unlock()
}

func (b *Buffer) requestKey() {
	b.mu.Lock()
	if b.requested || b.protection == nil || b.data == nil {
		b.mu.Unlock()
		return
	}
	t, ok := b.data.Raw.(*Track)
	if !ok || t.Protection == nil {
		b.mu.Unlock()
		return
	}
	b.requested = true
	pssh := t.Protection.PSSH
	b.mu.Unlock()
	b.protection.NeedKey("cenc", []byte(pssh))
}

// BufferFactory implements playback.BufferControllerFactory and keeps every
// buffer it made.
type BufferFactory struct {
	protection *Protection

	mu      sync.Mutex
	buffers []*Buffer
}

// NewBufferFactory returns a factory whose buffers raise need-key on
// protection. protection may be nil.
func NewBufferFactory(protection *Protection) *BufferFactory {
	return &BufferFactory{protection: protection}
}

// NewBufferController implements playback.BufferControllerFactory.
func (f *BufferFactory) NewBufferController(kind playback.TrackKind) playback.BufferController {
	b := &Buffer{kind: kind, protection: f.protection}
	f.mu.Lock()
	f.buffers = append(f.buffers, b)
	f.mu.Unlock()
	return b
}

// Buffers returns every buffer created so far.
func (f *BufferFactory) Buffers() []*Buffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Buffer(nil), f.buffers...)
}
