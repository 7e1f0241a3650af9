package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"playback-orchestrator/internal/platform/metrics"

	"github.com/stretchr/testify/require"
)

// fakeSurface records calls and lets tests emit events. With autoLoad set,
// Play emits play followed by loadedmetadata.
type fakeSurface struct {
	mu        sync.Mutex
	listeners []func(SurfaceEvent)
	plays     int
	pauses    int
	seeks     []time.Duration
	current   time.Duration
	autoLoad  bool
	// seekEcho makes SetCurrentTime emit seeking, as a real element does.
	seekEcho bool
}

func (s *fakeSurface) Subscribe(fn func(SurfaceEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *fakeSurface) emit(ev SurfaceEvent) {
	s.mu.Lock()
	ls := append([]func(SurfaceEvent){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range ls {
		fn(ev)
	}
}

func (s *fakeSurface) Play() {
	s.mu.Lock()
	s.plays++
	auto := s.autoLoad
	s.mu.Unlock()
	s.emit(SurfaceEvent{Type: SurfacePlay})
	if auto {
		s.emit(SurfaceEvent{Type: SurfaceLoadedMetadata})
	}
}

func (s *fakeSurface) Pause() {
	s.mu.Lock()
	s.pauses++
	s.mu.Unlock()
}

func (s *fakeSurface) SetCurrentTime(t time.Duration) {
	s.mu.Lock()
	s.seeks = append(s.seeks, t)
	s.current = t
	echo := s.seekEcho
	s.mu.Unlock()
	if echo {
		s.emit(SurfaceEvent{Type: SurfaceSeeking})
	}
}

func (s *fakeSurface) CurrentTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *fakeSurface) setCurrent(t time.Duration) {
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
}

func (s *fakeSurface) counts() (plays, pauses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays, s.pauses
}

type fakeTrack struct {
	id    string
	index int
	codec string
	mime  string
	cp    *ProtectionData
}

type fakePeriod struct {
	start    time.Duration
	duration time.Duration
	video    *fakeTrack
	audio    *fakeTrack
	text     *fakeTrack
}

type fakeManifest struct {
	live     bool
	duration time.Duration
	periods  []fakePeriod
}

// fakeAccessor reads *fakeManifest values.
type fakeAccessor struct {
	mu          sync.Mutex
	byID        []string
	byIndex     []int
	durationErr error
}

func period(m Manifest, idx int) fakePeriod {
	fm := m.(*fakeManifest)
	return fm.periods[idx]
}

func trackData(t *fakeTrack) *TrackData {
	if t == nil {
		return nil
	}
	return &TrackData{ID: t.id, Raw: t}
}

func (a *fakeAccessor) IsLive(m Manifest) bool { return m.(*fakeManifest).live }

func (a *fakeAccessor) Duration(_ context.Context, m Manifest, _ bool) (time.Duration, error) {
	if a.durationErr != nil {
		return 0, a.durationErr
	}
	return m.(*fakeManifest).duration, nil
}

func (a *fakeAccessor) DurationForPeriod(_ context.Context, m Manifest, p int, _ bool) (time.Duration, error) {
	return period(m, p).duration, nil
}

func (a *fakeAccessor) PeriodStart(_ context.Context, m Manifest, p int) (time.Duration, error) {
	return period(m, p).start, nil
}

func (a *fakeAccessor) VideoData(_ context.Context, m Manifest, p int) (*TrackData, error) {
	return trackData(period(m, p).video), nil
}

func (a *fakeAccessor) AudioDatas(_ context.Context, m Manifest, p int) ([]*TrackData, error) {
	if t := period(m, p).audio; t != nil {
		return []*TrackData{trackData(t)}, nil
	}
	return nil, nil
}

func (a *fakeAccessor) PrimaryAudioData(_ context.Context, m Manifest, p int) (*TrackData, error) {
	return trackData(period(m, p).audio), nil
}

func (a *fakeAccessor) TextData(_ context.Context, m Manifest, p int) (*TrackData, error) {
	return trackData(period(m, p).text), nil
}

func (a *fakeAccessor) DataIndex(_ context.Context, d *TrackData, _ Manifest, _ int) (int, error) {
	return d.Raw.(*fakeTrack).index, nil
}

func (a *fakeAccessor) Codec(_ context.Context, d *TrackData) (string, error) {
	return d.Raw.(*fakeTrack).codec, nil
}

func (a *fakeAccessor) MimeType(_ context.Context, d *TrackData) (string, error) {
	return d.Raw.(*fakeTrack).mime, nil
}

func (a *fakeAccessor) ContentProtection(_ context.Context, d *TrackData) (*ProtectionData, error) {
	return d.Raw.(*fakeTrack).cp, nil
}

func (a *fakeAccessor) DataForID(_ context.Context, id string, m Manifest, p int) (*TrackData, error) {
	a.mu.Lock()
	a.byID = append(a.byID, id)
	a.mu.Unlock()
	pd := period(m, p)
	for _, t := range []*fakeTrack{pd.video, pd.audio, pd.text} {
		if t != nil && t.id == id {
			return trackData(t), nil
		}
	}
	return nil, errors.New("no track with id " + id)
}

func (a *fakeAccessor) DataForIndex(_ context.Context, idx int, m Manifest, p int) (*TrackData, error) {
	a.mu.Lock()
	a.byIndex = append(a.byIndex, idx)
	a.mu.Unlock()
	pd := period(m, p)
	for _, t := range []*fakeTrack{pd.video, pd.audio, pd.text} {
		if t != nil && t.index == idx {
			return trackData(t), nil
		}
	}
	return nil, errors.New("no track at index")
}

type fakePipeline struct{ id int }

type fakeSink struct{ codec string }

type fakeTextSink struct {
	fakeSink
	mu       sync.Mutex
	mimeType string
	ctrl     BufferController
}

func (s *fakeTextSink) InitializeText(mimeType string, ctrl BufferController) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mimeType, s.ctrl = mimeType, ctrl
	return nil
}

// fakePipelines opens synchronously unless closeFirst is set. CreateSink
// blocks on gates[codec] when present.
type fakePipelines struct {
	mu         sync.Mutex
	created    int
	detached   int
	durations  []time.Duration
	eos        int
	closeFirst bool
	ignoreCtx  bool
	gates      map[string]chan struct{}
	requested  chan string
	sinkErr    map[string]error
	nilSink    map[string]bool
	textSinks  map[string]*fakeTextSink
}

func newFakePipelines() *fakePipelines {
	return &fakePipelines{
		gates:     make(map[string]chan struct{}),
		requested: make(chan string, 16),
		sinkErr:   make(map[string]error),
		nilSink:   make(map[string]bool),
		textSinks: make(map[string]*fakeTextSink),
	}
}

func (p *fakePipelines) gate(codec string) chan struct{} {
	ch := make(chan struct{})
	p.mu.Lock()
	p.gates[codec] = ch
	p.mu.Unlock()
	return ch
}

func (p *fakePipelines) CreatePipeline(context.Context) (Pipeline, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created++
	return &fakePipeline{id: p.created}, nil
}

func (p *fakePipelines) Attach(_ Pipeline, _ RenderSurface, notify func(PipelineSignal)) error {
	p.mu.Lock()
	closeFirst := p.closeFirst
	p.mu.Unlock()
	if closeFirst {
		notify(PipelineClosed)
		notify(PipelineOpen)
		return nil
	}
	notify(PipelineOpen)
	notify(PipelineClosed)
	return nil
}

func (p *fakePipelines) Detach(Pipeline, RenderSurface) {
	p.mu.Lock()
	p.detached++
	p.mu.Unlock()
}

func (p *fakePipelines) SetDuration(_ context.Context, _ Pipeline, d time.Duration) error {
	p.mu.Lock()
	p.durations = append(p.durations, d)
	p.mu.Unlock()
	return nil
}

func (p *fakePipelines) SignalEndOfStream(Pipeline) error {
	p.mu.Lock()
	p.eos++
	p.mu.Unlock()
	return nil
}

func (p *fakePipelines) CreateSink(ctx context.Context, _ Pipeline, codec string) (Sink, error) {
	p.mu.Lock()
	gate := p.gates[codec]
	err := p.sinkErr[codec]
	nilSink := p.nilSink[codec]
	text := p.textSinks[codec]
	ignoreCtx := p.ignoreCtx
	p.mu.Unlock()

	select {
	case p.requested <- codec:
	default:
	}
	if gate != nil && ignoreCtx {
		<-gate
	} else if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	switch {
	case err != nil:
		return nil, err
	case nilSink:
		return nil, nil
	case text != nil:
		return text, nil
	}
	return &fakeSink{codec: codec}, nil
}

func (p *fakePipelines) snapshot() (created, detached, eos int, durations []time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created, p.detached, p.eos, append([]time.Duration(nil), p.durations...)
}

type fakeCaps struct {
	protected   bool
	unsupported map[string]bool
}

func (c *fakeCaps) SupportsProtectedPlayback() bool { return c.protected }

func (c *fakeCaps) SupportsCodec(_ RenderSurface, codec string) bool { return !c.unsupported[codec] }

type fakeBuffer struct {
	mu        sync.Mutex
	kind      TrackKind
	cfg       BufferConfig
	data      *TrackData
	starts    int
	stops     int
	seeks     []time.Duration
	resets    []bool
	completed bool
}

func (b *fakeBuffer) Initialize(_ context.Context, cfg BufferConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg, b.data = cfg, cfg.Data
	return nil
}

func (b *fakeBuffer) Start() { b.mu.Lock(); b.starts++; b.mu.Unlock() }
func (b *fakeBuffer) Stop()  { b.mu.Lock(); b.stops++; b.mu.Unlock() }

func (b *fakeBuffer) Seek(t time.Duration) {
	b.mu.Lock()
	b.seeks = append(b.seeks, t)
	b.mu.Unlock()
}

func (b *fakeBuffer) Reset(errored bool, _ Pipeline) {
	b.mu.Lock()
	b.resets = append(b.resets, errored)
	b.mu.Unlock()
}

func (b *fakeBuffer) Data() *TrackData {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

func (b *fakeBuffer) SetData(d *TrackData) {
	b.mu.Lock()
	b.data = d
	b.mu.Unlock()
}

func (b *fakeBuffer) IsBufferingCompleted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed
}

func (b *fakeBuffer) complete() {
	b.mu.Lock()
	b.completed = true
	b.mu.Unlock()
}

func (b *fakeBuffer) seekLog() []time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]time.Duration(nil), b.seeks...)
}

func (b *fakeBuffer) resetLog() []bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bool(nil), b.resets...)
}

type fakeFactory struct {
	mu      sync.Mutex
	created []*fakeBuffer
}

func (f *fakeFactory) NewBufferController(kind TrackKind) BufferController {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := &fakeBuffer{kind: kind}
	f.created = append(f.created, b)
	return b
}

func (f *fakeFactory) all() []*fakeBuffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeBuffer(nil), f.created...)
}

type ensureCall struct {
	kid  KeySystemID
	typ  string
	data string
}

type fakeSession struct{ id string }

func (s fakeSession) SessionID() string { return s.id }

type fakeProtection struct {
	mu         sync.Mutex
	listeners  []func(KeyEvent)
	kid        KeySystemID
	selectErr  error
	selects    int
	ensures    []ensureCall
	messages   []string
	updateErr  error
	teardowns  []KeySystemID
	selectedBy []string
}

func (p *fakeProtection) Init(RenderSurface) error { return nil }

func (p *fakeProtection) Subscribe(fn func(KeyEvent)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

func (p *fakeProtection) emit(ev KeyEvent) {
	p.mu.Lock()
	ls := append([]func(KeyEvent){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range ls {
		fn(ev)
	}
}

func (p *fakeProtection) SelectKeySystem(codec string, _ *ProtectionData) (KeySystemID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selects++
	p.selectedBy = append(p.selectedBy, codec)
	if p.selectErr != nil {
		return "", p.selectErr
	}
	return p.kid, nil
}

func (p *fakeProtection) EnsureKeySession(kid KeySystemID, typ string, data []byte) error {
	p.mu.Lock()
	p.ensures = append(p.ensures, ensureCall{kid: kid, typ: typ, data: string(data)})
	p.mu.Unlock()
	return nil
}

func (p *fakeProtection) UpdateFromMessage(_ context.Context, _ KeySystemID, _ KeySession, msg, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return p.updateErr
}

func (p *fakeProtection) Teardown(kid KeySystemID) {
	p.mu.Lock()
	p.teardowns = append(p.teardowns, kid)
	p.mu.Unlock()
}

func (p *fakeProtection) ensureLog() []ensureCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ensureCall(nil), p.ensures...)
}

type errorRecorder struct {
	mu   sync.Mutex
	errs []*Error
}

func (r *errorRecorder) HandleError(e *Error) {
	r.mu.Lock()
	r.errs = append(r.errs, e)
	r.mu.Unlock()
}

func (r *errorRecorder) kinds() []ErrorKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ErrorKind, 0, len(r.errs))
	for _, e := range r.errs {
		out = append(out, e.Kind)
	}
	return out
}

type harness struct {
	surface    *fakeSurface
	accessor   *fakeAccessor
	pipelines  *fakePipelines
	caps       *fakeCaps
	factory    *fakeFactory
	protection *fakeProtection
	errs       *errorRecorder
	metrics    *metrics.Metrics
}

func newHarness() *harness {
	return &harness{
		surface:    &fakeSurface{autoLoad: true},
		accessor:   &fakeAccessor{},
		pipelines:  newFakePipelines(),
		caps:       &fakeCaps{protected: true, unsupported: map[string]bool{}},
		factory:    &fakeFactory{},
		protection: &fakeProtection{kid: "org.w3.clearkey"},
		errs:       &errorRecorder{},
		metrics:    metrics.New(),
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Surface:      h.surface,
		Manifest:     h.accessor,
		Pipelines:    h.pipelines,
		Capabilities: h.caps,
		Protection:   h.protection,
		Controllers:  h.factory,
		Errors:       h.errs,
	}
}

func (h *harness) controller(t *testing.T, autoPlay bool) *Controller {
	t.Helper()
	c, err := New(h.deps(), Config{AutoPlay: autoPlay}, nil, h.metrics)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// bufferFor returns the fake behind the controller's handle for kind.
func bufferFor(t *testing.T, c *Controller, kind TrackKind) *fakeBuffer {
	t.Helper()
	bc := c.BufferController(kind)
	require.NotNil(t, bc, "no %s controller", kind)
	return bc.(*fakeBuffer)
}

func videoTrack() *fakeTrack {
	return &fakeTrack{id: "v1", index: 0, codec: "avc1.4d401f"}
}

func audioTrack() *fakeTrack {
	return &fakeTrack{id: "a1", index: 1, codec: "mp4a.40.2"}
}

func textTrack() *fakeTrack {
	return &fakeTrack{id: "t1", index: 2, mime: "text/vtt"}
}

func singlePeriod(video, audio, text *fakeTrack) *fakeManifest {
	return &fakeManifest{
		duration: 10 * time.Second,
		periods: []fakePeriod{
			{start: 0, duration: 10 * time.Second, video: video, audio: audio, text: text},
		},
	}
}

func twoPeriods() *fakeManifest {
	return &fakeManifest{
		duration: 30 * time.Second,
		periods: []fakePeriod{
			{start: 0, duration: 10 * time.Second, video: videoTrack(), audio: audioTrack()},
			{start: 10 * time.Second, duration: 20 * time.Second, video: videoTrack(), audio: audioTrack()},
		},
	}
}
