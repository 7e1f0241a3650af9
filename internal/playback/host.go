package playback

import (
	"context"
	"time"
)

// SurfaceEventType names an event emitted by the render surface.
type SurfaceEventType string

const (
	SurfacePlay           SurfaceEventType = "play"
	SurfacePause          SurfaceEventType = "pause"
	SurfaceError          SurfaceEventType = "error"
	SurfaceSeeking        SurfaceEventType = "seeking"
	SurfaceSeeked         SurfaceEventType = "seeked"
	SurfaceTimeUpdate     SurfaceEventType = "timeupdate"
	SurfaceLoadedMetadata SurfaceEventType = "loadedmetadata"
)

// SurfaceEvent is delivered to listeners registered with RenderSurface.Subscribe.
// Code is only meaningful for SurfaceError.
type SurfaceEvent struct {
	Type SurfaceEventType
	Code HostErrorCode
}

// RenderSurface is the host element media is rendered into.
type RenderSurface interface {
	Play()
	Pause()
	SetCurrentTime(t time.Duration)
	CurrentTime() time.Duration
	// Subscribe registers fn for every surface event. fn may be invoked from
	// any goroutine, including from inside Play/Pause/SetCurrentTime.
	Subscribe(fn func(SurfaceEvent))
}

// ManifestAccessor extracts per-period track information from a manifest.
// Every method may block; implementations should honour ctx.
type ManifestAccessor interface {
	IsLive(m Manifest) bool
	Duration(ctx context.Context, m Manifest, live bool) (time.Duration, error)
	DurationForPeriod(ctx context.Context, m Manifest, period int, live bool) (time.Duration, error)
	PeriodStart(ctx context.Context, m Manifest, period int) (time.Duration, error)

	// VideoData, PrimaryAudioData and TextData return nil when the period
	// has no track of that kind.
	VideoData(ctx context.Context, m Manifest, period int) (*TrackData, error)
	AudioDatas(ctx context.Context, m Manifest, period int) ([]*TrackData, error)
	PrimaryAudioData(ctx context.Context, m Manifest, period int) (*TrackData, error)
	TextData(ctx context.Context, m Manifest, period int) (*TrackData, error)

	DataIndex(ctx context.Context, data *TrackData, m Manifest, period int) (int, error)
	Codec(ctx context.Context, data *TrackData) (string, error)
	MimeType(ctx context.Context, data *TrackData) (string, error)
	ContentProtection(ctx context.Context, data *TrackData) (*ProtectionData, error)

	DataForID(ctx context.Context, id string, m Manifest, period int) (*TrackData, error)
	DataForIndex(ctx context.Context, index int, m Manifest, period int) (*TrackData, error)
}

// Pipeline is an opaque handle to a host media pipeline.
type Pipeline any

// Sink is an opaque handle to a per-track buffer sink on a pipeline.
type Sink any

// TextSink is implemented by sinks that carry their own text renderer.
type TextSink interface {
	InitializeText(mimeType string, ctrl BufferController) error
}

// PipelineSignal is raised by the host once a pipeline has been attached.
type PipelineSignal int

const (
	PipelineOpen PipelineSignal = iota + 1
	PipelineClosed
)

// MediaPipelineHost creates and drives host media pipelines.
type MediaPipelineHost interface {
	CreatePipeline(ctx context.Context) (Pipeline, error)
	// Attach binds p to s. notify receives open/closed signals; it may be
	// invoked more than once and from any goroutine.
	Attach(p Pipeline, s RenderSurface, notify func(PipelineSignal)) error
	Detach(p Pipeline, s RenderSurface)
	SetDuration(ctx context.Context, p Pipeline, d time.Duration) error
	SignalEndOfStream(p Pipeline) error
	// CreateSink returns a nil Sink and nil error when the host declines to
	// create one.
	CreateSink(ctx context.Context, p Pipeline, codecOrMime string) (Sink, error)
}

// CapabilityProbe reports what the host environment can play.
type CapabilityProbe interface {
	SupportsProtectedPlayback() bool
	SupportsCodec(s RenderSurface, codec string) bool
}

// KeySystemID is the selected key-system identifier (kid).
type KeySystemID string

// KeySession is a host key session.
type KeySession interface {
	SessionID() string
}

// KeyEventType names an event emitted by the content protection host.
type KeyEventType string

const (
	KeyNeeded  KeyEventType = "needkey"
	KeyMessage KeyEventType = "keymessage"
	KeyAdded   KeyEventType = "keyadded"
	KeyError   KeyEventType = "keyerror"
)

// KeyEvent is delivered to listeners registered with
// ContentProtectionHost.Subscribe.
type KeyEvent struct {
	Type KeyEventType

	// KeyNeeded. An empty InitDataType marks a legacy event.
	InitDataType string
	InitData     []byte

	// KeyMessage, KeyAdded and KeyError.
	Session        KeySession
	Message        []byte
	DestinationURL string

	// KeyError.
	Code       KeyErrorCode
	SystemCode int
}

// ContentProtectionHost negotiates key systems and key sessions.
type ContentProtectionHost interface {
	Init(s RenderSurface) error
	Subscribe(fn func(KeyEvent))
	SelectKeySystem(codec string, cp *ProtectionData) (KeySystemID, error)
	EnsureKeySession(kid KeySystemID, initDataType string, initData []byte) error
	UpdateFromMessage(ctx context.Context, kid KeySystemID, session KeySession, message, url string) error
	Teardown(kid KeySystemID)
}

// Scheduler and FragmentCoordinator are handed through to buffer
// controllers untouched.
type (
	Scheduler           any
	FragmentCoordinator any
)

// BufferConfig binds a buffer controller to its track.
type BufferConfig struct {
	Kind        TrackKind
	PeriodIndex int
	Data        *TrackData
	Sink        Sink
	Surface     RenderSurface
	Scheduler   Scheduler
	Fragments   FragmentCoordinator
}

// BufferController fetches and appends segment data for one track.
type BufferController interface {
	Initialize(ctx context.Context, cfg BufferConfig) error
	Start()
	Stop()
	Seek(t time.Duration)
	Reset(errored bool, p Pipeline)
	Data() *TrackData
	SetData(data *TrackData)
	IsBufferingCompleted() bool
}

// BufferControllerFactory instantiates buffer controllers per track kind.
type BufferControllerFactory interface {
	NewBufferController(kind TrackKind) BufferController
}

// ErrorHandler receives diagnostics surfaced by the lifecycle core. It is
// called from the controller's event loop.
type ErrorHandler interface {
	HandleError(err *Error)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(err *Error)

// HandleError implements ErrorHandler.HandleError.
func (f ErrorHandlerFunc) HandleError(err *Error) { f(err) }
