package playback

import "time"

// TrackKind identifies the media type of a track within a period.
type TrackKind string

const (
	KindVideo TrackKind = "video"
	KindAudio TrackKind = "audio"
	KindText  TrackKind = "text"
)

// trackKinds is the fixed set of readiness pipelines run for every period.
var trackKinds = []TrackKind{KindVideo, KindAudio, KindText}

// State is the lifecycle state of a Controller.
type State string

const (
	StateIdle              State = "IDLE"
	StateBootstrapping     State = "BOOTSTRAPPING"
	StateTrackInitializing State = "TRACK_INITIALIZING"
	StateReady             State = "READY"
	StatePlaying           State = "PLAYING"
	StatePaused            State = "PAUSED"
	StateSeeking           State = "SEEKING"
	StateErrored           State = "ERRORED"
	StateTornDown          State = "TORN_DOWN"
)

// Loading reports whether a load is in flight.
func (s State) Loading() bool {
	return s == StateBootstrapping || s == StateTrackInitializing
}

// Manifest is an opaque reference to a parsed presentation. Only the
// ManifestAccessor looks inside it.
type Manifest any

// TrackData is the manifest-level description of one selectable track.
type TrackData struct {
	// ID is the stable identifier from the manifest; empty when the
	// manifest carries none.
	ID string
	// Raw is accessor-specific payload.
	Raw any
}

// ProtectionData is the content-protection descriptor attached to a track.
type ProtectionData struct {
	SchemeID string
	Value    string
	Raw      any
}

// TrackDescriptor is what the lifecycle core learns about a track while
// standing it up. It is replaced wholesale on manifest update.
type TrackDescriptor struct {
	Kind       TrackKind
	Index      int
	Codec      string
	MimeType   string
	Protection *ProtectionData
	Data       *TrackData
}

// Snapshot is a point-in-time copy of a controller's session state.
type Snapshot struct {
	State        State             `json:"state"`
	PeriodIndex  int               `json:"period_index"`
	Initialized  bool              `json:"initialized"`
	Errored      bool              `json:"errored"`
	AutoPlay     bool              `json:"autoplay"`
	Duration     time.Duration     `json:"duration"`
	StartTime    time.Duration     `json:"start_time"`
	VideoCodec   string            `json:"video_codec,omitempty"`
	AudioCodec   string            `json:"audio_codec,omitempty"`
	KeySystem    KeySystemID       `json:"key_system,omitempty"`
	Controllers  map[TrackKind]int `json:"controllers"`
	EndOfStream  bool              `json:"end_of_stream"`
	PendingInits int               `json:"pending_init_data"`
}
