package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPlayableStreams is returned by Load when no track of the period
	// produced a buffer controller.
	ErrNoPlayableStreams = errors.New("no playable streams")

	// ErrPipelineClosed is returned when the host pipeline closes before it
	// signals open.
	ErrPipelineClosed = errors.New("media pipeline closed before open")

	// ErrAlreadyLoaded is returned by Load when a session already exists.
	ErrAlreadyLoaded = errors.New("session already loaded")

	// ErrLoadAborted is returned by Load when Reset or Close interrupts it.
	ErrLoadAborted = errors.New("load aborted by reset")

	// ErrSessionErrored is returned by Load when the render surface reported
	// an error before the session became ready.
	ErrSessionErrored = errors.New("session errored during load")

	// ErrClosed is returned once the controller's event loop has stopped.
	ErrClosed = errors.New("controller closed")

	// ErrNoKeySystem is surfaced when a key message arrives before a key
	// system has been selected.
	ErrNoKeySystem = errors.New("no key system selected")
)

// ErrorKind classifies diagnostics surfaced by the lifecycle core.
type ErrorKind string

const (
	KindManifestError           ErrorKind = "manifest"
	KindCapabilityError         ErrorKind = "capability"
	KindMediaPipelineError      ErrorKind = "media_pipeline"
	KindKeySystemSelectionError ErrorKind = "key_system_selection"
	KindKeyMessageError         ErrorKind = "key_message"
	KindKeySessionError         ErrorKind = "key_session"
	KindHostPlaybackError       ErrorKind = "host_playback"
)

// Error is a diagnostic surfaced to the ErrorHandler.
type Error struct {
	Kind    ErrorKind
	ID      string // short machine id, e.g. "codec", "nostreams", "mediakeys"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, id, msg string, err error) *Error {
	return &Error{Kind: kind, ID: id, Message: msg, Err: err}
}

// HostErrorCode is the render surface's media error code.
type HostErrorCode int

// HostErrNone is the "no error" sentinel and is ignored by OnError.
const (
	HostErrNone HostErrorCode = iota
	HostErrAborted
	HostErrNetwork
	HostErrDecode
	HostErrSrcNotSupported
	HostErrEncrypted
)

func (c HostErrorCode) String() string {
	switch c {
	case HostErrNone:
		return "MEDIA_ERR_NONE"
	case HostErrAborted:
		return "MEDIA_ERR_ABORTED"
	case HostErrNetwork:
		return "MEDIA_ERR_NETWORK"
	case HostErrDecode:
		return "MEDIA_ERR_DECODE"
	case HostErrSrcNotSupported:
		return "MEDIA_ERR_SRC_NOT_SUPPORTED"
	case HostErrEncrypted:
		return "MEDIA_ERR_ENCRYPTED"
	default:
		return fmt.Sprintf("MEDIA_ERR_UNKNOWN(%d)", int(c))
	}
}

// KeyErrorCode is the content protection host's key session error code.
type KeyErrorCode int

const (
	KeyErrUnknown KeyErrorCode = iota + 1
	KeyErrClient
	KeyErrService
	KeyErrOutput
	KeyErrHardwareChange
	KeyErrDomain
)

func (c KeyErrorCode) String() string {
	switch c {
	case KeyErrUnknown:
		return "MEDIA_KEYERR_UNKNOWN"
	case KeyErrClient:
		return "MEDIA_KEYERR_CLIENT"
	case KeyErrService:
		return "MEDIA_KEYERR_SERVICE"
	case KeyErrOutput:
		return "MEDIA_KEYERR_OUTPUT"
	case KeyErrHardwareChange:
		return "MEDIA_KEYERR_HARDWARECHANGE"
	case KeyErrDomain:
		return "MEDIA_KEYERR_DOMAIN"
	default:
		return fmt.Sprintf("MEDIA_KEYERR(%d)", int(c))
	}
}

// Description returns the human-readable explanation of the code.
func (c KeyErrorCode) Description() string {
	switch c {
	case KeyErrUnknown:
		return "An unspecified error occurred."
	case KeyErrClient:
		return "The key system could not be installed or updated."
	case KeyErrService:
		return "The message passed into update indicated an error from the license service."
	case KeyErrOutput:
		return "There is no available output device with the required characteristics for the content protection system."
	case KeyErrHardwareChange:
		return "A hardware configuration change caused a content protection error."
	case KeyErrDomain:
		return "An error occurred in a multi-device domain licensing configuration."
	default:
		return "Unrecognised key error code."
	}
}

// FormatKeyError renders a key session error for diagnostics.
func FormatKeyError(sessionID string, code KeyErrorCode, systemCode int) string {
	return fmt.Sprintf("key error: session=%s code=%d system_code=%d [%s - %s]",
		sessionID, int(code), systemCode, code, code.Description())
}
