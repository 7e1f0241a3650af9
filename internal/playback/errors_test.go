package playback

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostErrorCode_String(t *testing.T) {
	tests := map[HostErrorCode]string{
		HostErrNone:            "MEDIA_ERR_NONE",
		HostErrAborted:         "MEDIA_ERR_ABORTED",
		HostErrNetwork:         "MEDIA_ERR_NETWORK",
		HostErrDecode:          "MEDIA_ERR_DECODE",
		HostErrSrcNotSupported: "MEDIA_ERR_SRC_NOT_SUPPORTED",
		HostErrEncrypted:       "MEDIA_ERR_ENCRYPTED",
		HostErrorCode(9):       "MEDIA_ERR_UNKNOWN(9)",
	}
	for code, want := range tests {
		require.Equal(t, want, code.String())
	}
}

func TestKeyErrorCode_Description(t *testing.T) {
	for code := KeyErrUnknown; code <= KeyErrDomain; code++ {
		require.NotEqual(t, "Unrecognised key error code.", code.Description(), code.String())
	}
	require.Equal(t, "MEDIA_KEYERR(7)", KeyErrorCode(7).String())
}

func TestFormatKeyError(t *testing.T) {
	got := FormatKeyError("abc", KeyErrService, 17)
	require.Equal(t,
		"key error: session=abc code=3 system_code=17 [MEDIA_KEYERR_SERVICE - The message passed into update indicated an error from the license service.]",
		got)
}

func TestError_unwraps(t *testing.T) {
	e := newError(KindManifestError, "nostreams", "no streams to play", ErrNoPlayableStreams)
	require.ErrorIs(t, e, ErrNoPlayableStreams)
	require.Equal(t, "manifest: no streams to play: no playable streams", e.Error())

	var target *Error
	require.True(t, errors.As(error(e), &target))
	require.Equal(t, "nostreams", target.ID)
}
