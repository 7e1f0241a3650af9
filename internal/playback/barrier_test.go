package playback

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinBarrier_fires_once_in_any_order(t *testing.T) {
	orders := [][]TrackKind{
		{KindVideo, KindAudio, KindText},
		{KindVideo, KindText, KindAudio},
		{KindAudio, KindVideo, KindText},
		{KindAudio, KindText, KindVideo},
		{KindText, KindVideo, KindAudio},
		{KindText, KindAudio, KindVideo},
	}
	for _, order := range orders {
		b := newJoinBarrier(trackKinds...)
		fired := 0
		for i, kind := range order {
			if b.report(kind) {
				fired++
				require.Equal(t, len(order)-1, i, "fired before the last report in %v", order)
			}
		}
		require.Equal(t, 1, fired, "order %v", order)
		require.Zero(t, b.pending())
	}
}

func TestJoinBarrier_ignores_repeats_and_unknown_kinds(t *testing.T) {
	b := newJoinBarrier(KindVideo, KindAudio)

	require.False(t, b.report(KindVideo))
	require.False(t, b.report(KindVideo))
	require.False(t, b.report(KindText))
	require.Equal(t, 1, b.pending())

	require.True(t, b.report(KindAudio))
	require.False(t, b.report(KindAudio))
	require.False(t, b.report(KindVideo))
}
