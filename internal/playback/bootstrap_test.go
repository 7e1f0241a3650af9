package playback

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stubPipelines replays a fixed signal sequence on Attach.
type stubPipelines struct {
	fakePipelines
	signals []PipelineSignal
	mu      sync.Mutex
	detach  int
}

func (s *stubPipelines) Attach(_ Pipeline, _ RenderSurface, notify func(PipelineSignal)) error {
	for _, sig := range s.signals {
		notify(sig)
	}
	return nil
}

func (s *stubPipelines) Detach(Pipeline, RenderSurface) {
	s.mu.Lock()
	s.detach++
	s.mu.Unlock()
}

func (s *stubPipelines) detached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detach
}

func TestBootstrapper_Open(t *testing.T) {
	tests := []struct {
		name       string
		signals    []PipelineSignal
		wantErr    error
		wantDetach int
	}{
		{name: "open", signals: []PipelineSignal{PipelineOpen}},
		{name: "open_then_closed", signals: []PipelineSignal{PipelineOpen, PipelineClosed}},
		{name: "closed_first", signals: []PipelineSignal{PipelineClosed, PipelineOpen}, wantErr: ErrPipelineClosed, wantDetach: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &stubPipelines{signals: tt.signals}
			b := NewBootstrapper(host, slog.New(slog.DiscardHandler))

			p, err := b.Open(context.Background(), &fakeSurface{})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, p)
			} else {
				require.NoError(t, err)
				require.NotNil(t, p)
			}
			require.Equal(t, tt.wantDetach, host.detached())
		})
	}
}

func TestBootstrapper_Open_honours_context(t *testing.T) {
	host := &stubPipelines{}
	b := NewBootstrapper(host, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	p, err := b.Open(ctx, &fakeSurface{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Nil(t, p)
	require.Equal(t, 1, host.detached())
}
