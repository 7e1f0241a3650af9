// Package simhost is an in-memory host environment for the playback core:
// render surface, manifest accessor over YAML fixtures, media pipelines,
// capability probe, content protection and buffer controllers.
package simhost

import (
	"log/slog"

	"playback-orchestrator/internal/playback"

	"github.com/samber/lo"
)

// Config selects what the simulated environment can play.
type Config struct {
	// Codecs are supported codec families or exact codec strings.
	Codecs []string
	// ProtectedPlayback enables encrypted media.
	ProtectedPlayback bool
	// KeySystem is offered for every protected descriptor. Empty means none.
	KeySystem playback.KeySystemID
	// RejectLicenses makes every licence update fail.
	RejectLicenses bool
	// FailOpen makes pipelines close instead of opening.
	FailOpen bool
}

// DefaultConfig plays AVC, HEVC, AAC and Opus with clear key protection.
func DefaultConfig() Config {
	return Config{
		Codecs:            []string{"avc1", "avc3", "hvc1", "hev1", "mp4a", "opus"},
		ProtectedPlayback: true,
		KeySystem:         "org.w3.clearkey",
	}
}

// Host bundles one simulated environment. Each playback session gets its own.
type Host struct {
	Surface      *Surface
	Manifests    Accessor
	Pipelines    *PipelineHost
	Capabilities *Capabilities
	Protection   *Protection
	Buffers      *BufferFactory
}

// New builds a Host from cfg. log may be nil.
func New(cfg Config, log *slog.Logger) *Host {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With(slog.String("component", "simhost"))
	prot := NewProtection(log, cfg.KeySystem, cfg.RejectLicenses)
	return &Host{
		Surface:      NewSurface(),
		Pipelines:    NewPipelineHost(log, cfg.FailOpen),
		Capabilities: NewCapabilities(cfg.Codecs, cfg.ProtectedPlayback),
		Protection:   prot,
		Buffers:      NewBufferFactory(prot),
	}
}

// Deps wires the host into a playback.Deps. errs may be nil.
func (h *Host) Deps(errs playback.ErrorHandler) playback.Deps {
	return playback.Deps{
		Surface:      h.Surface,
		Manifest:     h.Manifests,
		Pipelines:    h.Pipelines,
		Capabilities: h.Capabilities,
		Protection:   h.Protection,
		Controllers:  h.Buffers,
		Errors:       errs,
	}
}

// FinishBuffering marks every buffer of the given kinds as having appended its
// last segment. With no kinds given, every buffer is finished. The caller
// then reports completion to the controller.
func (h *Host) FinishBuffering(kinds ...playback.TrackKind) {
	for _, b := range h.Buffers.Buffers() {
		if len(kinds) > 0 && !lo.Contains(kinds, b.Kind()) {
			continue
		}
		b.finish()
	}
}
