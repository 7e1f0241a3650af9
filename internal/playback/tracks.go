package playback

import (
	"context"
	"fmt"
	"log/slog"
)

// trackOutcome is what one readiness pipeline reports to the join barrier.
// desc is nil when the period has no track of the kind; ctrl is nil when the
// track is absent, unsupported or failed.
type trackOutcome struct {
	kind TrackKind
	desc *TrackDescriptor
	ctrl BufferController
	diag *Error
}

// trackRequest is the session input shared by the three pipelines.
type trackRequest struct {
	manifest Manifest
	period   int
	pipeline Pipeline
}

// TrackInitializer stands up one buffer controller per track kind.
type TrackInitializer struct {
	manifest    ManifestAccessor
	pipelines   MediaPipelineHost
	caps        CapabilityProbe
	controllers BufferControllerFactory
	surface     RenderSurface
	scheduler   Scheduler
	fragments   FragmentCoordinator
	log         *slog.Logger
}

func newTrackInitializer(deps Deps, log *slog.Logger) *TrackInitializer {
	return &TrackInitializer{
		manifest:    deps.Manifest,
		pipelines:   deps.Pipelines,
		caps:        deps.Capabilities,
		controllers: deps.Controllers,
		surface:     deps.Surface,
		scheduler:   deps.Scheduler,
		fragments:   deps.Fragments,
		log:         log,
	}
}

// run executes the readiness pipeline for kind. It never fails: every
// problem degrades the track to no controller and is carried in diag.
func (ti *TrackInitializer) run(ctx context.Context, req trackRequest, kind TrackKind) trackOutcome {
	out := trackOutcome{kind: kind}
	log := ti.log.With(slog.String("kind", string(kind)))

	data, err := ti.resolveData(ctx, req, kind)
	if err != nil {
		out.diag = newError(KindManifestError, "trackdata", fmt.Sprintf("resolve %s track", kind), err)
		return out
	}
	if data == nil {
		log.Debug("no track of kind in period")
		return out
	}

	desc := &TrackDescriptor{Kind: kind, Index: -1, Data: data}
	out.desc = desc

	if idx, err := ti.manifest.DataIndex(ctx, data, req.manifest, req.period); err != nil {
		log.Warn("track index unresolved", slog.String("error", err.Error()))
	} else {
		desc.Index = idx
	}

	var sinkType string
	if kind == KindText {
		if desc.MimeType, err = ti.manifest.MimeType(ctx, data); err != nil {
			out.diag = newError(KindManifestError, "mimetype", "resolve text mime type", err)
			return out
		}
		sinkType = desc.MimeType
	} else {
		if desc.Codec, err = ti.manifest.Codec(ctx, data); err != nil {
			out.diag = newError(KindManifestError, "codec", fmt.Sprintf("resolve %s codec", kind), err)
			return out
		}
		log.Debug("codec resolved", slog.String("codec", desc.Codec))

		if desc.Protection, err = ti.manifest.ContentProtection(ctx, data); err != nil {
			out.diag = newError(KindManifestError, "contentprotection", fmt.Sprintf("resolve %s content protection", kind), err)
			return out
		}
		if desc.Protection != nil && !ti.caps.SupportsProtectedPlayback() {
			out.diag = newError(KindCapabilityError, "mediakeys", "protected playback is not supported", nil)
			return out
		}
		if !ti.caps.SupportsCodec(ti.surface, desc.Codec) {
			out.diag = newError(KindCapabilityError, "codec",
				fmt.Sprintf("%s codec (%s) is not supported", kind, desc.Codec), nil)
			return out
		}
		sinkType = desc.Codec
	}

	sink, err := ti.pipelines.CreateSink(ctx, req.pipeline, sinkType)
	if err != nil {
		out.diag = newError(KindMediaPipelineError, "sink",
			fmt.Sprintf("error creating %s sink", kind), err)
		return out
	}
	if sink == nil {
		log.Info("no sink was created, skipping track")
		return out
	}

	ctrl := ti.controllers.NewBufferController(kind)
	cfg := BufferConfig{
		Kind:        kind,
		PeriodIndex: req.period,
		Data:        data,
		Sink:        sink,
		Surface:     ti.surface,
		Scheduler:   ti.scheduler,
		Fragments:   ti.fragments,
	}
	if err := ctrl.Initialize(ctx, cfg); err != nil {
		ctrl.Reset(true, req.pipeline)
		out.diag = newError(KindMediaPipelineError, "controller",
			fmt.Sprintf("initialize %s buffer controller", kind), err)
		return out
	}
	if ts, ok := sink.(TextSink); ok && kind == KindText {
		if err := ts.InitializeText(desc.MimeType, ctrl); err != nil {
			ctrl.Reset(true, req.pipeline)
			out.diag = newError(KindMediaPipelineError, "textrenderer", "initialize text renderer", err)
			return out
		}
	}

	log.Debug("track is ready", slog.Int("index", desc.Index))
	out.ctrl = ctrl
	return out
}

func (ti *TrackInitializer) resolveData(ctx context.Context, req trackRequest, kind TrackKind) (*TrackData, error) {
	switch kind {
	case KindVideo:
		return ti.manifest.VideoData(ctx, req.manifest, req.period)
	case KindAudio:
		all, err := ti.manifest.AudioDatas(ctx, req.manifest, req.period)
		if err != nil || len(all) == 0 {
			return nil, err
		}
		return ti.manifest.PrimaryAudioData(ctx, req.manifest, req.period)
	case KindText:
		return ti.manifest.TextData(ctx, req.manifest, req.period)
	default:
		return nil, fmt.Errorf("unknown track kind %q", kind)
	}
}
