package simhost

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"playback-orchestrator/internal/playback"

	"gopkg.in/yaml.v3"
)

var (
	// ErrPeriodOutOfRange is returned when a period index is not in the
	// manifest.
	ErrPeriodOutOfRange = errors.New("period out of range")

	// ErrTrackNotFound is returned by the track lookups used on manifest
	// refresh.
	ErrTrackNotFound = errors.New("track not found")
)

// TrackProtection is the content protection descriptor of a fixture track.
type TrackProtection struct {
	SchemeID string `yaml:"scheme_id"`
	Value    string `yaml:"value"`
	// PSSH is handed to the key system as init data when the track's buffer
	// starts.
	PSSH string `yaml:"pssh"`
}

// Track is one adaptation set of a fixture period.
type Track struct {
	ID         string      `yaml:"id"`
	Index      int         `yaml:"index"`
	Codec      string      `yaml:"codec"`
	MimeType   string      `yaml:"mime_type"`
	Protection *TrackProtection `yaml:"protection"`
}

// Period is one fixture period. Durations are Go duration strings ("30s").
type Period struct {
	Start    time.Duration `yaml:"start"`
	Duration time.Duration `yaml:"duration"`
	Video    *Track        `yaml:"video"`
	Audio    []*Track      `yaml:"audio"`
	Text     *Track        `yaml:"text"`
}

// Manifest is a presentation fixture. It stands in for a parsed manifest.
type Manifest struct {
	Name     string        `yaml:"name"`
	Live     bool          `yaml:"live"`
	Duration time.Duration `yaml:"duration"`
	Periods  []Period      `yaml:"periods"`
}

// ParseManifest decodes a YAML fixture.
func ParseManifest(b []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Periods) == 0 {
		return nil, fmt.Errorf("manifest %q has no periods", m.Name)
	}
	return &m, nil
}

// Catalog maps fixture names to manifests.
type Catalog map[string]*Manifest

// LoadCatalog reads every *.yaml and *.yml file in dir. A fixture without a
// name is keyed by its file name minus the extension.
func LoadCatalog(dir string) (Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	cat := make(Catalog)
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		m, err := ParseManifest(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if m.Name == "" {
			m.Name = strings.TrimSuffix(e.Name(), ext)
		}
		cat[m.Name] = m
	}
	return cat, nil
}

// Accessor implements playback.ManifestAccessor over *Manifest values.
type Accessor struct{}

func manifestOf(m playback.Manifest) (*Manifest, error) {
	man, ok := m.(*Manifest)
	if !ok || man == nil {
		return nil, fmt.Errorf("simhost: unexpected manifest type %T", m)
	}
	return man, nil
}

func periodOf(m playback.Manifest, idx int) (*Manifest, *Period, error) {
	man, err := manifestOf(m)
	if err != nil {
		return nil, nil, err
	}
	if idx < 0 || idx >= len(man.Periods) {
		return man, nil, fmt.Errorf("%w: %d of %d", ErrPeriodOutOfRange, idx, len(man.Periods))
	}
	return man, &man.Periods[idx], nil
}

func trackOf(d *playback.TrackData) (*Track, error) {
	if d == nil {
		return nil, ErrTrackNotFound
	}
	t, ok := d.Raw.(*Track)
	if !ok {
		return nil, fmt.Errorf("simhost: unexpected track payload %T", d.Raw)
	}
	return t, nil
}

func dataOf(t *Track) *playback.TrackData {
	if t == nil {
		return nil
	}
	return &playback.TrackData{ID: t.ID, Raw: t}
}

// IsLive implements playback.ManifestAccessor.IsLive.
func (Accessor) IsLive(m playback.Manifest) bool {
	man, ok := m.(*Manifest)
	return ok && man != nil && man.Live
}

// Duration implements playback.ManifestAccessor.Duration. Live
// presentations report zero.
func (Accessor) Duration(_ context.Context, m playback.Manifest, live bool) (time.Duration, error) {
	man, err := manifestOf(m)
	if err != nil {
		return 0, err
	}
	if live {
		return 0, nil
	}
	return man.Duration, nil
}

// DurationForPeriod implements playback.ManifestAccessor.DurationForPeriod.
// A period without an explicit duration runs to the end of the
// presentation.
func (Accessor) DurationForPeriod(_ context.Context, m playback.Manifest, period int, live bool) (time.Duration, error) {
	man, p, err := periodOf(m, period)
	if err != nil {
		return 0, err
	}
	if live {
		return 0, nil
	}
	if p.Duration > 0 {
		return p.Duration, nil
	}
	return man.Duration - p.Start, nil
}

// PeriodStart implements playback.ManifestAccessor.PeriodStart.
func (Accessor) PeriodStart(_ context.Context, m playback.Manifest, period int) (time.Duration, error) {
	_, p, err := periodOf(m, period)
	if err != nil {
		return 0, err
	}
	return p.Start, nil
}

// VideoData implements playback.ManifestAccessor.VideoData.
func (Accessor) VideoData(_ context.Context, m playback.Manifest, period int) (*playback.TrackData, error) {
	_, p, err := periodOf(m, period)
	if err != nil {
		return nil, err
	}
	return dataOf(p.Video), nil
}

// AudioDatas implements playback.ManifestAccessor.AudioDatas.
func (Accessor) AudioDatas(_ context.Context, m playback.Manifest, period int) ([]*playback.TrackData, error) {
	_, p, err := periodOf(m, period)
	if err != nil {
		return nil, err
	}
	out := make([]*playback.TrackData, 0, len(p.Audio))
	for _, t := range p.Audio {
		out = append(out, dataOf(t))
	}
	return out, nil
}

// PrimaryAudioData implements playback.ManifestAccessor.PrimaryAudioData.
func (Accessor) PrimaryAudioData(_ context.Context, m playback.Manifest, period int) (*playback.TrackData, error) {
	_, p, err := periodOf(m, period)
	if err != nil {
		return nil, err
	}
	if len(p.Audio) == 0 {
		return nil, nil
	}
	return dataOf(p.Audio[0]), nil
}

// TextData implements playback.ManifestAccessor.TextData.
func (Accessor) TextData(_ context.Context, m playback.Manifest, period int) (*playback.TrackData, error) {
	_, p, err := periodOf(m, period)
	if err != nil {
		return nil, err
	}
	return dataOf(p.Text), nil
}

// DataIndex implements playback.ManifestAccessor.DataIndex.
func (Accessor) DataIndex(_ context.Context, d *playback.TrackData, _ playback.Manifest, _ int) (int, error) {
	t, err := trackOf(d)
	if err != nil {
		return -1, err
	}
	return t.Index, nil
}

// Codec implements playback.ManifestAccessor.Codec.
func (Accessor) Codec(_ context.Context, d *playback.TrackData) (string, error) {
	t, err := trackOf(d)
	if err != nil {
		return "", err
	}
	return t.Codec, nil
}

// MimeType implements playback.ManifestAccessor.MimeType.
func (Accessor) MimeType(_ context.Context, d *playback.TrackData) (string, error) {
	t, err := trackOf(d)
	if err != nil {
		return "", err
	}
	return t.MimeType, nil
}

// ContentProtection implements playback.ManifestAccessor.ContentProtection.
func (Accessor) ContentProtection(_ context.Context, d *playback.TrackData) (*playback.ProtectionData, error) {
	t, err := trackOf(d)
	if err != nil {
		return nil, err
	}
	if t.Protection == nil {
		return nil, nil
	}
	return &playback.ProtectionData{
		SchemeID: t.Protection.SchemeID,
		Value:    t.Protection.Value,
		Raw:      t.Protection,
	}, nil
}

func (p *Period) tracks() []*Track {
	out := make([]*Track, 0, len(p.Audio)+2)
	if p.Video != nil {
		out = append(out, p.Video)
	}
	out = append(out, p.Audio...)
	if p.Text != nil {
		out = append(out, p.Text)
	}
	return out
}

// DataForID implements playback.ManifestAccessor.DataForID.
func (Accessor) DataForID(_ context.Context, id string, m playback.Manifest, period int) (*playback.TrackData, error) {
	_, p, err := periodOf(m, period)
	if err != nil {
		return nil, err
	}
	for _, t := range p.tracks() {
		if t.ID == id {
			return dataOf(t), nil
		}
	}
	return nil, fmt.Errorf("%w: id %q", ErrTrackNotFound, id)
}

// DataForIndex implements playback.ManifestAccessor.DataForIndex.
func (Accessor) DataForIndex(_ context.Context, index int, m playback.Manifest, period int) (*playback.TrackData, error) {
	_, p, err := periodOf(m, period)
	if err != nil {
		return nil, err
	}
	for _, t := range p.tracks() {
		if t.Index == index {
			return dataOf(t), nil
		}
	}
	return nil, fmt.Errorf("%w: index %d", ErrTrackNotFound, index)
}
