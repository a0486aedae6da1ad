package mix

import (
	"fmt"
	"math"

	"cuemix/pkg/models"

	"github.com/sirupsen/logrus"
)

// DefaultFadeCurve is the fade shape shared by both sides of a cross-fade.
const DefaultFadeCurve = "tri"

// Source is the read-only library surface the builder needs.
type Source interface {
	Track(id int) (models.Track, error)
	HotCue(trackID, hotcue int) (models.Cue, error)
}

// BuilderOptions tunes graph construction.
type BuilderOptions struct {
	RampSteps int
	FadeCurve string
	Loudness  Loudness
}

// Builder turns mix operations into filter graphs.
type Builder struct {
	source Source
	opts   BuilderOptions
	logger *logrus.Logger
}

// NewBuilder creates a builder reading tracks and cues from source.
func NewBuilder(source Source, opts BuilderOptions, logger *logrus.Logger) *Builder {
	if opts.RampSteps < 1 {
		opts.RampSteps = RampSteps
	}
	if opts.FadeCurve == "" {
		opts.FadeCurve = DefaultFadeCurve
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Builder{source: source, opts: opts, logger: logger}
}

// SliceLayout is a resolved slice: the native-time range cut from the
// track and the tempo ramp applied to it.
type SliceLayout struct {
	Track models.Track
	From  float64
	To    float64
	Ramp  *SteppedTempoRamp
}

// Duration is the length of the cut at native tempo.
func (l SliceLayout) Duration() float64 { return l.To - l.From }

// LayoutSlice resolves the cue times and tempo ramp for a slice.
func (b *Builder) LayoutSlice(s Slice) (SliceLayout, error) {
	track, err := b.source.Track(s.TrackID)
	if err != nil {
		return SliceLayout{}, err
	}
	fromCue, err := b.source.HotCue(s.TrackID, s.FromHotCue)
	if err != nil {
		return SliceLayout{}, err
	}
	toCue, err := b.source.HotCue(s.TrackID, s.ToHotCue)
	if err != nil {
		return SliceLayout{}, err
	}

	from, err := CueAt(track, fromCue, s.FromOffset)
	if err != nil {
		return SliceLayout{}, err
	}
	to, err := CueAt(track, toCue, s.ToOffset)
	if err != nil {
		return SliceLayout{}, err
	}
	duration := to - from
	if duration <= 0 {
		return SliceLayout{}, invalidRange("slice of track %d ends at %.3fs, not after start %.3fs", s.TrackID, to, from)
	}

	bpm := track.BPM
	if s.BPM != nil {
		bpm = *s.BPM
	}
	startScale, err := Scale(track.BPM, bpm)
	if err != nil {
		return SliceLayout{}, err
	}
	endScale, steps := startScale, ConstantSteps
	if s.ToBPM != nil {
		if endScale, err = Scale(track.BPM, *s.ToBPM); err != nil {
			return SliceLayout{}, err
		}
		steps = b.opts.RampSteps
	}

	ramp, err := NewSteppedTempoRamp(TempoPoint{0, startScale}, TempoPoint{duration, endScale}, steps)
	if err != nil {
		return SliceLayout{}, err
	}
	return SliceLayout{Track: track, From: from, To: to, Ramp: ramp}, nil
}

// SliceGraph builds trim, loudness normalization and the tempo ramp for a
// slice.
func (b *Builder) SliceGraph(s Slice) (*Graph, error) {
	layout, err := b.LayoutSlice(s)
	if err != nil {
		return nil, err
	}

	g := NewGraph()
	in := g.AddInput(layout.Track.FilePath)
	cut := g.Trim(in, layout.From, layout.To)
	normalized := g.Loudnorm(cut, b.opts.Loudness)
	g.SetOutput(layout.Ramp.Render(g, normalized))
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("slice %s: %w", s.ID(), err)
	}
	return g, nil
}

// FadeSide is one track's contribution to a cross-fade. Start and End are
// in the tempo-scaled timeline.
type FadeSide struct {
	Track models.Track
	Scale float64
	Start float64
	End   float64
}

// Duration is the length of the side after tempo scaling.
func (s FadeSide) Duration() float64 { return s.End - s.Start }

// CrossFadeLayout is a resolved cross-fade. Length is the overlap in
// seconds; Clamped is how much of it was lost to boundary clamping.
type CrossFadeLayout struct {
	BPM     float64
	A       FadeSide
	B       FadeSide
	Length  float64
	Clamped float64
}

// LayoutCrossFade resolves both sides of a cross-fade in the mixed tempo.
func (b *Builder) LayoutCrossFade(c CrossFade) (CrossFadeLayout, error) {
	if c.Length <= 0 {
		return CrossFadeLayout{}, invalidRange("cross-fade %s has no length", c.ID())
	}
	if c.Margin < 0 {
		return CrossFadeLayout{}, invalidParam("cross-fade margin must not be negative, got %d", c.Margin)
	}

	a, aCue, err := b.trackAndCue(c.AID, c.AHotCue)
	if err != nil {
		return CrossFadeLayout{}, err
	}
	bt, bCue, err := b.trackAndCue(c.BID, c.BHotCue)
	if err != nil {
		return CrossFadeLayout{}, err
	}

	bpm := bt.BPM
	if c.BPM != nil {
		bpm = *c.BPM
	}
	beat, err := BeatDuration(bpm)
	if err != nil {
		return CrossFadeLayout{}, err
	}

	aSide, err := fadeSide(a, aCue, bpm, -c.Margin, c.Length)
	if err != nil {
		return CrossFadeLayout{}, err
	}
	bSide, err := fadeSide(bt, bCue, bpm, 0, c.Length+c.Margin)
	if err != nil {
		return CrossFadeLayout{}, err
	}

	layout := CrossFadeLayout{BPM: bpm, A: aSide, B: bSide, Length: beat * float64(c.Length)}
	if layout.B.Start < 0 {
		delta := -layout.B.Start
		layout.A.Start += delta
		layout.Length -= delta
		layout.B.Start = 0
		layout.Clamped = delta
		b.logger.WithFields(logrus.Fields{
			"operation_id": c.ID(),
			"clamped":      delta,
			"length":       layout.Length,
		}).Warn("Cross-fade starts before the B clip, clamping to zero")
	}
	if layout.A.Start < 0 {
		// dropping A's lead-in only matters once it eats into the fade;
		// B then skips the same amount so both cues stay aligned
		overlap := layout.Length - layout.A.End
		layout.A.Start = 0
		if overlap > 0 {
			layout.Length -= overlap
			layout.B.Start += overlap
			layout.Clamped += overlap
		}
		b.logger.WithFields(logrus.Fields{
			"operation_id": c.ID(),
			"clamped":      math.Max(0, overlap),
			"length":       layout.Length,
		}).Warn("Cross-fade starts before the A clip, clamping to zero")
	}

	if layout.Length <= 0 {
		return CrossFadeLayout{}, invalidRange("cross-fade %s collapses to %.3fs after clamping", c.ID(), layout.Length)
	}
	if layout.A.Duration() < layout.Length-1e-6 || layout.B.Duration() < layout.Length-1e-6 {
		return CrossFadeLayout{}, invalidRange("cross-fade %s is longer than one of its sides", c.ID())
	}
	return layout, nil
}

func fadeSide(track models.Track, cue models.Cue, bpm float64, fromBeats, toBeats int) (FadeSide, error) {
	scale, err := Scale(track.BPM, bpm)
	if err != nil {
		return FadeSide{}, err
	}
	start, err := CueAt(track, cue, fromBeats)
	if err != nil {
		return FadeSide{}, err
	}
	end, err := CueAt(track, cue, toBeats)
	if err != nil {
		return FadeSide{}, err
	}
	return FadeSide{Track: track, Scale: scale, Start: start / scale, End: end / scale}, nil
}

// CrossFadeGraph builds tempo, trim, loudness and fade chains for both
// sides and mixes them into one pad.
func (b *Builder) CrossFadeGraph(c CrossFade) (*Graph, error) {
	layout, err := b.LayoutCrossFade(c)
	if err != nil {
		return nil, err
	}

	g := NewGraph()
	a := b.fadeChain(g, layout.A)
	bp := b.fadeChain(g, layout.B)

	lead := math.Max(0, layout.A.Duration()-layout.Length)
	a = g.FadeOut(a, lead, layout.Length, b.opts.FadeCurve)
	bp = g.FadeIn(bp, 0, layout.Length, b.opts.FadeCurve)
	if lead > 1e-6 {
		bp = g.Delay(bp, lead)
	}
	g.SetOutput(g.Mix([]Pad{a, bp}))
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("cross-fade %s: %w", c.ID(), err)
	}
	return g, nil
}

func (b *Builder) fadeChain(g *Graph, side FadeSide) Pad {
	p := g.AddInput(side.Track.FilePath)
	p = g.Tempo(p, side.Scale)
	p = g.Trim(p, side.Start, side.End)
	return g.Loudnorm(p, b.opts.Loudness)
}

func (b *Builder) trackAndCue(trackID, hotcue int) (models.Track, models.Cue, error) {
	track, err := b.source.Track(trackID)
	if err != nil {
		return models.Track{}, models.Cue{}, err
	}
	cue, err := b.source.HotCue(trackID, hotcue)
	if err != nil {
		return models.Track{}, models.Cue{}, err
	}
	return track, cue, nil
}
