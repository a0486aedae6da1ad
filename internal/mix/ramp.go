package mix

import (
	"fmt"
	"math"
)

// Default step counts for constant and ramped tempo.
const (
	ConstantSteps = 1
	RampSteps     = 4
)

// TempoSpan is a constant-rate section [Begin, End) played at Scale.
type TempoSpan struct {
	Begin float64
	End   float64
	Scale float64
}

// Duration returns End - Begin.
func (s TempoSpan) Duration() float64 { return s.End - s.Begin }

// TempoPoint pairs a time with a playback scale.
type TempoPoint struct {
	Time  float64
	Scale float64
}

// SteppedTempoRamp approximates a linear tempo change with constant-rate
// spans, since the engine only has constant-rate tempo filters. Each span
// takes the ramp value at its start.
type SteppedTempoRamp struct {
	spans []TempoSpan
}

func lerp(from, to, t float64) float64 {
	return from + (to-from)*t
}

// NewSteppedTempoRamp splits [from.Time, to.Time) into steps equal spans.
func NewSteppedTempoRamp(from, to TempoPoint, steps int) (*SteppedTempoRamp, error) {
	if steps < 1 {
		return nil, invalidParam("ramp needs at least one step, got %d", steps)
	}
	if !(from.Time < to.Time) {
		return nil, invalidRange("ramp start %v must be before end %v", from.Time, to.Time)
	}
	if from.Scale <= 0 || to.Scale <= 0 {
		return nil, invalidParam("ramp scales must be positive, got %v and %v", from.Scale, to.Scale)
	}

	n := float64(steps)
	spans := make([]TempoSpan, 0, steps)
	for i := 1; i <= steps; i++ {
		spans = append(spans, TempoSpan{
			Begin: lerp(from.Time, to.Time, float64(i-1)/n),
			End:   lerp(from.Time, to.Time, float64(i)/n),
			Scale: lerp(from.Scale, to.Scale, float64(i-1)/n),
		})
	}
	// lerp at t=1 can miss the endpoint by an ulp
	spans[len(spans)-1].End = to.Time

	r := &SteppedTempoRamp{spans: spans}
	r.mustCover(from.Time, to.Time)
	return r, nil
}

// ConstantTempo is a single span at one scale over [0, duration).
func ConstantTempo(duration, scale float64) (*SteppedTempoRamp, error) {
	return NewSteppedTempoRamp(TempoPoint{0, scale}, TempoPoint{duration, scale}, ConstantSteps)
}

// Spans returns a copy of the spans in playback order.
func (r *SteppedTempoRamp) Spans() []TempoSpan {
	return append([]TempoSpan(nil), r.spans...)
}

// mustCover panics when the spans do not partition [begin, end). Only a
// construction bug can trigger it.
func (r *SteppedTempoRamp) mustCover(begin, end float64) {
	const eps = 1e-9
	cursor := begin
	for i, s := range r.spans {
		if math.Abs(s.Begin-cursor) > eps || !(s.Begin < s.End) {
			panic(fmt.Sprintf("tempo ramp span %d [%v, %v) does not continue from %v", i, s.Begin, s.End, cursor))
		}
		cursor = s.End
	}
	if math.Abs(cursor-end) > eps {
		panic(fmt.Sprintf("tempo ramp ends at %v, want %v", cursor, end))
	}
}

// Render appends split, per-span trim and tempo, and concat nodes to g and
// returns the reassembled output pad. Concat order follows span order.
func (r *SteppedTempoRamp) Render(g *Graph, in Pad) Pad {
	copies := g.Split(in, len(r.spans))
	scaled := make([]Pad, len(r.spans))
	for i, s := range r.spans {
		trimmed := g.Trim(copies[i], s.Begin, s.End)
		scaled[i] = g.Tempo(trimmed, s.Scale)
	}
	return g.Concat(scaled)
}
