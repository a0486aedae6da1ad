package mix

// MixTrack is one row of a mix plan: a track played from its entry hotcue
// to its exit hotcue, cross-fading into the next row over CrossFade beats.
// BPM is the tempo the track is played at; ToBPM ramps the track's slice
// toward a new tempo.
type MixTrack struct {
	Position  int
	ID        int
	Title     string
	Entry     int
	Exit      int
	BPM       *float64
	ToBPM     *float64
	CrossFade int
}

func (t MixTrack) validate() error {
	if t.BPM != nil && *t.BPM <= 0 {
		return invalidParam("track %d: bpm must be positive, got %v", t.ID, *t.BPM)
	}
	if t.ToBPM != nil && *t.ToBPM <= 0 {
		return invalidParam("track %d: target bpm must be positive, got %v", t.ID, *t.ToBPM)
	}
	if t.CrossFade < 0 {
		return invalidParam("track %d: cross-fade length must not be negative, got %d", t.ID, t.CrossFade)
	}
	return nil
}

// planState is the accumulator threaded through the track sequence.
type planState struct {
	bpm       float64
	prevCross int
	ops       []Operation
}

func (s planState) emit(op Operation) planState {
	ops := make([]Operation, len(s.ops), len(s.ops)+1)
	copy(ops, s.ops)
	s.ops = append(ops, op)
	return s
}

// pair emits A's slice and, unless the pair is a hard cut, the cross-fade
// into B. The slice starts after audio the previous cross-fade consumed.
func (s planState) pair(a, b MixTrack) planState {
	s = s.emit(Slice{
		TrackID:    a.ID,
		FromHotCue: a.Entry,
		FromOffset: s.prevCross,
		ToHotCue:   a.Exit,
		BPM:        float64Ptr(s.bpm),
		ToBPM:      a.ToBPM,
	})
	if a.ToBPM != nil {
		s.bpm = *a.ToBPM
	}
	if a.CrossFade > 0 {
		s = s.emit(CrossFade{
			AID:     a.ID,
			AHotCue: a.Exit,
			BID:     b.ID,
			BHotCue: b.Entry,
			Length:  a.CrossFade,
			BPM:     float64Ptr(s.bpm),
		})
	}
	if b.BPM != nil {
		s.bpm = *b.BPM
	}
	s.prevCross = a.CrossFade
	return s
}

// last covers the remainder of the final track.
func (s planState) last(t MixTrack) planState {
	return s.emit(Slice{
		TrackID:    t.ID,
		FromHotCue: t.Entry,
		FromOffset: s.prevCross,
		ToHotCue:   t.Exit,
		BPM:        float64Ptr(s.bpm),
		ToBPM:      t.ToBPM,
	})
}

// PlanTracks folds a track sequence into slices and cross-fades. The first
// track must declare its BPM; it seeds the running tempo.
func PlanTracks(tracks []MixTrack) (*Plan, error) {
	if len(tracks) == 0 {
		return nil, invalidParam("mix needs at least one track")
	}
	for _, t := range tracks {
		if err := t.validate(); err != nil {
			return nil, err
		}
	}
	if tracks[0].BPM == nil {
		return nil, invalidParam("first track %d must declare a bpm", tracks[0].ID)
	}

	state := planState{bpm: *tracks[0].BPM}
	for i := 0; i+1 < len(tracks); i++ {
		state = state.pair(tracks[i], tracks[i+1])
	}
	state = state.last(tracks[len(tracks)-1])
	return NewPlan(state.ops)
}
