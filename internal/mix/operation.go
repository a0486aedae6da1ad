package mix

import "fmt"

// Operation is one renderable step of a mix plan.
type Operation interface {
	// ID is derived only from track ids and hotcue indices, so it is stable
	// across plans and doubles as the rendered file name.
	ID() string
	Kind() string
	Graph(b *Builder) (*Graph, error)
}

// Slice cuts one track between two hotcue-relative points and retunes it.
// A nil BPM plays at the native tempo; a non-nil ToBPM ramps toward it.
type Slice struct {
	TrackID    int
	FromHotCue int
	FromOffset int
	ToHotCue   int
	ToOffset   int
	BPM        *float64
	ToBPM      *float64
}

func (s Slice) ID() string {
	return fmt.Sprintf("%d_%d_%d", s.TrackID, s.FromHotCue, s.ToHotCue)
}

func (s Slice) Kind() string { return "slice" }

func (s Slice) Graph(b *Builder) (*Graph, error) { return b.SliceGraph(s) }

// CrossFade blends the end of track A into the start of track B over
// Length beats of the mixed tempo. A nil BPM mixes at B's native tempo.
type CrossFade struct {
	AID     int
	AHotCue int
	BID     int
	BHotCue int
	Length  int
	Margin  int
	BPM     *float64
}

func (c CrossFade) ID() string {
	return fmt.Sprintf("%d_%d_%d_%d", c.AID, c.AHotCue, c.BID, c.BHotCue)
}

func (c CrossFade) Kind() string { return "crossfade" }

func (c CrossFade) Graph(b *Builder) (*Graph, error) { return b.CrossFadeGraph(c) }

// Plan is an ordered list of operations, concatenated in order.
type Plan struct {
	Operations []Operation
}

// NewPlan checks that no two operations share an identity.
func NewPlan(ops []Operation) (*Plan, error) {
	seen := make(map[string]int, len(ops))
	for i, op := range ops {
		if j, ok := seen[op.ID()]; ok {
			return nil, invalidParam("operations %d and %d share identity %s", j, i, op.ID())
		}
		seen[op.ID()] = i
	}
	return &Plan{Operations: ops}, nil
}

func float64Ptr(v float64) *float64 { return &v }
