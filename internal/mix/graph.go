package mix

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NodeKind identifies the audio operation a filter node performs.
type NodeKind int

const (
	NodeTrim NodeKind = iota
	NodeTempo
	NodeLoudnorm
	NodeFadeIn
	NodeFadeOut
	NodeDelay
	NodeSplit
	NodeConcat
	NodeMix
)

func (k NodeKind) String() string {
	switch k {
	case NodeTrim:
		return "trim"
	case NodeTempo:
		return "tempo"
	case NodeLoudnorm:
		return "loudnorm"
	case NodeFadeIn:
		return "fade-in"
	case NodeFadeOut:
		return "fade-out"
	case NodeDelay:
		return "delay"
	case NodeSplit:
		return "split"
	case NodeConcat:
		return "concat"
	case NodeMix:
		return "mix"
	default:
		return "unknown"
	}
}

// GraphSeparator joins node expressions in the engine's textual form.
const GraphSeparator = ";"

// Pad is a handle to a labeled stream inside one Graph. Pads are only
// created by the graph that owns them.
type Pad struct {
	graph *Graph
	id    int
	input bool
}

// Label is the textual pad name used when serializing the graph.
func (p Pad) Label() string {
	if p.input {
		return fmt.Sprintf("%d:a", p.id)
	}
	return fmt.Sprintf("p%d", p.id)
}

// IsZero reports whether the pad was never assigned.
func (p Pad) IsZero() bool { return p.graph == nil }

// Node is a single filter with typed inputs and outputs.
type Node struct {
	Kind    NodeKind
	Expr    string
	Inputs  []Pad
	Outputs []Pad
}

// String renders the node as "[in]...expr[out]...".
func (n Node) String() string {
	var b strings.Builder
	for _, p := range n.Inputs {
		b.WriteString("[" + p.Label() + "]")
	}
	b.WriteString(n.Expr)
	for _, p := range n.Outputs {
		b.WriteString("[" + p.Label() + "]")
	}
	return b.String()
}

// Graph is an ordered list of filter nodes plus a declared output pad.
// Nodes may only reference pads produced by earlier nodes or inputs.
type Graph struct {
	inputs []string
	nodes  []Node
	pads   int
	output Pad
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// AddInput registers an input file and returns its audio stream pad.
func (g *Graph) AddInput(path string) Pad {
	g.inputs = append(g.inputs, path)
	return Pad{graph: g, id: len(g.inputs) - 1, input: true}
}

// Inputs returns the input file paths in engine order.
func (g *Graph) Inputs() []string {
	return append([]string(nil), g.inputs...)
}

// Nodes returns the nodes in emission order.
func (g *Graph) Nodes() []Node {
	return append([]Node(nil), g.nodes...)
}

// Output returns the declared final pad.
func (g *Graph) Output() Pad { return g.output }

// SetOutput declares the final output pad.
func (g *Graph) SetOutput(p Pad) { g.output = p }

func (g *Graph) newPad() Pad {
	p := Pad{graph: g, id: g.pads}
	g.pads++
	return p
}

func (g *Graph) add(kind NodeKind, expr string, ins []Pad, outs int) []Pad {
	node := Node{Kind: kind, Expr: expr, Inputs: append([]Pad(nil), ins...)}
	for i := 0; i < outs; i++ {
		node.Outputs = append(node.Outputs, g.newPad())
	}
	g.nodes = append(g.nodes, node)
	return node.Outputs
}

// Trim keeps [start, end) seconds of the stream and resets timestamps so
// downstream filters see a zero-based clip.
func (g *Graph) Trim(in Pad, start, end float64) Pad {
	expr := fmt.Sprintf("atrim=start=%s:end=%s,asetpts=PTS-STARTPTS", formatFloat(start), formatFloat(end))
	return g.add(NodeTrim, expr, []Pad{in}, 1)[0]
}

// atempo accepts factors in [MinTempoFactor, MaxTempoFactor] only.
const (
	MinTempoFactor = 0.5
	MaxTempoFactor = 100.0
)

// Tempo changes the playback rate without changing pitch. Scales outside
// the engine's per-filter range are chained as several factors.
func (g *Graph) Tempo(in Pad, scale float64) Pad {
	factors := TempoFactors(scale)
	parts := make([]string, len(factors))
	for i, f := range factors {
		parts[i] = "atempo=" + formatFloat(f)
	}
	return g.add(NodeTempo, strings.Join(parts, ","), []Pad{in}, 1)[0]
}

// TempoFactors splits a positive scale into factors each within the
// engine's atempo range whose product is the scale.
func TempoFactors(scale float64) []float64 {
	var factors []float64
	for scale < MinTempoFactor {
		factors = append(factors, MinTempoFactor)
		scale /= MinTempoFactor
	}
	for scale > MaxTempoFactor {
		factors = append(factors, MaxTempoFactor)
		scale /= MaxTempoFactor
	}
	return append(factors, scale)
}

// Loudness holds EBU R128 targets for loudness normalization. The zero
// value uses the engine defaults.
type Loudness struct {
	Integrated float64
	TruePeak   float64
	Range      float64
}

// Loudnorm normalizes loudness.
func (g *Graph) Loudnorm(in Pad, target Loudness) Pad {
	expr := "loudnorm"
	if target != (Loudness{}) {
		expr = fmt.Sprintf("loudnorm=I=%s:TP=%s:LRA=%s",
			formatFloat(target.Integrated), formatFloat(target.TruePeak), formatFloat(target.Range))
	}
	return g.add(NodeLoudnorm, expr, []Pad{in}, 1)[0]
}

// FadeIn ramps gain up from silence over d seconds starting at st.
func (g *Graph) FadeIn(in Pad, st, d float64, curve string) Pad {
	expr := fmt.Sprintf("afade=t=in:st=%s:d=%s:curve=%s", formatFloat(st), formatFloat(d), curve)
	return g.add(NodeFadeIn, expr, []Pad{in}, 1)[0]
}

// FadeOut ramps gain down to silence over d seconds starting at st.
func (g *Graph) FadeOut(in Pad, st, d float64, curve string) Pad {
	expr := fmt.Sprintf("afade=t=out:st=%s:d=%s:curve=%s", formatFloat(st), formatFloat(d), curve)
	return g.add(NodeFadeOut, expr, []Pad{in}, 1)[0]
}

// Delay shifts the stream later by the given seconds, padding with silence.
func (g *Graph) Delay(in Pad, seconds float64) Pad {
	expr := fmt.Sprintf("adelay=delays=%ss:all=1", formatFloat(seconds))
	return g.add(NodeDelay, expr, []Pad{in}, 1)[0]
}

// Split duplicates the stream into n parallel copies.
func (g *Graph) Split(in Pad, n int) []Pad {
	return g.add(NodeSplit, fmt.Sprintf("asplit=%d", n), []Pad{in}, n)
}

// Concat joins the inputs end to end in the given order.
func (g *Graph) Concat(ins []Pad) Pad {
	return g.add(NodeConcat, fmt.Sprintf("concat=n=%d:v=0:a=1", len(ins)), ins, 1)[0]
}

// Mix blends the inputs. The output lasts as long as the longest input.
func (g *Graph) Mix(ins []Pad) Pad {
	expr := fmt.Sprintf("amix=inputs=%d:duration=longest:normalize=0", len(ins))
	return g.add(NodeMix, expr, ins, 1)[0]
}

// Filters returns the textual node expressions in order.
func (g *Graph) Filters() []string {
	filters := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		filters[i] = n.String()
	}
	return filters
}

// String renders the complete filter graph description.
func (g *Graph) String() string {
	return strings.Join(g.Filters(), GraphSeparator)
}

// Validate checks the wiring: every consumed pad belongs to this graph and
// was produced earlier, every produced pad is consumed exactly once except
// the output, and the output pad exists.
func (g *Graph) Validate() error {
	produced := make(map[Pad]bool)
	consumed := make(map[Pad]bool)
	for i := range g.inputs {
		produced[Pad{graph: g, id: i, input: true}] = true
	}
	for i, n := range g.nodes {
		for _, p := range n.Inputs {
			if p.graph != g {
				return fmt.Errorf("node %d (%s): pad from another graph", i, n.Kind)
			}
			if !produced[p] {
				return fmt.Errorf("node %d (%s): pad [%s] used before it is produced", i, n.Kind, p.Label())
			}
			if consumed[p] {
				return fmt.Errorf("node %d (%s): pad [%s] consumed twice", i, n.Kind, p.Label())
			}
			consumed[p] = true
		}
		for _, p := range n.Outputs {
			produced[p] = true
		}
	}
	if g.output.IsZero() {
		return fmt.Errorf("graph has no output pad")
	}
	if g.output.graph != g || !produced[g.output] || g.output.input {
		return fmt.Errorf("output pad [%s] is not produced by the graph", g.output.Label())
	}
	if consumed[g.output] {
		return fmt.Errorf("output pad [%s] is consumed inside the graph", g.output.Label())
	}
	for p := range produced {
		if p.input || p == g.output {
			continue
		}
		if !consumed[p] {
			return fmt.Errorf("pad [%s] is never consumed", p.Label())
		}
	}
	return nil
}

func formatFloat(v float64) string {
	v = math.Round(v*1e6) / 1e6
	if v == 0 {
		v = 0 // normalize negative zero
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
