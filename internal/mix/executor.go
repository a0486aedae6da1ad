package mix

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RenderJob is one engine invocation: inputs, the textual filter graph,
// the pad to map to the output, and the output file.
type RenderJob struct {
	Inputs      []string
	FilterGraph string
	OutputPad   string
	Output      string
}

// Engine renders filter graphs and concatenates segment files. Both calls
// block until the engine exits.
type Engine interface {
	Render(job RenderJob) error
	Concat(manifest, output string) error
}

// DurationProbe measures a rendered file in seconds.
type DurationProbe func(path string) (float64, error)

// ExecutorOptions configures where segments go.
type ExecutorOptions struct {
	SegmentDir string
	Extension  string
	Probe      DurationProbe
}

// Executor renders a plan's operations in order and concatenates them.
type Executor struct {
	builder *Builder
	engine  Engine
	opts    ExecutorOptions
	logger  *logrus.Logger
}

// Result summarizes one execution.
type Result struct {
	Output   string
	Segments []string
	Rendered int
	Skipped  int
	// Duration is the sum of the probed segment lengths, zero without a probe.
	Duration float64
	Elapsed  time.Duration
}

// NewExecutor wires a builder and an engine.
func NewExecutor(builder *Builder, engine Engine, opts ExecutorOptions, logger *logrus.Logger) *Executor {
	if opts.SegmentDir == "" {
		opts.SegmentDir = "."
	}
	if opts.Extension == "" {
		opts.Extension = ".mp3"
	}
	if !strings.HasPrefix(opts.Extension, ".") {
		opts.Extension = "." + opts.Extension
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Executor{builder: builder, engine: engine, opts: opts, logger: logger}
}

// SegmentPath is the output file for an operation.
func (e *Executor) SegmentPath(op Operation) string {
	return filepath.Join(e.opts.SegmentDir, op.ID()+e.opts.Extension)
}

// graphPath records the render job that produced a segment.
func (e *Executor) graphPath(op Operation) string {
	return filepath.Join(e.opts.SegmentDir, op.ID()+".graph")
}

func jobFingerprint(job RenderJob) string {
	return strings.Join(job.Inputs, "\n") + "\n" + job.FilterGraph + "\n"
}

// RenderOperation builds and renders a single operation to its segment
// path. An existing segment is reused unless the graph recorded next to it
// differs from the one built now. It reports whether it rendered.
func (e *Executor) RenderOperation(op Operation) (bool, error) {
	out := e.SegmentPath(op)
	log := e.logger.WithFields(logrus.Fields{
		"operation_id": op.ID(),
		"kind":         op.Kind(),
		"output":       out,
	})

	g, err := op.Graph(e.builder)
	if err != nil {
		return false, fmt.Errorf("%s %s: %w", op.Kind(), op.ID(), err)
	}
	// a failed render must never leave a file at the segment path
	partial := filepath.Join(e.opts.SegmentDir, op.ID()+".part"+e.opts.Extension)
	job := RenderJob{
		Inputs:      g.Inputs(),
		FilterGraph: g.String(),
		OutputPad:   g.Output().Label(),
		Output:      partial,
	}
	fingerprint := jobFingerprint(job)

	if _, err := os.Stat(out); err == nil {
		recorded, err := os.ReadFile(e.graphPath(op))
		if err != nil || string(recorded) == fingerprint {
			log.Info("Segment already rendered, skipping")
			return false, nil
		}
		log.Info("Segment filter graph changed, rendering again")
	}

	log.WithField("filter_graph", job.FilterGraph).Debug("Rendering segment")
	if err := e.engine.Render(job); err != nil {
		os.Remove(partial)
		return false, fmt.Errorf("%s %s: %w", op.Kind(), op.ID(), err)
	}
	if err := os.Rename(partial, out); err != nil {
		return false, fmt.Errorf("failed to move rendered segment into place: %w", err)
	}
	if err := os.WriteFile(e.graphPath(op), []byte(fingerprint), 0644); err != nil {
		log.WithError(err).Warn("Could not record segment filter graph")
	}
	log.Info("Segment rendered")
	return true, nil
}

// Execute renders every operation in plan order, skipping those whose
// segment already exists for the same graph, then concatenates the
// segments into output.
func (e *Executor) Execute(plan *Plan, output string) (*Result, error) {
	start := time.Now()
	if err := os.MkdirAll(e.opts.SegmentDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create segment directory: %w", err)
	}

	result := &Result{Output: output}
	for _, op := range plan.Operations {
		rendered, err := e.RenderOperation(op)
		if err != nil {
			return result, err
		}
		if rendered {
			result.Rendered++
		} else {
			result.Skipped++
		}
		result.Segments = append(result.Segments, e.SegmentPath(op))
	}

	manifest, err := e.writeManifest(result.Segments)
	if err != nil {
		return result, err
	}
	defer os.Remove(manifest)

	if err := e.engine.Concat(manifest, output); err != nil {
		return result, fmt.Errorf("concat %s: %w", output, err)
	}

	if e.opts.Probe != nil {
		for _, segment := range result.Segments {
			d, err := e.opts.Probe(segment)
			if err != nil {
				e.logger.WithError(err).WithField("segment", segment).Warn("Could not probe segment duration")
				continue
			}
			result.Duration += d
		}
	}
	result.Elapsed = time.Since(start)

	e.logger.WithFields(logrus.Fields{
		"output":   output,
		"segments": len(result.Segments),
		"rendered": result.Rendered,
		"skipped":  result.Skipped,
		"duration": result.Duration,
		"elapsed":  result.Elapsed,
	}).Info("Mix complete")
	return result, nil
}

// writeManifest writes the concat file list next to the segments. Entries
// are relative to the manifest's directory.
func (e *Executor) writeManifest(segments []string) (string, error) {
	path := filepath.Join(e.opts.SegmentDir, "filelist-"+uuid.New().String()+".txt")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create manifest: %w", err)
	}
	defer f.Close()

	if err := WriteManifest(f, e.opts.SegmentDir, segments); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// WriteManifest writes a concat demuxer file list, one entry per segment
// in order. Paths inside dir are written relative to it, others absolute,
// since the engine resolves entries against the manifest's directory.
func WriteManifest(w io.Writer, dir string, segments []string) error {
	bw := bufio.NewWriter(w)
	for _, s := range segments {
		if rel, err := filepath.Rel(dir, s); err == nil && !strings.HasPrefix(rel, "..") {
			s = rel
		} else if abs, err := filepath.Abs(s); err == nil {
			s = abs
		}
		if _, err := fmt.Fprintf(bw, "file '%s'\n", strings.ReplaceAll(s, "'", `'\''`)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadManifest parses a file list written by WriteManifest.
func ReadManifest(r io.Reader) ([]string, error) {
	var files []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "file '") || !strings.HasSuffix(line, "'") {
			return nil, fmt.Errorf("malformed manifest line %q", line)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'")
		files = append(files, strings.ReplaceAll(name, `'\''`, "'"))
	}
	return files, scanner.Err()
}
