package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"

	"cuemix/internal/mix"

	"github.com/sirupsen/logrus"
)

// Options configures the ffmpeg invocation.
type Options struct {
	Path     string
	LogLevel string
}

// FFmpeg runs the ffmpeg binary as the audio engine.
type FFmpeg struct {
	path     string
	logLevel string
	logger   *logrus.Logger
	run      func(name string, args []string) (stderr []byte, exitCode int, err error)
}

// NewFFmpeg locates the ffmpeg binary.
func NewFFmpeg(opts Options, logger *logrus.Logger) (*FFmpeg, error) {
	if opts.Path == "" {
		opts.Path = "ffmpeg"
	}
	if opts.LogLevel == "" {
		opts.LogLevel = "warning"
	}
	path, err := exec.LookPath(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found at %q: %w", opts.Path, err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FFmpeg{path: path, logLevel: opts.LogLevel, logger: logger, run: runCommand}, nil
}

// RenderArgs builds the argument list for a filter graph render.
func (f *FFmpeg) RenderArgs(job mix.RenderJob) []string {
	args := f.baseArgs()
	for _, in := range job.Inputs {
		args = append(args, "-i", in)
	}
	return append(args,
		"-filter_complex", job.FilterGraph,
		"-map", "["+job.OutputPad+"]",
		job.Output,
	)
}

// ConcatArgs builds the argument list for demuxer-level concatenation.
// Streams are copied, not re-encoded.
func (f *FFmpeg) ConcatArgs(manifest, output string) []string {
	return append(f.baseArgs(),
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		"-c", "copy",
		output,
	)
}

func (f *FFmpeg) baseArgs() []string {
	return []string{"-hide_banner", "-nostdin", "-loglevel", f.logLevel, "-y"}
}

// Render implements mix.Engine.
func (f *FFmpeg) Render(job mix.RenderJob) error {
	return f.exec(f.RenderArgs(job), job.Output)
}

// Concat implements mix.Engine.
func (f *FFmpeg) Concat(manifest, output string) error {
	return f.exec(f.ConcatArgs(manifest, output), output)
}

func (f *FFmpeg) exec(args []string, output string) error {
	f.logger.WithFields(logrus.Fields{
		"binary": f.path,
		"args":   args,
	}).Debug("Running ffmpeg")

	stderr, code, err := f.run(f.path, args)
	if err != nil {
		return fmt.Errorf("failed to run ffmpeg: %w", err)
	}
	if code != 0 {
		return &mix.ExternalProcessError{
			Command:     append([]string{f.path}, args...),
			ExitCode:    code,
			Diagnostics: string(stderr),
		}
	}
	f.logger.WithField("output", output).Debug("ffmpeg finished")
	return nil
}

// runCommand blocks until the process exits. A non-zero exit is reported
// through exitCode, not err.
func runCommand(name string, args []string) ([]byte, int, error) {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stderr.Bytes(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return stderr.Bytes(), -1, err
	}
	return stderr.Bytes(), 0, nil
}
