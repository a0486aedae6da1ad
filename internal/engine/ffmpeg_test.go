package engine

import (
	"errors"
	"strings"
	"testing"

	"cuemix/internal/mix"

	"github.com/sirupsen/logrus"
)

type recordedCall struct {
	name string
	args []string
}

func newTestFFmpeg(stderr string, code int, runErr error) (*FFmpeg, *[]recordedCall) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests

	var calls []recordedCall
	f := &FFmpeg{
		path:     "/usr/bin/ffmpeg",
		logLevel: "warning",
		logger:   logger,
		run: func(name string, args []string) ([]byte, int, error) {
			calls = append(calls, recordedCall{name: name, args: args})
			return []byte(stderr), code, runErr
		},
	}
	return f, &calls
}

func TestRenderArgs(t *testing.T) {
	f, _ := newTestFFmpeg("", 0, nil)
	args := f.RenderArgs(mix.RenderJob{
		Inputs:      []string{"a.mp3", "b.flac"},
		FilterGraph: "[0:a][1:a]amix=inputs=2:duration=longest:normalize=0[p0]",
		OutputPad:   "p0",
		Output:      "out.mp3",
	})

	want := []string{
		"-hide_banner", "-nostdin", "-loglevel", "warning", "-y",
		"-i", "a.mp3", "-i", "b.flac",
		"-filter_complex", "[0:a][1:a]amix=inputs=2:duration=longest:normalize=0[p0]",
		"-map", "[p0]",
		"out.mp3",
	}
	if strings.Join(args, " ") != strings.Join(want, " ") {
		t.Errorf("RenderArgs() =\n%v\nwant\n%v", args, want)
	}
}

func TestConcatArgs(t *testing.T) {
	f, _ := newTestFFmpeg("", 0, nil)
	args := f.ConcatArgs("segments/filelist.txt", "mix.mp3")
	want := "-hide_banner -nostdin -loglevel warning -y -f concat -safe 0 -i segments/filelist.txt -c copy mix.mp3"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("ConcatArgs() = %q, want %q", got, want)
	}
}

func TestRender(t *testing.T) {
	f, calls := newTestFFmpeg("", 0, nil)
	job := mix.RenderJob{Inputs: []string{"a.mp3"}, FilterGraph: "[0:a]atempo=1[p0]", OutputPad: "p0", Output: "out.mp3"}
	if err := f.Render(job); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(*calls) != 1 || (*calls)[0].name != "/usr/bin/ffmpeg" {
		t.Errorf("unexpected calls %+v", *calls)
	}
}

func TestExecFailures(t *testing.T) {
	t.Run("non-zero exit", func(t *testing.T) {
		f, _ := newTestFFmpeg("Error initializing filter 'atempo'\n", 234, nil)
		err := f.Concat("list.txt", "mix.mp3")
		if !errors.Is(err, mix.ErrExternalProcess) {
			t.Fatalf("expected ErrExternalProcess, got %v", err)
		}
		var procErr *mix.ExternalProcessError
		if !errors.As(err, &procErr) {
			t.Fatalf("expected *mix.ExternalProcessError, got %T", err)
		}
		if procErr.ExitCode != 234 {
			t.Errorf("ExitCode = %d, want 234", procErr.ExitCode)
		}
		if procErr.Diagnostics != "Error initializing filter 'atempo'\n" {
			t.Errorf("Diagnostics = %q", procErr.Diagnostics)
		}
		if procErr.Command[0] != "/usr/bin/ffmpeg" || procErr.Command[len(procErr.Command)-1] != "mix.mp3" {
			t.Errorf("Command = %v", procErr.Command)
		}
		if !strings.Contains(err.Error(), "status 234") {
			t.Errorf("error text %q lacks exit status", err)
		}
	})

	t.Run("process could not start", func(t *testing.T) {
		f, _ := newTestFFmpeg("", -1, errors.New("permission denied"))
		err := f.Render(mix.RenderJob{Output: "out.mp3"})
		if err == nil {
			t.Fatal("expected error")
		}
		if errors.Is(err, mix.ErrExternalProcess) {
			t.Error("a failed start is not an engine exit status")
		}
	})
}

func TestNewFFmpegMissingBinary(t *testing.T) {
	if _, err := NewFFmpeg(Options{Path: "/nonexistent/ffmpeg-cuemix"}, nil); err == nil {
		t.Error("expected error for a missing binary")
	}
}
