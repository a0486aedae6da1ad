package mix

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidRange     = errors.New("invalid range")
	ErrExternalProcess  = errors.New("external process failure")

	// ErrInvalidCue is the NotFound case for a hotcue missing from its track.
	ErrInvalidCue = fmt.Errorf("invalid cue: %w", ErrNotFound)
)

// Error is a planning failure of a known kind. Callers classify it with
// errors.Is against the sentinel kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// NotFound builds an ErrNotFound error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

// InvalidCue builds an ErrInvalidCue error for a hotcue missing on a track.
func InvalidCue(trackID, hotcue int) error {
	return &Error{Kind: ErrInvalidCue, Msg: fmt.Sprintf("hotcue %d does not exist on track %d", hotcue, trackID)}
}

func invalidParam(format string, args ...any) error {
	return &Error{Kind: ErrInvalidParameter, Msg: fmt.Sprintf(format, args...)}
}

func invalidRange(format string, args ...any) error {
	return &Error{Kind: ErrInvalidRange, Msg: fmt.Sprintf(format, args...)}
}

// ExternalProcessError reports a non-zero exit of the audio engine. The
// diagnostics are the engine's raw stderr and are never parsed.
type ExternalProcessError struct {
	Command     []string
	ExitCode    int
	Diagnostics string
}

func (e *ExternalProcessError) Error() string {
	name := "engine"
	if len(e.Command) > 0 {
		name = e.Command[0]
	}
	msg := fmt.Sprintf("%s: %s exited with status %d", ErrExternalProcess.Error(), name, e.ExitCode)
	if d := strings.TrimSpace(e.Diagnostics); d != "" {
		msg += "\n" + d
	}
	return msg
}

func (e *ExternalProcessError) Unwrap() error { return ErrExternalProcess }
