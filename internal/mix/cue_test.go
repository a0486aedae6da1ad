package mix

import (
	"errors"
	"testing"

	"cuemix/pkg/models"
)

func TestResolveCue(t *testing.T) {
	src := newFakeSource()
	track := src.addTrack(1, 120, "a.mp3")
	cue := src.addHotCue(1, 0, 10)

	tests := []struct {
		name   string
		offset int
		bpm    float64
		want   float64
	}{
		{name: "on the cue", offset: 0, bpm: 120, want: 10},
		{name: "four beats later", offset: 4, bpm: 120, want: 12},
		{name: "two beats earlier", offset: -2, bpm: 120, want: 9},
		{name: "beats at another tempo", offset: 8, bpm: 96, want: 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveCue(track, cue, tt.offset, tt.bpm)
			if err != nil {
				t.Fatalf("ResolveCue() error = %v", err)
			}
			if !approx(got, tt.want) {
				t.Errorf("ResolveCue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveCueErrors(t *testing.T) {
	src := newFakeSource()
	track := src.addTrack(1, 120, "a.mp3")
	src.addTrack(2, 120, "b.mp3")
	other := src.addHotCue(2, 0, 5)
	cue := src.addHotCue(1, 0, 10)

	t.Run("cue from another track", func(t *testing.T) {
		_, err := ResolveCue(track, other, 0, 120)
		if !errors.Is(err, ErrInvalidCue) {
			t.Errorf("expected ErrInvalidCue, got %v", err)
		}
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected invalid cue to classify as ErrNotFound, got %v", err)
		}
	})

	t.Run("zero bpm", func(t *testing.T) {
		_, err := ResolveCue(track, cue, 1, 0)
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("expected ErrInvalidParameter, got %v", err)
		}
	})
}

func TestCueAtUsesNativeTempo(t *testing.T) {
	track := models.Track{ID: 3, BPM: 150, SampleRate: 48000, Channels: 2}
	cue := models.Cue{TrackID: 3, Type: models.CueHotCue, Position: 20 * 48000 * 2}

	got, err := CueAt(track, cue, 10)
	if err != nil {
		t.Fatalf("CueAt() error = %v", err)
	}
	// 10 beats at 150 bpm is 4 seconds
	if !approx(got, 24) {
		t.Errorf("CueAt() = %v, want 24", got)
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		name    string
		source  float64
		target  float64
		want    float64
		wantErr bool
	}{
		{name: "same tempo", source: 120, target: 120, want: 1},
		{name: "speed up", source: 120, target: 150, want: 1.25},
		{name: "slow down", source: 128, target: 96, want: 0.75},
		{name: "zero source", source: 0, target: 120, wantErr: true},
		{name: "negative target", source: 120, target: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Scale(tt.source, tt.target)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParameter) {
					t.Errorf("expected ErrInvalidParameter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Scale() error = %v", err)
			}
			if !approx(got, tt.want) {
				t.Errorf("Scale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBeatDuration(t *testing.T) {
	got, err := BeatDuration(120)
	if err != nil {
		t.Fatalf("BeatDuration() error = %v", err)
	}
	if got != 0.5 {
		t.Errorf("BeatDuration(120) = %v, want 0.5", got)
	}
	if _, err := BeatDuration(0); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for zero bpm, got %v", err)
	}
}

func TestScaleIsInvertible(t *testing.T) {
	pairs := [][2]float64{{120, 128}, {174, 87}, {99.5, 140.25}, {60, 60}}
	for _, p := range pairs {
		there, err := Scale(p[0], p[1])
		if err != nil {
			t.Fatalf("Scale(%v, %v) error = %v", p[0], p[1], err)
		}
		back, err := Scale(p[1], p[0])
		if err != nil {
			t.Fatalf("Scale(%v, %v) error = %v", p[1], p[0], err)
		}
		if !approx(there*back, 1) {
			t.Errorf("Scale(%v, %v) * Scale(%v, %v) = %v, want 1", p[0], p[1], p[1], p[0], there*back)
		}
	}
}
