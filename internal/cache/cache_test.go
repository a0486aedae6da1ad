package cache

import (
	"errors"
	"testing"
	"time"

	"cuemix/internal/library"
	"cuemix/internal/mix"
	"cuemix/pkg/models"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", "two")

	if v, ok := c.Get("a"); !ok || v.(int) != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be deleted")
	}

	c.Clear()
	if c.Size() != 0 {
		t.Errorf("Size() after Clear = %d", c.Size())
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(20 * time.Millisecond)
	defer c.Close()

	c.Set("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected fresh entry to be present")
	}

	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected entry to expire")
	}
}

func TestMemoryCacheCloseTwice(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	c.Close()
	c.Close()
}

// countingLibrary counts reads that reach the underlying library.
type countingLibrary struct {
	library.Library
	trackReads  int
	hotCueReads int
}

func (l *countingLibrary) Track(id int) (models.Track, error) {
	l.trackReads++
	if id != 1 {
		return models.Track{}, &mix.Error{Kind: library.ErrTrackNotFound}
	}
	return models.Track{ID: 1, BPM: 124}, nil
}

func (l *countingLibrary) HotCue(trackID, hotcue int) (models.Cue, error) {
	l.hotCueReads++
	if hotcue > 3 {
		return models.Cue{}, mix.InvalidCue(trackID, hotcue)
	}
	return models.Cue{TrackID: trackID, HotCue: hotcue, Type: models.CueHotCue}, nil
}

func TestSessionLibrary(t *testing.T) {
	lib := &countingLibrary{}
	session := NewSessionLibrary(lib)
	defer session.Close()

	t.Run("tracks are read once", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			track, err := session.Track(1)
			if err != nil {
				t.Fatalf("Track() error = %v", err)
			}
			if track.BPM != 124 {
				t.Errorf("unexpected track %+v", track)
			}
		}
		if lib.trackReads != 1 {
			t.Errorf("library read %d times, want 1", lib.trackReads)
		}
	})

	t.Run("hotcues are keyed by track and index", func(t *testing.T) {
		session.HotCue(1, 0)
		session.HotCue(1, 0)
		session.HotCue(2, 0)
		if lib.hotCueReads != 2 {
			t.Errorf("library read %d times, want 2", lib.hotCueReads)
		}
	})

	t.Run("failures are not cached", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			if _, err := session.HotCue(1, 9); !errors.Is(err, mix.ErrInvalidCue) {
				t.Errorf("expected ErrInvalidCue, got %v", err)
			}
		}
		if lib.hotCueReads != 4 {
			t.Errorf("library read %d times, want 4", lib.hotCueReads)
		}
		if _, err := session.Track(5); !errors.Is(err, library.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})
}
