package cache

import (
	"fmt"

	"cuemix/internal/library"
	"cuemix/pkg/models"
)

// SessionLibrary memoizes track and cue reads for one planning session so
// each record is read from the library at most once. Failed lookups are
// not cached.
type SessionLibrary struct {
	library.Library
	*MemoryCache
}

// NewSessionLibrary wraps lib with a session cache.
func NewSessionLibrary(lib library.Library) *SessionLibrary {
	return &SessionLibrary{
		Library:     lib,
		MemoryCache: NewMemoryCache(0),
	}
}

// Track returns a cached track, reading it on first use.
func (s *SessionLibrary) Track(id int) (models.Track, error) {
	key := fmt.Sprintf("track:%d", id)
	if v, ok := s.Get(key); ok {
		if t, ok := v.(models.Track); ok {
			return t, nil
		}
	}
	t, err := s.Library.Track(id)
	if err != nil {
		return models.Track{}, err
	}
	s.Set(key, t)
	return t, nil
}

// HotCue returns a cached hotcue, reading it on first use.
func (s *SessionLibrary) HotCue(trackID, hotcue int) (models.Cue, error) {
	key := fmt.Sprintf("hotcue:%d:%d", trackID, hotcue)
	if v, ok := s.Get(key); ok {
		if c, ok := v.(models.Cue); ok {
			return c, nil
		}
	}
	c, err := s.Library.HotCue(trackID, hotcue)
	if err != nil {
		return models.Cue{}, err
	}
	s.Set(key, c)
	return c, nil
}
