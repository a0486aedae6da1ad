package mix

import (
	"math"

	"cuemix/pkg/models"

	"github.com/sirupsen/logrus"
)

const testSampleRate = 44100

type fakeSource struct {
	tracks map[int]models.Track
	cues   map[[2]int]models.Cue
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		tracks: make(map[int]models.Track),
		cues:   make(map[[2]int]models.Cue),
	}
}

func (s *fakeSource) addTrack(id int, bpm float64, path string) models.Track {
	t := models.Track{
		ID:         id,
		Title:      path,
		BPM:        bpm,
		SampleRate: testSampleRate,
		Channels:   2,
		FilePath:   path,
	}
	s.tracks[id] = t
	return t
}

// addHotCue places a hotcue at the given second of the track.
func (s *fakeSource) addHotCue(trackID, hotcue int, seconds float64) models.Cue {
	c := models.Cue{
		ID:       len(s.cues) + 1,
		TrackID:  trackID,
		Type:     models.CueHotCue,
		Position: seconds * testSampleRate * 2,
		HotCue:   hotcue,
	}
	s.cues[[2]int{trackID, hotcue}] = c
	return c
}

func (s *fakeSource) Track(id int) (models.Track, error) {
	t, ok := s.tracks[id]
	if !ok {
		return models.Track{}, NotFound("track %d", id)
	}
	return t, nil
}

func (s *fakeSource) HotCue(trackID, hotcue int) (models.Cue, error) {
	c, ok := s.cues[[2]int{trackID, hotcue}]
	if !ok {
		return models.Cue{}, InvalidCue(trackID, hotcue)
	}
	return c, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}
