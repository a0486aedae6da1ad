package mix

import "cuemix/pkg/models"

// BeatDuration is the length of one beat in seconds at the given tempo.
func BeatDuration(bpm float64) (float64, error) {
	if bpm <= 0 {
		return 0, invalidParam("bpm must be positive, got %v", bpm)
	}
	return 60 / bpm, nil
}

// ResolveCue returns the absolute time, in seconds at the track's native
// tempo, of a point beatOffset whole beats away from the cue. The cue must
// belong to the track.
func ResolveCue(track models.Track, cue models.Cue, beatOffset int, bpm float64) (float64, error) {
	if cue.TrackID != track.ID {
		return 0, InvalidCue(track.ID, cue.HotCue)
	}
	beat, err := BeatDuration(bpm)
	if err != nil {
		return 0, err
	}
	return cue.PositionSeconds(track) + beat*float64(beatOffset), nil
}

// CueAt resolves a cue offset using the track's native bpm.
func CueAt(track models.Track, cue models.Cue, beatOffset int) (float64, error) {
	return ResolveCue(track, cue, beatOffset, track.BPM)
}
