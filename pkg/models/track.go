package models

import "time"

// CueType mirrors the cue type column of the Mixxx cues table.
type CueType int

const (
	CueInvalid CueType = iota
	CueHotCue
	CueMainCue
	CueBeat
	CueLoop
	CueJump
	CueIntro
	CueOutro
	CueN60dBSound
)

// DefaultChannels is assumed when the library has no channel count for a track.
const DefaultChannels = 2

// Track represents a track in the DJ library
type Track struct {
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album"`
	BPM        float64 `json:"bpm"`
	Duration   float64 `json:"duration"` // in seconds
	SampleRate int     `json:"sampleRate"`
	Channels   int     `json:"channels"`
	FilePath   string  `json:"-"`
}

// Cue is a marker stored against a track. Position is in sample frames
// counted across all channels, as Mixxx stores it.
type Cue struct {
	ID       int     `json:"id"`
	TrackID  int     `json:"trackId"`
	Type     CueType `json:"type"`
	Position float64 `json:"position"`
	Length   float64 `json:"length"`
	HotCue   int     `json:"hotcue"`
}

// PositionSeconds converts the cue position to seconds at the track's native tempo.
func (c Cue) PositionSeconds(track Track) float64 {
	channels := track.Channels
	if channels <= 0 {
		channels = DefaultChannels
	}
	if track.SampleRate <= 0 {
		return 0
	}
	return c.Position / float64(track.SampleRate) / float64(channels)
}

// Playlist represents a Mixxx playlist
type Playlist struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Position    int       `json:"position"`
	Hidden      int       `json:"hidden"`
	DateCreated time.Time `json:"dateCreated"`
	Locked      bool      `json:"locked"`
}

// PlaylistTrack represents the relationship between playlists and tracks
type PlaylistTrack struct {
	ID         int `json:"id"`
	PlaylistID int `json:"playlistId"`
	TrackID    int `json:"trackId"`
	Position   int `json:"position"`
}

// TrackLocation is a row of the track_locations table.
type TrackLocation struct {
	ID        int    `json:"id"`
	Location  string `json:"location"`
	Filename  string `json:"filename"`
	Directory string `json:"directory"`
	FileSize  int64  `json:"fileSize"`
}

// PlaylistEntry is a playlist track with the hotcues set on it.
type PlaylistEntry struct {
	Position int   `json:"position"`
	Track    Track `json:"track"`
	HotCues  []Cue `json:"hotcues"`
}

// FirstHotCue returns the hotcue with the earliest position.
func (e PlaylistEntry) FirstHotCue() (int, bool) {
	if len(e.HotCues) == 0 {
		return 0, false
	}
	first := e.HotCues[0]
	for _, c := range e.HotCues[1:] {
		if c.Position < first.Position {
			first = c
		}
	}
	return first.HotCue, true
}

// LastHotCue returns the hotcue with the latest position.
func (e PlaylistEntry) LastHotCue() (int, bool) {
	if len(e.HotCues) == 0 {
		return 0, false
	}
	last := e.HotCues[0]
	for _, c := range e.HotCues[1:] {
		if c.Position > last.Position {
			last = c
		}
	}
	return last.HotCue, true
}
