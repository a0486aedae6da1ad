package library

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"cuemix/internal/mix"

	"github.com/sirupsen/logrus"
)

const mixxxSchema = `
CREATE TABLE track_locations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	location VARCHAR(512) UNIQUE,
	filename VARCHAR(512),
	directory VARCHAR(512),
	filesize INTEGER,
	fs_deleted INTEGER,
	needs_verification INTEGER
);
CREATE TABLE library (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	artist VARCHAR(64),
	title VARCHAR(64),
	album VARCHAR(64),
	duration FLOAT,
	bpm FLOAT,
	samplerate INTEGER,
	channels INTEGER,
	location INTEGER REFERENCES track_locations(location)
);
CREATE TABLE cues (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	track_id INTEGER NOT NULL REFERENCES library(id),
	type INTEGER DEFAULT 0 NOT NULL,
	position INTEGER DEFAULT -1 NOT NULL,
	length INTEGER DEFAULT 0 NOT NULL,
	hotcue INTEGER DEFAULT -1 NOT NULL,
	label TEXT DEFAULT '' NOT NULL
);
CREATE TABLE Playlists (
	id INTEGER PRIMARY KEY,
	name VARCHAR(48),
	position INTEGER,
	hidden INTEGER DEFAULT 0 NOT NULL,
	date_created DATETIME,
	date_modified DATETIME,
	locked INTEGER DEFAULT 0
);
CREATE TABLE PlaylistTracks (
	id INTEGER PRIMARY KEY,
	playlist_id INTEGER REFERENCES Playlists(id),
	track_id INTEGER REFERENCES library(id),
	position INTEGER,
	pl_datetime_added INTEGER
);
`

const mixxxFixture = `
INSERT INTO track_locations (id, location, filename, directory, filesize) VALUES
	(1, '/music/old/Artist A - First.mp3', 'Artist A - First.mp3', '/music/old', 1000),
	(2, '/music/old/Artist B - Second.flac', 'Artist B - Second.flac', '/music/old', 2000);
INSERT INTO library (id, artist, title, album, duration, bpm, samplerate, channels, location) VALUES
	(1, 'Artist A', 'First', 'Album', 300.5, 124, 44100, 2, 1),
	(2, 'Artist B', 'Second', NULL, 280, 128, 48000, 2, 2),
	(3, 'Artist C', 'Orphan', NULL, 200, 120, 44100, 2, NULL);
INSERT INTO cues (track_id, type, position, length, hotcue) VALUES
	(1, 1, 882000, 0, 0),
	(1, 1, 3528000, 0, 3),
	(1, 2, 0, 0, -1),
	(2, 1, 960000, 0, 1);
INSERT INTO Playlists (id, name, position, hidden, date_created, locked) VALUES
	(10, 'Friday', 1, 0, '2024-03-01 20:15:00', 0),
	(11, 'Sunday', 2, 0, '2024-03-03 10:00:00', 1);
INSERT INTO PlaylistTracks (playlist_id, track_id, position) VALUES
	(10, 2, 2),
	(10, 1, 1);
`

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

// createMixxxDB writes a small Mixxx-shaped library to a temp file.
func createMixxxDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "mixxxdb.sqlite")

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Exec(mixxxSchema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	if _, err := conn.Exec(mixxxFixture); err != nil {
		t.Fatalf("Failed to insert fixture: %v", err)
	}
	return dbPath
}

func TestDatabase(t *testing.T) {
	db, err := NewDatabase(createMixxxDB(t), testLogger())
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	defer db.Close()

	t.Run("Track", func(t *testing.T) {
		track, err := db.Track(1)
		if err != nil {
			t.Fatalf("Track() error = %v", err)
		}
		if track.Title != "First" || track.Artist != "Artist A" || track.BPM != 124 {
			t.Errorf("unexpected track %+v", track)
		}
		if track.SampleRate != 44100 || track.Channels != 2 {
			t.Errorf("unexpected audio properties %+v", track)
		}
		if track.FilePath != "/music/old/Artist A - First.mp3" {
			t.Errorf("FilePath = %q", track.FilePath)
		}
	})

	t.Run("TrackWithoutLocation", func(t *testing.T) {
		track, err := db.Track(3)
		if err != nil {
			t.Fatalf("Track() error = %v", err)
		}
		if track.FilePath != "" {
			t.Errorf("expected no file path, got %q", track.FilePath)
		}
	})

	t.Run("TrackNotFound", func(t *testing.T) {
		_, err := db.Track(99)
		if !errors.Is(err, ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
		if !errors.Is(err, mix.ErrNotFound) {
			t.Errorf("expected mix.ErrNotFound, got %v", err)
		}
	})

	t.Run("HotCue", func(t *testing.T) {
		track, _ := db.Track(1)
		cue, err := db.HotCue(1, 3)
		if err != nil {
			t.Fatalf("HotCue() error = %v", err)
		}
		if cue.TrackID != 1 || cue.HotCue != 3 {
			t.Errorf("unexpected cue %+v", cue)
		}
		if got := cue.PositionSeconds(track); got != 40 {
			t.Errorf("PositionSeconds() = %v, want 40", got)
		}
	})

	t.Run("HotCueNotFound", func(t *testing.T) {
		_, err := db.HotCue(1, 7)
		if !errors.Is(err, ErrCueNotFound) {
			t.Errorf("expected ErrCueNotFound, got %v", err)
		}
		if errors.Is(err, ErrTrackNotFound) {
			t.Error("a missing cue must be distinguishable from a missing track")
		}
	})

	t.Run("HotCuesSkipsOtherCueTypes", func(t *testing.T) {
		cues, err := db.HotCues(1)
		if err != nil {
			t.Fatalf("HotCues() error = %v", err)
		}
		if len(cues) != 2 || cues[0].HotCue != 0 || cues[1].HotCue != 3 {
			t.Errorf("unexpected hotcues %+v", cues)
		}
	})

	t.Run("PlaylistByName", func(t *testing.T) {
		pl, err := db.PlaylistByName("Sunday")
		if err != nil {
			t.Fatalf("PlaylistByName() error = %v", err)
		}
		if pl.ID != 11 || !pl.Locked {
			t.Errorf("unexpected playlist %+v", pl)
		}
		if pl.DateCreated.Year() != 2024 || pl.DateCreated.Day() != 3 {
			t.Errorf("DateCreated = %v", pl.DateCreated)
		}
	})

	t.Run("PlaylistNotFound", func(t *testing.T) {
		_, err := db.PlaylistByName("Monday")
		if !errors.Is(err, ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
		if _, err := db.PlaylistEntries(99); !errors.Is(err, mix.ErrNotFound) {
			t.Errorf("expected mix.ErrNotFound, got %v", err)
		}
	})

	t.Run("PlaylistEntries", func(t *testing.T) {
		entries, err := db.PlaylistEntries(10)
		if err != nil {
			t.Fatalf("PlaylistEntries() error = %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Track.ID != 1 || entries[1].Track.ID != 2 {
			t.Errorf("entries not in position order: %d, %d", entries[0].Track.ID, entries[1].Track.ID)
		}
		if len(entries[0].HotCues) != 2 || len(entries[1].HotCues) != 1 {
			t.Errorf("unexpected hotcue counts %d, %d", len(entries[0].HotCues), len(entries[1].HotCues))
		}
	})
}

func TestDatabaseIsReadOnly(t *testing.T) {
	db, err := NewDatabase(createMixxxDB(t), testLogger())
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	defer db.Close()

	if _, err := db.conn.Exec(`DELETE FROM library`); err == nil {
		t.Error("expected writes to fail on a read-only library")
	}
}

func TestNewDatabaseMissingFile(t *testing.T) {
	if _, err := NewDatabase(filepath.Join(t.TempDir(), "missing.sqlite"), testLogger()); err == nil {
		t.Error("expected error opening a missing library")
	}
}
