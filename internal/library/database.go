package library

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cuemix/internal/mix"
	"cuemix/pkg/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

var (
	ErrTrackNotFound    = fmt.Errorf("track %w", mix.ErrNotFound)
	ErrPlaylistNotFound = fmt.Errorf("playlist %w", mix.ErrNotFound)
	ErrCueNotFound      = mix.ErrInvalidCue
)

// Library is the read-only query surface over a DJ library.
type Library interface {
	Track(id int) (models.Track, error)
	HotCue(trackID, hotcue int) (models.Cue, error)
	HotCues(trackID int) ([]models.Cue, error)
	Playlist(id int) (models.Playlist, error)
	PlaylistByName(name string) (models.Playlist, error)
	PlaylistEntries(playlistID int) ([]models.PlaylistEntry, error)
}

const mixxxTimeLayout = "2006-01-02 15:04:05"

// Database reads a Mixxx library database. It is safe for concurrent use
// because the underlying *sql.DB is concurrency-safe.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	getTrackStmt      *sql.Stmt
	getHotCueStmt     *sql.Stmt
	getHotCuesStmt    *sql.Stmt
	getPlaylistStmt   *sql.Stmt
	getPlaylistByName *sql.Stmt
	playlistTrackStmt *sql.Stmt
}

// NewDatabase opens the Mixxx database at dbPath read-only. Caller should
// Close() it when finished.
func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	return open(dbPath, "ro", logger)
}

func open(dbPath, mode string, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	dsn := fmt.Sprintf("file:%s?mode=%s", filepath.ToSlash(dbPath), mode)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(15 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &Database{conn: conn, logger: logger}
	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithFields(logrus.Fields{"db_path": dbPath, "mode": mode}).Debug("Library database opened")
	return db, nil
}

// prepareStatements prepares the lookups the planner repeats per operation
func (db *Database) prepareStatements() error {
	var err error

	db.getTrackStmt, err = db.conn.Prepare(`
		SELECT l.id, COALESCE(l.title, ''), COALESCE(l.artist, ''), COALESCE(l.album, ''),
			COALESCE(l.bpm, 0), COALESCE(l.duration, 0), COALESCE(l.samplerate, 0),
			COALESCE(l.channels, 0), COALESCE(tl.location, '')
		FROM library l
		LEFT JOIN track_locations tl ON tl.id = l.location
		WHERE l.id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get track statement: %w", err)
	}

	db.getHotCueStmt, err = db.conn.Prepare(`
		SELECT id, track_id, type, position, COALESCE(length, 0), hotcue
		FROM cues WHERE track_id = ? AND type = ? AND hotcue = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get hotcue statement: %w", err)
	}

	db.getHotCuesStmt, err = db.conn.Prepare(`
		SELECT id, track_id, type, position, COALESCE(length, 0), hotcue
		FROM cues WHERE track_id = ? AND type = ?
		ORDER BY hotcue`)
	if err != nil {
		return fmt.Errorf("failed to prepare get hotcues statement: %w", err)
	}

	db.getPlaylistStmt, err = db.conn.Prepare(`
		SELECT id, name, COALESCE(position, 0), COALESCE(hidden, 0), date_created, COALESCE(locked, 0)
		FROM Playlists WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get playlist statement: %w", err)
	}

	db.getPlaylistByName, err = db.conn.Prepare(`
		SELECT id, name, COALESCE(position, 0), COALESCE(hidden, 0), date_created, COALESCE(locked, 0)
		FROM Playlists WHERE name = ?
		ORDER BY id LIMIT 1`)
	if err != nil {
		return fmt.Errorf("failed to prepare get playlist by name statement: %w", err)
	}

	db.playlistTrackStmt, err = db.conn.Prepare(`
		SELECT id, playlist_id, track_id, position
		FROM PlaylistTracks WHERE playlist_id = ?
		ORDER BY position`)
	if err != nil {
		return fmt.Errorf("failed to prepare playlist tracks statement: %w", err)
	}

	return nil
}

// Track returns a track with its file location.
func (db *Database) Track(id int) (models.Track, error) {
	var t models.Track
	err := db.getTrackStmt.QueryRow(id).Scan(
		&t.ID, &t.Title, &t.Artist, &t.Album,
		&t.BPM, &t.Duration, &t.SampleRate, &t.Channels, &t.FilePath)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Track{}, &mix.Error{Kind: ErrTrackNotFound, Msg: fmt.Sprintf("id=%d", id)}
	}
	if err != nil {
		return models.Track{}, fmt.Errorf("failed to read track %d: %w", id, err)
	}
	if t.FilePath == "" {
		db.logger.WithField("track_id", id).Warn("Track has no file location")
	}
	return t, nil
}

// HotCue returns one hotcue of a track.
func (db *Database) HotCue(trackID, hotcue int) (models.Cue, error) {
	row := db.getHotCueStmt.QueryRow(trackID, int(models.CueHotCue), hotcue)
	c, err := scanCue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Cue{}, mix.InvalidCue(trackID, hotcue)
	}
	if err != nil {
		return models.Cue{}, fmt.Errorf("failed to read hotcue %d of track %d: %w", hotcue, trackID, err)
	}
	return c, nil
}

// HotCues returns a track's hotcues ordered by hotcue index.
func (db *Database) HotCues(trackID int) ([]models.Cue, error) {
	rows, err := db.getHotCuesStmt.Query(trackID, int(models.CueHotCue))
	if err != nil {
		return nil, fmt.Errorf("failed to read hotcues of track %d: %w", trackID, err)
	}
	defer rows.Close()

	var cues []models.Cue
	for rows.Next() {
		c, err := scanCue(rows)
		if err != nil {
			return nil, err
		}
		cues = append(cues, c)
	}
	return cues, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCue(s scanner) (models.Cue, error) {
	var c models.Cue
	var cueType int
	if err := s.Scan(&c.ID, &c.TrackID, &cueType, &c.Position, &c.Length, &c.HotCue); err != nil {
		return models.Cue{}, err
	}
	c.Type = models.CueType(cueType)
	return c, nil
}

// Playlist returns a playlist by id.
func (db *Database) Playlist(id int) (models.Playlist, error) {
	p, err := scanPlaylist(db.getPlaylistStmt.QueryRow(id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Playlist{}, &mix.Error{Kind: ErrPlaylistNotFound, Msg: fmt.Sprintf("id=%d", id)}
	}
	return p, err
}

// PlaylistByName returns the oldest playlist with the given name.
func (db *Database) PlaylistByName(name string) (models.Playlist, error) {
	p, err := scanPlaylist(db.getPlaylistByName.QueryRow(name))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Playlist{}, &mix.Error{Kind: ErrPlaylistNotFound, Msg: fmt.Sprintf("name=%q", name)}
	}
	return p, err
}

func scanPlaylist(s scanner) (models.Playlist, error) {
	var p models.Playlist
	var created sql.NullString
	if err := s.Scan(&p.ID, &p.Name, &p.Position, &p.Hidden, &created, &p.Locked); err != nil {
		return models.Playlist{}, err
	}
	if created.Valid {
		p.DateCreated = parseMixxxTime(created.String)
	}
	return p, nil
}

func parseMixxxTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{mixxxTimeLayout, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// PlaylistEntries returns a playlist's tracks in position order with their
// hotcues. A track row that no longer exists fails the whole read.
func (db *Database) PlaylistEntries(playlistID int) ([]models.PlaylistEntry, error) {
	if _, err := db.Playlist(playlistID); err != nil {
		return nil, err
	}

	rows, err := db.playlistTrackStmt.Query(playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist %d: %w", playlistID, err)
	}
	var items []models.PlaylistTrack
	for rows.Next() {
		var pt models.PlaylistTrack
		if err := rows.Scan(&pt.ID, &pt.PlaylistID, &pt.TrackID, &pt.Position); err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, pt)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries := make([]models.PlaylistEntry, 0, len(items))
	for _, pt := range items {
		track, err := db.Track(pt.TrackID)
		if err != nil {
			return nil, err
		}
		cues, err := db.HotCues(pt.TrackID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.PlaylistEntry{Position: pt.Position, Track: track, HotCues: cues})
	}
	return entries, nil
}

// Close releases prepared statements and the connection.
func (db *Database) Close() error {
	stmts := []*sql.Stmt{
		db.getTrackStmt, db.getHotCueStmt, db.getHotCuesStmt,
		db.getPlaylistStmt, db.getPlaylistByName, db.playlistTrackStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return db.conn.Close()
}
