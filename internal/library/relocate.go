package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuemix/pkg/models"

	"github.com/sirupsen/logrus"
)

// TrackLocations returns every row of track_locations.
func (db *Database) TrackLocations() ([]models.TrackLocation, error) {
	rows, err := db.conn.Query(`
		SELECT id, COALESCE(location, ''), COALESCE(filename, ''), COALESCE(directory, ''), COALESCE(filesize, 0)
		FROM track_locations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read track locations: %w", err)
	}
	defer rows.Close()

	var locations []models.TrackLocation
	for rows.Next() {
		var tl models.TrackLocation
		if err := rows.Scan(&tl.ID, &tl.Location, &tl.Filename, &tl.Directory, &tl.FileSize); err != nil {
			return nil, err
		}
		locations = append(locations, tl)
	}
	return locations, rows.Err()
}

// RelocateResult counts the outcome of a relocation.
type RelocateResult struct {
	Updated int
	Failed  int
}

// Relocate copies the library at src to dst and points every track
// location in the copy at directory, keeping file names. Rows that fail to
// update are logged and skipped. The source database is never modified.
// An existing file at dst is replaced.
func Relocate(src, dst, directory string, logger *logrus.Logger) (RelocateResult, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if err := snapshot(src, dst, logger); err != nil {
		return RelocateResult{}, err
	}
	logger.WithFields(logrus.Fields{"from": src, "to": dst}).Debug("Copied library database")

	db, err := open(dst, "rw", logger)
	if err != nil {
		return RelocateResult{}, err
	}
	defer db.Close()

	locations, err := db.TrackLocations()
	if err != nil {
		return RelocateResult{}, err
	}

	stmt, err := db.conn.Prepare(`UPDATE track_locations SET location = ?, directory = ? WHERE id = ?`)
	if err != nil {
		return RelocateResult{}, fmt.Errorf("failed to prepare relocate statement: %w", err)
	}
	defer stmt.Close()

	var result RelocateResult
	for _, tl := range locations {
		newLocation := filepath.Join(directory, filepath.Base(tl.Location))
		if _, err := stmt.Exec(newLocation, directory, tl.ID); err != nil {
			logger.WithError(err).WithField("location", newLocation).Debug("Failed to relocate track")
			result.Failed++
			continue
		}
		result.Updated++
	}

	logger.WithFields(logrus.Fields{
		"updated": result.Updated,
		"failed":  result.Failed,
	}).Info("Track locations converted")
	return result, nil
}

// snapshot writes a consistent copy of the library at src to dst. Mixxx
// keeps the library in WAL mode, so recent writes may still live in the
// -wal file; VACUUM INTO reads through it where a file copy would not.
func snapshot(src, dst string, logger *logrus.Logger) error {
	srcAbs, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	dstAbs, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	if srcAbs == dstAbs {
		return fmt.Errorf("relocated copy must not overwrite the source library %s", src)
	}

	db, err := open(src, "ro", logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace %s: %w", dst, err)
	}
	if _, err := db.conn.Exec(`VACUUM INTO ?`, dst); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}
