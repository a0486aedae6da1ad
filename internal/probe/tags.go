package probe

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// TagMismatch is a file whose embedded tags agree with neither half of its
// "Artist - Title" file name.
type TagMismatch struct {
	Path   string
	Title  string
	Artist string
}

// ReadTags returns the title and artist tags of an audio file.
func ReadTags(path string) (title, artist string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	metadata, err := tag.ReadFrom(f)
	if err != nil {
		return "", "", err
	}
	return metadata.Title(), metadata.Artist(), nil
}

// SplitFileName splits "Artist - Title.ext" at the last " - ".
func SplitFileName(path string) (artist, title string, ok bool) {
	name := filepath.Base(path)
	i := strings.LastIndex(name, " - ")
	if i < 0 {
		return "", "", false
	}
	return name[:i], name[i+len(" - "):], true
}

// CheckTags reports files whose tags match neither the artist nor the
// title part of the file name. Unreadable files and files without both
// tags, or without an "Artist - Title" name, are skipped.
func CheckTags(paths []string) []TagMismatch {
	var mismatches []TagMismatch
	for _, path := range paths {
		title, artist, err := ReadTags(path)
		if err != nil || title == "" || artist == "" {
			continue
		}
		if m, ok := compareTags(path, title, artist); ok {
			mismatches = append(mismatches, m)
		}
	}
	return mismatches
}

func compareTags(path, title, artist string) (TagMismatch, bool) {
	nameArtist, nameTitle, ok := SplitFileName(path)
	if !ok {
		return TagMismatch{}, false
	}
	if strings.Contains(nameTitle, title) || strings.Contains(nameArtist, artist) {
		return TagMismatch{}, false
	}
	return TagMismatch{Path: path, Title: title, Artist: artist}, true
}
