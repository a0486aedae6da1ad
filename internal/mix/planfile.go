package mix

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cuemix/pkg/models"
)

// Fallback hotcues used when exporting a track that has none.
const (
	DefaultEntryHotCue = 0
	DefaultExitHotCue  = 4
)

var planHeader = []string{"position", "id", "title", "entry", "exit", "bpm", "to_bpm", "crossfade"}

// ReadPlanFile parses plan rows. Columns are matched by header name; empty
// bpm and to_bpm cells mean the value is not declared.
func ReadPlanFile(r io.Reader) ([]MixTrack, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	if len(records) == 0 {
		return nil, invalidParam("plan file is empty")
	}

	columns := make(map[string]int)
	for i, name := range records[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"id", "entry", "exit"} {
		if _, ok := columns[required]; !ok {
			return nil, invalidParam("plan file is missing column %q", required)
		}
	}

	tracks := make([]MixTrack, 0, len(records)-1)
	for n, record := range records[1:] {
		row := planRow{record: record, columns: columns, line: n + 2}
		t := MixTrack{Position: n + 1}
		if row.has("position") {
			if t.Position, err = row.int("position"); err != nil {
				return nil, err
			}
		}
		if t.ID, err = row.int("id"); err != nil {
			return nil, err
		}
		t.Title = row.get("title")
		if t.Entry, err = row.int("entry"); err != nil {
			return nil, err
		}
		if t.Exit, err = row.int("exit"); err != nil {
			return nil, err
		}
		if t.BPM, err = row.optFloat("bpm"); err != nil {
			return nil, err
		}
		if t.ToBPM, err = row.optFloat("to_bpm"); err != nil {
			return nil, err
		}
		if row.has("crossfade") {
			if t.CrossFade, err = row.int("crossfade"); err != nil {
				return nil, err
			}
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// WritePlanFile writes plan rows with a header.
func WritePlanFile(w io.Writer, tracks []MixTrack) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(planHeader); err != nil {
		return err
	}
	for _, t := range tracks {
		record := []string{
			strconv.Itoa(t.Position),
			strconv.Itoa(t.ID),
			t.Title,
			strconv.Itoa(t.Entry),
			strconv.Itoa(t.Exit),
			optFloatString(t.BPM),
			optFloatString(t.ToBPM),
			strconv.Itoa(t.CrossFade),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// DefaultPlanTracks drafts a plan from a playlist: each track runs from its
// earliest to its latest hotcue at its native tempo, cross-fading into the
// next over crossfade beats.
func DefaultPlanTracks(entries []models.PlaylistEntry, crossfade int) []MixTrack {
	tracks := make([]MixTrack, 0, len(entries))
	for i, e := range entries {
		entry, ok := e.FirstHotCue()
		if !ok {
			entry = DefaultEntryHotCue
		}
		exit, ok := e.LastHotCue()
		if !ok {
			exit = DefaultExitHotCue
		}
		t := MixTrack{
			Position:  e.Position,
			ID:        e.Track.ID,
			Title:     e.Track.Title,
			Entry:     entry,
			Exit:      exit,
			BPM:       float64Ptr(e.Track.BPM),
			CrossFade: crossfade,
		}
		if i == len(entries)-1 {
			t.CrossFade = 0
		}
		tracks = append(tracks, t)
	}
	return tracks
}

type planRow struct {
	record  []string
	columns map[string]int
	line    int
}

func (r planRow) has(name string) bool {
	_, ok := r.columns[name]
	return ok
}

func (r planRow) get(name string) string {
	i, ok := r.columns[name]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r planRow) int(name string) (int, error) {
	v, err := strconv.Atoi(r.get(name))
	if err != nil {
		return 0, invalidParam("line %d: column %s: %v", r.line, name, err)
	}
	return v, nil
}

func (r planRow) optFloat(name string) (*float64, error) {
	s := r.get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, invalidParam("line %d: column %s: %v", r.line, name, err)
	}
	return &v, nil
}

func optFloatString(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
