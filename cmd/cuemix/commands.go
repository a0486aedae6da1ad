package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"cuemix/internal/cache"
	"cuemix/internal/config"
	"cuemix/internal/engine"
	"cuemix/internal/library"
	"cuemix/internal/mix"
	"cuemix/internal/probe"
	"cuemix/internal/storage"
	"cuemix/internal/watcher"
	"cuemix/pkg/models"

	"github.com/sirupsen/logrus"
)

type app struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func (a *app) openLibrary() (*library.Database, error) {
	if _, err := os.Stat(a.cfg.Library.Path); err != nil {
		return nil, fmt.Errorf("library database %s: %w", a.cfg.Library.Path, err)
	}
	return library.NewDatabase(a.cfg.Library.Path, a.logger)
}

func (a *app) builder(lib library.Library) *mix.Builder {
	return mix.NewBuilder(cache.NewSessionLibrary(lib), mix.BuilderOptions{
		RampSteps: a.cfg.Mix.RampSteps,
		FadeCurve: a.cfg.Mix.FadeCurve,
		Loudness:  a.cfg.Mix.Loudness.Target(),
	}, a.logger)
}

func (a *app) engine() (*engine.FFmpeg, error) {
	return engine.NewFFmpeg(engine.Options{
		Path:     a.cfg.Engine.FFmpegPath,
		LogLevel: a.cfg.Engine.LogLevel,
	}, a.logger)
}

// parseInterspersed lets a leading positional argument precede the flags.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func (a *app) playlist(args []string) error {
	fs := flag.NewFlagSet("playlist", flag.ContinueOnError)
	id := fs.Int("id", 0, "playlist id")
	name := fs.String("name", "", "playlist name")
	out := fs.String("out", "", "write a default plan CSV to this file")
	crossfade := fs.Int("crossfade", a.cfg.Mix.CrossFadeBeats, "default cross-fade length in beats")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*id == 0) == (*name == "") {
		return errors.New("exactly one of --id or --name is required")
	}

	db, err := a.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	var pl models.Playlist
	if *name != "" {
		pl, err = db.PlaylistByName(*name)
	} else {
		pl, err = db.Playlist(*id)
	}
	if err != nil {
		return err
	}
	entries, err := db.PlaylistEntries(pl.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Playlist %d: %s (%d tracks)\n", pl.ID, pl.Name, len(entries))
	if err := printEntries(os.Stdout, entries); err != nil {
		return err
	}

	if *out == "" {
		return nil
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("failed to create plan file: %w", err)
	}
	defer f.Close()
	if err := mix.WritePlanFile(f, mix.DefaultPlanTracks(entries, *crossfade)); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}
	a.logger.WithFields(logrus.Fields{
		"playlist_id": pl.ID,
		"plan":        *out,
	}).Info("Plan exported")
	return nil
}

func printEntries(w io.Writer, entries []models.PlaylistEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tID\tBPM\tTITLE\tARTIST\tHOTCUES")
	for _, e := range entries {
		cues := make([]string, 0, len(e.HotCues))
		for _, c := range e.HotCues {
			cues = append(cues, fmt.Sprintf("%d@%.3fs", c.HotCue, c.PositionSeconds(e.Track)))
		}
		fmt.Fprintf(tw, "%d\t%d\t%.2f\t%s\t%s\t%s\n",
			e.Position, e.Track.ID, e.Track.BPM, e.Track.Title, e.Track.Artist, strings.Join(cues, " "))
	}
	return tw.Flush()
}

// optionalFloat is a flag that records whether it was set.
type optionalFloat struct {
	value *float64
}

func (o *optionalFloat) String() string {
	if o.value == nil {
		return ""
	}
	return fmt.Sprint(*o.value)
}

func (o *optionalFloat) Set(s string) error {
	var v float64
	if _, err := fmt.Sscan(s, &v); err != nil {
		return err
	}
	o.value = &v
	return nil
}

func (a *app) slice(args []string) error {
	fs := flag.NewFlagSet("slice", flag.ContinueOnError)
	id := fs.Int("id", 0, "track id")
	fromHotCue := fs.Int("from-hotcue", 0, "hotcue the slice starts from")
	fromOffset := fs.Int("from-offset", 0, "beats after the start hotcue")
	toHotCue := fs.Int("to-hotcue", 0, "hotcue the slice ends at")
	toOffset := fs.Int("to-offset", 0, "beats after the end hotcue")
	out := fs.String("out", "", "output file")
	var bpm, toBPM optionalFloat
	fs.Var(&bpm, "bpm", "playback tempo (default: native)")
	fs.Var(&toBPM, "to-bpm", "ramp toward this tempo")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("--out is required")
	}

	op := mix.Slice{
		TrackID:    *id,
		FromHotCue: *fromHotCue,
		FromOffset: *fromOffset,
		ToHotCue:   *toHotCue,
		ToOffset:   *toOffset,
		BPM:        bpm.value,
		ToBPM:      toBPM.value,
	}
	return a.renderDirect(op, *out)
}

func (a *app) crossfade(args []string) error {
	fs := flag.NewFlagSet("crossfade", flag.ContinueOnError)
	aID := fs.Int("a-id", 0, "outgoing track id")
	aHotCue := fs.Int("a-hotcue", 0, "outgoing track hotcue")
	bID := fs.Int("b-id", 0, "incoming track id")
	bHotCue := fs.Int("b-hotcue", 0, "incoming track hotcue")
	length := fs.Int("crossfade", a.cfg.Mix.CrossFadeBeats, "cross-fade length in beats")
	margin := fs.Int("margin", 0, "extra beats kept before and after the fade")
	out := fs.String("out", "", "output file")
	var bpm optionalFloat
	fs.Var(&bpm, "bpm", "mix tempo (default: incoming track's native bpm)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("--out is required")
	}

	op := mix.CrossFade{
		AID:     *aID,
		AHotCue: *aHotCue,
		BID:     *bID,
		BHotCue: *bHotCue,
		Length:  *length,
		Margin:  *margin,
		BPM:     bpm.value,
	}
	return a.renderDirect(op, *out)
}

func (a *app) renderDirect(op mix.Operation, out string) error {
	db, err := a.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	ff, err := a.engine()
	if err != nil {
		return err
	}
	g, err := op.Graph(a.builder(db))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	job := mix.RenderJob{
		Inputs:      g.Inputs(),
		FilterGraph: g.String(),
		OutputPad:   g.Output().Label(),
		Output:      out,
	}
	a.logger.WithFields(logrus.Fields{
		"operation_id": op.ID(),
		"filter_graph": job.FilterGraph,
	}).Debug("Rendering operation")
	if err := ff.Render(job); err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{
		"operation_id": op.ID(),
		"output":       out,
	}).Info("Operation rendered")
	return nil
}

func (a *app) mix(args []string) error {
	fs := flag.NewFlagSet("mix", flag.ContinueOnError)
	out := fs.String("out", "mix"+a.cfg.Mix.SegmentExtension, "final mix file")
	watch := fs.Bool("watch", false, "re-run whenever the plan file changes")
	publish := fs.Bool("publish", a.cfg.Storage.Enabled, "upload the finished mix")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return errors.New("mix takes exactly one plan file")
	}
	planPath := positional[0]

	db, err := a.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	ff, err := a.engine()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var publisher *storage.S3Publisher
	if *publish {
		publisher, err = storage.NewS3Publisher(ctx, storage.Options{
			Bucket:          a.cfg.Storage.Bucket,
			Prefix:          a.cfg.Storage.Prefix,
			Region:          a.cfg.Storage.Region,
			Endpoint:        a.cfg.Storage.Endpoint,
			AccessKeyID:     a.cfg.Storage.AccessKeyID,
			SecretAccessKey: a.cfg.Storage.SecretAccessKey,
		}, a.logger)
		if err != nil {
			return err
		}
	}

	run := func() error {
		// a fresh builder per run so edits to hotcues are picked up
		executor := mix.NewExecutor(a.builder(db), ff, mix.ExecutorOptions{
			SegmentDir: a.cfg.Mix.SegmentDir,
			Extension:  a.cfg.Mix.SegmentExtension,
			Probe:      probe.Duration,
		}, a.logger)
		return runPlan(ctx, planPath, *out, executor, publisher)
	}

	if err := run(); err != nil {
		if !*watch {
			return err
		}
		a.logger.WithError(err).Error("Plan run failed")
	}
	if !*watch {
		return nil
	}

	debounce := time.Duration(a.cfg.Watch.DebounceMillis) * time.Millisecond
	return watcher.New(planPath, debounce, run, a.logger).Run(ctx)
}

func runPlan(ctx context.Context, planPath, out string, executor *mix.Executor, publisher *storage.S3Publisher) error {
	f, err := os.Open(planPath)
	if err != nil {
		return fmt.Errorf("failed to open plan: %w", err)
	}
	tracks, err := mix.ReadPlanFile(f)
	f.Close()
	if err != nil {
		return err
	}

	plan, err := mix.PlanTracks(tracks)
	if err != nil {
		return err
	}
	if _, err := executor.Execute(plan, out); err != nil {
		return err
	}

	if publisher != nil {
		if _, err := publisher.Publish(ctx, out); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) tag(args []string) error {
	fs := flag.NewFlagSet("tag", flag.ContinueOnError)
	dir := fs.String("dir", "", "check every file under this directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	paths := fs.Args()
	if *dir != "" {
		err := filepath.WalkDir(*dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", *dir, err)
		}
	}
	if len(paths) == 0 {
		return errors.New("no files to check")
	}

	mismatches := probe.CheckTags(paths)
	for _, m := range mismatches {
		fmt.Printf("%s\n  title:  %s\n  artist: %s\n", m.Path, m.Title, m.Artist)
	}
	a.logger.WithFields(logrus.Fields{
		"checked":    len(paths),
		"mismatches": len(mismatches),
	}).Info("Tag check complete")
	return nil
}

func (a *app) relocate(args []string) error {
	fs := flag.NewFlagSet("relocate", flag.ContinueOnError)
	in := fs.String("in", a.cfg.Library.Path, "source library database")
	out := fs.String("out", "", "destination database")
	directory := fs.String("directory", "", "directory the tracks now live in")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" || *directory == "" {
		return errors.New("--out and --directory are required")
	}
	if filepath.Clean(*in) == filepath.Clean(*out) {
		return errors.New("--out must differ from --in")
	}

	result, err := library.Relocate(*in, *out, *directory, a.logger)
	if err != nil {
		return err
	}
	fmt.Printf("Relocated %d tracks (%d failed) into %s\n", result.Updated, result.Failed, *out)
	return nil
}
