package main

import (
	"fmt"
	"os"
	"strings"

	"cuemix/internal/config"

	"github.com/sirupsen/logrus"
)

const usage = `usage: cuemix <command> [flags]

commands:
  playlist   list a playlist and optionally export a default plan
  slice      render one slice of a track
  crossfade  render one cross-fade between two tracks
  mix        render and concatenate a plan file
  tag        report files whose tags disagree with their file name
  relocate   copy the library with track locations moved to a directory
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	configPath := os.Getenv("CUEMIX_CONFIG")
	if configPath == "" {
		configPath = "./cuemix.toml"
	}

	// Initialize basic logger for startup
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Error loading configuration")
	}

	closeLog, err := configureLogger(logger, cfg.Logging)
	if err != nil {
		logger.WithError(err).Fatal("Error configuring logging")
	}
	defer closeLog()

	app := &app{cfg: cfg, logger: logger}
	command, args := os.Args[1], os.Args[2:]

	var runErr error
	switch command {
	case "playlist":
		runErr = app.playlist(args)
	case "slice":
		runErr = app.slice(args)
	case "crossfade":
		runErr = app.crossfade(args)
	case "mix":
		runErr = app.mix(args)
	case "tag":
		runErr = app.tag(args)
	case "relocate":
		runErr = app.relocate(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if runErr != nil {
		logger.WithError(runErr).WithField("command", command).Fatal("Command failed")
	}
}

// configureLogger applies the [logging] section. The returned func closes
// the log file, if one was opened.
func configureLogger(logger *logrus.Logger, cfg config.LoggingConfig) (func(), error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.File == "" {
		return func() {}, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger.SetOutput(f)
	return func() { f.Close() }, nil
}
