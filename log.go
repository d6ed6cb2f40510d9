package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
)

var logFile *os.File

// setupLog sends warnings to stderr until the command line is parsed. It
// returns a function that closes the log file opened by configureLog.
func setupLog() (func() error, error) {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)
	return func() error {
		if logFile != nil {
			return logFile.Close()
		}
		return nil
	}, nil
}

// configureLog applies --debug and --log-file. READALONG_LOG_FILE is used
// when no log file is passed. With a log file, logs go only to the file.
func configureLog(debug bool, path string) error {
	if path == "" {
		path = os.Getenv("READALONG_LOG_FILE")
	}
	if path == "" {
		if debug {
			log.SetLevel(log.DebugLevel)
			log.SetReportTimestamp(true)
		}
		return nil
	}

	path, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("expanding log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("unable to create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return fmt.Errorf("unable to open log file: %w", err)
	}
	logFile = f

	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	log.SetDefault(log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	}))
	log.Debug("logging to file", "path", path)
	return nil
}

// discardLog silences the default logger for commands whose output is
// meant to be parsed, unless logs go to a file.
func discardLog() {
	if logFile == nil {
		log.SetOutput(io.Discard)
	}
}
