// Package logging builds the prefixed loggers used across fb. When a
// log file is configured, output rotates via lumberjack; otherwise it
// goes to stderr.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures logger construction.
type Options struct {
	// File is the rotated log file path; empty means stderr only.
	File string

	// MaxSizeMB is the rotation threshold (default 10).
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep (default 3).
	MaxBackups int
}

// Writer returns the destination for all loggers.
func Writer(opts Options) io.Writer {
	if opts.File == "" {
		return os.Stderr
	}
	if opts.MaxSizeMB == 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxBackups == 0 {
		opts.MaxBackups = 3
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}
}

// New returns a logger with the given bracketed prefix, e.g.
// "[reconcile] ".
func New(w io.Writer, prefix string) *log.Logger {
	return log.New(w, prefix, log.LstdFlags)
}
