// Package logging builds the per-component loggers. Every logger writes to
// stderr and, when a log file is configured, to a size-rotated file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the log file.
const (
	MaxSizeMB  = 10
	MaxBackups = 3
	MaxAgeDays = 28
)

// Output is the shared destination for component loggers.
type Output struct {
	w   io.Writer
	rot *lumberjack.Logger
}

// Open returns an Output writing to console and, if file is non-empty, to
// file with rotation. console may be nil to log only to the file.
func Open(file string, console io.Writer) (*Output, error) {
	out := &Output{w: console}
	if file == "" {
		if console == nil {
			out.w = io.Discard
		}
		return out, nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	out.rot = &lumberjack.Logger{
		Filename:   file,
		MaxSize:    MaxSizeMB,
		MaxBackups: MaxBackups,
		MaxAge:     MaxAgeDays,
	}
	if console == nil {
		out.w = out.rot
	} else {
		out.w = io.MultiWriter(console, out.rot)
	}
	return out, nil
}

// Stderr is an Output that only writes to stderr.
func Stderr() *Output {
	return &Output{w: os.Stderr}
}

// Logger returns a logger for one component, e.g. Logger("serve") prefixes
// lines with "[serve] ".
func (o *Output) Logger(component string) *log.Logger {
	return log.New(o.w, "["+component+"] ", log.LstdFlags)
}

// Rotate forces a new log file. No-op without a file.
func (o *Output) Rotate() error {
	if o.rot == nil {
		return nil
	}
	return o.rot.Rotate()
}

// Close closes the log file.
func (o *Output) Close() error {
	if o.rot == nil {
		return nil
	}
	return o.rot.Close()
}
