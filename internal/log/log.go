// Package log provides simple leveled logging for CLI output.
package log

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Logger writes informational output to stdout and diagnostics to stderr.
// Warnings are colored when stderr is a terminal.
type Logger struct {
	quiet       bool
	verbose     bool
	infoWriter  io.Writer
	errorWriter io.Writer
	colorize    bool
}

// New creates a logger bound to the process streams.
func New(quiet, verbose bool) *Logger {
	return &Logger{
		quiet:       quiet,
		verbose:     verbose,
		infoWriter:  os.Stdout,
		errorWriter: os.Stderr,
		colorize:    isatty.IsTerminal(os.Stderr.Fd()) && !color.NoColor,
	}
}

// NewWithWriters creates a logger with custom sinks; used by tests.
func NewWithWriters(quiet, verbose bool, infoWriter, errorWriter io.Writer) *Logger {
	if infoWriter == nil {
		infoWriter = io.Discard
	}
	if errorWriter == nil {
		errorWriter = io.Discard
	}
	return &Logger{
		quiet:       quiet,
		verbose:     verbose,
		infoWriter:  infoWriter,
		errorWriter: errorWriter,
	}
}

// Infof logs a standard informational message.
func (l *Logger) Infof(format string, args ...any) {
	if l.quiet {
		return
	}
	fmt.Fprintf(l.infoWriter, format+"\n", args...)
}

// Verbosef logs details that should only appear in verbose mode.
func (l *Logger) Verbosef(format string, args ...any) {
	if l.quiet || !l.verbose {
		return
	}
	fmt.Fprintf(l.infoWriter, format+"\n", args...)
}

// Warnf logs non-fatal problems (skipped folders, fallback activations).
func (l *Logger) Warnf(format string, args ...any) {
	if l.quiet {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.colorize {
		msg = color.YellowString(msg)
	}
	fmt.Fprintln(l.errorWriter, msg)
}

// Errorf logs errors to stderr.
func (l *Logger) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l.colorize {
		msg = color.RedString(msg)
	}
	fmt.Fprintln(l.errorWriter, msg)
}
