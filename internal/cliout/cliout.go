// Package cliout provides consistent plain-text status formatting for the
// repomcpd CLI subcommands, shared so index and doctor render the same
// way rather than each hand-rolling fmt.Fprintf calls.
package cliout

import (
	"fmt"
	"io"
)

// Writer formats status lines to out. There is no color mode: repomcpd's
// commands are as likely to run piped into another tool as on a terminal.
type Writer struct {
	out io.Writer
}

// New creates a Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a message with an icon prefix, or three spaces if icon is
// empty, so unmarked lines still align with marked ones.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Success prints msg with a checkmark.
func (w *Writer) Success(msg string) { w.Status("✓", msg) }

// Warning prints msg with a warning marker.
func (w *Writer) Warning(msg string) { w.Status("!", msg) }

// Failure prints msg with a failure marker.
func (w *Writer) Failure(msg string) { w.Status("✗", msg) }
