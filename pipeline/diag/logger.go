// Package diag provides the pipeline's optional verbose-dump sink: an
// injectable Logger instead of hard-coded print call sites, so the
// driver's default stays silent without deleting the capability.
package diag

import (
	"fmt"
	"io"
)

// Logger is the sink for optional driver-gated diagnostic dumps (block
// schedules, working sets, color assignments). Never on the hot path.
type Logger interface {
	Logf(format string, args ...any)
}

// NoopLogger discards everything; the pipeline's default.
type NoopLogger struct{}

func (NoopLogger) Logf(string, ...any) {}

// TextLogger writes formatted lines to an io.Writer.
type TextLogger struct {
	Out io.Writer
}

func (l TextLogger) Logf(format string, args ...any) {
	fmt.Fprintf(l.Out, format+"\n", args...)
}
