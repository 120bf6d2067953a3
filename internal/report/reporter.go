// Package report is the offline analytics engine: a fixed battery of
// read-only aggregate queries over one yearly partition, rendered as
// column-aligned plain-text tables. It never mutates the database it reads.
package report

import (
	"fmt"
	"io"
	"strings"
)

// Reporter writes the report to every destination at once (typically
// stdout plus the output file). Write errors are sticky: the first one is
// kept and later writes become no-ops, so the caller checks Err once at the
// end.
type Reporter struct {
	w   io.Writer
	err error
}

// NewReporter tees report output across the given writers.
func NewReporter(writers ...io.Writer) *Reporter {
	return &Reporter{w: io.MultiWriter(writers...)}
}

// Err returns the first write error, if any.
func (r *Reporter) Err() error {
	return r.err
}

// Line writes one line followed by a newline.
func (r *Reporter) Line(text string) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintln(r.w, text)
}

// Linef writes one formatted line.
func (r *Reporter) Linef(format string, args ...any) {
	r.Line(fmt.Sprintf(format, args...))
}

// Blank writes an empty line.
func (r *Reporter) Blank() {
	r.Line("")
}

// Section writes a top-level section header.
func (r *Reporter) Section(title string) {
	line := strings.Repeat("=", len(title)+2)
	r.Blank()
	r.Line(line)
	r.Line(" " + title)
	r.Line(line)
}

// Subsection writes a second-level header.
func (r *Reporter) Subsection(title string) {
	r.Blank()
	r.Line(title)
	r.Line(strings.Repeat("-", len(title)))
}
