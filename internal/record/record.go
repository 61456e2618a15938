// Package record renders sample sets into log lines and derives the daily
// log file identity.
//
// A line is a sequence of double-quoted, comma-separated fields terminated by
// a newline. The first field is always the timestamp in YYYY-MM-DDTHH:MM:SS
// form; the remaining fields follow the configured field order. There is no
// header line.
package record

import (
	"errors"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sweeney/field-logger/internal/clock"
	"github.com/sweeney/field-logger/internal/sample"
)

// DefaultUnavailable marks a reading that could not be taken.
const DefaultUnavailable = "NA"

// Line is one formatted record, newline included.
type Line string

// Field describes how one reading is rendered.
type Field struct {
	Name string
	// Precision is the number of decimal places; -1 selects the shortest
	// representation that round-trips.
	Precision int
}

// Formatter renders readings in a fixed field order.
type Formatter struct {
	Fields      []Field
	Unavailable string
}

// NewFormatter creates a Formatter for the given field names with shortest
// precision and the default unavailable marker.
func NewFormatter(names ...string) *Formatter {
	fields := make([]Field, len(names))
	for i, n := range names {
		fields[i] = Field{Name: n, Precision: -1}
	}
	return &Formatter{Fields: fields, Unavailable: DefaultUnavailable}
}

// Format renders ts and readings as one line. It is total: readings are
// matched to fields by name, missing or unavailable readings render as the
// unavailable marker, and non-finite values are never printed.
func (f *Formatter) Format(ts clock.Calendar, readings []sample.Reading) Line {
	byName := make(map[string]sample.Reading, len(readings))
	for _, r := range readings {
		byName[r.Name] = r
	}

	var b strings.Builder
	b.Grow(24 + 12*len(f.Fields))
	writeQuoted(&b, ts.Timestamp())
	for _, field := range f.Fields {
		b.WriteByte(',')
		r, ok := byName[field.Name]
		if !ok || !r.Available() {
			writeQuoted(&b, f.Unavailable)
			continue
		}
		writeQuoted(&b, FormatValue(r.Value, field.Precision))
	}
	b.WriteByte('\n')
	return Line(b.String())
}

// Set is a convenience for Format(s.Timestamp, s.Readings).
func (f *Formatter) Set(s sample.Set) Line {
	return f.Format(s.Timestamp, s.Readings)
}

// FormatValue renders v with prec decimal places, or the shortest exact
// representation when prec < 0.
func FormatValue(v float64, prec int) string {
	if prec < 0 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('"')
	b.WriteString(s)
	b.WriteByte('"')
}

var (
	errNoNewline  = errors.New("record: missing trailing newline")
	errEmbeddedNL = errors.New("record: embedded newline")
	errQuoting    = errors.New("record: malformed quoting")
)

// Validate checks the structural invariants of a line: exactly one trailing
// newline and every field enclosed in double quotes. Lines produced by
// Format always pass.
func (l Line) Validate() error {
	s := string(l)
	if !strings.HasSuffix(s, "\n") {
		return errNoNewline
	}
	body := s[:len(s)-1]
	if strings.ContainsAny(body, "\r\n") {
		return errEmbeddedNL
	}
	for _, field := range strings.Split(body, ",") {
		if len(field) < 2 || field[0] != '"' || field[len(field)-1] != '"' || strings.Contains(field[1:len(field)-1], `"`) {
			return errQuoting
		}
	}
	return nil
}

// FileName returns the log file path for the calendar day of c.
func FileName(mount string, c clock.Calendar) string {
	return filepath.Join(mount, "log-"+c.Date()+".log")
}
