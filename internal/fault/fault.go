// Package fault classifies failures raised during an acquisition iteration
// and drives the termination sequence for fatal ones.
package fault

import (
	"context"
	"errors"
)

// Code is a stable failure identifier. It is a string newtype, comparable,
// and implements error so it can be used as a sentinel with errors.Is.
type Code string

func (c Code) Error() string { return string(c) }

const (
	SampleUnavailable Code = "sample_unavailable"
	FormatError       Code = "format_error"
	WriteFailure      Code = "write_failure"
	FlushFailure      Code = "flush_failure"
	OutOfOrder        Code = "out_of_order"
	ClockUnavailable  Code = "clock_unavailable"
	IndicatorFailure  Code = "indicator_failure"
	Interrupted       Code = "interrupted"
	Unknown           Code = "unknown"
)

// E attaches an operation name and cause to a Code.
type E struct {
	C   Code
	Op  string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }

// Is lets errors.Is(err, WriteFailure) match a wrapped *E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap tags err with code c. A nil err yields nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// Of extracts the Code carried by err, or Unknown.
func Of(err error) Code {
	if err == nil {
		return ""
	}
	var e *E
	if errors.As(err, &e) {
		return e.C
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	if errors.Is(err, context.Canceled) {
		return Interrupted
	}
	return Unknown
}
