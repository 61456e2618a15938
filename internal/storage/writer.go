package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sweeney/field-logger/internal/clock"
	"github.com/sweeney/field-logger/internal/fault"
	"github.com/sweeney/field-logger/internal/logic"
	"github.com/sweeney/field-logger/internal/record"
)

// Stats reports writer activity.
type Stats struct {
	Path            string
	Appends         int64
	Flushes         int64
	Rejected        int64
	CyclesSinceSync int
	MaxCycles       int
}

// Writer appends records to date-named files and forces a durable commit
// every MaxCycles successful appends. The file handle never outlives a
// single Append call.
type Writer struct {
	medium Medium
	log    *slog.Logger
	flush  logic.FlushState

	path   string
	lastTS clock.Calendar

	appends  int64
	flushes  int64
	rejected int64
}

// NewWriter creates a Writer forcing a sync every maxCycles appends.
func NewWriter(m Medium, maxCycles int, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{medium: m, log: log, flush: logic.NewFlushState(maxCycles)}
}

// Append writes line to path. ts is the record's timestamp and must not be
// older than the last record written to the same file.
//
// Errors carry fault codes: WriteFailure if the record could not be
// written, FlushFailure if the follow-up sync failed, OutOfOrder if the
// record was refused. flushed reports whether a durable commit happened.
func (w *Writer) Append(path string, ts clock.Calendar, line record.Line) (flushed bool, err error) {
	if path != w.path {
		if err := w.switchFile(path); err != nil {
			return false, err
		}
	}
	if !w.lastTS.IsZero() && ts.Compare(w.lastTS) < 0 {
		w.rejected++
		return false, fault.Wrap(fault.OutOfOrder, "append",
			fmt.Errorf("timestamp %s precedes %s in %s", ts.Timestamp(), w.lastTS.Timestamp(), path))
	}

	if err := w.write(path, line); err != nil {
		return false, fault.Wrap(fault.WriteFailure, "append", err)
	}
	w.lastTS = ts
	w.appends++

	if !w.flush.Appended() {
		return false, nil
	}
	if err := w.medium.Sync(path); err != nil {
		return false, fault.Wrap(fault.FlushFailure, "sync", err)
	}
	w.flush.Synced()
	w.flushes++
	w.log.Debug("log file synced", "path", path, "flushes", w.flushes)
	return true, nil
}

// write appends line in a single write. A failed write that left a partial
// record is truncated back to the previous length.
func (w *Writer) write(path string, line record.Line) (err error) {
	f, err := w.medium.OpenAppend(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	size, err := f.Size()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	n, err := f.Write([]byte(line))
	if err == nil && n < len(line) {
		err = fmt.Errorf("short write: %d of %d bytes", n, len(line))
	}
	if err != nil {
		if n > 0 {
			if terr := f.Truncate(size); terr != nil {
				w.log.Error("could not remove partial record", "path", path, "err", terr)
			}
		}
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// switchFile adopts a new log file identity. Unsynced appends to the old file
// are committed first. The ordering guard is seeded from the new file's
// last line so a restart cannot interleave older records.
func (w *Writer) switchFile(path string) error {
	if w.path != "" && w.flush.Pending() {
		if err := w.medium.Sync(w.path); err != nil {
			return fault.Wrap(fault.FlushFailure, "sync", err)
		}
		w.flush.Synced()
		w.flushes++
	}
	if w.path != "" {
		w.log.Info("switching log file", "from", w.path, "to", path)
	} else {
		w.log.Info("logging to file", "path", path)
	}
	w.path = path
	w.lastTS = clock.Calendar{}

	tail, err := w.medium.Tail(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		w.log.Warn("could not read last record", "path", path, "err", err)
		return nil
	}
	if tail.Torn() {
		if err := w.dropFragment(path, tail); err != nil {
			return fault.Wrap(fault.WriteFailure, "repair", err)
		}
	}
	if tail.Line != "" {
		p, perr := record.ParseLine(tail.Line)
		if perr != nil {
			w.log.Warn("last record unparsable", "path", path, "err", perr)
			return nil
		}
		w.lastTS = p.Timestamp
	}
	return nil
}

// dropFragment cuts a record torn by power loss off the end of path so
// the next append starts on a fresh line.
func (w *Writer) dropFragment(path string, tail Tail) (err error) {
	f, err := w.medium.OpenAppend(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := f.Truncate(tail.Complete); err != nil {
		return fmt.Errorf("truncate %s: %w", path, err)
	}
	w.log.Warn("removed torn record", "path", path, "bytes", tail.Size-tail.Complete)
	return nil
}

// Close commits any unsynced appends.
func (w *Writer) Close() error {
	if w.path == "" || !w.flush.Pending() {
		return nil
	}
	if err := w.medium.Sync(w.path); err != nil {
		return fault.Wrap(fault.FlushFailure, "sync", err)
	}
	w.flush.Synced()
	w.flushes++
	return nil
}

// Flush returns a copy of the flush bookkeeping.
func (w *Writer) Flush() logic.FlushState {
	return w.flush
}

// Stats returns current counters.
func (w *Writer) Stats() Stats {
	return Stats{
		Path:            w.path,
		Appends:         w.appends,
		Flushes:         w.flushes,
		Rejected:        w.rejected,
		CyclesSinceSync: w.flush.CyclesSinceSync,
		MaxCycles:       w.flush.MaxCycles,
	}
}
