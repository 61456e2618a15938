package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/field-logger/internal/clock"
	"github.com/sweeney/field-logger/internal/fault"
	"github.com/sweeney/field-logger/internal/record"
	"github.com/sweeney/field-logger/internal/sample"
)

var day = clock.Calendar{Year: 2024, Month: 6, Day: 1, Hour: 10}

func at(sec int) clock.Calendar {
	c := day
	c.Minute = sec / 60
	c.Second = sec % 60
	return c
}

func line(ts clock.Calendar, v float64) record.Line {
	return record.NewFormatter("v").Format(ts, []sample.Reading{{Name: "v", Value: v}})
}

func TestAppendWritesWholeLineAndCloses(t *testing.T) {
	m := NewFakeMedium()
	w := NewWriter(m, 12, nil)
	path := "/sd/log-2024-06-01.log"

	flushed, err := w.Append(path, at(0), line(at(0), 3.852))
	require.NoError(t, err)
	assert.False(t, flushed, "no flush after first append")

	assert.Equal(t, "\"2024-06-01T10:00:00\",\"3.852\"\n", string(m.Files[path]))
	assert.Zero(t, m.OpenHandles, "handle left open")
	s := w.Stats()
	assert.Equal(t, int64(1), s.Appends)
	assert.Equal(t, 1, s.CyclesSinceSync)
}

func TestFlushEveryTwelveAppends(t *testing.T) {
	m := NewFakeMedium()
	w := NewWriter(m, 12, nil)
	path := "/sd/log-2024-06-01.log"

	for i := 1; i <= 36; i++ {
		flushed, err := w.Append(path, at(i), line(at(i), float64(i)))
		require.NoError(t, err, "append %d", i)
		assert.Equal(t, i%12 == 0, flushed, "append %d", i)
		assert.Equal(t, i%12, w.Flush().CyclesSinceSync, "counter after append %d", i)
	}

	assert.Len(t, m.Syncs, 3)
	assert.Equal(t, int64(3), w.Stats().Flushes)
}

func TestWriteFailureNoFlushNoPartialRecord(t *testing.T) {
	m := NewFakeMedium()
	w := NewWriter(m, 1, nil)
	path := "/sd/log-2024-06-01.log"

	_, err := w.Append(path, at(0), line(at(0), 1))
	require.NoError(t, err)
	before := string(m.Files[path])
	syncsBefore := m.SyncAttempts
	cycles := w.Flush().CyclesSinceSync

	m.WriteError = errors.New("no space left on device")
	m.PartialBytes = 7

	_, err = w.Append(path, at(1), line(at(1), 2))
	require.ErrorIs(t, err, fault.WriteFailure)
	assert.Equal(t, fault.Fatal, fault.Classify(err))
	assert.Equal(t, syncsBefore, m.SyncAttempts, "flush attempted after failed append")
	assert.Equal(t, cycles, w.Flush().CyclesSinceSync, "counter changed on failed append")
	assert.Equal(t, before, string(m.Files[path]), "partial record left behind")
	assert.Zero(t, m.OpenHandles, "handle left open after failure")
}

func TestOpenFailureIsWriteFailure(t *testing.T) {
	m := NewFakeMedium()
	m.OpenError = os.ErrPermission
	w := NewWriter(m, 12, nil)

	_, err := w.Append("/sd/log-2024-06-01.log", at(0), line(at(0), 1))
	assert.ErrorIs(t, err, fault.WriteFailure)
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestCloseErrorIsWriteFailure(t *testing.T) {
	m := NewFakeMedium()
	m.CloseError = errors.New("EIO")
	w := NewWriter(m, 12, nil)

	_, err := w.Append("/sd/log-2024-06-01.log", at(0), line(at(0), 1))
	assert.ErrorIs(t, err, fault.WriteFailure)
	assert.Zero(t, w.Stats().Appends, "failed append counted")
}

func TestSyncFailureIsFlushFailure(t *testing.T) {
	m := NewFakeMedium()
	m.SyncError = errors.New("EIO")
	w := NewWriter(m, 2, nil)
	path := "/sd/log-2024-06-01.log"

	_, err := w.Append(path, at(0), line(at(0), 1))
	require.NoError(t, err)
	_, err = w.Append(path, at(1), line(at(1), 2))
	require.ErrorIs(t, err, fault.FlushFailure)
	assert.Equal(t, fault.Fatal, fault.Classify(err))
}

func TestOutOfOrderRejected(t *testing.T) {
	m := NewFakeMedium()
	w := NewWriter(m, 12, nil)
	path := "/sd/log-2024-06-01.log"

	_, err := w.Append(path, at(10), line(at(10), 1))
	require.NoError(t, err)
	_, err = w.Append(path, at(10), line(at(10), 2))
	require.NoError(t, err, "equal timestamp is allowed")

	_, err = w.Append(path, at(9), line(at(9), 3))
	require.ErrorIs(t, err, fault.OutOfOrder)
	assert.Equal(t, fault.Recoverable, fault.Classify(err))
	assert.Equal(t, 2, strings.Count(string(m.Files[path]), "\n"))
	assert.Equal(t, int64(1), w.Stats().Rejected)
}

func TestOrderSeededFromExistingFile(t *testing.T) {
	m := NewFakeMedium()
	path := "/sd/log-2024-06-01.log"
	m.Files[path] = []byte(string(line(at(30), 1)))

	w := NewWriter(m, 12, nil)
	_, err := w.Append(path, at(20), line(at(20), 2))
	require.ErrorIs(t, err, fault.OutOfOrder, "checked against the existing file")

	_, err = w.Append(path, at(31), line(at(31), 3))
	assert.NoError(t, err)
}

func TestTornRecordRemovedBeforeAppend(t *testing.T) {
	m := NewFakeMedium()
	path := "/sd/log-2024-06-01.log"
	first := string(line(at(0), 1))
	m.Files[path] = []byte(first + `"2024-06-01T10:00:0`)

	w := NewWriter(m, 12, nil)
	_, err := w.Append(path, at(5), line(at(5), 2))
	require.NoError(t, err)

	assert.Equal(t, first+string(line(at(5), 2)), string(m.Files[path]))
	assert.Zero(t, m.OpenHandles)

	tail, err := m.Tail(path)
	require.NoError(t, err)
	assert.False(t, tail.Torn())
	p, err := record.ParseLine(tail.Line)
	require.NoError(t, err)
	assert.Equal(t, at(5), p.Timestamp)
}

func TestTornOnlyRecordLeavesEmptyFile(t *testing.T) {
	m := NewFakeMedium()
	path := "/sd/log-2024-06-01.log"
	m.Files[path] = []byte(`"2024-06-01T10:00:00","3.`)

	w := NewWriter(m, 12, nil)
	_, err := w.Append(path, at(1), line(at(1), 2))
	require.NoError(t, err, "a torn first record does not seed ordering")
	assert.Equal(t, string(line(at(1), 2)), string(m.Files[path]))
}

func TestTornRecordRepairFailureIsWriteFailure(t *testing.T) {
	m := NewFakeMedium()
	path := "/sd/log-2024-06-01.log"
	m.Files[path] = []byte("frag")
	m.OpenError = os.ErrPermission

	w := NewWriter(m, 12, nil)
	_, err := w.Append(path, at(0), line(at(0), 1))
	assert.ErrorIs(t, err, fault.WriteFailure)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, "frag", string(m.Files[path]))
}

func TestDateRolloverSyncsOldFile(t *testing.T) {
	m := NewFakeMedium()
	w := NewWriter(m, 12, nil)
	old := "/sd/log-2024-06-01.log"
	next := "/sd/log-2024-06-02.log"

	_, err := w.Append(old, at(0), line(at(0), 1))
	require.NoError(t, err)
	tomorrow := clock.Calendar{Year: 2024, Month: 6, Day: 2}
	_, err = w.Append(next, tomorrow, line(tomorrow, 2))
	require.NoError(t, err)

	assert.Equal(t, []string{old}, m.Syncs, "old file synced on rollover")
	assert.Equal(t, 1, w.Flush().CyclesSinceSync)
	assert.Equal(t, next, w.Stats().Path)
}

func TestCloseSyncsPending(t *testing.T) {
	m := NewFakeMedium()
	w := NewWriter(m, 12, nil)

	require.NoError(t, w.Close(), "Close with nothing written")
	assert.Zero(t, m.SyncAttempts, "sync attempted with nothing pending")

	path := "/sd/log-2024-06-01.log"
	_, err := w.Append(path, at(0), line(at(0), 1))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Len(t, m.Syncs, 1)
	assert.False(t, w.Flush().Pending(), "still pending after Close")
}

func TestOSMediumEndToEnd(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(OSMedium{}, 2, nil)
	path := record.FileName(dir, day)

	for i := 0; i < 3; i++ {
		_, err := w.Append(path, at(i), line(at(i), float64(i)))
		require.NoError(t, err, "append %d", i)
	}
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"2024-06-01T10:00:02","2"`, lines[2])

	tail, err := OSMedium{}.Tail(path)
	require.NoError(t, err)
	assert.Equal(t, lines[2], tail.Line)
	assert.Equal(t, int64(len(data)), tail.Complete)
	assert.False(t, tail.Torn())
}

func TestOSMediumTornRecordRemoved(t *testing.T) {
	path := record.FileName(t.TempDir(), day)
	first := string(line(at(0), 1))
	require.NoError(t, os.WriteFile(path, []byte(first+`"2024-06-01T10:00:0`), 0o644))

	w := NewWriter(OSMedium{}, 12, nil)
	_, err := w.Append(path, at(5), line(at(5), 2))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first+string(line(at(5), 2)), string(data))
}

func TestOSMediumTailLongFragment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.log")
	first := string(line(at(0), 1))
	frag := strings.Repeat("x", 2*tailChunk)
	require.NoError(t, os.WriteFile(path, []byte(first+frag), 0o644))

	tail, err := OSMedium{}.Tail(path)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSuffix(first, "\n"), tail.Line)
	assert.Equal(t, int64(len(first)), tail.Complete)
	assert.Equal(t, int64(len(first)+len(frag)), tail.Size)
	assert.True(t, tail.Torn())
}

func TestOSMediumUnwritableDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "not-mounted")
	w := NewWriter(OSMedium{}, 1, nil)

	_, err := w.Append(record.FileName(missing, day), day, line(day, 1))
	assert.ErrorIs(t, err, fault.WriteFailure)
}

func TestLastLine(t *testing.T) {
	tests := []struct {
		in   string
		line string
		end  int
	}{
		{"a\nb\nc", "b", 4},
		{"only\n", "only", 5},
		{"fragment", "", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		got, end := lastLine([]byte(tt.in))
		assert.Equal(t, tt.line, got, "%q", tt.in)
		assert.Equal(t, tt.end, end, "%q", tt.in)
	}
}

func TestOSMediumTailMissing(t *testing.T) {
	_, err := OSMedium{}.Tail(filepath.Join(t.TempDir(), "nope.log"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
