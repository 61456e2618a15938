package clock

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarFormatting(t *testing.T) {
	c := FromTime(time.Date(2024, 6, 1, 10, 0, 3, 250_000_000, time.UTC))

	assert.Equal(t, "2024-06-01T10:00:03", c.Timestamp())
	assert.Equal(t, "2024-06-01", c.Date())
	assert.Equal(t, 250000, c.Subsecond)
	assert.True(t, c.Time().Equal(time.Date(2024, 6, 1, 10, 0, 3, 250_000_000, time.UTC)))
}

func TestCalendarCompare(t *testing.T) {
	base := Calendar{Year: 2024, Month: 6, Day: 1, Hour: 10}
	later := base
	later.Second = 1
	sameSecond := base
	sameSecond.Subsecond = 999

	assert.Equal(t, -1, base.Compare(later))
	assert.Equal(t, 1, later.Compare(base))
	assert.Equal(t, 0, base.Compare(sameSecond))

	nextYear := Calendar{Year: 2025, Month: 1, Day: 1}
	assert.Equal(t, -1, later.Compare(nextYear))
}

type fakeRTC struct {
	t   time.Time
	err error
}

func (f *fakeRTC) ReadTime() (time.Time, error) { return f.t, f.err }

func TestRTCFallsBackToSystem(t *testing.T) {
	dev := &fakeRTC{t: time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)}
	r := NewRTC(dev, nil)

	c, err := r.Calendar()
	require.NoError(t, err)
	assert.Equal(t, "2030-01-02T03:04:05", c.Timestamp())

	dev.err = errors.New("i2c nack")
	c, err = r.Calendar()
	require.NoError(t, err)
	assert.NotEqual(t, 2030, c.Year)
	assert.True(t, r.failing)

	dev.err = nil
	_, err = r.Calendar()
	require.NoError(t, err)
	assert.False(t, r.failing)
}

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2024, 6, 1, 23, 59, 59, 0, time.UTC)
	f := NewFake(start)

	f.Advance(2 * time.Second)
	assert.Equal(t, start.Add(2*time.Second), f.Now())

	c, err := f.Calendar()
	require.NoError(t, err)
	assert.Equal(t, "2024-06-02", c.Date())
	assert.Equal(t, 2*time.Second, f.Elapsed())
}
