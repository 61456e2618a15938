package sample

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/field-logger/internal/fault"
)

func TestReadingAvailable(t *testing.T) {
	assert.True(t, Reading{Name: "v", Value: 3.85}.Available())
	assert.True(t, Reading{Name: "v", Value: 0}.Available())
	assert.False(t, Reading{Name: "v", Err: errors.New("nack")}.Available())
	assert.False(t, Reading{Name: "v", Value: math.NaN()}.Available())
	assert.False(t, Reading{Name: "v", Value: math.Inf(1)}.Available())
}

func TestHardwareSourceReadAll(t *testing.T) {
	nack := errors.New("i2c nack")
	src := NewHardwareSource(
		Channel{Name: BatteryVoltage, Read: func() (float64, error) { return 3.852, nil }},
		Channel{Name: StateOfCharge, Read: func() (float64, error) { return 0, nack }},
		Channel{Name: Aux(0), Read: func() (float64, error) { return 12.31, nil }},
	)

	rs := src.ReadAll()
	require.Len(t, rs, 3)
	assert.Equal(t, []string{"battery_voltage", "state_of_charge", "aux0"}, src.Names())

	assert.Equal(t, 3.852, rs[0].Value)
	assert.NoError(t, rs[0].Err)

	assert.False(t, rs[1].Available())
	assert.ErrorIs(t, rs[1].Err, fault.SampleUnavailable)
	assert.ErrorIs(t, rs[1].Err, nack)
	assert.Equal(t, fault.Recoverable, fault.Classify(rs[1].Err))

	set := Set{Readings: rs}
	un := set.Unavailable()
	require.Len(t, un, 1)
	assert.Equal(t, StateOfCharge, un[0].Name)

	r, ok := set.Get("aux0")
	require.True(t, ok)
	assert.Equal(t, 12.31, r.Value)
}

func TestHardwareSourceReadChannel(t *testing.T) {
	absent := errors.New("no adc")
	src := NewHardwareSource(
		Channel{Name: Aux(1), Read: Unavailable(absent)},
		Channel{Name: Temperature, Read: func() (float64, error) { return 21.5, nil }},
	)

	v, err := src.ReadChannel(Temperature)
	require.NoError(t, err)
	assert.Equal(t, 21.5, v)

	_, err = src.ReadChannel("aux1")
	assert.ErrorIs(t, err, absent)
	assert.ErrorIs(t, err, fault.SampleUnavailable)

	_, err = src.ReadChannel("pressure")
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestFakeSourceRepeatsLast(t *testing.T) {
	f := NewFakeSource(
		[]Reading{{Name: "a", Value: 1}},
		[]Reading{{Name: "a", Value: 2}},
	)
	assert.Equal(t, 1.0, f.ReadAll()[0].Value)
	assert.Equal(t, 2.0, f.ReadAll()[0].Value)
	assert.Equal(t, 2.0, f.ReadAll()[0].Value)
	assert.Equal(t, 3, f.Calls)

	v, err := f.ReadChannel("a")
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
}
