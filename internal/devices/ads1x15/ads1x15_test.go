package ads1x15

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/field-logger/internal/i2c"
)

func setup(t *testing.T, cfg Config) (*Device, *i2c.FakeDevice, *[]time.Duration) {
	t.Helper()
	bus := i2c.NewFakeBus()
	reg := bus.Attach(AddressDefault, i2c.NewFakeDevice())
	d, err := New(bus, cfg)
	require.NoError(t, err)
	var slept []time.Duration
	d.Sleep = func(dur time.Duration) { slept = append(slept, dur) }
	return d, reg, &slept
}

func TestConfigWord(t *testing.T) {
	d, _, _ := setup(t, Config{Model: ADS1015, Gain: 2})
	assert.Equal(t, uint16(0xD583), d.ConfigWord(1))
	assert.Equal(t, uint16(0xC583), d.ConfigWord(0))
}

func TestReadVoltageADS1015(t *testing.T) {
	d, reg, slept := setup(t, Config{Model: ADS1015, Gain: 2})
	reg.Set(regConversion, 0x3E, 0x80) // 1000 after the 4-bit shift

	v, err := d.ReadVoltage(1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)
	assert.Equal(t, []byte{regConfig, 0xD5, 0x83}, reg.Writes[0])
	assert.Equal(t, []time.Duration{time.Millisecond}, *slept)
}

func TestReadVoltageADS1115(t *testing.T) {
	d, reg, slept := setup(t, Config{Model: ADS1115, Gain: 1})
	reg.Set(regConversion, 0x40, 0x00)

	v, err := d.ReadVoltage(3)
	require.NoError(t, err)
	assert.InDelta(t, 2.048, v, 1e-9)
	assert.Equal(t, []time.Duration{9 * time.Millisecond}, *slept)
}

func TestReadNegative(t *testing.T) {
	d, reg, _ := setup(t, Config{Model: ADS1015, Gain: 2})
	reg.Set(regConversion, 0xFF, 0xF0)

	raw, err := d.ReadRaw(0)
	require.NoError(t, err)
	assert.Equal(t, int16(-1), raw)
}

func TestConversionTimeout(t *testing.T) {
	d, reg, slept := setup(t, Config{Model: ADS1015, Gain: 2})
	// Conversion never completes: OS bit stays clear.
	reg.OnWrite = func(fd *i2c.FakeDevice, w []byte) {
		if w[0] == regConfig && len(w) == 3 {
			fd.Regs[regConfig] = []byte{w[1] &^ 0x80, w[2]}
		}
	}

	_, err := d.ReadVoltage(0)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Len(t, *slept, maxPolls)
}

func TestValidation(t *testing.T) {
	_, err := New(i2c.NewFakeBus(), Config{Gain: 6})
	assert.ErrorIs(t, err, ErrGain)

	d, _, _ := setup(t, Config{})
	_, err = d.ReadVoltage(4)
	assert.ErrorIs(t, err, ErrChannel)
}

func TestMissingDevice(t *testing.T) {
	d, err := New(i2c.NewFakeBus(), Config{})
	require.NoError(t, err)
	_, err = d.ReadVoltage(0)
	assert.ErrorIs(t, err, i2c.ErrNack)
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel("ads1115")
	require.NoError(t, err)
	assert.Equal(t, ADS1115, m)
	assert.Equal(t, "ADS1115", m.String())

	_, err = ParseModel("ADS1219")
	assert.Error(t, err)
}
