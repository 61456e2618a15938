package board

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/field-logger/internal/clock"
	"github.com/sweeney/field-logger/internal/config"
	"github.com/sweeney/field-logger/internal/i2c"
	"github.com/sweeney/field-logger/internal/sample"
)

func gaugeAt(bus *i2c.FakeBus) *i2c.FakeDevice {
	return bus.Attach(i2c.AddrGauge, i2c.NewFakeDevice().
		Set(0x02, 0xC0, 0xA0). // 3.8525 V
		Set(0x04, 91, 0x00).
		Set(0x0C, 0x97, 0x1C))
}

func TestProbeGaugeOnly(t *testing.T) {
	bus := i2c.NewFakeBus()
	g := gaugeAt(bus)

	d, err := Probe(bus, config.Default(), nil)
	require.NoError(t, err)

	assert.Equal(t, []uint16{i2c.AddrGauge}, d.Found)
	assert.NotNil(t, d.Gauge)
	assert.Nil(t, d.ADC)
	assert.Nil(t, d.RTC)
	// Alert threshold 5 % programmed: ATHD = 27.
	assert.Equal(t, []byte{0x97, 0x1B}, g.Regs[0x0C])
	assert.Equal(t, []string{"0x36: MAX17048 fuel gauge"}, d.Describe())
	assert.IsType(t, clock.System{}, d.Clock(nil))

	src := d.Source(sample.BatteryVoltage, sample.StateOfCharge, sample.Aux(0), sample.BatteryVoltage)
	assert.Equal(t, []string{sample.BatteryVoltage, sample.StateOfCharge, sample.Aux(0)}, src.Names())

	readings := src.ReadAll()
	require.Len(t, readings, 3)
	assert.InDelta(t, 3.8525, readings[0].Value, 1e-9)
	assert.InDelta(t, 91.0, readings[1].Value, 1e-9)
	assert.False(t, readings[2].Available())
	assert.True(t, errors.Is(readings[2].Err, ErrAbsent))
}

func TestProbeADCScale(t *testing.T) {
	bus := i2c.NewFakeBus()
	bus.Attach(i2c.AddrADC, i2c.NewFakeDevice().Set(0x00, 0x3E, 0x80)) // 1.0 V at gain 2

	cfg := config.Default()
	cfg.ADC.Scale = []float64{12.5}
	d, err := Probe(bus, cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, d.ADC)
	d.ADC.Sleep = func(time.Duration) {}

	v, err := d.Source(sample.Aux(0)).ReadChannel(sample.Aux(0))
	require.NoError(t, err)
	assert.InDelta(t, 12.5, v, 1e-9)
}

func TestProbeRTCClock(t *testing.T) {
	bus := i2c.NewFakeBus()
	bus.Attach(i2c.AddrRTC, i2c.NewFakeDevice().
		Set(0x0E, 0).
		Set(0x00, 0x00, 0x09, 0x05, 0x10, 1<<6, 0x01, 0x06, 0x24))

	d, err := Probe(bus, config.Default(), nil)
	require.NoError(t, err)

	cal, err := d.Clock(nil).Calendar()
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01T10:05:09", cal.Timestamp())
}

func TestProbeBadADCChip(t *testing.T) {
	bus := i2c.NewFakeBus()
	bus.Attach(i2c.AddrADC, i2c.NewFakeDevice())
	cfg := config.Default()
	cfg.ADC.Chip = "bogus"

	_, err := Probe(bus, cfg, nil)
	assert.Error(t, err)
}

func TestClimateSharesMeasurement(t *testing.T) {
	bus := i2c.NewFakeBus()
	dev := bus.Attach(i2c.AddrClimate, i2c.NewFakeDevice())
	// Idle and calibrated, 50 %RH, 25 °C.
	dev.Raw = []byte{0x1C, 0x80, 0x00, 0x06, 0x00, 0x00, 0x00}

	c := NewClimate(bus)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	temp, err := c.Temperature()
	require.NoError(t, err)
	hum, err := c.Humidity()
	require.NoError(t, err)
	assert.InDelta(t, 25.0, temp, 0.01)
	assert.InDelta(t, 50.0, hum, 0.01)
	reads := dev.Reads

	now = now.Add(2 * time.Second)
	_, err = c.Temperature()
	require.NoError(t, err)
	assert.Greater(t, dev.Reads, reads, "stale measurement reused")
}

func TestClimateFailure(t *testing.T) {
	bus := i2c.NewFakeBus()
	dev := bus.Attach(i2c.AddrClimate, i2c.NewFakeDevice())
	c := NewClimate(bus)
	dev.Err = errors.New("bus stuck")

	_, err := c.Humidity()
	assert.Error(t, err)
}
