package max17048

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/field-logger/internal/i2c"
)

func setup() (*Device, *i2c.FakeDevice) {
	bus := i2c.NewFakeBus()
	reg := bus.Attach(AddressDefault, i2c.NewFakeDevice())
	return New(bus), reg
}

func TestVoltage(t *testing.T) {
	d, reg := setup()
	// 0xC0A0 = 49312 * 78.125 µV = 3.8525 V
	reg.Set(regVCell, 0xC0, 0xA0)

	v, err := d.Voltage()
	require.NoError(t, err)
	assert.InDelta(t, 3.8525, v, 1e-9)
}

func TestStateOfCharge(t *testing.T) {
	d, reg := setup()
	reg.Set(regSOC, 91, 0x40)

	soc, err := d.StateOfCharge()
	require.NoError(t, err)
	assert.InDelta(t, 91.25, soc, 1e-9)
}

func TestChargeRateSigned(t *testing.T) {
	d, reg := setup()
	reg.Set(regCRate, 0xFF, 0xF6) // -10

	rate, err := d.ChargeRate()
	require.NoError(t, err)
	assert.InDelta(t, -2.08, rate, 1e-9)
}

func TestSetAlertThreshold(t *testing.T) {
	d, reg := setup()
	reg.Set(regConfig, 0x97, 0x3C) // reset default: ATHD=28 (4 %), ALRT set

	require.NoError(t, d.SetAlertThreshold(5))
	assert.Equal(t, []byte{0x97, 0x3B}, reg.Regs[regConfig])

	pct, err := d.AlertThreshold()
	require.NoError(t, err)
	assert.Equal(t, 5, pct)

	alert, err := d.Alerting()
	require.NoError(t, err)
	assert.True(t, alert)

	require.NoError(t, d.ClearAlert())
	alert, _ = d.Alerting()
	assert.False(t, alert)
	assert.Equal(t, []byte{0x97, 0x1B}, reg.Regs[regConfig])
}

func TestSetAlertThresholdRange(t *testing.T) {
	d, _ := setup()
	assert.ErrorIs(t, d.SetAlertThreshold(0), ErrThreshold)
	assert.ErrorIs(t, d.SetAlertThreshold(33), ErrThreshold)
}

func TestBusErrorPropagates(t *testing.T) {
	d, reg := setup()
	reg.Err = errors.New("arbitration lost")

	_, err := d.Voltage()
	assert.Error(t, err)
	_, err = d.StateOfCharge()
	assert.Error(t, err)
}
