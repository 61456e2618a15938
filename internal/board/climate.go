package board

import (
	"sync"
	"time"

	"tinygo.org/x/drivers/aht20"

	"github.com/sweeney/field-logger/internal/i2c"
)

// cacheFor bounds how long one measurement serves both channels.
const cacheFor = time.Second

// Climate shares one AHT20 measurement between the temperature and
// humidity channels of the same iteration.
type Climate struct {
	mu  sync.Mutex
	dev aht20.Device
	now func() time.Time

	at       time.Time
	celsius  float64
	humidity float64
}

func NewClimate(bus i2c.Bus) *Climate {
	dev := aht20.New(bus)
	dev.Configure()
	return &Climate{dev: dev, now: time.Now}
}

func (c *Climate) measure() (celsius, humidity float64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now()
	if c.at.IsZero() || t.Sub(c.at) >= cacheFor {
		if err := c.dev.Read(); err != nil {
			c.at = time.Time{}
			return 0, 0, err
		}
		c.at = t
		c.celsius = float64(c.dev.Celsius())
		c.humidity = float64(c.dev.RelHumidity())
	}
	return c.celsius, c.humidity, nil
}

// Temperature returns degrees Celsius.
func (c *Climate) Temperature() (float64, error) {
	v, _, err := c.measure()
	return v, err
}

// Humidity returns relative humidity in percent.
func (c *Climate) Humidity() (float64, error) {
	_, v, err := c.measure()
	return v, err
}
