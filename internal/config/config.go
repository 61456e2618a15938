// Package config holds the logger's settings: built-in defaults, an
// optional TOML or YAML file, and command-line overrides applied by the
// caller. Config is read once at start.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/field-logger/internal/devices/ads1x15"
	"github.com/sweeney/field-logger/internal/gpio"
	"github.com/sweeney/field-logger/internal/indicator"
	"github.com/sweeney/field-logger/internal/logic"
	"github.com/sweeney/field-logger/internal/record"
	"github.com/sweeney/field-logger/internal/sample"
)

type Config struct {
	Device      string         `toml:"device" yaml:"device"`
	Mount       string         `toml:"mount" yaml:"mount"`
	Fields      []string       `toml:"fields" yaml:"fields"`
	Precision   map[string]int `toml:"precision" yaml:"precision"`
	Unavailable string         `toml:"unavailable" yaml:"unavailable"`

	Schedule  Schedule  `toml:"schedule" yaml:"schedule"`
	Indicator Indicator `toml:"indicator" yaml:"indicator"`
	Fault     Fault     `toml:"fault" yaml:"fault"`
	I2C       I2C       `toml:"i2c" yaml:"i2c"`
	Gauge     Gauge     `toml:"gauge" yaml:"gauge"`
	ADC       ADC       `toml:"adc" yaml:"adc"`
	GPIO      GPIO      `toml:"gpio" yaml:"gpio"`
	Watchdog  Watchdog  `toml:"watchdog" yaml:"watchdog"`
	HTTP      HTTP      `toml:"http" yaml:"http"`
	MQTT      MQTT      `toml:"mqtt" yaml:"mqtt"`
	Log       Log       `toml:"log" yaml:"log"`
}

type Schedule struct {
	Period       Duration `toml:"period" yaml:"period"`
	MaxStaleness Duration `toml:"max_staleness" yaml:"max_staleness"`
	StartDelay   Duration `toml:"start_delay" yaml:"start_delay"`
}

type Indicator struct {
	// Field names the reading that selects the battery bucket color.
	Field      string    `toml:"field" yaml:"field"`
	Thresholds []float64 `toml:"thresholds" yaml:"thresholds"`
}

type Fault struct {
	Grace Duration `toml:"grace" yaml:"grace"`
}

type I2C struct {
	Bus int `toml:"bus" yaml:"bus"`
}

type Gauge struct {
	AlertThreshold int `toml:"alert_threshold" yaml:"alert_threshold"`
}

type ADC struct {
	Chip  string    `toml:"chip" yaml:"chip"`
	Gain  int       `toml:"gain" yaml:"gain"`
	Scale []float64 `toml:"scale" yaml:"scale"`
}

type GPIO struct {
	Chip         string `toml:"chip" yaml:"chip"`
	CardDetect   int    `toml:"card_detect" yaml:"card_detect"`
	BatteryAlert int    `toml:"battery_alert" yaml:"battery_alert"`
	LEDRed       int    `toml:"led_red" yaml:"led_red"`
	LEDGreen     int    `toml:"led_green" yaml:"led_green"`
	LEDBlue      int    `toml:"led_blue" yaml:"led_blue"`
}

type Watchdog struct {
	Device  string   `toml:"device" yaml:"device"`
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

type HTTP struct {
	Addr string `toml:"addr" yaml:"addr"`
}

type MQTT struct {
	Broker      string   `toml:"broker" yaml:"broker"`
	TopicPrefix string   `toml:"topic_prefix" yaml:"topic_prefix"`
	Heartbeat   Duration `toml:"heartbeat" yaml:"heartbeat"`
}

type Log struct {
	Debug bool `toml:"debug" yaml:"debug"`
}

// Default returns the built-in settings for the reference board.
func Default() Config {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "field-logger"
	}
	return Config{
		Device:      host,
		Mount:       "/sd",
		Fields:      []string{sample.BatteryVoltage, sample.StateOfCharge, sample.Aux(0)},
		Unavailable: "NA",
		Schedule: Schedule{
			Period:       Duration(5 * time.Second),
			MaxStaleness: Duration(120 * time.Second),
			StartDelay:   Duration(5 * time.Second),
		},
		Indicator: Indicator{
			Field:      sample.Aux(0),
			Thresholds: append([]float64(nil), indicator.DefaultThresholds...),
		},
		Fault:    Fault{Grace: Duration(10 * time.Second)},
		Watchdog: Watchdog{Timeout: Duration(30 * time.Second)},
		I2C:      I2C{Bus: 1},
		Gauge:    Gauge{AlertThreshold: 5},
		ADC: ADC{
			Chip:  "ADS1015",
			Gain:  2,
			Scale: []float64{1, 1, 1, 1},
		},
		GPIO: GPIO{
			Chip:         gpio.DefaultChip,
			CardDetect:   gpio.DefaultPinCardDetect,
			BatteryAlert: gpio.DefaultPinBatteryAlrt,
			LEDRed:       gpio.DefaultPinRed,
			LEDGreen:     gpio.DefaultPinGreen,
			LEDBlue:      gpio.DefaultPinBlue,
		},
		HTTP: HTTP{Addr: ":8080"},
		MQTT: MQTT{
			TopicPrefix: "field-logger",
			Heartbeat:   Duration(15 * time.Minute),
		},
	}
}

// Load returns the defaults overlaid with the file at path. An empty path
// returns the defaults. The format follows the extension: .toml, .yaml or
// .yml.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Decode(&cfg, filepath.Ext(path), data); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Decode overlays data onto cfg. ext selects the format.
func Decode(cfg *Config, ext string, data []byte) error {
	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return err
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			return fmt.Errorf("unknown keys: %v", undec)
		}
		return nil
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}
	return fmt.Errorf("unsupported config format %q", ext)
}

// Known reports whether name is a channel the logger can read.
func Known(name string) bool {
	switch name {
	case sample.BatteryVoltage, sample.StateOfCharge, sample.ChargeRate,
		sample.Temperature, sample.Humidity:
		return true
	}
	for i := 0; i < 4; i++ {
		if name == sample.Aux(i) {
			return true
		}
	}
	return false
}

// Validate checks the settings once at start.
func (c Config) Validate() error {
	var errs []error
	if c.Schedule.Period <= 0 {
		errs = append(errs, errors.New("schedule.period must be positive"))
	}
	if c.Schedule.MaxStaleness < 0 {
		errs = append(errs, errors.New("schedule.max_staleness must not be negative"))
	}
	if c.Schedule.StartDelay < 0 {
		errs = append(errs, errors.New("schedule.start_delay must not be negative"))
	}
	if c.Mount == "" {
		errs = append(errs, errors.New("mount must be set"))
	}
	if len(c.Fields) == 0 {
		errs = append(errs, errors.New("fields must not be empty"))
	}
	seen := map[string]bool{}
	for _, f := range c.Fields {
		if !Known(f) {
			errs = append(errs, fmt.Errorf("fields: unknown channel %q", f))
		}
		if seen[f] {
			errs = append(errs, fmt.Errorf("fields: %q listed twice", f))
		}
		seen[f] = true
	}
	for name := range c.Precision {
		if !seen[name] {
			errs = append(errs, fmt.Errorf("precision: %q is not a logged field", name))
		}
	}
	if strings.ContainsAny(c.Unavailable, ",\"\r\n") {
		errs = append(errs, errors.New("unavailable marker must not contain commas, quotes or newlines"))
	}
	if c.Indicator.Field != "" && !Known(c.Indicator.Field) {
		errs = append(errs, fmt.Errorf("indicator.field: unknown channel %q", c.Indicator.Field))
	}
	if _, err := indicator.NewBuckets(c.Indicator.Thresholds); err != nil {
		errs = append(errs, fmt.Errorf("indicator.thresholds: %w", err))
	}
	if c.Fault.Grace < 0 {
		errs = append(errs, errors.New("fault.grace must not be negative"))
	}
	if c.Watchdog.Device != "" {
		// A kick follows each iteration; the first comes after the start delay.
		switch {
		case c.Watchdog.Timeout < Duration(time.Second):
			errs = append(errs, errors.New("watchdog.timeout must be at least 1s"))
		case c.Schedule.Period >= c.Watchdog.Timeout:
			errs = append(errs, errors.New("schedule.period must be shorter than watchdog.timeout"))
		case c.Schedule.StartDelay >= c.Watchdog.Timeout:
			errs = append(errs, errors.New("schedule.start_delay must be shorter than watchdog.timeout"))
		}
	}
	if c.Gauge.AlertThreshold < 1 || c.Gauge.AlertThreshold > 32 {
		errs = append(errs, errors.New("gauge.alert_threshold must be 1..32"))
	}
	if _, err := ads1x15.ParseModel(c.ADC.Chip); err != nil {
		errs = append(errs, fmt.Errorf("adc.chip: %w", err))
	}
	if c.ADC.Gain < 0 || c.ADC.Gain >= len(ads1x15.FullScale) {
		errs = append(errs, errors.New("adc.gain must be 0..5"))
	}
	if len(c.ADC.Scale) > 4 {
		errs = append(errs, errors.New("adc.scale has at most 4 entries"))
	}
	if c.MQTT.Broker != "" && c.MQTT.TopicPrefix == "" {
		errs = append(errs, errors.New("mqtt.topic_prefix must be set with mqtt.broker"))
	}
	if c.MQTT.Heartbeat < 0 {
		errs = append(errs, errors.New("mqtt.heartbeat must not be negative"))
	}
	return errors.Join(errs...)
}

// MaxCycles is the number of appends allowed between forced syncs.
func (c Config) MaxCycles() int {
	return logic.MaxCyclesFor(c.Schedule.MaxStaleness.D(), c.Schedule.Period.D())
}

// ScaleFor returns the divider factor for aux channel i.
func (a ADC) ScaleFor(i int) float64 {
	if i < len(a.Scale) && a.Scale[i] != 0 {
		return a.Scale[i]
	}
	return 1
}

// Formatter builds the record formatter for the configured fields.
func (c Config) Formatter() *record.Formatter {
	fields := make([]record.Field, len(c.Fields))
	for i, name := range c.Fields {
		prec, ok := c.Precision[name]
		if !ok {
			prec = -1
		}
		fields[i] = record.Field{Name: name, Precision: prec}
	}
	return &record.Formatter{Fields: fields, Unavailable: c.Unavailable}
}
