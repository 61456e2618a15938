// Command field-logger samples the board's sensors on a fixed period and
// appends one CSV record per sample to a daily file on the SD card.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"

	"github.com/sweeney/field-logger/internal/acquire"
	"github.com/sweeney/field-logger/internal/board"
	"github.com/sweeney/field-logger/internal/clock"
	"github.com/sweeney/field-logger/internal/config"
	"github.com/sweeney/field-logger/internal/fault"
	"github.com/sweeney/field-logger/internal/gpio"
	"github.com/sweeney/field-logger/internal/i2c"
	"github.com/sweeney/field-logger/internal/indicator"
	"github.com/sweeney/field-logger/internal/logic"
	"github.com/sweeney/field-logger/internal/metrics"
	"github.com/sweeney/field-logger/internal/mqtt"
	"github.com/sweeney/field-logger/internal/sample"
	"github.com/sweeney/field-logger/internal/scheduler"
	"github.com/sweeney/field-logger/internal/status"
	"github.com/sweeney/field-logger/internal/storage"
	"github.com/sweeney/field-logger/internal/watchdog"
	"github.com/sweeney/field-logger/internal/web"
)

// exitUsage is returned for bad flags or configuration.
const exitUsage = 2

type options struct {
	configPath   string
	mount        string
	period       time.Duration
	debug        bool
	printSamples bool
	scan         bool
	httpAddr     string
	broker       string

	// set records which flags were given explicitly.
	set map[string]bool
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(exitUsage)
	}
	os.Exit(run(opts))
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("field-logger", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&o.configPath, "config", "", "Config file (.toml, .yaml or .yml)")
	fs.StringVar(&o.mount, "mount", "", "Mount point of the SD card")
	fs.DurationVar(&o.period, "period", 0, "Sampling period")
	fs.BoolVar(&o.debug, "debug", false, "Debug logging")
	fs.BoolVar(&o.printSamples, "print-samples", false, "Read every channel once, print and exit")
	fs.BoolVar(&o.scan, "scan", false, "Print the I2C bus scan and exit")
	fs.StringVar(&o.httpAddr, "http", "", `HTTP status address ("off" disables)`)
	fs.StringVar(&o.broker, "broker", "", `MQTT broker for lifecycle events ("off" disables)`)
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(o options) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.set["mount"] {
		cfg.Mount = o.mount
	}
	if o.set["period"] {
		cfg.Schedule.Period = config.Duration(o.period)
	}
	if o.set["debug"] {
		cfg.Log.Debug = o.debug
	}
	if o.set["http"] {
		cfg.HTTP.Addr = offOr(o.httpAddr)
	}
	if o.set["broker"] {
		cfg.MQTT.Broker = offOr(o.broker)
	}
	return cfg, cfg.Validate()
}

func offOr(s string) string {
	if s == "off" {
		return ""
	}
	return s
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
	}))
}

func run(o options) int {
	cfg, err := loadConfig(o)
	log := newLogger(os.Stderr, cfg.Log.Debug || o.debug)
	slog.SetDefault(log)
	if err != nil {
		log.Error("invalid configuration", "err", err)
		return exitUsage
	}

	devices := probe(cfg, log)
	clk := devices.Clock(log)
	source := devices.Source(cfg.Fields...)

	if o.scan {
		for _, line := range devices.Describe() {
			fmt.Println(line)
		}
		return fault.ExitClean
	}
	if o.printSamples {
		out, err := acquire.PrintOnce(clk, source, cfg.Formatter())
		if err != nil {
			log.Error("print samples", "err", err)
			return fault.ExitFault
		}
		fmt.Print(out)
		return fault.ExitClean
	}

	bootID := uuid.NewString()
	log.Info("starting", "device", cfg.Device, "boot_id", bootID, "mount", cfg.Mount,
		"period", cfg.Schedule.Period.D(), "fields", cfg.Fields)

	var display indicator.Display = indicator.Nop{}
	if led, err := openLED(cfg.GPIO); err != nil {
		log.Warn("status led unavailable", "err", err)
	} else if led != nil {
		defer led.Close()
		display = led
	}

	var inputs gpio.Reader
	if cfg.GPIO.CardDetect != gpio.Unwired {
		r, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.CardDetect, cfg.GPIO.BatteryAlert)
		if err != nil {
			log.Warn("gpio inputs unavailable", "err", err)
		} else {
			defer r.Close()
			inputs = r
		}
	}

	tracker := status.NewTracker(time.Now(), bootID, status.Config{
		Device:       cfg.Device,
		Mount:        cfg.Mount,
		Fields:       cfg.Fields,
		Period:       cfg.Schedule.Period.D(),
		MaxStaleness: cfg.Schedule.MaxStaleness.D(),
		MaxCycles:    cfg.MaxCycles(),
		Broker:       cfg.MQTT.Broker,
		HTTPAddr:     cfg.HTTP.Addr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	m := metrics.New()

	if cfg.HTTP.Addr != "" {
		var access io.Writer
		if cfg.Log.Debug {
			access = os.Stderr
		}
		srv := web.New(cfg.HTTP.Addr, tracker, m, access)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		clock:   clk,
		source:  source,
		medium:  storage.OSMedium{},
		display: display,
		inputs:  inputs,
		tracker: tracker,
		metrics: m,
	}

	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: "field-logger-" + cfg.Device,
			Topic:    mqtt.SystemTopic(cfg.MQTT.TopicPrefix, cfg.Device),
			Will:     mqtt.WillPayload(cfg.Device, bootID),
			Log:      log,
		})
		if err != nil {
			log.Warn("mqtt disabled", "err", err)
		} else {
			defer pub.Close()
			a.publisher = pub
			a.mqttStatus = pub
		}
	}

	var wd *watchdog.Watchdog
	if cfg.Watchdog.Device != "" {
		wd, err = watchdog.Open(cfg.Watchdog.Device, cfg.Watchdog.Timeout.D())
		if err != nil {
			log.Warn("watchdog disabled", "err", err)
		} else {
			log.Info("watchdog armed", "device", cfg.Watchdog.Device, "timeout", wd.Timeout())
			a.watchdog = wd
		}
	}

	ctx, stop := notifyContext(context.Background(), log)
	defer stop()

	code := a.run(ctx)
	if code == fault.ExitClean {
		// Leaving the watchdog armed on a fault lets it reset the board.
		if err := wd.Close(); err != nil {
			log.Warn("watchdog close", "err", err)
		}
	}
	return code
}

// probe opens the I2C bus and binds the devices that answer. A bus that
// cannot be opened leaves every sensor channel unavailable.
func probe(cfg config.Config, log *slog.Logger) *board.Devices {
	bus, err := i2c.Open(cfg.I2C.Bus)
	if err != nil {
		log.Warn("i2c bus unavailable, sensor channels will be NA", "bus", cfg.I2C.Bus, "err", err)
		return &board.Devices{}
	}
	devices, err := board.Probe(bus, cfg, log)
	if err != nil {
		log.Warn("board probe failed, sensor channels will be NA", "err", err)
		return &board.Devices{}
	}
	return devices
}

func openLED(g config.GPIO) (gpio.LED, error) {
	if g.LEDRed == gpio.Unwired || g.LEDGreen == gpio.Unwired || g.LEDBlue == gpio.Unwired {
		return nil, nil
	}
	return gpio.NewRealLED(g.Chip, g.LEDRed, g.LEDGreen, g.LEDBlue)
}

// signalError is the cancel cause when the process is asked to stop.
type signalError struct{ sig os.Signal }

func (e signalError) Error() string { return "received " + signalName(e.sig) }

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// notifyContext is cancelled on SIGINT or SIGTERM with a signalError cause.
func notifyContext(parent context.Context, log *slog.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sigCh:
			log.Info("shutting down", "signal", signalName(s))
			cancel(signalError{s})
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel(nil)
	}
}

// app holds the daemon's collaborators. run builds the real ones; tests
// substitute fakes.
type app struct {
	cfg        config.Config
	log        *slog.Logger
	clock      clock.Clock
	source     sample.Source
	medium     storage.Medium
	display    indicator.Display
	inputs     gpio.Reader           // optional
	publisher  mqtt.Publisher        // optional
	mqttStatus mqtt.ConnectionStatus // optional
	watchdog   acquire.Kicker        // optional
	tracker    *status.Tracker
	metrics    *metrics.Metrics

	// sleeper and grace default to real waits.
	sleeper scheduler.Sleeper
	grace   func(time.Duration)
}

// run boots, logs until ctx is cancelled or a fatal fault, and returns the
// process exit code.
func (a *app) run(ctx context.Context) int {
	ind := indicator.New(a.display, indicator.MustBuckets(a.cfg.Indicator.Thresholds))
	policy := &fault.Policy{
		Indicator: ind,
		Grace:     a.cfg.Fault.Grace.D(),
		Log:       a.log,
		Sleep:     a.grace,
	}

	if err := ind.Set(indicator.BootFailure); err != nil {
		a.log.Warn("status led", "err", err)
	}
	if err := a.boot(); err != nil {
		a.tracker.SetError(err)
		a.announce(mqtt.EventFault, err.Error())
		return policy.Terminate(err)
	}
	if err := ind.Set(indicator.BootSuccess); err != nil {
		a.log.Warn("status led", "err", err)
	}

	writer := storage.NewWriter(a.medium, a.cfg.MaxCycles(), a.log)
	loop := &acquire.Loop{
		Clock:          a.clock,
		Source:         a.source,
		Formatter:      a.cfg.Formatter(),
		Writer:         writer,
		Indicator:      ind,
		IndicatorField: a.cfg.Indicator.Field,
		Mount:          a.cfg.Mount,
		Inputs:         a.inputs,
		Watchdog:       a.watchdog,
		Tracker:        a.tracker,
		Metrics:        a.metrics,
		Log:            a.log,
	}

	a.announce(mqtt.EventStartup, "")
	heartbeat := logic.NewHeartbeat(a.cfg.MQTT.Heartbeat.D(), a.clock.Now())

	sched := &scheduler.Scheduler{
		Period:     a.cfg.Schedule.Period.D(),
		StartDelay: a.cfg.Schedule.StartDelay.D(),
		Clock:      a.clock,
		Sleeper:    a.sleeper,
		Log:        a.log,
		OnIteration: func(s scheduler.Stats) {
			loop.ObserveLoop(s)
			a.refreshMQTT()
			if hb := heartbeat.Check(a.clock.Now()); hb != nil {
				a.log.Debug("heartbeat", "uptime", hb.Uptime, "iterations", s.Iterations)
				if net := readNetworkInfo(); net != nil {
					a.tracker.SetNetwork(net)
				}
				a.announce(mqtt.EventHeartbeat, "")
			}
		},
	}

	err := sched.Run(ctx, loop.Iterate)
	if cerr := writer.Close(); cerr != nil {
		a.log.Error("final flush failed", "err", cerr)
		if err == nil || fault.IsInterrupt(err) {
			err = cerr
		}
	}

	if err == nil || fault.IsInterrupt(err) {
		a.announce(mqtt.EventShutdown, shutdownReason(ctx))
	} else {
		a.tracker.SetError(err)
		a.announce(mqtt.EventFault, err.Error())
	}
	return policy.Terminate(err)
}

// boot checks the card is inserted and mounted before the first record.
func (a *app) boot() error {
	if a.inputs != nil {
		in, err := a.inputs.Read()
		switch {
		case err != nil:
			a.log.Warn("card detect unreadable, relying on mount check", "err", err)
		case !in.CardPresent:
			return fault.Wrap(fault.WriteFailure, "boot", acquire.ErrCardRemoved)
		}
	}
	fi, err := os.Stat(a.cfg.Mount)
	if err != nil {
		return fault.Wrap(fault.WriteFailure, "boot: check mount", err)
	}
	if !fi.IsDir() {
		return fault.Wrap(fault.WriteFailure, "boot: check mount", fmt.Errorf("%s is not a directory", a.cfg.Mount))
	}
	return nil
}

func (a *app) refreshMQTT() {
	if a.mqttStatus != nil {
		a.tracker.SetMQTTConnected(a.mqttStatus.IsConnected())
	}
}

// announce publishes a lifecycle event with the current status snapshot.
func (a *app) announce(event, reason string) {
	if a.publisher == nil {
		return
	}
	a.refreshMQTT()
	if err := a.publisher.PublishSystem(mqtt.StatusEvent(a.tracker.Snapshot(), event, reason)); err != nil {
		a.log.Warn("failed to publish lifecycle event", "event", event, "err", err)
		return
	}
	a.log.Debug("published lifecycle event", "event", event)
}

func shutdownReason(ctx context.Context) string {
	var se signalError
	if errors.As(context.Cause(ctx), &se) {
		return signalName(se.sig)
	}
	return "INTERRUPTED"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
