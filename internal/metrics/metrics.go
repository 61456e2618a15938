// Package metrics exposes the logger's counters in Prometheus format. All
// methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	iterations    prometheus.Counter
	iterationTime prometheus.Histogram
	recoverable   *prometheus.CounterVec
	overruns      prometheus.Counter
	missed        prometheus.Counter
	appends       prometheus.Counter
	flushes       prometheus.Counter
	rejected      prometheus.Counter
	pending       prometheus.Gauge
	reading       *prometheus.GaugeVec
	available     *prometheus.GaugeVec
	lastRecord    prometheus.Gauge
	cardPresent   prometheus.Gauge
	batteryAlert  prometheus.Gauge

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	lastLoop    [2]int64
	lastStorage [3]int64
}

// New creates Metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logger_iterations_total",
			Help: "Acquisition iterations completed.",
		}),
		iterationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "logger_iteration_duration_seconds",
			Help:    "Time spent in one acquisition iteration.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		recoverable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logger_recoverable_errors_total",
			Help: "Recoverable failures absorbed by the loop, by fault code.",
		}, []string{"code"}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logger_overruns_total",
			Help: "Iterations that ran past one or more periods.",
		}),
		missed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logger_missed_ticks_total",
			Help: "Scheduled sample times skipped after overruns.",
		}),
		appends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logger_records_written_total",
			Help: "Records appended to the log.",
		}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logger_flushes_total",
			Help: "Durable commits of the log file.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logger_records_rejected_total",
			Help: "Records refused because their timestamp went backwards.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logger_unsynced_records",
			Help: "Records appended since the last durable commit.",
		}),
		reading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "logger_reading",
			Help: "Last value read per channel.",
		}, []string{"channel"}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "logger_reading_available",
			Help: "Whether the last read of a channel succeeded (1) or not (0).",
		}, []string{"channel"}),
		lastRecord: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logger_last_record_timestamp_seconds",
			Help: "Unix time of the last record written.",
		}),
		cardPresent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logger_card_present",
			Help: "SD card-detect input (1 present).",
		}),
		batteryAlert: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logger_battery_alert",
			Help: "Fuel gauge alert input (1 asserted).",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.reg.MustRegister(
		m.iterations,
		m.iterationTime,
		m.recoverable,
		m.overruns,
		m.missed,
		m.appends,
		m.flushes,
		m.rejected,
		m.pending,
		m.reading,
		m.available,
		m.lastRecord,
		m.cardPresent,
		m.batteryAlert,
		m.httpRequestsTotal,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Iteration records one completed iteration and its run time.
func (m *Metrics) Iteration(d time.Duration) {
	if m == nil {
		return
	}
	m.iterations.Inc()
	m.iterationTime.Observe(d.Seconds())
}

// Recoverable counts an absorbed failure.
func (m *Metrics) Recoverable(code string) {
	if m == nil {
		return
	}
	m.recoverable.WithLabelValues(code).Inc()
}

// UpdateLoop advances the scheduler counters to the given totals.
func (m *Metrics) UpdateLoop(overruns, missed int64) {
	if m == nil {
		return
	}
	addTo(m.overruns, overruns, &m.lastLoop[0])
	addTo(m.missed, missed, &m.lastLoop[1])
}

// UpdateStorage advances the writer counters to the given totals and sets
// the unsynced record count.
func (m *Metrics) UpdateStorage(appends, flushes, rejected int64, pending int) {
	if m == nil {
		return
	}
	addTo(m.appends, appends, &m.lastStorage[0])
	addTo(m.flushes, flushes, &m.lastStorage[1])
	addTo(m.rejected, rejected, &m.lastStorage[2])
	m.pending.Set(float64(pending))
}

// addTo adds the increase from *last to total. Totals lower than previously
// seen are ignored.
func addTo(c prometheus.Counter, total int64, last *int64) {
	if total > *last {
		c.Add(float64(total - *last))
		*last = total
	}
}

// Reading sets the last value of a channel. Unavailable readings keep
// the previous value and clear the availability gauge.
func (m *Metrics) Reading(channel string, v float64, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.reading.WithLabelValues(channel).Set(v)
		m.available.WithLabelValues(channel).Set(1)
		return
	}
	m.available.WithLabelValues(channel).Set(0)
}

// RecordWritten sets the timestamp of the last record.
func (m *Metrics) RecordWritten(ts time.Time) {
	if m == nil {
		return
	}
	m.lastRecord.Set(float64(ts.Unix()))
}

// Inputs sets the GPIO input gauges.
func (m *Metrics) Inputs(cardPresent, batteryAlert bool) {
	if m == nil {
		return
	}
	m.cardPresent.Set(b2f(cardPresent))
	m.batteryAlert.Set(b2f(batteryAlert))
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and their latency under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(duration)
		}
	})
}
