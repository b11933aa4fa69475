package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FlightCollector bundles Prometheus metrics for flights and the HTTP API.
type FlightCollector struct {
	gatherer prometheus.Gatherer

	Flights        *prometheus.CounterVec
	Moves          prometheus.Histogram
	SensorsVisited prometheus.Histogram

	Requests         *prometheus.CounterVec
	RequestDurations *prometheus.HistogramVec
}

// NewFlightCollector registers metrics against reg, defaulting to the global
// Prometheus registry when nil. Registering twice on the same registry
// returns the existing collectors.
func NewFlightCollector(reg prometheus.Registerer) (*FlightCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	flights, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flights_total",
		Help: "Simulated flights, labeled by outcome.",
	}, []string{"outcome"}), "flights_total")
	if err != nil {
		return nil, err
	}
	moves, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flight_moves",
		Help:    "Moves used per simulated flight.",
		Buckets: prometheus.LinearBuckets(0, 15, 11),
	}), "flight_moves")
	if err != nil {
		return nil, err
	}
	visited, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flight_sensors_visited",
		Help:    "Sensors read per simulated flight.",
		Buckets: prometheus.LinearBuckets(0, 5, 8),
	}), "flight_sensors_visited")
	if err != nil {
		return nil, err
	}
	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Handled HTTP requests, labeled by route pattern and status code.",
	}, []string{"route", "code"}), "http_requests_total")
	if err != nil {
		return nil, err
	}
	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"route"}), "http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &FlightCollector{
		gatherer:         gatherer,
		Flights:          flights,
		Moves:            moves,
		SensorsVisited:   visited,
		Requests:         requests,
		RequestDurations: durations,
	}, nil
}

// ObserveFlight records a finished flight.
func (c *FlightCollector) ObserveFlight(result *FlightResult) {
	if c == nil || result == nil {
		return
	}
	c.Flights.WithLabelValues(string(result.Outcome)).Inc()
	c.Moves.Observe(float64(result.Final.Moves))
	c.SensorsVisited.Observe(float64(len(result.Visits)))
}

// Middleware counts requests and their latency per chi route pattern.
func (c *FlightCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if c == nil {
			return
		}
		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		c.Requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		c.RequestDurations.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes a ready-to-use /metrics handler.
func (c *FlightCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// register adds a collector, returning the existing one if an identical
// collector is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
