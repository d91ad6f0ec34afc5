package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns every collector the server exports. Each instance has its
// own prometheus.Registry so tests can build as many as they like.
type Registry struct {
	reg *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	appointmentsCreated prometheus.Counter
	statusTransitions   *prometheus.CounterVec
	registrations       *prometheus.CounterVec
	sequenceConflicts   *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hms",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hms",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		appointmentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hms",
			Name:      "appointments_created_total",
			Help:      "Appointments booked",
		}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hms",
			Name:      "appointment_status_transitions_total",
			Help:      "Appointment status changes by source and target status",
		}, []string{"from", "to"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hms",
			Name:      "profile_registrations_total",
			Help:      "Patient and doctor profiles registered",
		}, []string{"kind"}),
		sequenceConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hms",
			Name:      "sequence_conflicts_total",
			Help:      "Business identifier collisions detected at insert",
		}, []string{"kind"}),
	}

	r.reg.MustRegister(
		r.requests,
		r.duration,
		r.appointmentsCreated,
		r.statusTransitions,
		r.registrations,
		r.sequenceConflicts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the exposition format for /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Middleware records request count and latency keyed by route template,
// so /api/appointments/:id is a single series.
func (r *Registry) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			labels := []string{c.Request().Method, path, strconv.Itoa(status)}
			r.requests.WithLabelValues(labels...).Inc()
			r.duration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (r *Registry) AppointmentCreated() {
	r.appointmentsCreated.Inc()
}

func (r *Registry) StatusTransition(from, to string) {
	r.statusTransitions.WithLabelValues(from, to).Inc()
}

func (r *Registry) ProfileRegistered(kind string) {
	r.registrations.WithLabelValues(kind).Inc()
}

func (r *Registry) SequenceConflict(kind string) {
	r.sequenceConflicts.WithLabelValues(kind).Inc()
}
