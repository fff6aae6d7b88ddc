package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	CheckoutsCompleted   prometheus.Counter
	SessionsExpired      prometheus.Counter
	SessionsAbandoned    prometheus.Counter
	ReservationsOK       prometheus.Counter
	ReservationsRejected prometheus.Counter
}

func New(service string) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "checkout",
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		CheckoutsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "checkout", Subsystem: service,
			Name: "sessions_completed_total", Help: "Checkout sessions completed.",
		}),
		SessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "checkout", Subsystem: service,
			Name: "sessions_expired_total", Help: "Checkout sessions marked expired.",
		}),
		SessionsAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "checkout", Subsystem: service,
			Name: "sessions_abandoned_total", Help: "Checkout sessions marked abandoned.",
		}),
		ReservationsOK: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "checkout", Subsystem: service,
			Name: "stock_reservations_total", Help: "Successful stock reservations.",
		}),
		ReservationsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "checkout", Subsystem: service,
			Name: "stock_rejections_total", Help: "Reservations rejected for insufficient stock.",
		}),
	}
	prometheus.MustRegister(m.Requests, m.LatencyMS,
		m.CheckoutsCompleted, m.SessionsExpired, m.SessionsAbandoned,
		m.ReservationsOK, m.ReservationsRejected)
	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}
