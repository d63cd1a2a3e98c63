package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Accounts
	UsersRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "users_registered_total",
			Help: "Accounts created or re-registered while pending",
		},
	)
	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifications_total",
			Help: "Verification attempts by outcome",
		},
		[]string{"result"}, // ok|expired|invalid|not_found
	)

	// Messages
	Messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Anonymous message operations by outcome",
		},
		[]string{"result"}, // accepted|rejected|deleted
	)

	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)

	WorkerDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_jobs_dropped_total",
			Help: "Jobs rejected because the worker queue was full",
		},
	)
)

var Handler = promhttp.Handler

var once sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(RequestsTotal, UsersRegistered, Verifications, Messages, WorkerQueueDepth, WorkerDropped)
	})
}
