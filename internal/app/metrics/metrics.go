package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "yigicoin",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yigicoin",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "yigicoin",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	expropriations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yigicoin",
			Subsystem: "slots",
			Name:      "expropriations_total",
			Help:      "Total number of expropriation attempts.",
		},
		[]string{"case", "outcome"},
	)

	expropriationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "yigicoin",
			Subsystem: "slots",
			Name:      "expropriation_duration_seconds",
			Help:      "Duration of expropriation transactions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"outcome"},
	)

	sponsorResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yigicoin",
			Subsystem: "sponsors",
			Name:      "resolutions_total",
			Help:      "Total number of sponsor resolutions by tier and receiver.",
		},
		[]string{"tier", "receiver"},
	)

	raffleTickets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "yigicoin",
			Subsystem: "raffles",
			Name:      "tickets_sold_total",
			Help:      "Total number of raffle tickets sold.",
		},
	)

	sanctionSweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yigicoin",
			Subsystem: "sanctions",
			Name:      "sweep_expired_total",
			Help:      "Total number of sanctions expired by the sweeper.",
		},
		[]string{"success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		expropriations,
		expropriationDuration,
		sponsorResolutions,
		raffleTickets,
		sanctionSweeps,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordExpropriation records one expropriation attempt.
func RecordExpropriation(lossCase int, duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	expropriations.WithLabelValues(strconv.Itoa(lossCase), outcome).Inc()
	expropriationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordSponsorResolution records one resolved sponsor decision.
func RecordSponsorResolution(tier, receiver string) {
	sponsorResolutions.WithLabelValues(tier, receiver).Inc()
}

// RecordRaffleTicket records one sold raffle ticket.
func RecordRaffleTicket() {
	raffleTickets.Inc()
}

// RecordSanctionSweep records the outcome of one sweeper pass.
func RecordSanctionSweep(expired int, success bool) {
	result := "false"
	if success {
		result = "true"
	}
	sanctionSweeps.WithLabelValues(result).Add(float64(expired))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	// Slot and sponsor routes use static verbs as the second segment;
	// everything else nests resource ids, which stay out of label values.
	switch parts[0] {
	case "slots", "sponsors":
		if len(parts) > 1 {
			return "/" + parts[0] + "/" + parts[1]
		}
	}
	return "/" + parts[0]
}
