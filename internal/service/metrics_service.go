package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the portal,
// with first-class counters for the payment orchestration flow.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	checkoutsOpened    prometheus.Counter
	checkoutOutcomes   *prometheus.CounterVec
	verificationsTotal *prometheus.CounterVec
	pendingDiscarded   *prometheus.CounterVec
	upstreamDuration   *prometheus.HistogramVec
}

// NewMetricsService registers the portal's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	checkoutsOpened := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_opened_total",
		Help: "Checkout sessions opened",
	})

	checkoutOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes_total",
		Help: "Checkout callbacks by outcome (completed, dismissed, failure class)",
	}, []string{"outcome"})

	verificationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Payment verification results",
	}, []string{"result"})

	pendingDiscarded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pending_payments_discarded_total",
		Help: "Pending payment records discarded by reason",
	}, []string{"reason"})

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Duration of upstream school API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		checkoutsOpened, checkoutOutcomes, verificationsTotal, pendingDiscarded, upstreamDuration, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		checkoutsOpened:    checkoutsOpened,
		checkoutOutcomes:   checkoutOutcomes,
		verificationsTotal: verificationsTotal,
		pendingDiscarded:   pendingDiscarded,
		upstreamDuration:   upstreamDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation counts cache hits and misses.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordCheckoutOpened counts opened checkout sessions.
func (m *MetricsService) RecordCheckoutOpened() {
	if m == nil {
		return
	}
	m.checkoutsOpened.Inc()
}

// RecordCheckoutOutcome counts a callback outcome label.
func (m *MetricsService) RecordCheckoutOutcome(outcome string) {
	if m == nil {
		return
	}
	m.checkoutOutcomes.WithLabelValues(outcome).Inc()
}

// RecordVerification counts one verification result.
func (m *MetricsService) RecordVerification(result string) {
	if m == nil {
		return
	}
	m.verificationsTotal.WithLabelValues(result).Inc()
}

// RecordPendingDiscarded counts a discarded pending record by reason.
func (m *MetricsService) RecordPendingDiscarded(reason string) {
	if m == nil {
		return
	}
	m.pendingDiscarded.WithLabelValues(reason).Inc()
}

// ObserveUpstreamRequest records upstream call timing.
func (m *MetricsService) ObserveUpstreamRequest(endpoint string, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
