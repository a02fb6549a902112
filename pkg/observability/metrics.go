package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Number of HTTP requests currently being processed",
	})
)

var (
	// Payment lifecycle metrics
	paymentsInitiatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_initiated_total",
		Help: "Total number of payment attempts started",
	})

	paymentsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_completed_total",
		Help: "Total number of payment attempts reaching a terminal auth outcome",
	}, []string{
		"status",        // succeeded, failed
		"response_code", // bank response code, 00=approved
	})

	paymentAmountMinorUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_amount_minor_units_total",
		Help: "Total approved payment volume in minor currency units",
	}, []string{"currency"})

	refundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_total",
		Help: "Total number of refund operations",
	}, []string{
		"kind",   // full, partial
		"status", // approved, rejected, unresolved
	})

	cancelsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cancels_total",
		Help: "Total number of same-day reversal operations",
	}, []string{"status"})

	statusSyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "status_syncs_total",
		Help: "Total number of bank status reconciliations",
	}, []string{
		"outcome", // unchanged, drifted, unresolved
	})

	callbackMismatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callback_mismatches_total",
		Help: "Callbacks whose echoed fields did not match the stored order",
	})

	bankCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bank_call_duration_seconds",
		Help:    "Duration of calls to the virtual POS",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})
)

// RecordPaymentInitiated counts a new checkout attempt.
func RecordPaymentInitiated() {
	paymentsInitiatedTotal.Inc()
}

// RecordPaymentCompleted counts a terminal auth outcome.
func RecordPaymentCompleted(status, responseCode string) {
	paymentsCompletedTotal.WithLabelValues(status, responseCode).Inc()
}

// RecordPaymentVolume adds an approved payment to the revenue counter.
func RecordPaymentVolume(amount int64, currency string) {
	paymentAmountMinorUnits.WithLabelValues(currency).Add(float64(amount))
}

// RecordRefund counts a refund operation.
func RecordRefund(kind, status string) {
	refundsTotal.WithLabelValues(kind, status).Inc()
}

// RecordCancel counts a reversal operation.
func RecordCancel(status string) {
	cancelsTotal.WithLabelValues(status).Inc()
}

// RecordStatusSync counts a reconciliation run.
func RecordStatusSync(outcome string) {
	statusSyncsTotal.WithLabelValues(outcome).Inc()
}

// RecordCallbackMismatch counts a failed callback integrity check.
func RecordCallbackMismatch() {
	callbackMismatchesTotal.Inc()
}

// ObserveBankCall records the duration of one virtual POS round trip.
func ObserveBankCall(operation string, start time.Time) {
	bankCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware returns an HTTP middleware that records Prometheus metrics.
// route should be the registered pattern, not the raw path, to bound
// cardinality.
func Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		})
	}
}
