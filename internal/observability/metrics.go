package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/vrc20/internal/vrc20"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vrc20",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vrc20",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vrc20",
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Processed vrc20 requests by transport, operation and outcome.",
		},
		[]string{"transport", "op", "outcome"},
	)
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vrc20",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Time spent decoding, executing and encoding one request.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		},
		[]string{"transport", "op"},
	)
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vrc20",
			Subsystem: "ledger",
			Name:      "events_total",
			Help:      "Ledger events emitted by kind.",
		},
		[]string{"kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, dispatchTotal, dispatchDuration, eventsTotal)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordDispatch counts one Processor call. kind is zero on success.
func RecordDispatch(transport string, op vrc20.OperationID, kind vrc20.ErrorKind, duration time.Duration) {
	RegisterMetrics()
	outcome := "ok"
	if kind != 0 {
		outcome = kind.String()
	}
	opLabel := op.String()
	if _, known := vrc20.Lookup(op); !known {
		// keep label cardinality bounded for garbage discriminants
		opLabel = "unknown"
	}
	dispatchTotal.WithLabelValues(transport, opLabel, outcome).Inc()
	dispatchDuration.WithLabelValues(transport, opLabel).Observe(duration.Seconds())
}

// DispatchObserver returns a vrc20.Observer labelled with transport.
func DispatchObserver(transport string) vrc20.Observer {
	return vrc20.ObserverFunc(func(op vrc20.OperationID, kind vrc20.ErrorKind, elapsed time.Duration) {
		RecordDispatch(transport, op, kind, elapsed)
	})
}

// EventCounter is a ledger event sink that counts events by kind.
type EventCounter struct{}

func (EventCounter) Emit(ev vrc20.Event) {
	RegisterMetrics()
	label := "malformed"
	if kind, err := ev.Kind(); err == nil {
		label = kind.String()
	}
	eventsTotal.WithLabelValues(label).Inc()
}
