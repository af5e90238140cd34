package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var readerStates = []string{"idle", "running", "stopped", "failed"}

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grassroots",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"station", "method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "grassroots",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"station", "method", "route", "status"},
	)
	framesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "grassroots",
			Subsystem: "ingest",
			Name:      "frames_total",
			Help:      "Frames read off the transport and queued.",
		},
	)
	framesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grassroots",
			Subsystem: "ingest",
			Name:      "frames_rejected_total",
			Help:      "Frames or messages dropped, by reason.",
		},
		[]string{"reason"},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "grassroots",
			Subsystem: "ingest",
			Name:      "queue_depth",
			Help:      "Frames waiting for the consumer.",
		},
	)
	readerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "grassroots",
			Subsystem: "ingest",
			Name:      "reader_state",
			Help:      "1 for the reader's current state.",
		},
		[]string{"state"},
	)
	messagesDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grassroots",
			Subsystem: "dispatch",
			Name:      "messages_total",
			Help:      "Decoded messages dispatched, by kind.",
		},
		[]string{"kind"},
	)
	logRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "grassroots",
			Subsystem: "datalog",
			Name:      "records_total",
			Help:      "Sensor readings appended to the data log.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			framesRead, framesRejected, queueDepth, readerState,
			messagesDispatched, logRecords,
		)
	})
}

func RecordHTTPRequest(station, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(station, method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(station, method, route, statusLabel).Observe(duration.Seconds())
}

func RecordFrameRead() {
	RegisterMetrics()
	framesRead.Inc()
}

func RecordFrameRejected(reason string) {
	RegisterMetrics()
	framesRejected.WithLabelValues(reason).Inc()
}

func SetQueueDepth(n int) {
	RegisterMetrics()
	queueDepth.Set(float64(n))
}

func SetReaderState(state string) {
	RegisterMetrics()
	for _, s := range readerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		readerState.WithLabelValues(s).Set(v)
	}
}

func RecordMessage(kind string) {
	RegisterMetrics()
	messagesDispatched.WithLabelValues(kind).Inc()
}

func RecordLogRecord() {
	RegisterMetrics()
	logRecords.Inc()
}
