package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chainprover"

var (
	opsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "ops_total",
			Help:      "Total number of executed operations",
		},
		[]string{"op", "status"},
	)

	opDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "op_duration_seconds",
			Help:      "Operation execution time in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"op"},
	)

	blocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leader",
			Name:      "blocks_total",
			Help:      "Total number of blocks processed",
		},
		[]string{"status"},
	)

	blockDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "leader",
			Name:      "block_duration_seconds",
			Help:      "Time taken to prove a block in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		},
	)

	dumpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ops",
			Name:      "input_dumps_total",
			Help:      "Total number of failed operation inputs written to disk",
		},
		[]string{"status"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveOp(op string, d time.Duration, err error) {
	opsTotal.WithLabelValues(op, status(err)).Inc()
	opDuration.WithLabelValues(op).Observe(d.Seconds())
}

func ObserveBlock(d time.Duration, err error) {
	blocksTotal.WithLabelValues(status(err)).Inc()
	if err == nil {
		blockDuration.Observe(d.Seconds())
	}
}

func ObserveDump(err error) {
	dumpsTotal.WithLabelValues(status(err)).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
