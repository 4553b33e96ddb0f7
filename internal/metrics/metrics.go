// Package metrics is the Prometheus implementation of download.Metrics.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ligustah/rangeget/pkg/download"
)

const namespace = "rangeget"

// Metrics records engine activity into Prometheus collectors.
//
// All methods are safe on a nil *Metrics, so callers that run without a
// registry can pass nil through.
type Metrics struct {
	rangeRequests    *prometheus.CounterVec
	retries          prometheus.Counter
	refreshes        *prometheus.CounterVec
	bytesWritten     prometheus.Counter
	transfers        *prometheus.CounterVec
	transferDuration prometheus.Histogram
	transferSize     prometheus.Histogram
}

var _ download.Metrics = (*Metrics)(nil)

// New registers the collectors with reg and returns them.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		rangeRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "range_requests_total",
				Help:      "Range requests by HTTP status code",
			},
			[]string{"code"},
		),
		retries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "range_retries_total",
				Help:      "Range requests that were repeated after a non-206 response",
			},
		),
		refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "url_refreshes_total",
				Help:      "Signed URL resolutions by outcome",
			},
			[]string{"status"},
		),
		bytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_written_total",
				Help:      "Bytes written to destination files",
			},
		),
		transfers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "Finished object downloads by outcome",
			},
			[]string{"status"},
		),
		transferDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transfer_duration_seconds",
				Help:      "Duration of object downloads",
				Buckets: []float64{
					0.1, // small files on a fast link
					1,
					5,
					30,
					120,
					600, // multi-GB objects
					1800,
				},
			},
		),
		transferSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transfer_size_bytes",
				Help:      "Size of successfully downloaded objects",
				Buckets:   prometheus.ExponentialBuckets(64<<10, 4, 10), // 64KiB .. 16GiB
			},
		),
	}
}

// ObserveRefresh counts a signed URL refresh by outcome.
func (m *Metrics) ObserveRefresh(err error) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(status(err)).Inc()
}

// ObserveRangeAttempt counts a range request by response status code.
func (m *Metrics) ObserveRangeAttempt(code int) {
	if m == nil {
		return
	}
	m.rangeRequests.WithLabelValues(strconv.Itoa(code)).Inc()
}

// ObserveRetry counts a range request that will be repeated.
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// AddBytes adds n to the bytes written to destination files.
func (m *Metrics) AddBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesWritten.Add(float64(n))
}

// ObserveTransfer records a finished download. Size is only observed for
// successful ones.
func (m *Metrics) ObserveTransfer(size int64, duration time.Duration, err error) {
	if m == nil {
		return
	}

	m.transfers.WithLabelValues(status(err)).Inc()
	m.transferDuration.Observe(duration.Seconds())
	if err == nil {
		m.transferSize.Observe(float64(size))
	}
}

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, download.ErrTransferAborted):
		return "aborted"
	default:
		return "error"
	}
}
