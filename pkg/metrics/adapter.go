package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/openpai/paifs/pkg/vfs"
)

// AdapterMetrics records filesystem operation outcomes. Providers call it on
// every operation; a nil AdapterMetrics anywhere is replaced with a no-op.
type AdapterMetrics interface {
	// ObserveOperation records one completed operation with its duration.
	// The error (possibly nil) determines the status label.
	ObserveOperation(operation string, err error, elapsed time.Duration)

	// CacheHit and CacheMiss record listing cache effectiveness.
	CacheHit()
	CacheMiss()

	// AddTransferBytes records payload bytes moved by a read or write.
	AddTransferBytes(operation string, n int)
}

// adapterMetrics is the Prometheus implementation of AdapterMetrics.
type adapterMetrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	transferBytes *prometheus.CounterVec
}

// NewAdapterMetrics creates a Prometheus-backed AdapterMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// causes providers to fall back to the built-in no-op implementation.
func NewAdapterMetrics() AdapterMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &adapterMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "paifs_operations_total",
				Help: "Total number of filesystem operations",
			},
			[]string{"operation", "status"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paifs_operation_duration_seconds",
				Help:    "Filesystem operation latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		cacheLookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "paifs_listing_cache_lookups_total",
				Help: "Listing cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		transferBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "paifs_transfer_bytes_total",
				Help: "Payload bytes transferred",
			},
			[]string{"operation"},
		),
	}
}

// statusLabel maps an operation error onto its taxonomy name for the status
// label. Unlabelled cardinality is bounded by the taxonomy.
func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, vfs.ErrUnknownCluster):
		return "unknown_cluster"
	case errors.Is(err, vfs.ErrNotFound):
		return "not_found"
	case errors.Is(err, vfs.ErrNotEmpty):
		return "not_empty"
	case errors.Is(err, vfs.ErrDestinationExists):
		return "destination_exists"
	case errors.Is(err, vfs.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, vfs.ErrTransport):
		return "transport"
	case errors.Is(err, vfs.ErrProtocol):
		return "protocol"
	default:
		return "other"
	}
}

func (m *adapterMetrics) ObserveOperation(operation string, err error, elapsed time.Duration) {
	m.operations.WithLabelValues(operation, statusLabel(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *adapterMetrics) CacheHit() {
	m.cacheLookups.WithLabelValues("hit").Inc()
}

func (m *adapterMetrics) CacheMiss() {
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *adapterMetrics) AddTransferBytes(operation string, n int) {
	m.transferBytes.WithLabelValues(operation).Add(float64(n))
}

// noopAdapterMetrics discards everything.
type noopAdapterMetrics struct{}

func (noopAdapterMetrics) ObserveOperation(string, error, time.Duration) {}
func (noopAdapterMetrics) CacheHit()                                     {}
func (noopAdapterMetrics) CacheMiss()                                    {}
func (noopAdapterMetrics) AddTransferBytes(string, int)                  {}

// OrNoop returns m, or a no-op implementation when m is nil.
func OrNoop(m AdapterMetrics) AdapterMetrics {
	if m == nil {
		return noopAdapterMetrics{}
	}
	return m
}
