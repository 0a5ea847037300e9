package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/openpai/paifs/pkg/vfs"
)

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{vfs.ErrUnknownCluster, "unknown_cluster"},
		{vfs.ErrNotFound, "not_found"},
		{vfs.ErrNotEmpty, "not_empty"},
		{vfs.ErrDestinationExists, "destination_exists"},
		{vfs.ErrAccessDenied, "access_denied"},
		{vfs.ErrTransport, "transport"},
		{vfs.ErrProtocol, "protocol"},
		{fmt.Errorf("wrapped: %w", vfs.ErrNotFound), "not_found"},
		{errors.New("something else"), "other"},
	}

	for _, tt := range tests {
		if got := statusLabel(tt.err); got != tt.want {
			t.Errorf("statusLabel(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestNewAdapterMetrics_NilWhenDisabled(t *testing.T) {
	if IsEnabled() {
		t.Skip("registry already initialized by another test")
	}
	if m := NewAdapterMetrics(); m != nil {
		t.Error("NewAdapterMetrics() should be nil before InitRegistry")
	}
}

func TestAdapterMetrics_Counters(t *testing.T) {
	InitRegistry()

	m := NewAdapterMetrics()
	if m == nil {
		t.Fatal("NewAdapterMetrics() returned nil after InitRegistry")
	}
	pm := m.(*adapterMetrics)

	m.ObserveOperation("list", nil, 5*time.Millisecond)
	m.ObserveOperation("list", vfs.ErrNotFound, time.Millisecond)
	m.CacheHit()
	m.CacheHit()
	m.CacheMiss()
	m.AddTransferBytes("create", 1024)

	if got := testutil.ToFloat64(pm.operations.WithLabelValues("list", "ok")); got != 1 {
		t.Errorf("operations{list,ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(pm.operations.WithLabelValues("list", "not_found")); got != 1 {
		t.Errorf("operations{list,not_found} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(pm.cacheLookups.WithLabelValues("hit")); got != 2 {
		t.Errorf("cacheLookups{hit} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(pm.cacheLookups.WithLabelValues("miss")); got != 1 {
		t.Errorf("cacheLookups{miss} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(pm.transferBytes.WithLabelValues("create")); got != 1024 {
		t.Errorf("transferBytes{create} = %v, want 1024", got)
	}
}

func TestOrNoop(t *testing.T) {
	noop := OrNoop(nil)

	// Must not panic.
	noop.ObserveOperation("stat", nil, 0)
	noop.CacheHit()
	noop.CacheMiss()
	noop.AddTransferBytes("create", 10)

	m := noopAdapterMetrics{}
	if OrNoop(m) != m {
		t.Error("OrNoop should pass through non-nil metrics")
	}
}
