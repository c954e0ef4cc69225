package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingMetrics(t *testing.T) {
	reg := New("agriport")

	reg.Routing.ObserveRequest("table", "ok", 120*time.Millisecond)
	reg.Routing.ObserveRequest("table", "http_error", 10*time.Millisecond)
	reg.Routing.ObserveRequest("table", "ok", 80*time.Millisecond)
	reg.Routing.RejectRequest("table")
	reg.Routing.AddUnreachable(6)
	reg.Routing.ObserveCache(10, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.Routing.Requests.WithLabelValues("table", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Routing.Requests.WithLabelValues("table", "http_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Routing.Requests.WithLabelValues("table", "circuit_open")))
	assert.Equal(t, 6.0, testutil.ToFloat64(reg.Routing.UnreachableCells))
	assert.Equal(t, 10.0, testutil.ToFloat64(reg.Routing.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.Routing.CacheMisses))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestPipelineMetrics(t *testing.T) {
	reg := New("agriport")

	reg.Pipeline.ObserveRun("ok", time.Second, 90, 10, 4)
	reg.Pipeline.ObserveRun("invalid_input", time.Millisecond, 0, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Pipeline.Runs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Pipeline.Runs.WithLabelValues("invalid_input")))
	assert.Equal(t, 90.0, testutil.ToFloat64(reg.Pipeline.AssignedPoints))
	assert.Equal(t, 10.0, testutil.ToFloat64(reg.Pipeline.UnassignedPoints))
}

func TestNilReceiversAreNoops(t *testing.T) {
	var r *Routing
	var p *Pipeline

	assert.NotPanics(t, func() {
		r.ObserveRequest("route", "ok", time.Second)
		r.RejectRequest("table")
		r.AddUnreachable(3)
		r.ObserveCache(1, 1)
		p.ObserveRun("ok", time.Second, 1, 1, 1)
	})
}
