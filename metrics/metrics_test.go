package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.JobFinished(OutcomeSuccess, 2*time.Second)
	c.JobFinished(OutcomeError, time.Millisecond)
	c.JobFinished(OutcomeSuccess, time.Second)
	c.Tiles(100)
	c.Tiles(4)
	c.Received(4096)
	c.ImageComplete("target")
	c.ImageComplete("pool")
	c.ImageComplete("pool")
	c.Error("ProtocolError")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.jobsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobsTotal.WithLabelValues(OutcomeError)))
	assert.Equal(t, 104.0, testutil.ToFloat64(c.tilesTotal))
	assert.Equal(t, 4096.0, testutil.ToFloat64(c.bytesReceived))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.imagesReceived.WithLabelValues("pool")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.errorsTotal.WithLabelValues("ProtocolError")))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP mosaic_tiles_total Total number of tiles matched and composited
# TYPE mosaic_tiles_total counter
mosaic_tiles_total 104
`), "mosaic_tiles_total")
	require.NoError(t, err)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.JobFinished(OutcomeSuccess, time.Second)
	c.Tiles(1)
	c.Received(1)
	c.ImageComplete("pool")
	c.Error("StateError")
}

func TestUnregisteredCollector(t *testing.T) {
	c := New(nil)
	c.Tiles(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(c.tilesTotal))
}
