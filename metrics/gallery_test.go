package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGalleryMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGalleryMetrics(reg)

	m.IncPromotion("promoted")
	m.IncPromotion("promoted")
	m.IncPromotion("")
	m.ObservePromotion(15 * time.Millisecond)
	m.AddSweepAction("orphan_row_deleted", 3)
	m.AddSweepAction("orphan_row_deleted", 0)
	m.IncSweepRun(false)
	m.IncSweepRun(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.promotions.WithLabelValues("promoted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.promotions.WithLabelValues("unknown")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweepActions.WithLabelValues("orphan_row_deleted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepRuns.WithLabelValues("failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.promoDuration))
}

func TestNilGalleryMetricsIsSafe(t *testing.T) {
	var m *GalleryMetrics
	assert.NotPanics(t, func() {
		m.IncPromotion("promoted")
		m.ObservePromotion(time.Second)
		m.AddSweepAction("x", 1)
		m.IncSweepRun(true)
	})

	empty := NewGalleryMetrics(nil)
	assert.NotPanics(t, func() { empty.IncPromotion("promoted") })
}
