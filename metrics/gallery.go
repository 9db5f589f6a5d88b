package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GalleryMetrics records image promotion and reconciliation outcomes.
// A nil *GalleryMetrics is valid and records nothing.
type GalleryMetrics struct {
	promotions    *prometheus.CounterVec
	promoDuration prometheus.Histogram
	sweepActions  *prometheus.CounterVec
	sweepRuns     *prometheus.CounterVec
}

// NewGalleryMetrics registers the gallery metrics on the provided registerer.
func NewGalleryMetrics(reg prometheus.Registerer) *GalleryMetrics {
	if reg == nil {
		return &GalleryMetrics{}
	}
	promotions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_promotions_total",
		Help: "Temporary images processed by the promotion workflow, by outcome.",
	}, []string{"outcome"})
	promoDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gallery_promotion_duration_seconds",
		Help:    "Duration of a promotion call for one product.",
		Buckets: prometheus.DefBuckets,
	})
	sweepActions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_sweep_actions_total",
		Help: "Repairs performed by the gallery reconciliation sweep, by action.",
	}, []string{"action"})
	sweepRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_sweep_runs_total",
		Help: "Gallery reconciliation sweeps, by result.",
	}, []string{"result"})
	reg.MustRegister(promotions, promoDuration, sweepActions, sweepRuns)
	return &GalleryMetrics{
		promotions:    promotions,
		promoDuration: promoDuration,
		sweepActions:  sweepActions,
		sweepRuns:     sweepRuns,
	}
}

func (m *GalleryMetrics) IncPromotion(outcome string) {
	if m == nil || m.promotions == nil {
		return
	}
	m.promotions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *GalleryMetrics) ObservePromotion(d time.Duration) {
	if m == nil || m.promoDuration == nil {
		return
	}
	m.promoDuration.Observe(d.Seconds())
}

func (m *GalleryMetrics) AddSweepAction(action string, n int) {
	if m == nil || m.sweepActions == nil || n <= 0 {
		return
	}
	m.sweepActions.WithLabelValues(normalizeLabel(action)).Add(float64(n))
}

func (m *GalleryMetrics) IncSweepRun(failed bool) {
	if m == nil || m.sweepRuns == nil {
		return
	}
	result := "success"
	if failed {
		result = "failure"
	}
	m.sweepRuns.WithLabelValues(result).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
