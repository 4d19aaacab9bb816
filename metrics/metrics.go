// Package metrics - Prometheus instrumentation of the detection pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage labels.
const (
	StagePreprocess = "preprocess"
	StageInfer      = "infer"
	StageDecode     = "decode"
	StageSuppress   = "suppress"
)

const namespace = "yolo"

// Metrics holds the pipeline collectors.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	candidates    prometheus.Histogram
	detections    *prometheus.CounterVec
	errors        *prometheus.CounterVec
}

// New creates the collectors and registers them.
//
// Arguments:
//   - reg: The registerer. Nil creates collectors that are never exported.
//
// Returns:
//   - *Metrics: The collectors.
//   - error: An error if registration fails, e.g. on a duplicate registration.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each detection pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"stage"}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidates",
			Help:      "Candidate detections produced by decoding, before suppression.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Detections emitted after suppression, by class.",
		}, []string{"class"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed pipeline runs, by stage.",
		}, []string{"stage"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.stageDuration, m.candidates, m.detections, m.errors} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// ObserveStage records the duration of a stage that started at start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// ObserveCandidates records the number of decoded candidates.
func (m *Metrics) ObserveCandidates(n int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

// AddDetection counts one emitted detection of the given class label.
func (m *Metrics) AddDetection(class string) {
	if m == nil {
		return
	}
	m.detections.WithLabelValues(class).Inc()
}

// AddClassIndex counts one emitted detection when no label set is known.
func (m *Metrics) AddClassIndex(class int) {
	m.AddDetection(strconv.Itoa(class))
}

// AddError counts one failure in a stage.
func (m *Metrics) AddError(stage string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(stage).Inc()
}
