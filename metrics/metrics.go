package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder exposes projection counters to Prometheus. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	stageSeconds *prometheus.HistogramVec
	systems      *prometheus.CounterVec
	faults       *prometheus.CounterVec
	cells        prometheus.Counter
}

func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		stageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hgrad",
			Subsystem: "projection",
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each projection stage.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"stage"}),
		systems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hgrad",
			Subsystem: "projection",
			Name:      "local_systems_total",
			Help:      "Local dense systems solved, by stage.",
		}, []string{"stage"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hgrad",
			Subsystem: "projection",
			Name:      "faults_total",
			Help:      "Projections aborted, by stage.",
		}, []string{"stage"}),
		cells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hgrad",
			Subsystem: "projection",
			Name:      "cells_total",
			Help:      "Cells projected.",
		}),
	}
	for _, c := range []prometheus.Collector{r.stageSeconds, r.systems, r.faults, r.cells} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) AddSystems(stage string, n int) {
	if r == nil {
		return
	}
	r.systems.WithLabelValues(stage).Add(float64(n))
}

func (r *Recorder) Fault(stage string) {
	if r == nil {
		return
	}
	r.faults.WithLabelValues(stage).Inc()
}

func (r *Recorder) AddCells(n int) {
	if r == nil {
		return
	}
	r.cells.Add(float64(n))
}
