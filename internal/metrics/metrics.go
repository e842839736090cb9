/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics exposes allocation runs as Prometheus metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
)

const namespace = "group_allocator"

// Label names.
const (
	LabelBackend   = "backend"
	LabelStatus    = "status"
	LabelDimension = "dimension"
)

// Recorder owns the collectors of one allocator process. A nil *Recorder
// records nothing.
type Recorder struct {
	solveDuration     *prometheus.HistogramVec
	solves            *prometheus.CounterVec
	modelVariables    prometheus.Gauge
	modelConstraints  prometheus.Gauge
	gpaSpread         prometheus.Gauge
	gpaVarianceSpread prometheus.Gauge
	shortfall         *prometheus.GaugeVec
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		solveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "Wall-clock time spent in the solver.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{LabelBackend}),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solves_total",
			Help:      "Solver runs by back-end and outcome.",
		}, []string{LabelBackend, LabelStatus}),
		modelVariables: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_variables",
			Help:      "Decision variables in the last built model.",
		}),
		modelConstraints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_constraints",
			Help:      "Constraints in the last built model.",
		}),
		gpaSpread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gpa_spread",
			Help:      "Largest minus smallest per-group mean GPA of the last allocation.",
		}),
		gpaVarianceSpread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gpa_variance_spread",
			Help:      "Largest minus smallest per-group GPA variance of the last allocation.",
		}),
		shortfall: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shortfall_total",
			Help:      "Total shortfall below the fairness thresholds in the last allocation.",
		}, []string{LabelDimension}),
	}
	for _, c := range []prometheus.Collector{
		r.solveDuration, r.solves, r.modelVariables, r.modelConstraints,
		r.gpaSpread, r.gpaVarianceSpread, r.shortfall,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return r, nil
}

// ObserveModel records the size of a built model.
func (r *Recorder) ObserveModel(variables, constraints int) {
	if r == nil {
		return
	}
	r.modelVariables.Set(float64(variables))
	r.modelConstraints.Set(float64(constraints))
}

// ObserveSolve records one solver run.
func (r *Recorder) ObserveSolve(backend, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.solveDuration.WithLabelValues(backend).Observe(d.Seconds())
	r.solves.WithLabelValues(backend, status).Inc()
}

// ObserveResult records the fairness of an accepted allocation.
func (r *Recorder) ObserveResult(res *v1alpha1.AllocationResult) {
	if r == nil || res == nil {
		return
	}
	q := res.Quality
	r.gpaSpread.Set(q.GPASpread)
	r.gpaVarianceSpread.Set(q.GPAVarianceSpread)
	r.shortfall.WithLabelValues("gender").Set(float64(q.TotalGenderShortfall))
	r.shortfall.WithLabelValues("specialisation").Set(float64(q.TotalSpecialisationShortfall))
	r.shortfall.WithLabelValues("ethnicity").Set(float64(q.TotalEthnicityShortfall))
}
