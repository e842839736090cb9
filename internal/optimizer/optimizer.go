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

package optimizer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
	"github.com/llm-d/llm-d-group-allocator/internal/logging"
	"github.com/llm-d/llm-d-group-allocator/internal/metrics"
	"github.com/llm-d/llm-d-group-allocator/pkg/core"
	"github.com/llm-d/llm-d-group-allocator/pkg/solver"
)

// DefaultGPAScale is the top of the GPA scale used when none is given.
const DefaultGPAScale = 9.0

// Params are the caller-supplied knobs of one allocation.
type Params struct {
	// GroupCount is the number of groups, between 1 and the roster size.
	GroupCount int
	// TimeLimit bounds the solver. Zero or negative means no limit.
	TimeLimit time.Duration
	// GPAScale is the top of the GPA scale; zero means DefaultGPAScale.
	GPAScale float64
	Weights  v1alpha1.Weights
}

// Validate checks the parameters that do not depend on the roster.
func (p Params) Validate() error {
	weights := []struct {
		name  string
		value float64
	}{
		{"mean", p.Weights.Mean},
		{"variance", p.Weights.Variance},
		{"specialisation", p.Weights.Specialisation},
		{"gender", p.Weights.Gender},
		{"ethnicity", p.Weights.Ethnicity},
	}
	for _, w := range weights {
		if w.value < 0 || math.IsNaN(w.value) || math.IsInf(w.value, 0) {
			return &core.ValidationError{Field: "weight " + w.name, Reason: fmt.Sprintf("must be a finite number >= 0, got %v", w.value)}
		}
	}
	if p.GPAScale < 0 {
		return &core.ValidationError{Field: "gpa scale", Reason: fmt.Sprintf("must be positive, got %v", p.GPAScale)}
	}
	return nil
}

func (p Params) gpaScale() float64 {
	if p.GPAScale == 0 {
		return DefaultGPAScale
	}
	return p.GPAScale
}

// Prepared is a built model together with the roster it was built from.
type Prepared struct {
	Roster *core.Roster
	*AllocationModel
}

// Prepare normalizes the roster and builds the model without solving it.
func Prepare(records []v1alpha1.StudentRecord, params Params) (*Prepared, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	roster, err := core.NewRoster(records, params.gpaScale())
	if err != nil {
		return nil, err
	}
	partition, err := core.NewPartition(roster.Len(), params.GroupCount)
	if err != nil {
		return nil, err
	}
	thresholds := core.ComputeThresholds(roster, partition.Groups)
	am := BuildModel(roster, partition, thresholds, params.Weights, params.gpaScale())
	return &Prepared{Roster: roster, AllocationModel: am}, nil
}

// Optimizer runs the allocation pipeline against one solver back-end.
type Optimizer struct {
	solver   solver.Solver
	recorder *metrics.Recorder
	newRunID func() string
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithRecorder records model sizes, solver outcomes and result quality.
func WithRecorder(r *metrics.Recorder) Option {
	return func(o *Optimizer) { o.recorder = r }
}

// WithRunIDGenerator replaces the random run identifiers.
func WithRunIDGenerator(f func() string) Option {
	return func(o *Optimizer) { o.newRunID = f }
}

// NewOptimizer creates an optimizer that solves with s.
func NewOptimizer(s solver.Solver, opts ...Option) *Optimizer {
	o := &Optimizer{
		solver:   s,
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize partitions records into params.GroupCount groups.
func (o *Optimizer) Optimize(ctx context.Context, records []v1alpha1.StudentRecord, params Params) (*v1alpha1.AllocationResult, error) {
	runID := o.newRunID()
	logger := logr.FromContextOrDiscard(ctx).WithValues("runID", runID)
	ctx = logr.NewContext(ctx, logger)

	prep, err := Prepare(records, params)
	if err != nil {
		return nil, err
	}
	m := prep.Model
	p := prep.Partition
	logger.V(logging.DEBUG).Info("Built allocation model",
		"students", prep.Roster.Len(),
		"groups", p.Groups,
		"smallSize", p.SmallSize, "smallGroups", p.SmallGroups,
		"largeSize", p.LargeSize, "largeGroups", p.LargeGroups,
		"variables", len(m.Vars),
		"integers", m.NumIntegers(),
		"constraints", len(m.Constraints))
	o.recorder.ObserveModel(len(m.Vars), len(m.Constraints))

	backend := string(o.solver.Backend())
	start := time.Now()
	sol, err := o.solver.Solve(ctx, m, params.TimeLimit)
	if err != nil {
		o.recorder.ObserveSolve(backend, solver.StatusError.String(), time.Since(start))
		return nil, err
	}
	o.recorder.ObserveSolve(backend, sol.Status.String(), sol.Runtime)

	res, err := Extract(prep.AllocationModel, sol, prep.Roster)
	if err != nil {
		logger.Error(err, "Rejected solver result", "status", sol.Status.String())
		return nil, err
	}
	res.RunID = runID
	res.Quality.Backend = backend
	o.recorder.ObserveResult(res)

	if !res.Quality.Optimal {
		logger.Info("Solver stopped on its time limit; the allocation is not proven optimal", "timeLimit", params.TimeLimit)
	}
	logger.V(logging.DEBUG).Info("Allocation complete",
		"status", res.Quality.SolverStatus,
		"objective", res.Quality.Objective,
		"gpaSpread", res.Quality.GPASpread,
		"gpaVarianceSpread", res.Quality.GPAVarianceSpread,
		"solveSeconds", res.Quality.SolveSeconds)
	return res, nil
}
