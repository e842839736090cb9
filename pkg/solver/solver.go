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

package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/llm-d/llm-d-group-allocator/pkg/milp"
)

var (
	// ErrNoIncumbent is returned when the time budget runs out before any
	// feasible solution was found.
	ErrNoIncumbent = errors.New("no feasible solution found within the time limit")

	// ErrUnsupportedBackend is returned by NewSolver for unknown back-ends.
	ErrUnsupportedBackend = errors.New("unsupported solver backend")
)

// Status is the outcome of a solve.
type Status int

const (
	StatusOptimal Status = iota
	StatusTimedOut
	StatusInfeasible
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "Optimal"
	case StatusTimedOut:
		return "TimedOut"
	case StatusInfeasible:
		return "Infeasible"
	default:
		return "Error"
	}
}

// Solution is what a solver returns.
type Solution struct {
	Status Status
	// Values is indexed like Model.Vars. Nil when Status is StatusInfeasible.
	Values []float64
	// Objective is the objective at Values as reported by the solver.
	Objective float64
	// Nodes is the number of search nodes explored, when the back-end reports it.
	Nodes int
	// Runtime is the wall-clock time spent solving.
	Runtime time.Duration
}

// Optimal reports whether optimality was proven.
func (s *Solution) Optimal() bool { return s.Status == StatusOptimal }

// Solver solves a model within a time limit. Exceeding the limit is not an
// error as long as an incumbent exists.
type Solver interface {
	Solve(ctx context.Context, m *milp.Model, timeLimit time.Duration) (*Solution, error)
	// Backend names the solver back-end.
	Backend() Backend
}

// SolverError is returned when the solver could not be invoked, crashed, or
// produced no usable result. No partial result accompanies it.
type SolverError struct {
	Backend Backend
	Err     error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("%s solver: %v", e.Backend, e.Err)
}

func (e *SolverError) Unwrap() error { return e.Err }

// Backend enumerates the supported solver back-ends.
type Backend string

const (
	BackendCBC      Backend = "cbc"
	BackendEmbedded Backend = "embedded"
)

// Backends lists every supported back-end.
var Backends = []Backend{BackendCBC, BackendEmbedded}

// ParseBackend validates a back-end name.
func ParseBackend(name string) (Backend, error) {
	for _, b := range Backends {
		if string(b) == name {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedBackend, name)
}

// Options configures solver construction.
type Options struct {
	// CBCPath is the CBC executable, looked up on PATH when not absolute.
	CBCPath string
	// WorkDir holds the temporary model and solution files; defaults to os.TempDir().
	WorkDir string
	// Clock measures the time budget of the embedded back-end.
	Clock clock.PassiveClock
}

// NewSolver is a factory that creates a Solver for the given back-end.
func NewSolver(backend Backend, opts Options) (Solver, error) {
	switch backend {
	case BackendCBC:
		s, err := NewCBCSolver(opts.CBCPath, opts.WorkDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendEmbedded:
		return NewEmbeddedSolver(opts.Clock), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, backend)
	}
}
