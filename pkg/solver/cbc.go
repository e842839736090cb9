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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/llm-d/llm-d-group-allocator/internal/logging"
	"github.com/llm-d/llm-d-group-allocator/pkg/milp"
)

const (
	// DefaultCBCPath is the executable looked up when no path is configured.
	DefaultCBCPath = "cbc"

	// cbcGracePeriod is how long CBC may overrun its own time limit before
	// the process is killed.
	cbcGracePeriod = 30 * time.Second

	// maxOutputTail bounds the solver output quoted in errors.
	maxOutputTail = 2048
)

// CBCSolver runs the COIN-OR CBC executable on an LP rendering of the model.
type CBCSolver struct {
	path    string
	workDir string
}

// NewCBCSolver resolves the CBC executable once, at construction.
func NewCBCSolver(path, workDir string) (*CBCSolver, error) {
	if path == "" {
		path = DefaultCBCPath
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, &SolverError{Backend: BackendCBC, Err: fmt.Errorf("cannot find executable %q: %w", path, err)}
	}
	return &CBCSolver{path: resolved, workDir: workDir}, nil
}

// Backend implements Solver.
func (s *CBCSolver) Backend() Backend { return BackendCBC }

// Path returns the resolved executable.
func (s *CBCSolver) Path() string { return s.path }

// Solve implements Solver.
func (s *CBCSolver) Solve(ctx context.Context, m *milp.Model, timeLimit time.Duration) (*Solution, error) {
	logger := logr.FromContextOrDiscard(ctx)

	dir, err := os.MkdirTemp(s.workDir, "allocator-cbc-")
	if err != nil {
		return nil, s.fail(fmt.Errorf("failed to create work directory: %w", err))
	}
	defer os.RemoveAll(dir)

	modelPath := filepath.Join(dir, "model.lp")
	solutionPath := filepath.Join(dir, "solution.txt")
	if err := writeModelFile(modelPath, m); err != nil {
		return nil, s.fail(err)
	}

	args := cbcArgs(modelPath, solutionPath, timeLimit)
	runCtx := ctx
	if timeLimit > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeLimit+cbcGracePeriod)
		defer cancel()
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(runCtx, s.path, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	logger.V(logging.DEBUG).Info("Starting CBC", "path", s.path, "args", args)
	start := time.Now()
	runErr := cmd.Run()
	runtime := time.Since(start)
	logger.V(logging.TRACE).Info("CBC output", "output", output.String())
	if runErr != nil {
		return nil, s.fail(fmt.Errorf("cbc exited after %s: %w: %s", runtime, runErr, tail(output.String())))
	}

	f, err := os.Open(solutionPath)
	if err != nil {
		return nil, s.fail(fmt.Errorf("cbc wrote no solution file: %w: %s", err, tail(output.String())))
	}
	defer f.Close()

	sol, err := parseCBCSolution(f, m)
	if err != nil {
		return nil, s.fail(err)
	}
	sol.Runtime = runtime
	logger.V(logging.DEBUG).Info("CBC finished", "status", sol.Status.String(), "objective", sol.Objective, "runtime", runtime)
	return sol, nil
}

func (s *CBCSolver) fail(err error) error {
	return &SolverError{Backend: BackendCBC, Err: err}
}

// cbcArgs builds the CBC command line: wall-clock time limit, then solve and write every column.
func cbcArgs(modelPath, solutionPath string, timeLimit time.Duration) []string {
	args := []string{modelPath}
	if timeLimit > 0 {
		seconds := int(math.Ceil(timeLimit.Seconds()))
		args = append(args, "-sec", strconv.Itoa(max(seconds, 1)), "-timeMode", "elapsed")
	}
	return append(args, "-branch", "-printingOptions", "all", "-solution", solutionPath)
}

func writeModelFile(path string, m *milp.Model) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	if err := m.WriteLP(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return f.Close()
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxOutputTail {
		return "..." + s[len(s)-maxOutputTail:]
	}
	return s
}

// parseCBCSolution reads a CBC solution file. The first line carries the
// status, e.g. "Optimal - objective value 12.5" or
// "Stopped on time - objective value 13"; every following line is
// "index name value reduced_cost", prefixed with "**" when the value
// violates a bound. Variables CBC does not print are zero.
func parseCBCSolution(r io.Reader, m *milp.Model) (*Solution, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("failed to read solution: %w", err)
		}
		return nil, errors.New("empty solution file")
	}
	header := strings.TrimSpace(sc.Text())
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return nil, errors.New("empty solution status line")
	}

	objective, hasObjective := parseObjective(fields)
	sol := &Solution{Objective: objective}
	switch fields[0] {
	case "Optimal":
		sol.Status = StatusOptimal
	case "Infeasible", "Integer":
		return &Solution{Status: StatusInfeasible}, nil
	case "Stopped", "Partial":
		// "Stopped on time (no integer solution - continuous used)" carries
		// the LP relaxation, not an incumbent.
		if !hasObjective || strings.Contains(header, "no integer solution") {
			return nil, ErrNoIncumbent
		}
		sol.Status = StatusTimedOut
	case "Unbounded":
		return nil, fmt.Errorf("model reported unbounded: %q", header)
	default:
		return nil, fmt.Errorf("unrecognised solution status %q", header)
	}

	sol.Values = make([]float64, len(m.Vars))
	for sc.Scan() {
		line := strings.Fields(sc.Text())
		if len(line) == 0 {
			continue
		}
		if line[0] == "**" {
			line = line[1:]
		}
		if len(line) < 3 {
			return nil, fmt.Errorf("malformed solution line %q", sc.Text())
		}
		idx, ok := m.VarIndex(line[1])
		if !ok {
			// CBC names unnamed rows/columns itself; nothing of ours to set.
			continue
		}
		v, err := strconv.ParseFloat(line[2], 64)
		if err != nil {
			return nil, fmt.Errorf("bad value for %s: %w", line[1], err)
		}
		sol.Values[idx] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read solution: %w", err)
	}
	if sol.Status == StatusTimedOut {
		for j, v := range m.Vars {
			if v.IsInteger() && math.Abs(sol.Values[j]-math.Round(sol.Values[j])) > integralityTol {
				return nil, fmt.Errorf("%w: %s is fractional (%v)", ErrNoIncumbent, v.Name, sol.Values[j])
			}
		}
	}
	return sol, nil
}

// parseObjective finds the number after "objective value".
func parseObjective(fields []string) (float64, bool) {
	for i := 0; i+2 < len(fields); i++ {
		if fields[i] == "objective" && fields[i+1] == "value" {
			v, err := strconv.ParseFloat(fields[i+2], 64)
			if err != nil {
				return 0, false
			}
			return v, true
		}
	}
	return 0, false
}
