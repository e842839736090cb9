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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
	"github.com/llm-d/llm-d-group-allocator/internal/config"
	"github.com/llm-d/llm-d-group-allocator/internal/metrics"
	"github.com/llm-d/llm-d-group-allocator/internal/optimizer"
	"github.com/llm-d/llm-d-group-allocator/pkg/solver"
)

func newSolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve ROSTER",
		Short: "Allocate the students of a roster to groups",
		Example: `  allocator solve class.csv -g 12
  allocator solve class.xlsx --sheet "Week 1" -g 8 --solver embedded -o json --output groups.json`,
		Args: exactlyOneRoster,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := setup(cmd, args[0])
			if err != nil {
				return err
			}
			return r.solve(cmd.OutOrStdout())
		},
	}
	addRosterFlags(cmd)
	return cmd
}

func (r *run) solve(stdout io.Writer) error {
	backend, err := r.cfg.Backend()
	if err != nil {
		return err
	}
	s, err := solver.NewSolver(backend, solver.Options{CBCPath: r.cfg.Solver.CBCPath, WorkDir: r.cfg.Solver.WorkDir})
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}

	res, solveErr := optimizer.NewOptimizer(s, optimizer.WithRecorder(recorder)).Optimize(r.ctx, r.records, r.params())
	if r.cfg.Metrics.File != "" {
		if err := metrics.WriteTextfile(reg, r.cfg.Metrics.File); err != nil {
			r.logger.Error(err, "Failed to write metrics textfile", "file", r.cfg.Metrics.File)
		}
	}
	if solveErr != nil {
		return solveErr
	}

	logSummary(r.logger, res)
	return writeResult(stdout, r.cfg.Output, res)
}

// logSummary logs the headline numbers of an allocation.
func logSummary(logger logr.Logger, res *v1alpha1.AllocationResult) {
	q := res.Quality
	logger.Info("Allocation finished",
		"runID", res.RunID,
		"students", res.Class.Students,
		"groups", res.GroupCount,
		"status", q.SolverStatus,
		"solveSeconds", q.SolveSeconds)
	logger.Info("Biggest difference in mean GPA", "value", q.GPASpread)
	logger.Info("Biggest difference in GPA variance", "value", q.GPAVarianceSpread)
	logger.Info("Shortfall totals",
		"specialisation", q.TotalSpecialisationShortfall,
		"gender", q.TotalGenderShortfall,
		"ethnicity", q.TotalEthnicityShortfall)
}

// writeResult encodes res in the configured format to the configured file,
// or to stdout when none is set.
func writeResult(stdout io.Writer, out config.OutputConfig, res *v1alpha1.AllocationResult) error {
	var (
		data []byte
		err  error
	)
	switch out.Format {
	case config.OutputJSON:
		data, err = json.MarshalIndent(res, "", "  ")
		data = append(data, '\n')
	default:
		data, err = yaml.Marshal(res)
	}
	if err != nil {
		return fmt.Errorf("failed to encode allocation result: %w", err)
	}
	return writeOutput(stdout, out.File, data)
}

func writeOutput(stdout io.Writer, file string, data []byte) error {
	if file == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	return nil
}
