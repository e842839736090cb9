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
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
	"github.com/llm-d/llm-d-group-allocator/internal/config"
	"github.com/llm-d/llm-d-group-allocator/internal/logging"
	"github.com/llm-d/llm-d-group-allocator/internal/optimizer"
	"github.com/llm-d/llm-d-group-allocator/internal/source"
)

const (
	flagFormat = "format"
	flagSheet  = "sheet"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocator",
		Short: "Form balanced student groups",
		Long: `allocator partitions a class roster into groups of near-equal size,
balancing mean GPA and GPA variance across groups and spreading genders,
specialisations and ethnicities as evenly as the roster allows.

Configuration is read from --config, ALLOCATOR_* environment variables and
flags, in increasing order of precedence.`,
		SilenceUsage: true,
	}
	config.AddFlags(cmd.PersistentFlags())
	cmd.AddCommand(newSolveCommand(), newModelCommand())
	return cmd
}

func addRosterFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagFormat, "", "roster format (csv, xlsx, yaml or json); inferred from the extension by default")
	cmd.Flags().String(flagSheet, "", "worksheet of an XLSX roster (default first sheet)")
}

// run holds what every sub-command needs before it does its own work.
type run struct {
	cfg     *config.Config
	ctx     context.Context
	logger  logr.Logger
	records []v1alpha1.StudentRecord
}

// setup loads the configuration, builds the logger and reads the roster
// named by the first argument.
func setup(cmd *cobra.Command, path string) (*run, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(logging.Options{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return nil, err
	}
	ctx := logr.NewContext(cmd.Context(), logger)

	format, _ := cmd.Flags().GetString(flagFormat)
	sheet, _ := cmd.Flags().GetString(flagSheet)
	var f source.Format
	if format != "" {
		if f, err = source.ParseFormat(format); err != nil {
			return nil, err
		}
	}
	src, err := source.New(path, f, source.WithSheet(sheet))
	if err != nil {
		return nil, err
	}
	records, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Profile != "" {
		logger.Info("Using profile", "profile", cfg.Profile)
	}
	return &run{cfg: cfg, ctx: ctx, logger: logger, records: records}, nil
}

func (r *run) params() optimizer.Params {
	return optimizer.Params{
		GroupCount: r.cfg.GroupCount,
		TimeLimit:  r.cfg.TimeLimitDuration(),
		GPAScale:   r.cfg.GPAScale,
		Weights:    r.cfg.Weights,
	}
}

func exactlyOneRoster(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%s needs exactly one roster file, got %d arguments", cmd.Name(), len(args))
	}
	return nil
}
