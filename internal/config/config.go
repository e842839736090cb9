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

// Package config loads the allocator configuration from defaults, an
// optional YAML file, ALLOCATOR_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
	"github.com/llm-d/llm-d-group-allocator/internal/logging"
	"github.com/llm-d/llm-d-group-allocator/pkg/solver"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ALLOCATOR"

// Defaults
const (
	DefaultTimeLimitSeconds = 60.0
	DefaultGPAScale         = 9.0
	DefaultOutputFormat     = OutputYAML
)

// Output formats of the allocation result.
const (
	OutputYAML = "yaml"
	OutputJSON = "json"
)

// ErrUnknownProfile is returned when the selected profile is not configured.
var ErrUnknownProfile = errors.New("unknown profile")

// SolverConfig selects the solver back-end.
type SolverConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	CBCPath string `mapstructure:"cbc_path" yaml:"cbc_path"`
	WorkDir string `mapstructure:"work_dir" yaml:"work_dir,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// OutputConfig configures how results are written.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	// File is the result destination; empty means standard output.
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// MetricsConfig configures the Prometheus textfile written after a run.
type MetricsConfig struct {
	// File is the textfile path; empty disables metrics output.
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// WeightOverrides holds per-profile weights. Nil fields inherit.
type WeightOverrides struct {
	Mean           *float64 `mapstructure:"mean" yaml:"mean,omitempty"`
	Variance       *float64 `mapstructure:"variance" yaml:"variance,omitempty"`
	Specialisation *float64 `mapstructure:"specialisation" yaml:"specialisation,omitempty"`
	Gender         *float64 `mapstructure:"gender" yaml:"gender,omitempty"`
	Ethnicity      *float64 `mapstructure:"ethnicity" yaml:"ethnicity,omitempty"`
}

// Profile overrides the allocation parameters for one cohort.
// Zero values inherit from the top level.
type Profile struct {
	GroupCount int             `mapstructure:"group_count" yaml:"group_count,omitempty"`
	TimeLimit  float64         `mapstructure:"time_limit" yaml:"time_limit,omitempty"`
	GPAScale   float64         `mapstructure:"gpa_scale" yaml:"gpa_scale,omitempty"`
	Weights    WeightOverrides `mapstructure:"weights" yaml:"weights,omitempty"`
}

// Config is the complete allocator configuration.
type Config struct {
	// GroupCount is the number of groups to form.
	GroupCount int `mapstructure:"group_count" yaml:"group_count"`

	// TimeLimit is the solver budget in seconds.
	TimeLimit float64 `mapstructure:"time_limit" yaml:"time_limit"`

	// GPAScale is the top of the GPA scale.
	GPAScale float64 `mapstructure:"gpa_scale" yaml:"gpa_scale"`

	Weights v1alpha1.Weights `mapstructure:"weights" yaml:"weights"`
	Solver  SolverConfig     `mapstructure:"solver" yaml:"solver"`
	Log     LogConfig        `mapstructure:"log" yaml:"log"`
	Output  OutputConfig     `mapstructure:"output" yaml:"output"`
	Metrics MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`

	// Profile names the applied entry of Profiles, if any.
	Profile  string             `mapstructure:"profile" yaml:"profile,omitempty"`
	Profiles map[string]Profile `mapstructure:"profiles" yaml:"profiles,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TimeLimit: DefaultTimeLimitSeconds,
		GPAScale:  DefaultGPAScale,
		Weights:   v1alpha1.DefaultWeights(),
		Solver: SolverConfig{
			Backend: string(solver.BackendCBC),
			CBCPath: solver.DefaultCBCPath,
		},
		Log:    LogConfig{Level: "info"},
		Output: OutputConfig{Format: DefaultOutputFormat},
	}
}

// TimeLimitDuration returns TimeLimit as a duration.
func (c *Config) TimeLimitDuration() time.Duration {
	return time.Duration(c.TimeLimit * float64(time.Second))
}

// Backend returns the configured solver back-end.
func (c *Config) Backend() (solver.Backend, error) {
	return solver.ParseBackend(c.Solver.Backend)
}

// Validate checks for invalid configuration values.
func (c *Config) Validate() error {
	if c.GroupCount < 1 {
		return fmt.Errorf("group_count must be >= 1, got %d", c.GroupCount)
	}
	if !(c.TimeLimit > 0) || math.IsInf(c.TimeLimit, 0) {
		return fmt.Errorf("time_limit must be a positive number of seconds, got %v", c.TimeLimit)
	}
	if !(c.GPAScale > 0) || math.IsInf(c.GPAScale, 0) {
		return fmt.Errorf("gpa_scale must be > 0, got %v", c.GPAScale)
	}
	if err := validateWeights(c.Weights); err != nil {
		return err
	}
	if _, err := c.Backend(); err != nil {
		return fmt.Errorf("solver.backend: %w", err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Output.Format {
	case OutputYAML, OutputJSON:
	default:
		return fmt.Errorf("output.format must be %q or %q, got %q", OutputYAML, OutputJSON, c.Output.Format)
	}
	return nil
}

func validateWeights(w v1alpha1.Weights) error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"mean", w.Mean},
		{"variance", w.Variance},
		{"specialisation", w.Specialisation},
		{"gender", w.Gender},
		{"ethnicity", w.Ethnicity},
	} {
		if f.value < 0 || math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("weights.%s must be a finite number >= 0, got %v", f.name, f.value)
		}
	}
	return nil
}

// ApplyProfile returns a copy of c with the named profile merged in.
// Profile values override the top level; unset ones inherit.
func (c Config) ApplyProfile(name string) (Config, error) {
	if name == "" {
		return c, nil
	}
	p, ok := c.Profiles[name]
	if !ok {
		return c, fmt.Errorf("%w %q (configured: %s)", ErrUnknownProfile, name, strings.Join(c.ProfileNames(), ", "))
	}

	result := c
	result.Profile = name
	if p.GroupCount != 0 {
		result.GroupCount = p.GroupCount
	}
	if p.TimeLimit != 0 {
		result.TimeLimit = p.TimeLimit
	}
	if p.GPAScale != 0 {
		result.GPAScale = p.GPAScale
	}
	override := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	override(&result.Weights.Mean, p.Weights.Mean)
	override(&result.Weights.Variance, p.Weights.Variance)
	override(&result.Weights.Specialisation, p.Weights.Specialisation)
	override(&result.Weights.Gender, p.Weights.Gender)
	override(&result.Weights.Ethnicity, p.Weights.Ethnicity)
	return result, nil
}

// ProfileNames returns the configured profile names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
