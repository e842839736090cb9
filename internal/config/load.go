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

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag names registered by AddFlags.
const (
	FlagConfig         = "config"
	FlagProfile        = "profile"
	FlagGroupCount     = "group-count"
	FlagTimeLimit      = "time-limit"
	FlagGPAScale       = "gpa-scale"
	FlagSolver         = "solver"
	FlagCBCPath        = "cbc-path"
	FlagLogLevel       = "log-level"
	FlagLogDevelopment = "log-development"
	FlagOutputFormat   = "output-format"
	FlagOutputFile     = "output"
	FlagMetricsFile    = "metrics-file"
)

// flagKeys maps flag names onto configuration keys.
var flagKeys = map[string]string{
	FlagProfile:        "profile",
	FlagGroupCount:     "group_count",
	FlagTimeLimit:      "time_limit",
	FlagGPAScale:       "gpa_scale",
	FlagSolver:         "solver.backend",
	FlagCBCPath:        "solver.cbc_path",
	FlagLogLevel:       "log.level",
	FlagLogDevelopment: "log.development",
	FlagOutputFormat:   "output.format",
	FlagOutputFile:     "output.file",
	FlagMetricsFile:    "metrics.file",
	"weight-mean":      "weights.mean",
	"weight-variance":  "weights.variance",
	"weight-spec":      "weights.specialisation",
	"weight-gender":    "weights.gender",
	"weight-ethnicity": "weights.ethnicity",
}

// AddFlags registers the configuration flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagConfig, "", "path to a YAML configuration file")
	fs.String(FlagProfile, "", "named profile from the configuration file")
	fs.IntP(FlagGroupCount, "g", d.GroupCount, "number of groups to form")
	fs.Float64(FlagTimeLimit, d.TimeLimit, "solver time limit in seconds")
	fs.Float64(FlagGPAScale, d.GPAScale, "top of the GPA scale")
	fs.String(FlagSolver, d.Solver.Backend, "solver back-end (cbc or embedded)")
	fs.String(FlagCBCPath, d.Solver.CBCPath, "CBC executable")
	fs.String(FlagLogLevel, d.Log.Level, "log level (info, debug or trace)")
	fs.Bool(FlagLogDevelopment, d.Log.Development, "human-readable development logging")
	fs.StringP(FlagOutputFormat, "o", d.Output.Format, "result format (yaml or json)")
	fs.String(FlagOutputFile, d.Output.File, "result file (default standard output)")
	fs.String(FlagMetricsFile, d.Metrics.File, "write Prometheus metrics to this textfile")
	fs.Float64("weight-mean", d.Weights.Mean, "weight of the mean GPA spread")
	fs.Float64("weight-variance", d.Weights.Variance, "weight of the GPA variance spread")
	fs.Float64("weight-spec", d.Weights.Specialisation, "weight of the specialisation shortfall")
	fs.Float64("weight-gender", d.Weights.Gender, "weight of the gender shortfall")
	fs.Float64("weight-ethnicity", d.Weights.Ethnicity, "weight of the ethnicity shortfall")
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("profile", "")
	v.SetDefault("group_count", d.GroupCount)
	v.SetDefault("time_limit", d.TimeLimit)
	v.SetDefault("gpa_scale", d.GPAScale)
	v.SetDefault("weights.mean", d.Weights.Mean)
	v.SetDefault("weights.variance", d.Weights.Variance)
	v.SetDefault("weights.specialisation", d.Weights.Specialisation)
	v.SetDefault("weights.gender", d.Weights.Gender)
	v.SetDefault("weights.ethnicity", d.Weights.Ethnicity)
	v.SetDefault("solver.backend", d.Solver.Backend)
	v.SetDefault("solver.cbc_path", d.Solver.CBCPath)
	v.SetDefault("solver.work_dir", d.Solver.WorkDir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.file", d.Output.File)
	v.SetDefault("metrics.file", d.Metrics.File)
}

// Load builds the configuration. fs may be nil; otherwise it must carry the
// flags registered by AddFlags. The selected profile is applied and the
// result validated.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var file string
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup(FlagConfig); f != nil {
			file = f.Value.String()
		}
	}
	if file == "" {
		file = v.GetString("config")
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	// Viper lower-cases map keys, so profile names are case-insensitive.
	applied, err := cfg.ApplyProfile(strings.ToLower(cfg.Profile))
	if err != nil {
		return nil, err
	}
	if err := applied.Validate(); err != nil {
		if applied.Profile != "" {
			return nil, fmt.Errorf("profile %s: %w", applied.Profile, err)
		}
		return nil, err
	}
	return &applied, nil
}
