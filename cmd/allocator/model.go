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
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llm-d/llm-d-group-allocator/internal/logging"
	"github.com/llm-d/llm-d-group-allocator/internal/optimizer"
)

func newModelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model ROSTER",
		Short: "Export the allocation model in CPLEX LP format without solving it",
		Long: `model builds the same mixed-integer program solve would hand to the
solver and writes it in CPLEX LP format, so any MILP solver can consume it.
The SHA-256 digest of the LP text is printed to standard error; two builds
from the same roster and parameters have the same digest.`,
		Args: exactlyOneRoster,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := setup(cmd, args[0])
			if err != nil {
				return err
			}
			prep, err := optimizer.Prepare(r.records, r.params())
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := prep.Model.WriteLP(&buf); err != nil {
				return fmt.Errorf("failed to render model: %w", err)
			}
			if err := writeOutput(cmd.OutOrStdout(), r.cfg.Output.File, buf.Bytes()); err != nil {
				return err
			}
			digest := prep.Model.Digest()
			r.logger.V(logging.DEBUG).Info("Exported allocation model",
				"variables", len(prep.Model.Vars),
				"constraints", len(prep.Model.Constraints),
				"digest", digest)
			_, err = fmt.Fprintf(cmd.ErrOrStderr(), "sha256:%s\n", digest)
			return err
		},
	}
	addRosterFlags(cmd)
	return cmd
}
