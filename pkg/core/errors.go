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

package core

import "fmt"

// ValidationError reports malformed input. It is raised before any model is
// built, so no solve is ever attempted on invalid input.
type ValidationError struct {
	// Record is the 1-based roster position of the offending record, or 0
	// when the problem is not tied to a single record.
	Record int
	// Field names the offending input field.
	Field string
	// Reason describes the problem.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Record > 0 {
		return fmt.Sprintf("invalid roster record %d: %s %s", e.Record, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidRecord(record int, field, format string, args ...any) *ValidationError {
	return &ValidationError{Record: record, Field: field, Reason: fmt.Sprintf(format, args...)}
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
