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
	"time"

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
	"github.com/llm-d/llm-d-group-allocator/pkg/core"
	"github.com/llm-d/llm-d-group-allocator/pkg/milp"
	"github.com/llm-d/llm-d-group-allocator/pkg/solver"
)

func rec(id, gpa, gender, spec, eth string) v1alpha1.StudentRecord {
	return v1alpha1.StudentRecord{ID: id, Name: "name-" + id, GPA: gpa, Gender: gender, Specialisation: spec, Ethnicity: eth}
}

// fourStudents has a unique optimum (up to swapping the groups):
// {s1, s2} and {s3, s4}, with GPA spread 4 and variance spread 0.
func fourStudents() []v1alpha1.StudentRecord {
	return []v1alpha1.StudentRecord{
		rec("s1", "2", "F", "Civil", "A"),
		rec("s2", "4", "M", "Civil", "B"),
		rec("s3", "6", "F", "Civil", "A"),
		rec("s4", "8", "M", "Civil", "B"),
	}
}

// tenStudents is three women and seven men over two specialisations.
func tenStudents() []v1alpha1.StudentRecord {
	genders := []string{"F", "F", "F", "M", "M", "M", "M", "M", "M", "M"}
	records := make([]v1alpha1.StudentRecord, len(genders))
	for i, g := range genders {
		spec := "Civil"
		if i%2 == 1 {
			spec = "Software"
		}
		records[i] = rec(fmt.Sprintf("s%d", i+1), fmt.Sprintf("%d", 3+i%5), g, spec, "NZ")
	}
	return records
}

// fourteenStudents mixes two genders, three specialisations and three
// ethnicities with spread-out GPAs, so the search tree is wide.
func fourteenStudents() []v1alpha1.StudentRecord {
	genders := []string{"F", "M", "M", "F", "M", "F", "M"}
	specs := []string{"Civil", "Software", "Mechanical"}
	eths := []string{"Maori", "European", "Pasifika"}
	records := make([]v1alpha1.StudentRecord, 14)
	for i := range records {
		gpa := fmt.Sprintf("%.1f", 1.5+float64((i*7)%15)/2)
		records[i] = rec(fmt.Sprintf("s%d", i+1), gpa, genders[i%len(genders)], specs[i%len(specs)], eths[(i/2)%len(eths)])
	}
	return records
}

func defaultParams(groups int) Params {
	return Params{GroupCount: groups, TimeLimit: time.Minute, GPAScale: 9, Weights: v1alpha1.DefaultWeights()}
}

func prepare(records []v1alpha1.StudentRecord, groups int) *Prepared {
	prep, err := Prepare(records, defaultParams(groups))
	if err != nil {
		panic(err)
	}
	return prep
}

// assignmentValues sets x[s,g] = 1 for every student index s mapped to g,
// and each value to 1-noise to exercise the assignment tolerance.
func assignmentValues(am *AllocationModel, groupOf map[int]int, noise float64) []float64 {
	values := make([]float64, len(am.Model.Vars))
	for s, g := range groupOf {
		values[am.AssignVar(s, g)] = 1 - noise
	}
	return values
}

// fakeSolver returns a canned solution built from the model.
type fakeSolver struct {
	status  solver.Status
	groupOf map[int]int
	err     error
	calls   int
}

func (f *fakeSolver) Backend() solver.Backend { return "fake" }

func (f *fakeSolver) Solve(_ context.Context, m *milp.Model, _ time.Duration) (*solver.Solution, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	sol := &solver.Solution{Status: f.status, Runtime: 1500 * time.Millisecond}
	if f.status == solver.StatusInfeasible {
		return sol, nil
	}
	sol.Values = make([]float64, len(m.Vars))
	for s, g := range f.groupOf {
		idx, ok := m.VarIndex(fmt.Sprintf("x_%d_%d", s, g))
		if !ok {
			return nil, fmt.Errorf("no variable for student %d in group %d", s, g)
		}
		sol.Values[idx] = 1
	}
	return sol, nil
}

var _ solver.Solver = (*fakeSolver)(nil)

func mustPartition(n, g int) core.Partition {
	p, err := core.NewPartition(n, g)
	if err != nil {
		panic(err)
	}
	return p
}
