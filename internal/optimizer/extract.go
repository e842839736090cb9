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
	"fmt"
	"math"

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
	"github.com/llm-d/llm-d-group-allocator/pkg/core"
	"github.com/llm-d/llm-d-group-allocator/pkg/solver"
)

// assignTol is how far below 1 an assignment variable may be and still
// count as assigned.
const assignTol = 1e-4

// ModelConsistencyError reports a solution that violates an invariant the
// model guarantees, such as a student in two groups or a group off its
// target size. It indicates a defect, not a bad input.
type ModelConsistencyError struct {
	Reason string
}

func (e *ModelConsistencyError) Error() string {
	return "model consistency fault: " + e.Reason
}

func inconsistent(format string, args ...any) *ModelConsistencyError {
	return &ModelConsistencyError{Reason: fmt.Sprintf(format, args...)}
}

// Extract decodes sol into an allocation result. Sizes, GPA statistics and
// shortfalls are recomputed from the decoded assignment.
func Extract(am *AllocationModel, sol *solver.Solution, r *core.Roster) (*v1alpha1.AllocationResult, error) {
	if sol == nil {
		return nil, inconsistent("no solution")
	}
	var status string
	switch sol.Status {
	case solver.StatusOptimal:
		status = v1alpha1.SolverStatusOptimal
	case solver.StatusTimedOut:
		status = v1alpha1.SolverStatusTimedOut
	default:
		return nil, inconsistent("solver reported %s although every fairness constraint is soft", sol.Status)
	}
	if len(sol.Values) != len(am.Model.Vars) {
		return nil, inconsistent("solution has %d values for %d variables", len(sol.Values), len(am.Model.Vars))
	}

	p := am.Partition
	groupOf := make([]int, r.Len())
	for s := range groupOf {
		for g := 1; g <= p.Groups; g++ {
			if sol.Values[am.AssignVar(s, g)] < 1-assignTol {
				continue
			}
			if groupOf[s] != 0 {
				return nil, inconsistent("student %s assigned to groups %d and %d", r.Student(s).ID, groupOf[s], g)
			}
			groupOf[s] = g
		}
		if groupOf[s] == 0 {
			return nil, inconsistent("student %s not assigned to any group", r.Student(s).ID)
		}
	}

	res := &v1alpha1.AllocationResult{
		GroupCount:    p.Groups,
		Assignment:    make(map[string]int, r.Len()),
		PerGroupStats: make(map[int]v1alpha1.GroupStats, p.Groups),
	}
	members := make([][]int, p.Groups+1)
	for s, g := range groupOf {
		res.Assignment[r.Student(s).ID] = g
		members[g] = append(members[g], s)
	}

	var totals [core.NumDimensions]int
	minMean, maxMean := math.Inf(1), math.Inf(-1)
	minVar, maxVar := math.Inf(1), math.Inf(-1)
	for g := 1; g <= p.Groups; g++ {
		if got, want := len(members[g]), p.Size(g); got != want {
			return nil, inconsistent("group %d has %d members, expected %d", g, got, want)
		}
		stats := groupStats(r, am.Thresholds, members[g], p.Size(g))
		res.PerGroupStats[g] = stats
		minMean, maxMean = math.Min(minMean, stats.MeanGPA), math.Max(maxMean, stats.MeanGPA)
		minVar, maxVar = math.Min(minVar, stats.GPAVariance), math.Max(maxVar, stats.GPAVariance)
		totals[core.Gender] += sum(stats.GenderShortfall)
		totals[core.Specialisation] += sum(stats.SpecialisationShortfall)
		totals[core.Ethnicity] += sum(stats.EthnicityShortfall)
	}

	w := am.Weights
	q := v1alpha1.SolutionQuality{
		GPASpread:                    maxMean - minMean,
		GPAVarianceSpread:            maxVar - minVar,
		TotalGenderShortfall:         totals[core.Gender],
		TotalSpecialisationShortfall: totals[core.Specialisation],
		TotalEthnicityShortfall:      totals[core.Ethnicity],
		SolverStatus:                 status,
		Optimal:                      sol.Optimal(),
		SolveSeconds:                 sol.Runtime.Seconds(),
	}
	q.Objective = w.Mean*q.GPASpread + w.Variance*q.GPAVarianceSpread
	for _, d := range core.Dimensions {
		q.Objective += ShortfallPenalty * dimensionWeight(w, d) * float64(totals[d])
	}
	res.Quality = q
	res.Class = classSummary(r, p, am.Thresholds)
	return res, nil
}

func groupStats(r *core.Roster, t core.Thresholds, members []int, target int) v1alpha1.GroupStats {
	stats := v1alpha1.GroupStats{
		Size:       len(members),
		TargetSize: target,
		Members:    make([]v1alpha1.Member, 0, len(members)),
	}
	var counts [core.NumDimensions][]int
	for _, d := range core.Dimensions {
		counts[d] = make([]int, len(r.Categories(d)))
	}

	var sumGPA, sumDev float64
	for _, s := range members {
		st := r.Student(s)
		sumGPA += st.GPA
		sumDev += r.SquaredDeviation(s)
		for _, d := range core.Dimensions {
			counts[d][st.Category(d)]++
		}
		spec := r.Categories(core.Specialisation)[st.Category(core.Specialisation)]
		stats.Members = append(stats.Members, v1alpha1.Member{ID: st.ID, Name: st.Name, Specialisation: spec.Label})
	}
	if n := float64(len(members)); n > 0 {
		stats.MeanGPA = sumGPA / n
		stats.GPAVariance = sumDev / n
		var internal float64
		for _, s := range members {
			dev := r.Student(s).GPA - stats.MeanGPA
			internal += dev * dev
		}
		stats.GPAInternalVariance = internal / n
	}

	for _, c := range r.Categories(core.Gender) {
		switch {
		case c.IsMale():
			stats.MaleCount += counts[core.Gender][c.Index]
		case c.IsFemale():
			stats.FemaleCount += counts[core.Gender][c.Index]
		}
	}
	stats.GenderCounts = labelled(r, core.Gender, counts[core.Gender])
	stats.SpecialisationCounts = labelled(r, core.Specialisation, counts[core.Specialisation])
	stats.EthnicityCounts = labelled(r, core.Ethnicity, counts[core.Ethnicity])
	stats.GenderShortfall = shortfalls(r, t, core.Gender, counts[core.Gender])
	stats.SpecialisationShortfall = shortfalls(r, t, core.Specialisation, counts[core.Specialisation])
	stats.EthnicityShortfall = shortfalls(r, t, core.Ethnicity, counts[core.Ethnicity])
	return stats
}

func classSummary(r *core.Roster, p core.Partition, t core.Thresholds) v1alpha1.ClassSummary {
	males, females := r.CountGender()
	cs := v1alpha1.ClassSummary{
		Students:    r.Len(),
		Females:     females,
		Males:       males,
		MeanGPA:     r.MeanGPA(),
		GPAVariance: r.GPAVariance(),
		SmallSize:   p.SmallSize,
		SmallGroups: p.SmallGroups,
		LargeGroups: p.LargeGroups,
	}
	var counts, mins [core.NumDimensions]map[string]int
	for _, d := range core.Dimensions {
		counts[d] = make(map[string]int)
		mins[d] = make(map[string]int)
		for _, c := range r.Categories(d) {
			counts[d][c.Label] = c.Count
			mins[d][c.Label] = t.Min(d, c.Index)
		}
	}
	cs.GenderCounts, cs.SpecialisationCounts, cs.EthnicityCounts = counts[core.Gender], counts[core.Specialisation], counts[core.Ethnicity]
	cs.GenderThresholds, cs.SpecialisationThresholds, cs.EthnicityThresholds = mins[core.Gender], mins[core.Specialisation], mins[core.Ethnicity]
	return cs
}

func labelled(r *core.Roster, d core.Dimension, counts []int) map[string]int {
	out := make(map[string]int, len(counts))
	for _, c := range r.Categories(d) {
		out[c.Label] = counts[c.Index]
	}
	return out
}

// shortfalls returns the non-zero shortfalls of dimension d, or nil.
func shortfalls(r *core.Roster, t core.Thresholds, d core.Dimension, counts []int) map[string]int {
	var out map[string]int
	for _, c := range r.Categories(d) {
		if missing := t.Shortfall(d, c.Index, counts[c.Index]); missing > 0 {
			if out == nil {
				out = make(map[string]int)
			}
			out[c.Label] = missing
		}
	}
	return out
}

func sum(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}
