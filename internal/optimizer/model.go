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

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
	"github.com/llm-d/llm-d-group-allocator/pkg/core"
	"github.com/llm-d/llm-d-group-allocator/pkg/milp"
)

// ShortfallPenalty multiplies the weighted shortfall terms of the objective.
// It is several orders of magnitude above any GPA spread, so the solver
// removes every avoidable unit of shortfall before trading off GPA balance.
const ShortfallPenalty = 1e4

// AllocationModel is a built model together with the index of every
// variable the extractor needs.
type AllocationModel struct {
	Model      *milp.Model
	Partition  core.Partition
	Thresholds core.Thresholds
	Weights    v1alpha1.Weights

	// assign[s][g-1] is the index of x[s,g].
	assign [][]int
	// shortfall[d][k][g-1] is the index of the shortfall of category k of
	// dimension d in group g.
	shortfall [core.NumDimensions][][]int

	gpaMin, gpaMax       int
	gpaVarMin, gpaVarMax int
}

// AssignVar returns the index of x[s,g] (s 0-based roster position, g 1-based group).
func (am *AllocationModel) AssignVar(s, g int) int { return am.assign[s][g-1] }

// ShortfallVar returns the index of the shortfall variable of category k of
// dimension d in group g.
func (am *AllocationModel) ShortfallVar(d core.Dimension, k, g int) int {
	return am.shortfall[d][k][g-1]
}

// BuildModel constructs the allocation model. It is deterministic: the same
// inputs always produce the same variables and constraints in the same order.
// gpaScale bounds gpa_min and gpa_max to [0, gpaScale] and the variance
// brackets to [0, gpaScale²].
func BuildModel(r *core.Roster, p core.Partition, t core.Thresholds, w v1alpha1.Weights, gpaScale float64) *AllocationModel {
	n, groups := r.Len(), p.Groups
	am := &AllocationModel{
		Model:      milp.NewModel("group_allocation"),
		Partition:  p,
		Thresholds: t,
		Weights:    w,
		assign:     make([][]int, n),
	}
	m := am.Model

	for s := 0; s < n; s++ {
		am.assign[s] = make([]int, groups)
		for g := 1; g <= groups; g++ {
			am.assign[s][g-1] = m.AddVar(fmt.Sprintf("x_%d_%d", s, g), milp.Binary, 0, 1)
		}
	}
	am.gpaMin = m.AddVar("gpa_min", milp.Continuous, 0, gpaScale)
	am.gpaMax = m.AddVar("gpa_max", milp.Continuous, 0, gpaScale)
	am.gpaVarMin = m.AddVar("gpa_variance_min", milp.Continuous, 0, gpaScale*gpaScale)
	am.gpaVarMax = m.AddVar("gpa_variance_max", milp.Continuous, 0, gpaScale*gpaScale)
	for _, d := range core.Dimensions {
		cats := r.Categories(d)
		am.shortfall[d] = make([][]int, len(cats))
		for k, c := range cats {
			am.shortfall[d][k] = make([]int, groups)
			for g := 1; g <= groups; g++ {
				name := fmt.Sprintf("shortfall_%s_%d_%d", d, k, g)
				am.shortfall[d][k][g-1] = m.AddVar(name, milp.Continuous, 0, float64(c.Count))
			}
		}
	}

	// Every student in exactly one group.
	for s := 0; s < n; s++ {
		terms := make([]milp.Term, groups)
		for g := 1; g <= groups; g++ {
			terms[g-1] = milp.Term{Var: am.assign[s][g-1], Coef: 1}
		}
		m.AddConstraint(fmt.Sprintf("single_%d", s), terms, milp.Equal, 1)
	}

	for g := 1; g <= groups; g++ {
		size := float64(p.Size(g))
		members := make([]milp.Term, n)
		gpa := make([]milp.Term, n, n+1)
		dev := make([]milp.Term, n, n+1)
		for s := 0; s < n; s++ {
			x := am.assign[s][g-1]
			members[s] = milp.Term{Var: x, Coef: 1}
			gpa[s] = milp.Term{Var: x, Coef: r.Student(s).GPA}
			dev[s] = milp.Term{Var: x, Coef: r.SquaredDeviation(s)}
		}
		m.AddConstraint(fmt.Sprintf("size_%d", g), members, milp.Equal, size)

		// size * gpa_min <= sum gpa * x <= size * gpa_max
		m.AddConstraint(fmt.Sprintf("gpa_min_%d", g), withTerm(gpa, am.gpaMin, -size), milp.GreaterEqual, 0)
		m.AddConstraint(fmt.Sprintf("gpa_max_%d", g), withTerm(gpa, am.gpaMax, -size), milp.LessEqual, 0)
		m.AddConstraint(fmt.Sprintf("gpa_variance_min_%d", g), withTerm(dev, am.gpaVarMin, -size), milp.GreaterEqual, 0)
		m.AddConstraint(fmt.Sprintf("gpa_variance_max_%d", g), withTerm(dev, am.gpaVarMax, -size), milp.LessEqual, 0)
	}

	// Soft fairness floors: sum_{s in k} x[s,g] + shortfall[k,g] >= threshold[k].
	for _, d := range core.Dimensions {
		for k := range r.Categories(d) {
			for g := 1; g <= groups; g++ {
				var terms []milp.Term
				for s := 0; s < n; s++ {
					if r.Student(s).Category(d) == k {
						terms = append(terms, milp.Term{Var: am.assign[s][g-1], Coef: 1})
					}
				}
				terms = append(terms, milp.Term{Var: am.shortfall[d][k][g-1], Coef: 1})
				m.AddConstraint(fmt.Sprintf("min_%s_%d_%d", d, k, g), terms, milp.GreaterEqual, float64(t.Min(d, k)))
			}
		}
	}

	objective := []milp.Term{
		{Var: am.gpaMax, Coef: w.Mean},
		{Var: am.gpaMin, Coef: -w.Mean},
		{Var: am.gpaVarMax, Coef: w.Variance},
		{Var: am.gpaVarMin, Coef: -w.Variance},
	}
	for _, d := range core.Dimensions {
		coef := ShortfallPenalty * dimensionWeight(w, d)
		for _, byGroup := range am.shortfall[d] {
			for _, v := range byGroup {
				objective = append(objective, milp.Term{Var: v, Coef: coef})
			}
		}
	}
	m.AddObjective(objective...)
	return am
}

func withTerm(terms []milp.Term, v int, coef float64) []milp.Term {
	return append(terms, milp.Term{Var: v, Coef: coef})
}

func dimensionWeight(w v1alpha1.Weights, d core.Dimension) float64 {
	switch d {
	case core.Gender:
		return w.Gender
	case core.Specialisation:
		return w.Specialisation
	case core.Ethnicity:
		return w.Ethnicity
	default:
		return 0
	}
}
