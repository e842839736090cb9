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
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
	"github.com/llm-d/llm-d-group-allocator/pkg/solver"
)

var _ = Describe("Extract", func() {
	var prep *Prepared

	BeforeEach(func() {
		prep = prepare(fourStudents(), 2)
	})

	extract := func(status solver.Status, values []float64) (*v1alpha1.AllocationResult, error) {
		sol := &solver.Solution{Status: status, Values: values, Runtime: 2 * time.Second}
		return Extract(prep.AllocationModel, sol, prep.Roster)
	}

	Context("with a balanced assignment", func() {
		var res *v1alpha1.AllocationResult

		BeforeEach(func() {
			var err error
			// {s1, s4} and {s2, s3}: equal means, unequal variance.
			res, err = extract(solver.StatusOptimal, assignmentValues(prep.AllocationModel, map[int]int{0: 1, 3: 1, 1: 2, 2: 2}, 1e-6))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should decode the assignment", func() {
			Expect(res.GroupCount).To(Equal(2))
			Expect(res.Assignment).To(Equal(map[string]int{"s1": 1, "s4": 1, "s2": 2, "s3": 2}))
			Expect(res.Members(1)).To(Equal([]string{"s1", "s4"}))
			Expect(res.Members(2)).To(Equal([]string{"s2", "s3"}))
			Expect(res.GroupIDs()).To(Equal([]int{1, 2}))
		})

		It("should recompute group statistics", func() {
			g1 := res.PerGroupStats[1]
			Expect(g1.Size).To(Equal(2))
			Expect(g1.TargetSize).To(Equal(2))
			Expect(g1.MeanGPA).To(BeNumerically("~", 5, 1e-12))
			Expect(g1.GPAVariance).To(BeNumerically("~", 9, 1e-12))
			Expect(g1.GPAInternalVariance).To(BeNumerically("~", 9, 1e-12))
			Expect(g1.FemaleCount).To(Equal(1))
			Expect(g1.MaleCount).To(Equal(1))
			Expect(g1.GenderCounts).To(Equal(map[string]int{"F": 1, "M": 1}))
			Expect(g1.SpecialisationCounts).To(Equal(map[string]int{"Civil": 2}))
			Expect(g1.EthnicityCounts).To(Equal(map[string]int{"A": 1, "B": 1}))
			Expect(g1.GenderShortfall).To(BeNil())
			Expect(g1.Members).To(Equal([]v1alpha1.Member{
				{ID: "s1", Name: "name-s1", Specialisation: "Civil"},
				{ID: "s4", Name: "name-s4", Specialisation: "Civil"},
			}))

			g2 := res.PerGroupStats[2]
			Expect(g2.GPAVariance).To(BeNumerically("~", 1, 1e-12))
			Expect(g2.GPAInternalVariance).To(BeNumerically("~", 1, 1e-12))
		})

		It("should summarise solution quality", func() {
			q := res.Quality
			Expect(q.GPASpread).To(BeNumerically("~", 0, 1e-12))
			Expect(q.GPAVarianceSpread).To(BeNumerically("~", 8, 1e-12))
			Expect(q.TotalGenderShortfall).To(Equal(0))
			Expect(q.TotalSpecialisationShortfall).To(Equal(0))
			Expect(q.TotalEthnicityShortfall).To(Equal(0))
			Expect(q.SolverStatus).To(Equal(v1alpha1.SolverStatusOptimal))
			Expect(q.Optimal).To(BeTrue())
			Expect(q.Objective).To(BeNumerically("~", 8, 1e-9))
			Expect(q.SolveSeconds).To(Equal(2.0))
		})

		It("should describe the class", func() {
			c := res.Class
			Expect(c.Students).To(Equal(4))
			Expect(c.Females).To(Equal(2))
			Expect(c.Males).To(Equal(2))
			Expect(c.MeanGPA).To(BeNumerically("~", 5, 1e-12))
			Expect(c.GPAVariance).To(BeNumerically("~", 5, 1e-12))
			Expect(c.SmallSize).To(Equal(2))
			Expect(c.SmallGroups).To(Equal(2))
			Expect(c.LargeGroups).To(Equal(0))
			Expect(c.GenderThresholds).To(Equal(map[string]int{"F": 1, "M": 1}))
			Expect(c.SpecialisationThresholds).To(Equal(map[string]int{"Civil": 2}))
			Expect(c.EthnicityCounts).To(Equal(map[string]int{"A": 2, "B": 2}))
		})
	})

	Context("with an unbalanced assignment", func() {
		It("should report shortfall per category and group", func() {
			// Both women with ethnicity A in group 1.
			res, err := extract(solver.StatusTimedOut, assignmentValues(prep.AllocationModel, map[int]int{0: 1, 2: 1, 1: 2, 3: 2}, 0))
			Expect(err).NotTo(HaveOccurred())

			Expect(res.PerGroupStats[1].GenderShortfall).To(Equal(map[string]int{"M": 1}))
			Expect(res.PerGroupStats[2].GenderShortfall).To(Equal(map[string]int{"F": 1}))
			Expect(res.PerGroupStats[1].EthnicityShortfall).To(Equal(map[string]int{"B": 1}))
			Expect(res.Quality.TotalGenderShortfall).To(Equal(2))
			Expect(res.Quality.TotalEthnicityShortfall).To(Equal(2))
			Expect(res.Quality.TotalSpecialisationShortfall).To(Equal(0))
			Expect(res.Quality.SolverStatus).To(Equal(v1alpha1.SolverStatusTimedOut))
			Expect(res.Quality.Optimal).To(BeFalse())
			// means 4 and 6, variance 5 and 5
			Expect(res.Quality.Objective).To(BeNumerically("~", 2+4*ShortfallPenalty, 1e-6))
		})
	})

	Context("with an inconsistent solution", func() {
		expectInconsistent := func(res *v1alpha1.AllocationResult, err error) {
			Expect(res).To(BeNil())
			var mce *ModelConsistencyError
			Expect(errors.As(err, &mce)).To(BeTrue())
		}

		It("should reject a student placed twice", func() {
			values := assignmentValues(prep.AllocationModel, map[int]int{0: 1, 3: 1, 1: 2, 2: 2}, 0)
			values[prep.AssignVar(0, 2)] = 1
			expectInconsistent(extract(solver.StatusOptimal, values))
		})

		It("should reject an unassigned student", func() {
			values := assignmentValues(prep.AllocationModel, map[int]int{0: 1, 3: 1, 1: 2, 2: 2}, 0)
			values[prep.AssignVar(2, 2)] = 0.5
			expectInconsistent(extract(solver.StatusOptimal, values))
		})

		It("should reject a group off its target size", func() {
			expectInconsistent(extract(solver.StatusOptimal, assignmentValues(prep.AllocationModel, map[int]int{0: 1, 1: 1, 2: 1, 3: 2}, 0)))
		})

		It("should reject an infeasible status", func() {
			expectInconsistent(extract(solver.StatusInfeasible, nil))
		})

		It("should reject a truncated value vector", func() {
			expectInconsistent(extract(solver.StatusOptimal, []float64{1, 0, 1}))
		})

		It("should reject a missing solution", func() {
			expectInconsistent(Extract(prep.AllocationModel, nil, prep.Roster))
		})
	})
})
