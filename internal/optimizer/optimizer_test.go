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
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
	"github.com/llm-d/llm-d-group-allocator/internal/metrics"
	"github.com/llm-d/llm-d-group-allocator/pkg/core"
	"github.com/llm-d/llm-d-group-allocator/pkg/solver"
)

func expectEveryStudentOnce(res *v1alpha1.AllocationResult, records []v1alpha1.StudentRecord) {
	seen := map[string]int{}
	total := 0
	for _, g := range res.GroupIDs() {
		for _, id := range res.Members(g) {
			seen[id]++
			total++
			Expect(res.Assignment[id]).To(Equal(g))
		}
	}
	Expect(total).To(Equal(len(records)))
	for _, r := range records {
		Expect(seen[r.ID]).To(Equal(1), "student %s", r.ID)
	}
}

var _ = Describe("Optimizer", func() {
	var embedded solver.Solver

	BeforeEach(func() {
		var err error
		embedded, err = solver.NewSolver(solver.BackendEmbedded, solver.Options{})
		Expect(err).NotTo(HaveOccurred())
	})

	Context("with the embedded back-end", func() {
		It("should find the unique optimum of a small roster", func() {
			records := fourStudents()
			opt := NewOptimizer(embedded, WithRunIDGenerator(func() string { return "run-1" }))
			res, err := opt.Optimize(testCtx, records, defaultParams(2))
			Expect(err).NotTo(HaveOccurred())

			Expect(res.RunID).To(Equal("run-1"))
			Expect(res.Assignment["s1"]).To(Equal(res.Assignment["s2"]))
			Expect(res.Assignment["s3"]).To(Equal(res.Assignment["s4"]))
			Expect(res.Assignment["s1"]).NotTo(Equal(res.Assignment["s3"]))
			expectEveryStudentOnce(res, records)

			q := res.Quality
			Expect(q.SolverStatus).To(Equal(v1alpha1.SolverStatusOptimal))
			Expect(q.Optimal).To(BeTrue())
			Expect(q.Backend).To(Equal("embedded"))
			Expect(q.GPASpread).To(BeNumerically("~", 4, 1e-9))
			Expect(q.GPAVarianceSpread).To(BeNumerically("~", 0, 1e-9))
			Expect(q.TotalGenderShortfall + q.TotalEthnicityShortfall + q.TotalSpecialisationShortfall).To(BeZero())
			Expect(q.Objective).To(BeNumerically("~", 4, 1e-9))
		})

		It("should reach zero spread when every GPA is the same", func() {
			records := []v1alpha1.StudentRecord{
				rec("a", "7", "F", "Civil", "NZ"),
				rec("b", "7", "F", "Civil", "NZ"),
				rec("c", "7", "F", "Civil", "NZ"),
				rec("d", "7", "M", "Civil", "NZ"),
				rec("e", "7", "M", "Civil", "NZ"),
				rec("f", "7", "M", "Civil", "NZ"),
			}
			res, err := NewOptimizer(embedded).Optimize(testCtx, records, defaultParams(2))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.RunID).NotTo(BeEmpty())
			Expect(res.Quality.GPASpread).To(BeNumerically("~", 0, 1e-9))
			Expect(res.Quality.GPAVarianceSpread).To(BeNumerically("~", 0, 1e-9))
			Expect(res.Quality.TotalGenderShortfall).To(BeZero())
			Expect(res.Quality.TotalSpecialisationShortfall).To(BeZero())
			for _, g := range res.GroupIDs() {
				Expect(res.PerGroupStats[g].Size).To(Equal(3))
				Expect(res.PerGroupStats[g].FemaleCount).To(BeNumerically(">=", 1))
				Expect(res.PerGroupStats[g].MaleCount).To(BeNumerically(">=", 1))
			}
			expectEveryStudentOnce(res, records)
		})

		It("should handle uneven group sizes", func() {
			records := append(fourStudents(), rec("s5", "5", "F", "Software", "A"))
			res, err := NewOptimizer(embedded).Optimize(testCtx, records, defaultParams(2))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Class.SmallSize).To(Equal(2))
			Expect(res.Class.SmallGroups).To(Equal(1))
			Expect(res.Class.LargeGroups).To(Equal(1))
			Expect(res.PerGroupStats[1].Size).To(Equal(2))
			Expect(res.PerGroupStats[2].Size).To(Equal(3))
			Expect(res.Quality.GPASpread).To(BeNumerically(">=", 0))
			expectEveryStudentOnce(res, records)
		})

		It("should spread three women over two groups of five", func() {
			records := tenStudents()
			res, err := NewOptimizer(embedded).Optimize(testCtx, records, defaultParams(2))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Quality.SolverStatus).To(Equal(v1alpha1.SolverStatusOptimal))
			Expect(res.Class.GenderThresholds).To(Equal(map[string]int{"F": 1, "M": 3}))
			Expect(res.Quality.TotalGenderShortfall).To(BeZero())
			Expect(res.Quality.TotalSpecialisationShortfall).To(BeZero())
			Expect(res.Quality.TotalEthnicityShortfall).To(BeZero())
			for _, g := range res.GroupIDs() {
				Expect(res.PerGroupStats[g].Size).To(Equal(5))
				Expect(res.PerGroupStats[g].FemaleCount).To(BeNumerically(">=", 1))
				Expect(res.PerGroupStats[g].MaleCount).To(BeNumerically(">=", 3))
			}
			expectEveryStudentOnce(res, records)
		})

		It("should return within the time limit on a wide roster", func() {
			params := defaultParams(3)
			params.TimeLimit = 2 * time.Second
			start := time.Now()
			res, err := NewOptimizer(embedded).Optimize(testCtx, fourteenStudents(), params)
			Expect(time.Since(start)).To(BeNumerically("<", params.TimeLimit+3*time.Second))
			if err != nil {
				Expect(errors.Is(err, solver.ErrNoIncumbent)).To(BeTrue(), err.Error())
				return
			}
			Expect(res.Quality.SolverStatus).To(BeElementOf(v1alpha1.SolverStatusOptimal, v1alpha1.SolverStatusTimedOut))
			expectEveryStudentOnce(res, fourteenStudents())
		})

		It("should stop when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(testCtx)
			cancel()
			_, err := NewOptimizer(embedded).Optimize(ctx, fourteenStudents(), defaultParams(3))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})

		It("should put everyone in one group", func() {
			res, err := NewOptimizer(embedded).Optimize(testCtx, fourStudents(), defaultParams(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.PerGroupStats).To(HaveLen(1))
			Expect(res.PerGroupStats[1].Size).To(Equal(4))
			Expect(res.Quality.GPASpread).To(BeNumerically("~", 0, 1e-12))
		})
	})

	Context("with a scripted solver", func() {
		It("should accept a timed-out incumbent and flag it", func() {
			// 3 F / 7 M: at least one woman and three men per group.
			fake := &fakeSolver{status: solver.StatusTimedOut, groupOf: map[int]int{
				0: 1, 3: 1, 4: 1, 5: 1, 1: 1,
				2: 2, 6: 2, 7: 2, 8: 2, 9: 2,
			}}
			res, err := NewOptimizer(fake).Optimize(testCtx, tenStudents(), defaultParams(2))
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.calls).To(Equal(1))
			Expect(res.Quality.SolverStatus).To(Equal(v1alpha1.SolverStatusTimedOut))
			Expect(res.Quality.Optimal).To(BeFalse())
			Expect(res.Quality.Backend).To(Equal("fake"))
			Expect(res.Quality.SolveSeconds).To(Equal(1.5))
			Expect(res.Quality.TotalGenderShortfall).To(BeZero())
			Expect(res.Class.GenderThresholds).To(Equal(map[string]int{"F": 1, "M": 3}))
		})

		It("should treat an infeasible report as a consistency fault", func() {
			fake := &fakeSolver{status: solver.StatusInfeasible}
			res, err := NewOptimizer(fake).Optimize(testCtx, fourStudents(), defaultParams(2))
			Expect(res).To(BeNil())
			var mce *ModelConsistencyError
			Expect(errors.As(err, &mce)).To(BeTrue())
		})

		It("should propagate solver errors without a result", func() {
			fake := &fakeSolver{err: &solver.SolverError{Backend: "fake", Err: solver.ErrNoIncumbent}}
			res, err := NewOptimizer(fake).Optimize(testCtx, fourStudents(), defaultParams(2))
			Expect(res).To(BeNil())
			Expect(errors.Is(err, solver.ErrNoIncumbent)).To(BeTrue())
		})
	})

	Context("with invalid input", func() {
		var fake *fakeSolver

		BeforeEach(func() {
			fake = &fakeSolver{status: solver.StatusOptimal}
		})

		DescribeTable("should fail validation before solving",
			func(records []v1alpha1.StudentRecord, params Params) {
				_, err := NewOptimizer(fake).Optimize(testCtx, records, params)
				var verr *core.ValidationError
				Expect(errors.As(err, &verr)).To(BeTrue())
				Expect(fake.calls).To(BeZero())
			},
			Entry("empty roster", []v1alpha1.StudentRecord{}, defaultParams(1)),
			Entry("too many groups", fourStudents(), defaultParams(5)),
			Entry("no groups", fourStudents(), defaultParams(0)),
			Entry("non-numeric GPA", []v1alpha1.StudentRecord{rec("x", "high", "F", "Civil", "A")}, defaultParams(1)),
			Entry("negative weight", fourStudents(), Params{GroupCount: 2, Weights: v1alpha1.Weights{Mean: -1}}),
			Entry("infinite weight", fourStudents(), Params{GroupCount: 2, Weights: v1alpha1.Weights{Gender: math.Inf(1), Mean: 1}}),
			Entry("NaN weight", fourStudents(), Params{GroupCount: 2, Weights: v1alpha1.Weights{Variance: math.NaN()}}),
		)
	})

	Context("with a metrics recorder", func() {
		It("should record the model, the solve and the result", func() {
			reg := prometheus.NewRegistry()
			recorder, err := metrics.NewRecorder(reg)
			Expect(err).NotTo(HaveOccurred())

			_, err = NewOptimizer(embedded, WithRecorder(recorder)).Optimize(testCtx, fourStudents(), defaultParams(2))
			Expect(err).NotTo(HaveOccurred())

			text, err := metrics.Encode(reg)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(text)).To(ContainSubstring(`group_allocator_solves_total{backend="embedded",status="Optimal"} 1`))
			Expect(string(text)).To(ContainSubstring("group_allocator_model_variables 22"))
			Expect(string(text)).To(ContainSubstring("group_allocator_gpa_spread 4"))
		})

		It("should count failed solves", func() {
			reg := prometheus.NewRegistry()
			recorder, err := metrics.NewRecorder(reg)
			Expect(err).NotTo(HaveOccurred())

			fake := &fakeSolver{err: errors.New("boom")}
			_, err = NewOptimizer(fake, WithRecorder(recorder)).Optimize(testCtx, fourStudents(), defaultParams(2))
			Expect(err).To(HaveOccurred())

			text, err := metrics.Encode(reg)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(text)).To(ContainSubstring(`group_allocator_solves_total{backend="fake",status="Error"} 1`))
		})
	})

	It("should default the GPA scale", func() {
		params := Params{GroupCount: 2, TimeLimit: time.Second, Weights: v1alpha1.DefaultWeights()}
		prep, err := Prepare(fourStudents(), params)
		Expect(err).NotTo(HaveOccurred())
		Expect(prep.Roster.GPAScale()).To(Equal(DefaultGPAScale))
	})
})
