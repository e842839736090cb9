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

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
)

// eightStudents is a roster with two women, two specialisations and three
// ethnicities, small enough for the embedded back-end.
const eightStudents = `id,name,gpa,gender,specialisation,ethnicity
u01,Aroha,8.0,F,Civil,Maori
u02,Ben,3.5,M,Civil,European
u03,Chen,6.0,M,Software,Asian
u04,Dev,5.0,M,Software,Asian
u05,Ella,7.0,F,Software,European
u06,Finn,4.0,M,Civil,Maori
u07,Gus,6.5,M,Civil,European
u08,Hamish,2.5,M,Software,European
`

// allocate runs "allocator solve" and decodes the JSON result.
func allocate(roster string, args ...string) (*v1alpha1.AllocationResult, string) {
	dir := GinkgoT().TempDir()
	path := filepath.Join(dir, "roster.csv")
	Expect(os.WriteFile(path, []byte(roster), 0o600)).To(Succeed())
	out := filepath.Join(dir, "result.json")

	cmdArgs := append([]string{"solve", path, "-o", "json", "--output", out}, args...)
	cmd := exec.Command(allocatorBin, cmdArgs...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	ExpectWithOffset(1, cmd.Run()).To(Succeed(), "allocator failed: %s", stderr.String())

	data, err := os.ReadFile(out)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	var res v1alpha1.AllocationResult
	ExpectWithOffset(1, json.Unmarshal(data, &res)).To(Succeed())
	return &res, stderr.String()
}

func expectValidAllocation(res *v1alpha1.AllocationResult, ids []string, groups int) {
	ExpectWithOffset(1, res.Assignment).To(HaveLen(len(ids)))
	sizes := map[int]int{}
	for _, id := range ids {
		g, ok := res.Assignment[id]
		ExpectWithOffset(1, ok).To(BeTrue(), "student %s unassigned", id)
		ExpectWithOffset(1, g).To(BeNumerically(">=", 1))
		ExpectWithOffset(1, g).To(BeNumerically("<=", groups))
		sizes[g]++
	}
	for g, n := range sizes {
		ExpectWithOffset(1, res.PerGroupStats[g].Size).To(Equal(n))
		ExpectWithOffset(1, res.PerGroupStats[g].TargetSize).To(Equal(n))
	}
}

func rosterIDs(roster string) []string {
	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(roster), "\n")[1:] {
		ids = append(ids, strings.SplitN(line, ",", 2)[0])
	}
	return ids
}

var _ = Describe("allocator solve", Ordered, func() {
	var embedded *v1alpha1.AllocationResult

	It("should allocate with the embedded back-end", func() {
		var logs string
		embedded, logs = allocate(eightStudents, "-g", "2", "--solver", "embedded", "--time-limit", "30")
		expectValidAllocation(embedded, rosterIDs(eightStudents), 2)

		Expect(embedded.Quality.Backend).To(Equal("embedded"))
		Expect(embedded.Quality.SolverStatus).To(BeElementOf(v1alpha1.SolverStatusOptimal, v1alpha1.SolverStatusTimedOut))
		Expect(embedded.Class.Students).To(Equal(8))
		Expect(embedded.Class.Females).To(Equal(2))
		for g := 1; g <= 2; g++ {
			Expect(embedded.PerGroupStats[g].Members).To(HaveLen(4))
			if embedded.Quality.Optimal {
				Expect(embedded.PerGroupStats[g].FemaleCount).To(Equal(1), "group %d", g)
			}
		}
		Expect(logs).To(ContainSubstring("Biggest difference in mean GPA"))
	})

	It("should agree with CBC on the objective", func() {
		if _, err := exec.LookPath(cbcPath); err != nil {
			Skip(fmt.Sprintf("CBC not available at %q", cbcPath))
		}
		if embedded == nil || !embedded.Quality.Optimal {
			Skip("embedded run did not prove optimality")
		}
		cbc, _ := allocate(eightStudents, "-g", "2", "--solver", "cbc", "--cbc-path", cbcPath)
		expectValidAllocation(cbc, rosterIDs(eightStudents), 2)
		Expect(cbc.Quality.Backend).To(Equal("cbc"))
		Expect(cbc.Quality.Objective).To(BeNumerically("~", embedded.Quality.Objective, 1e-6))
	})

	It("should apply a profile from the configuration file", func() {
		dir := GinkgoT().TempDir()
		cfg := filepath.Join(dir, "allocator.yaml")
		data, err := yaml.Marshal(map[string]any{
			"solver": map[string]any{"backend": "embedded"},
			"profiles": map[string]any{
				"pairs": map[string]any{"group_count": 4, "time_limit": 30},
			},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(cfg, data, 0o600)).To(Succeed())

		res, _ := allocate(eightStudents, "--config", cfg, "--profile", "pairs")
		Expect(res.GroupCount).To(Equal(4))
		expectValidAllocation(res, rosterIDs(eightStudents), 4)
	})
})

var _ = Describe("allocator model", func() {
	It("should export a deterministic model", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "roster.csv")
		Expect(os.WriteFile(path, []byte(eightStudents), 0o600)).To(Succeed())

		export := func(out string) string {
			cmd := exec.Command(allocatorBin, "model", path, "-g", "2", "--output", out)
			var stderr bytes.Buffer
			cmd.Stderr = &stderr
			Expect(cmd.Run()).To(Succeed(), stderr.String())
			for _, line := range strings.Split(stderr.String(), "\n") {
				if strings.HasPrefix(line, "sha256:") {
					return line
				}
			}
			Fail("no digest printed")
			return ""
		}

		first := export(filepath.Join(dir, "a.lp"))
		second := export(filepath.Join(dir, "b.lp"))
		Expect(first).To(Equal(second))

		a, err := os.ReadFile(filepath.Join(dir, "a.lp"))
		Expect(err).NotTo(HaveOccurred())
		b, err := os.ReadFile(filepath.Join(dir, "b.lp"))
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(b))
		Expect(string(a)).To(ContainSubstring("Subject To"))
		Expect(string(a)).NotTo(ContainSubstring("u01"))
	})
})
