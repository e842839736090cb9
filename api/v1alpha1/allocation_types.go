// Package v1alpha1 holds the data contract between the allocator core, the
// roster sources that feed it, and the reporting sinks that consume its result.
package v1alpha1

// StudentRecord is one raw roster entry as read from a roster source.
// GPA is kept as text so that non-numeric values can be rejected during
// normalization instead of failing deep inside a decoder.
type StudentRecord struct {
	// ID uniquely identifies the student within the roster.
	ID string `json:"id" yaml:"id" csv:"id"`

	// Name is the display name.
	Name string `json:"name" yaml:"name" csv:"name"`

	// GPA is the grade point average, on a scale from 0 to the configured GPA scale.
	GPA string `json:"gpa" yaml:"gpa" csv:"gpa"`

	// Gender is matched case-insensitively ("F" and "f" are the same value).
	Gender string `json:"gender" yaml:"gender" csv:"gender"`

	// Specialisation is matched case-insensitively.
	Specialisation string `json:"specialisation" yaml:"specialisation" csv:"specialisation"`

	// Ethnicity is matched case-insensitively.
	Ethnicity string `json:"ethnicity" yaml:"ethnicity" csv:"ethnicity"`
}

// Weights scales the terms of the allocation objective. All default to 1.
type Weights struct {
	// Mean weights the spread of per-group mean GPA.
	Mean float64 `json:"mean" yaml:"mean" mapstructure:"mean"`

	// Variance weights the spread of per-group GPA variance.
	Variance float64 `json:"variance" yaml:"variance" mapstructure:"variance"`

	// Specialisation weights the total specialisation shortfall.
	Specialisation float64 `json:"specialisation" yaml:"specialisation" mapstructure:"specialisation"`

	// Gender weights the total gender shortfall.
	Gender float64 `json:"gender" yaml:"gender" mapstructure:"gender"`

	// Ethnicity weights the total ethnicity shortfall.
	Ethnicity float64 `json:"ethnicity" yaml:"ethnicity" mapstructure:"ethnicity"`
}

// DefaultWeights returns the unit weights.
func DefaultWeights() Weights {
	return Weights{Mean: 1, Variance: 1, Specialisation: 1, Gender: 1, Ethnicity: 1}
}

// AllocationResult is everything the core hands to a reporting sink.
// Callers must check Quality.SolverStatus before trusting spread and
// shortfall metrics.
type AllocationResult struct {
	// RunID identifies this allocation run in logs and metrics.
	RunID string `json:"runID" yaml:"runID"`

	// GroupCount is the number of groups the roster was split into.
	GroupCount int `json:"groupCount" yaml:"groupCount"`

	// Assignment maps student ID to group ID (1..GroupCount).
	Assignment map[string]int `json:"assignment" yaml:"assignment"`

	// PerGroupStats maps group ID to the statistics of that group.
	PerGroupStats map[int]GroupStats `json:"perGroupStats" yaml:"perGroupStats"`

	// Quality summarises the fairness of the accepted solution.
	Quality SolutionQuality `json:"solutionQuality" yaml:"solutionQuality"`

	// Class describes the whole roster.
	Class ClassSummary `json:"class" yaml:"class"`
}

// GroupStats are recomputed from the decoded assignment, never read off solver variables.
type GroupStats struct {
	// Size is the number of members assigned to the group.
	Size int `json:"size" yaml:"size"`

	// TargetSize is the size class the group was built for.
	TargetSize int `json:"targetSize" yaml:"targetSize"`

	// MeanGPA is the average GPA of the members.
	MeanGPA float64 `json:"meanGPA" yaml:"meanGPA"`

	// GPAVariance is the mean squared deviation of member GPAs from the
	// whole-roster mean. This is the quantity the objective balances.
	GPAVariance float64 `json:"gpaVariance" yaml:"gpaVariance"`

	// GPAInternalVariance is the mean squared deviation of member GPAs from
	// the group's own mean. Reporting only.
	GPAInternalVariance float64 `json:"gpaInternalVariance" yaml:"gpaInternalVariance"`

	MaleCount   int `json:"maleCount" yaml:"maleCount"`
	FemaleCount int `json:"femaleCount" yaml:"femaleCount"`

	// Per-value member counts keyed by the category label.
	GenderCounts         map[string]int `json:"genderCounts" yaml:"genderCounts"`
	SpecialisationCounts map[string]int `json:"specialisationCounts" yaml:"specialisationCounts"`
	EthnicityCounts      map[string]int `json:"ethnicityCounts" yaml:"ethnicityCounts"`

	// Per-value shortfall below the fairness threshold, keyed by category label.
	// Values that meet their threshold are omitted.
	GenderShortfall         map[string]int `json:"genderShortfall,omitempty" yaml:"genderShortfall,omitempty"`
	SpecialisationShortfall map[string]int `json:"specialisationShortfall,omitempty" yaml:"specialisationShortfall,omitempty"`
	EthnicityShortfall      map[string]int `json:"ethnicityShortfall,omitempty" yaml:"ethnicityShortfall,omitempty"`

	// Members lists the group in roster order.
	Members []Member `json:"members" yaml:"members"`
}

// Member is the group-list entry for one student.
type Member struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	Specialisation string `json:"specialisation" yaml:"specialisation"`
}

// Solver status values reported in SolutionQuality.SolverStatus.
const (
	SolverStatusOptimal  = "Optimal"
	SolverStatusTimedOut = "TimedOut"
)

// SolutionQuality summarises how fair the accepted assignment is.
type SolutionQuality struct {
	// GPASpread is the largest minus the smallest per-group mean GPA.
	GPASpread float64 `json:"gpaSpread" yaml:"gpaSpread"`

	// GPAVarianceSpread is the largest minus the smallest per-group GPA variance.
	GPAVarianceSpread float64 `json:"gpaVarianceSpread" yaml:"gpaVarianceSpread"`

	TotalSpecialisationShortfall int `json:"totalSpecialisationShortfall" yaml:"totalSpecialisationShortfall"`
	TotalGenderShortfall         int `json:"totalGenderShortfall" yaml:"totalGenderShortfall"`
	TotalEthnicityShortfall      int `json:"totalEthnicityShortfall" yaml:"totalEthnicityShortfall"`

	// SolverStatus is SolverStatusOptimal or SolverStatusTimedOut.
	SolverStatus string `json:"solverStatus" yaml:"solverStatus"`

	// Optimal is false when the solver stopped on its time budget with an incumbent.
	Optimal bool `json:"optimal" yaml:"optimal"`

	// Objective is the model objective evaluated at the accepted assignment.
	Objective float64 `json:"objective" yaml:"objective"`

	// Backend names the solver back-end that produced the assignment.
	Backend string `json:"backend" yaml:"backend"`

	// SolveSeconds is the wall-clock time spent in the solver.
	SolveSeconds float64 `json:"solveSeconds" yaml:"solveSeconds"`
}

// ClassSummary describes the whole roster and the thresholds derived from it.
type ClassSummary struct {
	Students    int     `json:"students" yaml:"students"`
	Females     int     `json:"females" yaml:"females"`
	Males       int     `json:"males" yaml:"males"`
	MeanGPA     float64 `json:"meanGPA" yaml:"meanGPA"`
	GPAVariance float64 `json:"gpaVariance" yaml:"gpaVariance"`

	// Group sizes: SmallGroups groups of SmallSize, LargeGroups groups of SmallSize+1.
	SmallSize   int `json:"smallSize" yaml:"smallSize"`
	SmallGroups int `json:"smallGroups" yaml:"smallGroups"`
	LargeGroups int `json:"largeGroups" yaml:"largeGroups"`

	GenderCounts         map[string]int `json:"genderCounts" yaml:"genderCounts"`
	SpecialisationCounts map[string]int `json:"specialisationCounts" yaml:"specialisationCounts"`
	EthnicityCounts      map[string]int `json:"ethnicityCounts" yaml:"ethnicityCounts"`

	// Minimum per-group counts keyed by category label.
	GenderThresholds         map[string]int `json:"genderThresholds" yaml:"genderThresholds"`
	SpecialisationThresholds map[string]int `json:"specialisationThresholds" yaml:"specialisationThresholds"`
	EthnicityThresholds      map[string]int `json:"ethnicityThresholds" yaml:"ethnicityThresholds"`
}

// GroupIDs returns the group IDs of PerGroupStats in ascending order.
func (r *AllocationResult) GroupIDs() []int {
	ids := make([]int, 0, len(r.PerGroupStats))
	for g := 1; g <= r.GroupCount; g++ {
		if _, ok := r.PerGroupStats[g]; ok {
			ids = append(ids, g)
		}
	}
	return ids
}

// Members returns the student IDs assigned to group g, in roster order.
func (r *AllocationResult) Members(g int) []string {
	stats, ok := r.PerGroupStats[g]
	if !ok {
		return nil
	}
	ids := make([]string, len(stats.Members))
	for i, m := range stats.Members {
		ids[i] = m.ID
	}
	return ids
}
