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

// Thresholds holds, per dimension and category index, the minimum number of
// members every group should contain: floor(count_in_roster / G).
// Dimensions are independent; thresholds are never summed across them.
type Thresholds [NumDimensions][]int

// ComputeThresholds derives the per-group minimum for every category value
// of the roster.
func ComputeThresholds(r *Roster, groups int) Thresholds {
	var t Thresholds
	for _, d := range Dimensions {
		cats := r.categories[d]
		t[d] = make([]int, len(cats))
		if groups < 1 {
			continue
		}
		for k, c := range cats {
			t[d][k] = c.Count / groups
		}
	}
	return t
}

// Min returns the threshold of category k in dimension d.
func (t Thresholds) Min(d Dimension, k int) int {
	return t[d][k]
}

// Shortfall returns how far count falls below the threshold of category k.
func (t Thresholds) Shortfall(d Dimension, k, count int) int {
	if missing := t[d][k] - count; missing > 0 {
		return missing
	}
	return 0
}
