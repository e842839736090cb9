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

// Partition splits N students into G groups whose sizes differ by at most one.
// Groups 1..SmallGroups take SmallSize members; the remaining LargeGroups
// groups take LargeSize = SmallSize+1 members.
type Partition struct {
	Students int
	Groups   int

	SmallSize   int // m1 = floor(N/G)
	LargeSize   int // m2 = m1 + 1
	SmallGroups int // j1 = G - j2
	LargeGroups int // j2 = N - m1*G
}

// NewPartition computes the size classes for n students and g groups.
func NewPartition(n, g int) (Partition, error) {
	if n < 1 {
		return Partition{}, invalid("roster", "must contain at least one student")
	}
	if g < 1 {
		return Partition{}, invalid("group count", "must be at least 1, got %d", g)
	}
	if g > n {
		return Partition{}, invalid("group count", "%d exceeds roster size %d", g, n)
	}
	m1 := n / g
	j2 := n - m1*g
	return Partition{
		Students:    n,
		Groups:      g,
		SmallSize:   m1,
		LargeSize:   m1 + 1,
		SmallGroups: g - j2,
		LargeGroups: j2,
	}, nil
}

// Size returns the target size of group (1-based).
func (p Partition) Size(group int) int {
	if group <= p.SmallGroups {
		return p.SmallSize
	}
	return p.LargeSize
}

// Sizes returns the target sizes of groups 1..G.
func (p Partition) Sizes() []int {
	sizes := make([]int, p.Groups)
	for g := range sizes {
		sizes[g] = p.Size(g + 1)
	}
	return sizes
}
