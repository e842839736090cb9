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

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
)

// Dimension is one of the categorical attributes balanced across groups.
type Dimension int

const (
	Gender Dimension = iota
	Specialisation
	Ethnicity

	// NumDimensions is the number of categorical dimensions.
	NumDimensions = 3
)

// Dimensions lists every dimension in model order.
var Dimensions = [NumDimensions]Dimension{Gender, Specialisation, Ethnicity}

func (d Dimension) String() string {
	switch d {
	case Gender:
		return "gender"
	case Specialisation:
		return "specialisation"
	case Ethnicity:
		return "ethnicity"
	default:
		return "unknown"
	}
}

// Canonical gender keys recognised for the male/female report columns.
var (
	maleKeys   = map[string]bool{"m": true, "male": true}
	femaleKeys = map[string]bool{"f": true, "female": true}
)

// Category is a distinct value of one dimension.
type Category struct {
	Dimension Dimension
	// Index is the position of the value in order of first appearance.
	Index int
	// Key is the case-folded value used for every comparison.
	Key string
	// Label is the spelling of the first record carrying the value.
	Label string
	// Count is the number of students carrying the value.
	Count int
}

// IsMale reports whether a gender category denotes male students.
func (c Category) IsMale() bool { return c.Dimension == Gender && maleKeys[c.Key] }

// IsFemale reports whether a gender category denotes female students.
func (c Category) IsFemale() bool { return c.Dimension == Gender && femaleKeys[c.Key] }

// Student is a normalized roster entry. Category fields hold indexes into
// the roster's per-dimension category lists.
type Student struct {
	ID   string
	Name string
	GPA  float64

	categories [NumDimensions]int
}

// Category returns the index of the student's value in dimension d.
func (s Student) Category(d Dimension) int {
	return s.categories[d]
}

// Roster is the validated, immutable input of an allocation.
type Roster struct {
	students   []Student
	categories [NumDimensions][]Category
	meanGPA    float64
	variance   float64
	gpaScale   float64
}

// NewRoster validates records and canonicalizes their categories.
// Category values are matched case-insensitively and enumerated in order of
// first appearance. gpaScale is the top of the GPA scale; every GPA must lie
// in [0, gpaScale].
func NewRoster(records []v1alpha1.StudentRecord, gpaScale float64) (*Roster, error) {
	if len(records) == 0 {
		return nil, invalid("roster", "must contain at least one student")
	}
	if !(gpaScale > 0) || math.IsInf(gpaScale, 0) {
		return nil, invalid("gpa scale", "must be a positive number, got %v", gpaScale)
	}

	fold := cases.Fold()
	r := &Roster{
		students: make([]Student, 0, len(records)),
		gpaScale: gpaScale,
	}
	var lookup [NumDimensions]map[string]int
	for d := range lookup {
		lookup[d] = make(map[string]int)
	}
	seen := make(map[string]int, len(records))

	for i, rec := range records {
		row := i + 1
		id := strings.TrimSpace(rec.ID)
		if id == "" {
			return nil, invalidRecord(row, "id", "must not be empty")
		}
		if prev, dup := seen[id]; dup {
			return nil, invalidRecord(row, "id", "%q duplicates record %d", id, prev)
		}
		seen[id] = row

		gpa, err := strconv.ParseFloat(strings.TrimSpace(rec.GPA), 64)
		if err != nil || math.IsNaN(gpa) || math.IsInf(gpa, 0) {
			return nil, invalidRecord(row, "gpa", "%q is not numeric", rec.GPA)
		}
		if gpa < 0 || gpa > gpaScale {
			return nil, invalidRecord(row, "gpa", "%v is outside [0, %v]", gpa, gpaScale)
		}

		s := Student{ID: id, Name: strings.TrimSpace(rec.Name), GPA: gpa}
		values := [NumDimensions]string{rec.Gender, rec.Specialisation, rec.Ethnicity}
		for _, d := range Dimensions {
			label := strings.TrimSpace(values[d])
			if label == "" {
				return nil, invalidRecord(row, d.String(), "must not be empty")
			}
			key := fold.String(label)
			idx, ok := lookup[d][key]
			if !ok {
				idx = len(r.categories[d])
				lookup[d][key] = idx
				r.categories[d] = append(r.categories[d], Category{Dimension: d, Index: idx, Key: key, Label: label})
			}
			r.categories[d][idx].Count++
			s.categories[d] = idx
		}
		r.students = append(r.students, s)
	}

	var sum float64
	for _, s := range r.students {
		sum += s.GPA
	}
	r.meanGPA = sum / float64(len(r.students))
	for _, s := range r.students {
		dev := s.GPA - r.meanGPA
		r.variance += dev * dev
	}
	r.variance /= float64(len(r.students))
	return r, nil
}

// Len returns the number of students.
func (r *Roster) Len() int { return len(r.students) }

// Student returns the i-th student in roster order.
func (r *Roster) Student(i int) Student { return r.students[i] }

// Students returns a copy of the students in roster order.
func (r *Roster) Students() []Student {
	out := make([]Student, len(r.students))
	copy(out, r.students)
	return out
}

// Categories returns a copy of the distinct values of dimension d in order
// of first appearance.
func (r *Roster) Categories(d Dimension) []Category {
	out := make([]Category, len(r.categories[d]))
	copy(out, r.categories[d])
	return out
}

// Lookup finds the category of dimension d matching value case-insensitively.
func (r *Roster) Lookup(d Dimension, value string) (Category, bool) {
	key := cases.Fold().String(strings.TrimSpace(value))
	for _, c := range r.categories[d] {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}

// MeanGPA returns the whole-roster mean GPA.
func (r *Roster) MeanGPA() float64 { return r.meanGPA }

// GPAVariance returns the whole-roster population variance of GPA.
func (r *Roster) GPAVariance() float64 { return r.variance }

// GPAScale returns the top of the GPA scale the roster was validated against.
func (r *Roster) GPAScale() float64 { return r.gpaScale }

// SquaredDeviation returns (gpa - mean)^2 for the i-th student.
func (r *Roster) SquaredDeviation(i int) float64 {
	dev := r.students[i].GPA - r.meanGPA
	return dev * dev
}

// CountGender returns the number of male and female students.
func (r *Roster) CountGender() (males, females int) {
	for _, c := range r.categories[Gender] {
		switch {
		case c.IsMale():
			males += c.Count
		case c.IsFemale():
			females += c.Count
		}
	}
	return males, females
}
