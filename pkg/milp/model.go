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

// Package milp is a solver-independent representation of a mixed-integer
// linear program: bounded variables, linear constraints and a linear
// objective to minimize.
//
// Models are built append-only. Two models built by the same sequence of
// calls are identical, down to their Digest, which lets callers verify that
// model construction is deterministic.
package milp

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// VarKind distinguishes continuous from integer variables.
type VarKind int

const (
	Continuous VarKind = iota
	Binary
	Integer
)

func (k VarKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Binary:
		return "binary"
	case Integer:
		return "integer"
	default:
		return "unknown"
	}
}

// Sense is the relation of a constraint's left-hand side to its right-hand side.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	case Equal:
		return "="
	default:
		return "?"
	}
}

// Var is a decision variable.
type Var struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
}

// IsInteger reports whether the variable must take an integral value.
func (v Var) IsInteger() bool { return v.Kind == Binary || v.Kind == Integer }

// Term is coefficient * variable.
type Term struct {
	Var  int
	Coef float64
}

// Constraint is sum(Terms) Sense RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Model is a minimization problem.
type Model struct {
	Name        string
	Vars        []Var
	Constraints []Constraint
	Objective   []Term

	names map[string]int
}

// NewModel creates an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name, names: make(map[string]int)}
}

// AddVar appends a variable and returns its index. Binary variables always
// get bounds [0, 1]. Names must be unique.
func (m *Model) AddVar(name string, kind VarKind, lower, upper float64) int {
	if _, dup := m.names[name]; dup {
		panic(fmt.Sprintf("milp: duplicate variable name %q", name))
	}
	if kind == Binary {
		lower, upper = 0, 1
	}
	m.Vars = append(m.Vars, Var{Name: name, Kind: kind, Lower: lower, Upper: upper})
	idx := len(m.Vars) - 1
	m.names[name] = idx
	return idx
}

// VarIndex returns the index of the named variable.
func (m *Model) VarIndex(name string) (int, bool) {
	idx, ok := m.names[name]
	return idx, ok
}

// AddConstraint appends a constraint. Zero coefficients are dropped and
// repeated variables are merged, keeping first-occurrence order.
func (m *Model) AddConstraint(name string, terms []Term, sense Sense, rhs float64) {
	m.Constraints = append(m.Constraints, Constraint{
		Name:  name,
		Terms: compact(terms),
		Sense: sense,
		RHS:   rhs,
	})
}

// AddObjective appends terms to the objective.
func (m *Model) AddObjective(terms ...Term) {
	m.Objective = compact(append(m.Objective, terms...))
}

// NumIntegers returns the number of integer and binary variables.
func (m *Model) NumIntegers() int {
	n := 0
	for _, v := range m.Vars {
		if v.IsInteger() {
			n++
		}
	}
	return n
}

func compact(terms []Term) []Term {
	out := make([]Term, 0, len(terms))
	pos := make(map[int]int, len(terms))
	for _, t := range terms {
		if i, ok := pos[t.Var]; ok {
			out[i].Coef += t.Coef
			continue
		}
		pos[t.Var] = len(out)
		out = append(out, t)
	}
	kept := out[:0]
	for _, t := range out {
		if t.Coef != 0 {
			kept = append(kept, t)
		}
	}
	return kept
}

// Evaluate returns the objective value at values.
func (m *Model) Evaluate(values []float64) float64 {
	return dot(m.Objective, values)
}

// Activity returns the left-hand side of constraint i at values.
func (m *Model) Activity(i int, values []float64) float64 {
	return dot(m.Constraints[i].Terms, values)
}

func dot(terms []Term, values []float64) float64 {
	var sum float64
	for _, t := range terms {
		sum += t.Coef * values[t.Var]
	}
	return sum
}

// Check returns an error naming the first bound, integrality requirement or
// constraint violated by more than tol at values.
func (m *Model) Check(values []float64, tol float64) error {
	if len(values) != len(m.Vars) {
		return fmt.Errorf("got %d values for %d variables", len(values), len(m.Vars))
	}
	for i, v := range m.Vars {
		x := values[i]
		if x < v.Lower-tol || x > v.Upper+tol {
			return fmt.Errorf("variable %s = %g outside [%g, %g]", v.Name, x, v.Lower, v.Upper)
		}
		if v.IsInteger() && math.Abs(x-math.Round(x)) > tol {
			return fmt.Errorf("variable %s = %g is not integral", v.Name, x)
		}
	}
	for i, c := range m.Constraints {
		lhs := m.Activity(i, values)
		var violated bool
		switch c.Sense {
		case LessEqual:
			violated = lhs > c.RHS+tol
		case GreaterEqual:
			violated = lhs < c.RHS-tol
		case Equal:
			violated = math.Abs(lhs-c.RHS) > tol
		}
		if violated {
			return fmt.Errorf("constraint %s violated: %g %s %g", c.Name, lhs, c.Sense, c.RHS)
		}
	}
	return nil
}

// Digest returns a hex SHA-256 of the model's LP rendering.
func (m *Model) Digest() string {
	var b strings.Builder
	// strings.Builder never fails to write.
	_ = m.WriteLP(&b)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
