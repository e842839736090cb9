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

package milp

import (
	"bufio"
	"io"
	"math"
	"strconv"
)

// termsPerLine keeps LP lines well under the 255 character limit some readers impose.
const termsPerLine = 8

// WriteLP renders the model in CPLEX LP format, readable by CBC, GLPK,
// HiGHS and CPLEX.
func (m *Model) WriteLP(w io.Writer) error {
	bw := bufio.NewWriter(w)

	bw.WriteString("\\ Problem: " + m.Name + "\n")
	bw.WriteString("Minimize\n obj:")
	m.writeTerms(bw, m.Objective)
	bw.WriteString("\n")

	bw.WriteString("Subject To\n")
	for _, c := range m.Constraints {
		bw.WriteString(" " + c.Name + ":")
		m.writeTerms(bw, c.Terms)
		bw.WriteString(" " + c.Sense.String() + " " + formatNumber(c.RHS) + "\n")
	}

	bw.WriteString("Bounds\n")
	for _, v := range m.Vars {
		if v.Kind == Binary {
			continue
		}
		lower := math.IsInf(v.Lower, -1)
		upper := math.IsInf(v.Upper, 1)
		switch {
		case lower && upper:
			bw.WriteString(" " + v.Name + " free\n")
		case upper:
			bw.WriteString(" " + v.Name + " >= " + formatNumber(v.Lower) + "\n")
		case lower:
			bw.WriteString(" -inf <= " + v.Name + " <= " + formatNumber(v.Upper) + "\n")
		default:
			bw.WriteString(" " + formatNumber(v.Lower) + " <= " + v.Name + " <= " + formatNumber(v.Upper) + "\n")
		}
	}

	m.writeKind(bw, "Binaries", Binary)
	m.writeKind(bw, "Generals", Integer)
	bw.WriteString("End\n")
	return bw.Flush()
}

func (m *Model) writeTerms(bw *bufio.Writer, terms []Term) {
	if len(terms) == 0 {
		// LP format needs at least one variable on every row.
		if len(m.Vars) > 0 {
			bw.WriteString(" 0 " + m.Vars[0].Name)
		}
		return
	}
	for i, t := range terms {
		if i > 0 && i%termsPerLine == 0 {
			bw.WriteString("\n   ")
		}
		if t.Coef < 0 {
			bw.WriteString(" - " + formatNumber(-t.Coef))
		} else {
			bw.WriteString(" + " + formatNumber(t.Coef))
		}
		bw.WriteString(" " + m.Vars[t.Var].Name)
	}
}

func (m *Model) writeKind(bw *bufio.Writer, section string, kind VarKind) {
	first := true
	for _, v := range m.Vars {
		if v.Kind != kind {
			continue
		}
		if first {
			bw.WriteString(section + "\n")
			first = false
		}
		bw.WriteString(" " + v.Name + "\n")
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
