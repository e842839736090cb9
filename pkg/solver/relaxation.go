package solver

import (
	"fmt"
	"math"

	"github.com/llm-d/llm-d-group-allocator/pkg/milp"
)

const (
	fixedTol    = 1e-9
	feasibleTol = 1e-7
)

// relaxed is the LP relaxation of a model under node bounds.
type relaxed struct {
	infeasible bool
	// solved is false when the simplex stalled or failed numerically; the
	// node is then branched without a bound.
	solved bool
	obj    float64
	x      []float64
}

// solveRelaxation solves the LP relaxation of m with variable bounds
// replaced by lower/upper. stop is polled during the simplex and its error
// is returned unchanged.
//
// Fixed variables are substituted out and the rest shifted to y = x - lower
// so that y >= 0; every free variable gets an upper bound row.
func solveRelaxation(m *milp.Model, lower, upper []float64, stop func() error) (relaxed, error) {
	n := len(m.Vars)
	col := make([]int, n)
	var free []int
	for j := 0; j < n; j++ {
		if upper[j] < lower[j]-fixedTol {
			return relaxed{infeasible: true}, nil
		}
		if upper[j]-lower[j] <= fixedTol {
			col[j] = -1
			continue
		}
		if math.IsInf(upper[j], 1) || math.IsInf(lower[j], -1) {
			return relaxed{}, fmt.Errorf("variable %s has an infinite bound", m.Vars[j].Name)
		}
		col[j] = len(free)
		free = append(free, j)
	}

	var rows []lpRow
	for _, c := range m.Constraints {
		rhs := c.RHS
		coefs := make([]float64, len(free))
		active := false
		for _, t := range c.Terms {
			rhs -= t.Coef * lower[t.Var]
			if k := col[t.Var]; k >= 0 {
				coefs[k] += t.Coef
				active = active || coefs[k] != 0
			}
		}
		if !active {
			if !constantHolds(c.Sense, rhs) {
				return relaxed{infeasible: true}, nil
			}
			continue
		}
		rows = append(rows, lpRow{coefs: coefs, sense: c.Sense, rhs: rhs})
	}
	for k, j := range free {
		coefs := make([]float64, len(free))
		coefs[k] = 1
		rows = append(rows, lpRow{coefs: coefs, sense: milp.LessEqual, rhs: upper[j] - lower[j]})
	}

	x := make([]float64, n)
	copy(x, lower)
	constant := 0.0
	for _, t := range m.Objective {
		constant += t.Coef * lower[t.Var]
	}
	if len(free) == 0 {
		return relaxed{solved: true, obj: constant, x: x}, nil
	}

	c := make([]float64, len(free))
	for _, t := range m.Objective {
		if k := col[t.Var]; k >= 0 {
			c[k] += t.Coef
		}
	}

	status, obj, y, err := solveLP(c, rows, stop)
	if err != nil {
		return relaxed{}, err
	}
	switch status {
	case lpInfeasible:
		return relaxed{infeasible: true}, nil
	case lpOptimal:
	default:
		return relaxed{}, nil
	}
	for k, j := range free {
		x[j] = lower[j] + y[k]
	}
	return relaxed{solved: true, obj: obj + constant, x: x}, nil
}

func constantHolds(sense milp.Sense, rhs float64) bool {
	switch sense {
	case milp.LessEqual:
		return 0 <= rhs+feasibleTol
	case milp.GreaterEqual:
		return 0 >= rhs-feasibleTol
	default:
		return math.Abs(rhs) <= feasibleTol
	}
}
