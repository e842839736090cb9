package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/llm-d/llm-d-group-allocator/pkg/milp"
)

const (
	pivotTol      = 1e-9
	optimalityTol = 1e-9
	ratioTol      = 1e-12

	// stopEvery is how many pivots run between calls to the stop callback.
	stopEvery = 32
	// degenerateRun is how many consecutive degenerate pivots switch pricing
	// from the most negative reduced cost to the lowest eligible index.
	degenerateRun = 50
)

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
	lpIterationLimit
)

// lpRow is one constraint row over the structural columns.
type lpRow struct {
	coefs []float64
	sense milp.Sense
	rhs   float64
}

// tableau is a dense simplex tableau. Rows [0, m) are constraints and row m
// holds the reduced costs; the last column is the right-hand side, so
// t[m][cols] is the negated objective value. Columns at or beyond
// artificial are phase 1 artificials.
type tableau struct {
	t          *mat.Dense
	m, cols    int
	basis      []int
	artificial int
	stop       func() error
}

// solveLP minimises c·y subject to rows and y >= 0 with a two-phase simplex.
// stop, when non-nil, is called every stopEvery pivots and its error is
// returned as is. Pricing is Dantzig's rule until a run of degenerate
// pivots, then Bland's rule until the next pivot that makes progress.
// A pivot cap turns a stalled solve into lpIterationLimit.
func solveLP(c []float64, rows []lpRow, stop func() error) (lpStatus, float64, []float64, error) {
	n, m := len(c), len(rows)
	norm := make([]lpRow, m)
	var slacks, artificials int
	scale := 1.0
	for i, r := range rows {
		if r.rhs < 0 {
			coefs := make([]float64, len(r.coefs))
			floats.ScaleTo(coefs, -1, r.coefs)
			r = lpRow{coefs: coefs, sense: flip(r.sense), rhs: -r.rhs}
		}
		norm[i] = r
		scale = math.Max(scale, r.rhs)
		switch r.sense {
		case milp.LessEqual:
			slacks++
		case milp.GreaterEqual:
			slacks++
			artificials++
		default:
			artificials++
		}
	}

	cols := n + slacks + artificials
	tb := &tableau{
		t:          mat.NewDense(m+1, cols+1, nil),
		m:          m,
		cols:       cols,
		basis:      make([]int, m),
		artificial: n + slacks,
		stop:       stop,
	}
	s, a := n, n+slacks
	for i, r := range norm {
		row := tb.t.RawRowView(i)
		copy(row, r.coefs)
		row[cols] = r.rhs
		switch r.sense {
		case milp.LessEqual:
			row[s] = 1
			tb.basis[i] = s
			s++
		case milp.GreaterEqual:
			row[s] = -1
			s++
			row[a] = 1
			tb.basis[i] = a
			a++
		default:
			row[a] = 1
			tb.basis[i] = a
			a++
		}
	}

	if artificials > 0 {
		phase1 := make([]float64, cols)
		for j := tb.artificial; j < cols; j++ {
			phase1[j] = 1
		}
		tb.setObjective(phase1)
		status, err := tb.iterate(cols)
		if err != nil || status != lpOptimal {
			return status, 0, nil, err
		}
		if tb.value() > feasibleTol*scale {
			return lpInfeasible, 0, nil, nil
		}
		tb.evictArtificials()
	}

	cost := make([]float64, cols)
	copy(cost, c)
	tb.setObjective(cost)
	status, err := tb.iterate(tb.artificial)
	if err != nil || status != lpOptimal {
		return status, 0, nil, err
	}
	y := make([]float64, n)
	for i, j := range tb.basis {
		if j < n {
			y[j] = math.Max(0, tb.t.At(i, cols))
		}
	}
	return lpOptimal, floats.Dot(c, y), y, nil
}

func flip(sense milp.Sense) milp.Sense {
	switch sense {
	case milp.LessEqual:
		return milp.GreaterEqual
	case milp.GreaterEqual:
		return milp.LessEqual
	default:
		return sense
	}
}

// setObjective loads cost into the reduced-cost row and prices out the
// current basis.
func (tb *tableau) setObjective(cost []float64) {
	obj := tb.t.RawRowView(tb.m)
	copy(obj, cost)
	obj[tb.cols] = 0
	for i, j := range tb.basis {
		if f := obj[j]; f != 0 {
			floats.AddScaled(obj, -f, tb.t.RawRowView(i))
		}
	}
}

func (tb *tableau) value() float64 {
	return -tb.t.At(tb.m, tb.cols)
}

// iterate pivots until no column below enterLimit has a negative reduced cost.
func (tb *tableau) iterate(enterLimit int) (lpStatus, error) {
	obj := tb.t.RawRowView(tb.m)
	tol := optimalityTol * math.Max(1, floats.Norm(obj[:enterLimit], math.Inf(1)))
	maxIter := 50*(tb.m+tb.cols) + 1000
	bland, degenerate := false, 0
	for it := 0; ; it++ {
		if tb.stop != nil && it%stopEvery == 0 {
			if err := tb.stop(); err != nil {
				return 0, err
			}
		}
		if it >= maxIter {
			return lpIterationLimit, nil
		}
		q := entering(obj[:enterLimit], tol, bland)
		if q < 0 {
			return lpOptimal, nil
		}
		r, ratio := tb.leaving(q)
		if r < 0 {
			return lpUnbounded, nil
		}
		if ratio <= pivotTol {
			degenerate++
			if degenerate >= degenerateRun {
				bland = true
			}
		} else {
			degenerate, bland = 0, false
		}
		tb.pivot(r, q)
	}
}

// entering picks the most negative reduced cost, or under Bland's rule the
// first negative one.
func entering(d []float64, tol float64, bland bool) int {
	q, best := -1, -tol
	for j, v := range d {
		if v < best {
			if bland {
				return j
			}
			q, best = j, v
		}
	}
	return q
}

// leaving runs the ratio test on column q. Ties go to the lowest basic
// column index.
func (tb *tableau) leaving(q int) (int, float64) {
	r, best := -1, math.Inf(1)
	for i := 0; i < tb.m; i++ {
		a := tb.t.At(i, q)
		if a <= pivotTol {
			continue
		}
		ratio := tb.t.At(i, tb.cols) / a
		if ratio < best-ratioTol || (ratio <= best+ratioTol && tb.basis[i] < tb.basis[r]) {
			r, best = i, ratio
		}
	}
	return r, best
}

func (tb *tableau) pivot(r, q int) {
	pr := tb.t.RawRowView(r)
	floats.Scale(1/pr[q], pr)
	pr[q] = 1
	for i := 0; i <= tb.m; i++ {
		if i == r {
			continue
		}
		row := tb.t.RawRowView(i)
		f := row[q]
		if f == 0 {
			continue
		}
		floats.AddScaled(row, -f, pr)
		row[q] = 0
		if i < tb.m && row[tb.cols] < 0 && row[tb.cols] > -pivotTol {
			row[tb.cols] = 0
		}
	}
	tb.basis[r] = q
}

// evictArtificials pivots every artificial left in the basis after phase 1
// onto a structural or slack column. A row with no such column is redundant;
// its artificial stays basic at zero and never re-enters.
func (tb *tableau) evictArtificials() {
	for i := range tb.basis {
		if tb.basis[i] < tb.artificial {
			continue
		}
		row := tb.t.RawRowView(i)
		for q := 0; q < tb.artificial; q++ {
			if math.Abs(row[q]) > pivotTol {
				tb.pivot(i, q)
				break
			}
		}
	}
}
