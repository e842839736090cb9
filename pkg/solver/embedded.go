package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/llm-d/llm-d-group-allocator/internal/logging"
	"github.com/llm-d/llm-d-group-allocator/pkg/milp"
)

const (
	integralityTol = 1e-6
	relativeGapTol = 1e-9
)

// errBudgetSpent stops a relaxation solve once the time limit has passed.
var errBudgetSpent = errors.New("time budget spent")

// EmbeddedSolver is a depth-first branch-and-bound over the integer
// variables, bounding every node with the LP relaxation. It needs finite
// bounds on every variable and is meant for small models.
type EmbeddedSolver struct {
	clock clock.PassiveClock
}

// NewEmbeddedSolver creates an embedded solver; a nil clock means the real clock.
func NewEmbeddedSolver(c clock.PassiveClock) *EmbeddedSolver {
	if c == nil {
		c = clock.RealClock{}
	}
	return &EmbeddedSolver{clock: c}
}

// Backend implements Solver.
func (s *EmbeddedSolver) Backend() Backend { return BackendEmbedded }

type bbNode struct {
	lower, upper []float64
	depth        int
}

// Solve implements Solver. A non-positive timeLimit means no limit.
func (s *EmbeddedSolver) Solve(ctx context.Context, m *milp.Model, timeLimit time.Duration) (*Solution, error) {
	logger := logr.FromContextOrDiscard(ctx)
	start := s.clock.Now()

	root := bbNode{lower: make([]float64, len(m.Vars)), upper: make([]float64, len(m.Vars))}
	for j, v := range m.Vars {
		if math.IsInf(v.Lower, 0) || math.IsInf(v.Upper, 0) {
			return nil, s.fail(fmt.Errorf("variable %s needs finite bounds", v.Name))
		}
		root.lower[j], root.upper[j] = v.Lower, v.Upper
		if v.IsInteger() {
			root.lower[j], root.upper[j] = math.Ceil(v.Lower-integralityTol), math.Floor(v.Upper+integralityTol)
		}
	}

	var (
		best     []float64
		bestObj  = math.Inf(1)
		nodes    int
		timedOut bool
		stack    = []bbNode{root}
	)
	stop := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if timeLimit > 0 && s.clock.Since(start) >= timeLimit {
			return errBudgetSpent
		}
		return nil
	}
	for len(stack) > 0 {
		if err := stop(); err != nil {
			if errors.Is(err, errBudgetSpent) {
				timedOut = true
				break
			}
			return nil, s.fail(err)
		}
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		rel, err := solveRelaxation(m, node.lower, node.upper, stop)
		if errors.Is(err, errBudgetSpent) {
			timedOut = true
			break
		}
		if err != nil {
			return nil, s.fail(err)
		}
		if rel.infeasible {
			continue
		}
		if rel.solved && best != nil && rel.obj >= bestObj-relativeGapTol*math.Max(1, math.Abs(bestObj)) {
			continue
		}

		j, v := -1, 0.0
		if rel.solved {
			j, v = mostFractional(m, rel.x)
			if j < 0 {
				x := roundIntegers(m, rel.x)
				if err := m.Check(x, feasibleTol*10); err != nil {
					logger.V(logging.TRACE).Info("Discarding rounded LP solution", "reason", err.Error())
					continue
				}
				if obj := m.Evaluate(x); obj < bestObj {
					best, bestObj = x, obj
					logger.V(logging.DEBUG).Info("New incumbent", "objective", obj, "nodes", nodes, "depth", node.depth)
				}
				continue
			}
		} else {
			j = firstUnfixed(m, node)
			if j < 0 {
				logger.V(logging.TRACE).Info("Skipping leaf whose relaxation could not be solved", "depth", node.depth)
				continue
			}
			v = (node.lower[j] + node.upper[j]) / 2
		}

		down, up := branch(node, j, v)
		// The child nearer the relaxed value is explored first.
		if v-math.Floor(v) >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	runtime := s.clock.Since(start)
	logger.V(logging.DEBUG).Info("Branch-and-bound finished", "nodes", nodes, "timedOut", timedOut, "objective", bestObj)
	switch {
	case best == nil && timedOut:
		return nil, s.fail(ErrNoIncumbent)
	case best == nil:
		return &Solution{Status: StatusInfeasible, Nodes: nodes, Runtime: runtime}, nil
	case timedOut:
		return &Solution{Status: StatusTimedOut, Values: best, Objective: bestObj, Nodes: nodes, Runtime: runtime}, nil
	default:
		return &Solution{Status: StatusOptimal, Values: best, Objective: bestObj, Nodes: nodes, Runtime: runtime}, nil
	}
}

func (s *EmbeddedSolver) fail(err error) error {
	return &SolverError{Backend: BackendEmbedded, Err: err}
}

// mostFractional returns the integer variable farthest from integrality,
// lowest index first on ties, or -1 when all are integral.
func mostFractional(m *milp.Model, x []float64) (int, float64) {
	best, bestFrac := -1, integralityTol
	for j, v := range m.Vars {
		if !v.IsInteger() {
			continue
		}
		frac := math.Abs(x[j] - math.Round(x[j]))
		if frac > bestFrac {
			best, bestFrac = j, frac
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, x[best]
}

func firstUnfixed(m *milp.Model, node bbNode) int {
	for j, v := range m.Vars {
		if v.IsInteger() && node.upper[j]-node.lower[j] > fixedTol {
			return j
		}
	}
	return -1
}

func roundIntegers(m *milp.Model, x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	for j, v := range m.Vars {
		if v.IsInteger() {
			out[j] = math.Round(out[j])
		}
	}
	return out
}

func branch(node bbNode, j int, v float64) (down, up bbNode) {
	down = bbNode{lower: clone(node.lower), upper: clone(node.upper), depth: node.depth + 1}
	up = bbNode{lower: clone(node.lower), upper: clone(node.upper), depth: node.depth + 1}
	down.upper[j] = math.Floor(v)
	up.lower[j] = math.Ceil(v)
	if up.lower[j] == down.upper[j] {
		// v is integral (unsolved-node branching on a midpoint); split the range.
		up.lower[j]++
	}
	return down, up
}

func clone(s []float64) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	return out
}
