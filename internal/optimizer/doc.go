// Package optimizer turns a roster into a group assignment.
//
// The optimizer follows a linear pipeline:
//
//	Roster → Partition → Thresholds → Model → Solver → Extract
//	 (core)    (core)       (core)    (milp)  (solver)  (optimizer)
//
// BuildModel assembles the mixed-integer program: one binary per
// (student, group) pair, bounded variables bracketing the per-group mean GPA
// and GPA variance, and one shortfall variable per (category value, group)
// that relaxes the fairness floors. Shortfall is penalised by
// ShortfallPenalty so that category balance dominates GPA balance in the
// objective, yet the model is never infeasible.
//
// Extract decodes a solution and recomputes every statistic from the
// assignment itself rather than from solver variables.
//
// Example usage:
//
//	s, err := solver.NewSolver(solver.BackendCBC, solver.Options{})
//	if err != nil {
//	    return err
//	}
//	opt := optimizer.NewOptimizer(s)
//	result, err := opt.Optimize(ctx, records, optimizer.Params{
//	    GroupCount: 6,
//	    TimeLimit:  time.Minute,
//	    GPAScale:   9,
//	    Weights:    v1alpha1.DefaultWeights(),
//	})
//
// Error Handling:
//   - invalid rosters and parameters → *core.ValidationError, nothing solved
//   - solver failures → *solver.SolverError, no partial result
//   - inconsistent solutions → *ModelConsistencyError, no result
//   - time budget exhausted with an incumbent → result with Optimal=false
package optimizer
