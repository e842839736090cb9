// Package solver hands a milp.Model to a mixed-integer solver under a
// wall-clock budget and reports what came back.
//
// Key Components:
//
//   - Solver: the adapter interface every back-end implements
//   - CBCSolver: runs the COIN-OR CBC executable on an LP file
//   - EmbeddedSolver: in-process branch-and-bound over a bounded tableau
//     simplex that honours the time limit inside every relaxation, for
//     small rosters and hosts without CBC
//
// The back-end is chosen once from configuration through NewSolver; nothing
// probes one back-end and falls back to another on failure.
//
// Outcomes:
//
//  1. StatusOptimal: optimality proven within tolerance
//  2. StatusTimedOut: the budget ran out; Values holds the best incumbent
//  3. StatusInfeasible: reported as a status, not an error; callers decide
//     whether that is possible for their model
//  4. errors of type *SolverError: the solver could not run, crashed, or
//     found no incumbent before the budget ran out
//
// Example usage:
//
//	s, err := solver.NewSolver(solver.BackendCBC, solver.Options{CBCPath: "cbc"})
//	if err != nil {
//	    return err
//	}
//	sol, err := s.Solve(ctx, model, 60*time.Second)
//	if err != nil {
//	    return err
//	}
//	if sol.Status == solver.StatusTimedOut {
//	    log.Info("using incumbent", "objective", sol.Objective)
//	}
package solver
