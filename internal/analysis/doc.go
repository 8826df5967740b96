// Package analysis characterizes how a field evolves, working on compile
// traces and on engines it drives itself.
//
//   - [PowerSpectrum] and [DominantFrequency]: oscillation content of one
//     trace field
//   - [Sensitivity]: divergence rate of two nearby trajectories
//   - [BifurcationDiagram]: settled values of a field across a coefficient range
//   - [NewPortrait] and [SectorCrossings]: phase-space views of a trace
//
// A negative sensitivity means nearby fields converge:
//
//	lambda, err := analysis.Sensitivity(ctx, "let x = 1;", field.ProfileScript, cfg, 1e-6, 500)
//	if err == nil && lambda < 0 {
//	    // trajectories contract
//	}
package analysis
