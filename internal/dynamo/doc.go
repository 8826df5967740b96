// Package dynamo provides the core primitives shared by the field engine and
// its governance layer.
//
//   - [State]: the field vector (tension and its decomposition, curvature,
//     phase, energy, coherence, step count)
//   - [Config]: law coefficients, merged over [DefaultConfig]
//   - [Metric], [Observer]: per-step hooks used by compile runs
//   - [Error]: coded domain errors, matched with errors.Is by [Code]
//
// # Example
//
//	eng, _ := sim.New(dynamo.DefaultConfig())
//	eng.Reinitialize("let x = 1;", field.ProfileScript)
//	result, _ := eng.Compile(ctx)
//	fmt.Println(sim.Render(result.Final, id))
//
// # Thread Safety
//
// An engine has exactly one owner. Once a controller claims it, all
// mutation goes through that controller.
package dynamo
