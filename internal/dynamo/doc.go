// Package dynamo provides the core primitives of the cascade solver.
//
// The package defines the fundamental types shared by every stage of a run:
//
//   - [State]: flat flux vector, one contiguous energy block per tracked species
//   - [System]: right-hand side of the transport equation dΦ/dX = f(X, Φ)
//   - [Integrator] / [AdaptiveIntegrator]: numerical steppers along depth
//   - sentinel errors shared by all packages (configuration, lookup,
//     precondition and numerical failures)
//
// # Example
//
//	sys := solver.NewSystem(kern, profile)
//	integ := integrators.NewRK45()
//	next, taken, dXNext, err := integ.StepAdaptive(sys, phi, X, dX, tol)
//
// # Thread Safety
//
// States are plain slices and are not safe for concurrent mutation. Systems
// wrap read-only operators but may hold scratch buffers; build one per solve.
package dynamo
