// Package bif provides the core primitives for numerical continuation
// of parametrized nonlinear equations F(x, p) = 0.
//
// The package defines the fundamental interfaces and types shared by the
// continuation engine:
//
//   - [State]: vector representing the unknown x
//   - [Point]: a (state, parameter) pair on a solution branch
//   - [Problem]: residual/Jacobian bundle for one scalar parameter
//   - [Jacobian]: dense or matrix-free linear operator
//   - [PointType]: classification tags for detected singularities
//
// Problems that expose several named parameters implement [Tunable];
// [WithLens] selects which one the continuation varies.
//
// # Thread Safety
//
// A Problem is treated as read-only by the engine, but a lens-wrapped
// system has its active parameter set before every evaluation. Do not
// share one lens-wrapped system between concurrent continuation runs.
package bif
