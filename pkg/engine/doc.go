// Package engine implements the expectation evaluation engine: it turns a
// declarative expectation request (type identifier plus keyword arguments)
// and a backend-bound dataset handle into metric computations, applies the
// success policy (mostly tolerance, strictness, tie and null-row
// handling), and assembles the validation result.
//
// # Evaluation Flow
//
//	ExpectationRequest
//	       ↓
//	Expectation table (kwargs → metric request + policy params)
//	       ↓
//	Backend adapter (native metric computation, row filter applied)
//	       ↓
//	Success policy (mostly ratio / bounds comparison)
//	       ↓
//	Result assembler (unexpected values + original row indices)
//	       ↓
//	ValidationResult
//
// # Error Taxonomy
//
// Configuration errors (unknown type, missing column, malformed kwargs)
// surface before any backend call. Evaluation errors (backend failures,
// type mismatches, cancellation) are distinct from rule violations: an
// error means no verdict, and a failed evaluation never reports success.
// Capability mismatches propagate as *backend.UnsupportedError.
package engine
