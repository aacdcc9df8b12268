// Package breath owns the shared domain model for the biofeedback engine:
// breathing patterns and phases, per-tick observations, the estimator's
// belief state, extracted vital signs, and per-pattern safety profiles.
//
// Dependency rule: this package depends only on the standard library.
// All processing packages (capture, vitals, estimator, kernel) depend on
// it, never on each other's internals.
package breath
