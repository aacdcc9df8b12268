// Package estimator fuses noisy, intermittent physiological observations
// into a smoothed belief over four latent dimensions: arousal, attention,
// rhythm alignment, and valence.
//
// Each dimension runs an exponential predict step toward a per-protocol
// target, and the arousal dimension additionally runs a scalar
// Kalman-style correct step with a Mahalanobis outlier gate. Statistical
// outliers are absorbed as variance inflation, never surfaced as errors.
package estimator
