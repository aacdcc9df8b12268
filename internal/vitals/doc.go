// Package vitals extracts heart rate, respiration rate and HRV metrics
// from a buffered skin-color signal using the POS (Plane-Orthogonal-to-
// Skin) rPPG algorithm and spectral peak analysis.
//
// The extraction runs inside a single-flight Worker so a slow job never
// blocks the capture loop and never overlaps a newer one; callers reuse
// the last completed result in the meantime.
package vitals
