package estimator

import "github.com/pranalabs/breathloop/internal/breath"

// Target is the per-protocol resting point each belief dimension relaxes
// toward during the predict step.
type Target struct {
	Arousal   float64
	Attention float64
	Rhythm    float64
	Valence   float64
}

// targetFor maps a pattern category to its target vector. The default
// target is also used when no protocol is loaded.
func targetFor(c breath.Category) Target {
	switch c {
	case breath.CategoryParasympathetic:
		return Target{Arousal: 0.25, Attention: 0.70, Rhythm: 0.85, Valence: 0.30}
	case breath.CategoryBalanced:
		return Target{Arousal: 0.45, Attention: 0.75, Rhythm: 0.75, Valence: 0.20}
	case breath.CategorySympathetic:
		return Target{Arousal: 0.70, Attention: 0.80, Rhythm: 0.65, Valence: 0.15}
	default:
		return Target{Arousal: 0.50, Attention: 0.60, Rhythm: 0.50, Valence: 0.0}
	}
}
