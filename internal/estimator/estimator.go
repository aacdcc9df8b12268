package estimator

import (
	"math"

	"github.com/pranalabs/breathloop/internal/breath"
)

// Config holds the estimator tuning parameters.
type Config struct {
	// Relaxation time constants in seconds. Arousal is the slowest
	// dimension, attention the fastest.
	TauArousal   float64
	TauAttention float64
	TauRhythm    float64
	TauValence   float64

	ProcessNoise    float64 // q_base; variance growth per second of predict
	MaxVariance     float64
	InitialVariance float64

	MeasurementNoiseBase float64 // R base for the arousal correct step
	AdaptationRate       float64 // confidence penalty multiplier on R
	OutlierThreshold     float64 // Mahalanobis gate
	OutlierVarInflation  float64 // multiplicative variance nudge on rejection
	MinHRConfidence      float64 // below this the arousal correct step is skipped

	// Normalisation bounds for measured arousal.
	HRMin     float64 // BPM mapped to arousal 0
	HRMax     float64 // BPM mapped to arousal 1
	StressMax float64 // stress index mapped to arousal 1

	AttentionDecay  float64 // multiplicative decay per distracted update
	AttentionGrowth float64 // linear growth toward 1 per second

	ValenceBlend float64 // weight of a new facial-valence observation
	RhythmBlend  float64 // weight of a new respiration-derived alignment
}

// DefaultConfig returns the default estimator configuration.
func DefaultConfig() Config {
	return Config{
		TauArousal:           12.0,
		TauAttention:         3.0,
		TauRhythm:            6.0,
		TauValence:           8.0,
		ProcessNoise:         0.01,
		MaxVariance:          1.0,
		InitialVariance:      0.25,
		MeasurementNoiseBase: 0.05,
		AdaptationRate:       0.3,
		OutlierThreshold:     3.0,
		OutlierVarInflation:  1.5,
		MinHRConfidence:      0.3,
		HRMin:                45.0,
		HRMax:                120.0,
		StressMax:            300.0,
		AttentionDecay:       0.9,
		AttentionGrowth:      0.1,
		ValenceBlend:         0.2,
		RhythmBlend:          0.25,
	}
}

// Estimator owns the live belief state. It is not thread-shared; the
// kernel receives value copies from Update, never a reference.
type Estimator struct {
	cfg    Config
	target Target

	belief  breath.Belief
	pattern *breath.Pattern

	// Retained sensor quality for the confidence fusion; decays only by
	// being replaced with fresher observations.
	sensorQuality float64
}

// New creates an estimator at the default (no-protocol) target.
func New(cfg Config) *Estimator {
	e := &Estimator{cfg: cfg, target: targetFor(breath.CategoryDefault)}
	e.resetBelief()
	return e
}

// SetProtocol swaps the target vector for the given pattern's category.
// Passing nil resets to the default target.
func (e *Estimator) SetProtocol(p *breath.Pattern) {
	if p == nil {
		e.pattern = nil
		e.target = targetFor(breath.CategoryDefault)
		return
	}
	cp := *p
	e.pattern = &cp
	e.target = targetFor(p.Category)
}

// Reset returns the belief to its initial wide-uncertainty state.
func (e *Estimator) Reset() { e.resetBelief() }

// Belief returns a copy of the current belief state.
func (e *Estimator) Belief() breath.Belief { return e.belief }

func (e *Estimator) resetBelief() {
	e.belief = breath.Belief{
		Arousal:      0.5,
		Attention:    0.5,
		Rhythm:       0.5,
		Valence:      0,
		ArousalVar:   e.cfg.InitialVariance,
		AttentionVar: e.cfg.InitialVariance,
		RhythmVar:    e.cfg.InitialVariance,
	}
	e.sensorQuality = 0
}

// Update runs one predict/correct cycle and returns the resulting belief
// by value.
func (e *Estimator) Update(obs breath.Observation, dt float64) breath.Belief {
	if dt < 0 {
		dt = 0
	}
	e.predict(dt)
	e.correctArousal(obs)
	e.correctValence(obs)
	e.correctAttention(obs, dt)
	e.correctRhythm(obs)
	e.deriveOutputs()
	e.clampAll()
	return e.belief
}

// predict relaxes each dimension toward the protocol target with a
// first-order lag and grows the variances. Variance never shrinks here;
// only an accepted correction can do that.
func (e *Estimator) predict(dt float64) {
	b := &e.belief
	b.Arousal += (e.target.Arousal - b.Arousal) * lag(dt, e.cfg.TauArousal)
	b.Attention += (e.target.Attention - b.Attention) * lag(dt, e.cfg.TauAttention)
	b.Rhythm += (e.target.Rhythm - b.Rhythm) * lag(dt, e.cfg.TauRhythm)
	b.Valence += (e.target.Valence - b.Valence) * lag(dt, e.cfg.TauValence)

	q := e.cfg.ProcessNoise * dt
	b.ArousalVar = math.Min(b.ArousalVar+q, e.cfg.MaxVariance)
	b.AttentionVar = math.Min(b.AttentionVar+q, e.cfg.MaxVariance)
	b.RhythmVar = math.Min(b.RhythmVar+q, e.cfg.MaxVariance)
}

// correctArousal applies the scalar Kalman correct step. Measured arousal
// blends normalised heart rate and stress index 60/40 when stress is
// available. The Mahalanobis gate rejects outliers and inflates variance
// instead: something is off, trust the model less.
func (e *Estimator) correctArousal(obs breath.Observation) {
	b := &e.belief
	if obs.HRConfidence <= e.cfg.MinHRConfidence {
		return
	}
	e.sensorQuality = obs.HRConfidence

	hrNorm := breath.Clamp((obs.HeartRate-e.cfg.HRMin)/(e.cfg.HRMax-e.cfg.HRMin), 0, 1)
	measured := hrNorm
	if obs.HasStress {
		stressNorm := breath.Clamp(obs.Stress/e.cfg.StressMax, 0, 1)
		measured = 0.6*hrNorm + 0.4*stressNorm
	}

	r := e.cfg.MeasurementNoiseBase + (1-obs.HRConfidence)*e.cfg.AdaptationRate
	s := b.ArousalVar + r
	innovation := measured - b.Arousal
	maha := math.Sqrt(innovation * innovation / s)

	b.Innovation = innovation
	b.Mahalanobis = maha

	if maha > e.cfg.OutlierThreshold {
		b.ArousalVar = math.Min(b.ArousalVar*e.cfg.OutlierVarInflation, e.cfg.MaxVariance)
		return
	}

	gain := b.ArousalVar / s
	b.Arousal += gain * innovation
	b.ArousalVar *= 1 - gain
}

// correctValence blends an observed facial valence into the estimate.
// The signal is already bounded and pre-smoothed upstream, so a plain
// exponential blend is enough.
func (e *Estimator) correctValence(obs breath.Observation) {
	if !obs.HasValence {
		return
	}
	b := &e.belief
	b.Valence = (1-e.cfg.ValenceBlend)*b.Valence + e.cfg.ValenceBlend*obs.Valence
}

// correctAttention decays attention on distraction and grows it linearly
// toward 1 otherwise.
func (e *Estimator) correctAttention(obs breath.Observation, dt float64) {
	b := &e.belief
	if obs.Distracted() {
		b.Attention *= e.cfg.AttentionDecay
		return
	}
	b.Attention += e.cfg.AttentionGrowth * dt
}

// correctRhythm blends in alignment measured from the observed
// respiration rate against the loaded pattern's paced rate.
func (e *Estimator) correctRhythm(obs breath.Observation) {
	if obs.Respiration <= 0 || e.pattern == nil {
		return
	}
	paced := e.pattern.BreathsPerMinute()
	if paced <= 0 {
		return
	}
	aligned := 1 - math.Min(1, math.Abs(obs.Respiration-paced)/paced)
	b := &e.belief
	b.Rhythm = (1-e.cfg.RhythmBlend)*b.Rhythm + e.cfg.RhythmBlend*aligned
}

// deriveOutputs recomputes prediction error and confidence.
func (e *Estimator) deriveOutputs() {
	b := &e.belief
	da := b.Arousal - e.target.Arousal
	dr := b.Rhythm - e.target.Rhythm
	b.PredictionError = math.Sqrt(0.5*da*da + 0.5*dr*dr)

	certainty := 1 - math.Min(1, (b.ArousalVar+b.AttentionVar)/2/2)
	b.Confidence = math.Sqrt(math.Max(0, certainty*e.sensorQuality))
}

func (e *Estimator) clampAll() {
	b := &e.belief
	b.Arousal = breath.Clamp(b.Arousal, 0, 1)
	b.Attention = breath.Clamp(b.Attention, 0, 1)
	b.Rhythm = breath.Clamp(b.Rhythm, 0, 1)
	b.Valence = breath.Clamp(b.Valence, -1, 1)
	b.ArousalVar = breath.Clamp(b.ArousalVar, 0, e.cfg.MaxVariance)
	b.AttentionVar = breath.Clamp(b.AttentionVar, 0, e.cfg.MaxVariance)
	b.RhythmVar = breath.Clamp(b.RhythmVar, 0, e.cfg.MaxVariance)
}

// lag returns the first-order relaxation factor 1 - exp(-dt/tau).
func lag(dt, tau float64) float64 {
	if tau <= 0 {
		return 1
	}
	return 1 - math.Exp(-dt/tau)
}
