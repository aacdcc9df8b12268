package breath

import (
	"fmt"
	"time"
)

// Phase identifies one segment of a breathing cycle.
type Phase string

const (
	PhaseInhale  Phase = "inhale"
	PhaseHoldIn  Phase = "holdIn"
	PhaseExhale  Phase = "exhale"
	PhaseHoldOut Phase = "holdOut"
)

// PhaseOrder is the fixed cyclic order phases advance in.
var PhaseOrder = [4]Phase{PhaseInhale, PhaseHoldIn, PhaseExhale, PhaseHoldOut}

// Next returns the phase following p in the cycle. Wrapping from holdOut
// back to inhale marks the completion of one full cycle.
func (p Phase) Next() Phase {
	for i, ph := range PhaseOrder {
		if ph == p {
			return PhaseOrder[(i+1)%len(PhaseOrder)]
		}
	}
	return PhaseInhale
}

// Category groups patterns by the autonomic response they aim for. The
// estimator selects its target vector from the loaded pattern's category.
type Category string

const (
	CategoryDefault         Category = "default"
	CategoryParasympathetic Category = "parasympathetic"
	CategoryBalanced        Category = "balanced"
	CategorySympathetic     Category = "sympathetic"
)

// Pattern is the static configuration for one guided breathing protocol.
// Patterns are immutable and loaded by ID from the builtin catalogue.
type Pattern struct {
	ID       string
	Name     string
	Category Category

	// Phase durations in seconds. Zero means the phase is skipped.
	InhaleSec  float64
	HoldInSec  float64
	ExhaleSec  float64
	HoldOutSec float64

	// Recommended number of cycles for one session.
	Cycles int

	// Unlock tier (1 = always available, 2-3 progressively gated by the
	// host application). Carried as data only; gating is not enforced here.
	Tier int
}

// PhaseDuration returns the configured duration for a phase in seconds.
func (p Pattern) PhaseDuration(ph Phase) float64 {
	switch ph {
	case PhaseInhale:
		return p.InhaleSec
	case PhaseHoldIn:
		return p.HoldInSec
	case PhaseExhale:
		return p.ExhaleSec
	case PhaseHoldOut:
		return p.HoldOutSec
	}
	return 0
}

// CycleSeconds returns the total duration of one full cycle.
func (p Pattern) CycleSeconds() float64 {
	return p.InhaleSec + p.HoldInSec + p.ExhaleSec + p.HoldOutSec
}

// BreathsPerMinute returns the respiration rate the pattern paces the
// user toward, at tempo scale 1.0.
func (p Pattern) BreathsPerMinute() float64 {
	cycle := p.CycleSeconds()
	if cycle <= 0 {
		return 0
	}
	return 60.0 / cycle
}

// Validate checks that the pattern can actually be ticked through.
func (p Pattern) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("pattern has empty id")
	}
	if p.InhaleSec < 0 || p.HoldInSec < 0 || p.ExhaleSec < 0 || p.HoldOutSec < 0 {
		return fmt.Errorf("pattern %s: negative phase duration", p.ID)
	}
	if p.CycleSeconds() <= 0 {
		return fmt.Errorf("pattern %s: cycle duration must be positive", p.ID)
	}
	if p.Tier < 1 || p.Tier > 3 {
		return fmt.Errorf("pattern %s: tier %d out of range [1,3]", p.ID, p.Tier)
	}
	return nil
}

// Interaction is a user-interaction hint attached to an observation.
type Interaction string

const (
	InteractionNone   Interaction = ""
	InteractionPause  Interaction = "pause"
	InteractionResume Interaction = "resume"
	InteractionTouch  Interaction = "touch"
)

// Observation is the input vector produced once per control tick. It is
// consumed by the estimator and recorded (last value only) by the kernel;
// raw observations are never persisted.
type Observation struct {
	At time.Time
	DT float64 // seconds since the previous tick

	// Heart rate in BPM. Valid only when HRConfidence > 0.
	HeartRate    float64
	HRConfidence float64 // [0,1]; 0 means no heart-rate sample this tick

	// Respiration rate in breaths/min. 0 means no sample.
	Respiration float64

	// Baevsky-style stress index. Valid only when HasStress.
	Stress    float64
	HasStress bool

	// Facial valence proxy in [-1,1]. Valid only when HasValence.
	Valence    float64
	HasValence bool

	Interaction Interaction
	PageHidden  bool
}

// Distracted reports whether this observation indicates the user is not
// attending to the session (explicit pause or a hidden page).
func (o Observation) Distracted() bool {
	return o.Interaction == InteractionPause || o.PageHidden
}

// Belief is the estimator's smoothed state: point estimates with paired
// variances plus the derived diagnostics. It is a value type; handing a
// Belief across a boundary always copies it, so the kernel's snapshot can
// never alias the estimator's live state.
type Belief struct {
	// Point estimates. Arousal, Attention and Rhythm live in [0,1];
	// Valence lives in [-1,1].
	Arousal   float64
	Attention float64
	Rhythm    float64 // alignment between user breathing and the guide
	Valence   float64

	// Variances for the Kalman-filtered dimensions.
	ArousalVar   float64
	AttentionVar float64
	RhythmVar    float64

	// Derived diagnostics, recomputed on every update.
	PredictionError float64 // RMS distance from the protocol target; low is good
	Innovation      float64 // last arousal innovation (measured - predicted)
	Mahalanobis     float64 // variance-normalised innovation distance
	Confidence      float64 // sqrt(certainty * sensor quality)
}

// SignalQuality tiers the vitals confidence score for consumers that only
// need a coarse judgement.
type SignalQuality string

const (
	QualityExcellent SignalQuality = "excellent"
	QualityGood      SignalQuality = "good"
	QualityPoor      SignalQuality = "poor"
)

// QualityForConfidence maps a fused confidence score to its tier.
func QualityForConfidence(c float64) SignalQuality {
	switch {
	case c > 0.7:
		return QualityExcellent
	case c > 0.4:
		return QualityGood
	default:
		return QualityPoor
	}
}

// VitalSigns is one completed rPPG/HRV extraction result.
type VitalSigns struct {
	HeartRateBPM   float64
	RespirationRPM float64

	// Time-domain HRV. All zero when fewer than 3 beats were detected.
	RMSSDMs     float64
	SDNNMs      float64
	StressIndex float64

	SNR        float64
	Confidence float64
	Quality    SignalQuality
	At         time.Time
}

// ColorSample is one fused skin-color measurement appended to the capture
// ring buffer and consumed by the rPPG algorithm.
type ColorSample struct {
	R, G, B float64
	At      time.Time
}

// OutcomeHistoryLen is the fixed length of the per-pattern rolling
// outcome window.
const OutcomeHistoryLen = 5

// SafetyProfile holds the per-pattern safety accumulators. Profiles are
// keyed by pattern ID, persisted externally, and mutated only at session
// end and by the safety guard.
type SafetyProfile struct {
	PatternID        string    `json:"pattern_id"`
	CumulativeStress float64   `json:"cumulative_stress"`
	LastIncidentAt   time.Time `json:"last_incident_at"`
	LockUntil        time.Time `json:"lock_until"`

	// Rolling history of session outcomes, newest last.
	// 1.0 = completed normally, 0.0 = ended by safety interdiction.
	Outcomes []float64 `json:"outcomes"`
}

// Locked reports whether the pattern is locked out at the given time.
func (p SafetyProfile) Locked(now time.Time) bool {
	return p.LockUntil.After(now)
}

// PushOutcome appends a session outcome, evicting the oldest entry once
// the window is full.
func (p *SafetyProfile) PushOutcome(v float64) {
	p.Outcomes = append(p.Outcomes, v)
	if len(p.Outcomes) > OutcomeHistoryLen {
		p.Outcomes = p.Outcomes[len(p.Outcomes)-OutcomeHistoryLen:]
	}
}

// SuccessRate returns the mean of the rolling outcome window, or 1.0 when
// no sessions have completed yet.
func (p SafetyProfile) SuccessRate() float64 {
	if len(p.Outcomes) == 0 {
		return 1.0
	}
	var sum float64
	for _, v := range p.Outcomes {
		sum += v
	}
	return sum / float64(len(p.Outcomes))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
