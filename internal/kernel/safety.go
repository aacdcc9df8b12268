package kernel

import "github.com/pranalabs/breathloop/internal/breath"

// tempoStep is the guard's tempo recommendation for one belief update.
type tempoStep int

const (
	tempoHold tempoStep = iota
	tempoUp
	tempoDown
)

// verdict is the outcome of one guard evaluation.
type verdict struct {
	emergency   bool
	tempo       tempoStep
	stressDelta float64
}

// guard implements the safety interdiction policy. It is deliberately
// conservative: a genuine crisis is never downgraded, and the tempo loop
// carries a deadband and sustain timer so it cannot chatter every tick.
type guard struct {
	cfg Config

	lowAlignFor float64
	lastElapsed float64
	hasLast     bool
}

func newGuard(cfg Config) guard {
	return guard{cfg: cfg}
}

func (g *guard) reset() {
	g.lowAlignFor = 0
	g.lastElapsed = 0
	g.hasLast = false
}

// evaluate inspects a belief update against the current session clock.
// Trigger order matters: the emergency check runs before the tempo loop,
// and both are gated on the minimum session duration so estimator
// warm-up noise cannot trip them.
func (g *guard) evaluate(b breath.Belief, sessionElapsed float64) verdict {
	var dt float64
	if g.hasLast && sessionElapsed > g.lastElapsed {
		dt = sessionElapsed - g.lastElapsed
	}
	g.lastElapsed = sessionElapsed
	g.hasLast = true

	v := verdict{stressDelta: b.PredictionError * dt}

	// 1. Emergency halt on extreme prediction error, suppressed during
	// the warm-up grace period.
	if b.PredictionError > g.cfg.EmergencyThreshold && sessionElapsed >= g.cfg.MinSessionSec {
		v.emergency = true
		return v
	}

	// 2. Tempo adaptation on sustained low rhythm alignment. The deadband
	// between the low threshold and the recovery threshold keeps the two
	// branches from alternating.
	switch {
	case b.Rhythm < g.cfg.LowAlignmentThreshold:
		g.lowAlignFor += dt
		if sessionElapsed >= g.cfg.MinSessionSec && g.lowAlignFor >= g.cfg.AlignmentSustainSec {
			v.tempo = tempoUp
		}
	case b.Rhythm > g.cfg.LowAlignmentThreshold+g.cfg.AlignmentDeadband:
		g.lowAlignFor = 0
		v.tempo = tempoDown
	}
	return v
}
