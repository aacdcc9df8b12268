package kernel

import (
	"testing"

	"github.com/pranalabs/breathloop/internal/breath"
)

// runFor advances a running session by whole seconds of quiet ticks.
func runFor(k *Kernel, seconds float64) {
	for elapsed := 0.0; elapsed < seconds; elapsed += 0.5 {
		k.Tick(0.5, breath.Observation{})
	}
}

func TestEmergencyHaltAfterGracePeriod(t *testing.T) {
	st := newFakeStore()
	k := New(DefaultConfig(), st)
	loadAndStart(t, k, "box-4")
	runFor(k, 12) // past the 10s minimum session duration

	k.ApplyBeliefUpdate(breath.Belief{PredictionError: 0.97, Rhythm: 0.8})

	snap := k.State()
	if snap.Status != StatusSafetyLock {
		t.Fatalf("expected SAFETY_LOCK, got %s", snap.Status)
	}

	var interdiction *Event
	for i := range st.events {
		if st.events[i].Kind == EventSafetyInterdiction {
			interdiction = &st.events[i]
		}
	}
	if interdiction == nil {
		t.Fatalf("EMERGENCY_HALT must be persisted, got %v", st.kinds())
	}
	p := interdiction.Payload.(SafetyPayload)
	if p.Action != ActionEmergencyHalt {
		t.Errorf("expected EMERGENCY_HALT, got %s", p.Action)
	}
	if p.RiskLevel != 0.97 {
		t.Errorf("expected risk level 0.97, got %v", p.RiskLevel)
	}

	// The incident locks the pattern out and records a failed outcome.
	prof := snap.Registry["box-4"]
	if !prof.Locked(k.clock()) {
		t.Errorf("expected the pattern locked after an incident")
	}
	if len(prof.Outcomes) != 1 || prof.Outcomes[0] != 0.0 {
		t.Errorf("expected one failed outcome, got %v", prof.Outcomes)
	}
	if prof.LastIncidentAt.IsZero() {
		t.Errorf("expected incident timestamp stamped")
	}
}

func TestEmergencyHaltSuppressedDuringWarmup(t *testing.T) {
	st := newFakeStore()
	k := New(DefaultConfig(), st)
	loadAndStart(t, k, "box-4")
	runFor(k, 5) // inside the grace period

	k.ApplyBeliefUpdate(breath.Belief{PredictionError: 0.99, Rhythm: 0.8})

	if got := k.State().Status; got != StatusRunning {
		t.Fatalf("warm-up noise must not halt the session, got %s", got)
	}
	for _, kind := range st.kinds() {
		if kind == EventSafetyInterdiction {
			t.Fatalf("no interdiction may be persisted during warm-up")
		}
	}
}

func TestSustainedLowAlignmentRaisesTempo(t *testing.T) {
	k := New(DefaultConfig(), nil)
	loadAndStart(t, k, "box-4")

	// Low alignment sustained well past the minimum session duration
	// must strictly raise the tempo scale above 1.0.
	for i := 0; i < 30; i++ {
		k.Tick(0.5, breath.Observation{})
		k.ApplyBeliefUpdate(breath.Belief{Rhythm: 0.1, PredictionError: 0.3})
	}

	snap := k.State()
	if snap.TempoScale <= 1.0 {
		t.Fatalf("expected tempo above 1.0, got %v", snap.TempoScale)
	}
	if snap.TempoScale > DefaultConfig().TempoMax {
		t.Fatalf("tempo exceeded the configured max: %v", snap.TempoScale)
	}
}

func TestTempoBoundedByConfiguredMax(t *testing.T) {
	k := New(DefaultConfig(), nil)
	loadAndStart(t, k, "box-4")

	for i := 0; i < 500; i++ {
		k.Tick(0.5, breath.Observation{})
		k.ApplyBeliefUpdate(breath.Belief{Rhythm: 0.05, PredictionError: 0.3})
	}

	if got := k.State().TempoScale; got != DefaultConfig().TempoMax {
		t.Errorf("expected tempo pinned at max %v, got %v", DefaultConfig().TempoMax, got)
	}
}

func TestTempoEasesBackOnRecovery(t *testing.T) {
	k := New(DefaultConfig(), nil)
	loadAndStart(t, k, "box-4")

	for i := 0; i < 30; i++ {
		k.Tick(0.5, breath.Observation{})
		k.ApplyBeliefUpdate(breath.Belief{Rhythm: 0.1})
	}
	raised := k.State().TempoScale
	if raised <= 1.0 {
		t.Fatalf("setup failed: tempo not raised, got %v", raised)
	}

	// Alignment recovers above threshold + deadband: tempo steps back
	// toward baseline but never below 1.0.
	for i := 0; i < 200; i++ {
		k.Tick(0.5, breath.Observation{})
		k.ApplyBeliefUpdate(breath.Belief{Rhythm: 0.9})
	}

	if got := k.State().TempoScale; got != 1.0 {
		t.Errorf("expected tempo eased back to 1.0, got %v", got)
	}
}

func TestAlignmentDeadbandHoldsTempo(t *testing.T) {
	k := New(DefaultConfig(), nil)
	loadAndStart(t, k, "box-4")

	for i := 0; i < 30; i++ {
		k.Tick(0.5, breath.Observation{})
		k.ApplyBeliefUpdate(breath.Belief{Rhythm: 0.1})
	}
	raised := k.State().TempoScale

	// Alignment inside the deadband (above low threshold, below the
	// recovery threshold) must neither raise nor lower the tempo.
	for i := 0; i < 20; i++ {
		k.Tick(0.5, breath.Observation{})
		k.ApplyBeliefUpdate(breath.Belief{Rhythm: 0.25})
	}

	if got := k.State().TempoScale; got != raised {
		t.Errorf("tempo changed inside the deadband: %v -> %v", raised, got)
	}
}

func TestGuardQuietWhenAligned(t *testing.T) {
	k := New(DefaultConfig(), nil)
	loadAndStart(t, k, "box-4")

	for i := 0; i < 60; i++ {
		k.Tick(0.5, breath.Observation{})
		k.ApplyBeliefUpdate(breath.Belief{Rhythm: 0.85, PredictionError: 0.2})
	}

	snap := k.State()
	if snap.Status != StatusRunning {
		t.Errorf("expected RUNNING, got %s", snap.Status)
	}
	if snap.TempoScale != 1.0 {
		t.Errorf("aligned session must keep baseline tempo, got %v", snap.TempoScale)
	}
}

func TestBeliefUpdateIgnoredWhenIdle(t *testing.T) {
	k := New(DefaultConfig(), nil)

	k.ApplyBeliefUpdate(breath.Belief{PredictionError: 0.99})

	if got := k.State().Status; got != StatusIdle {
		t.Errorf("belief updates outside a session must be ignored, got %s", got)
	}
}

func TestBeliefCommittedIntoRuntimeState(t *testing.T) {
	k := New(DefaultConfig(), nil)
	loadAndStart(t, k, "box-4")
	k.Tick(0.5, breath.Observation{})

	b := breath.Belief{Arousal: 0.42, Rhythm: 0.77, Confidence: 0.6}
	k.ApplyBeliefUpdate(b)

	if got := k.State().Belief; got != b {
		t.Errorf("expected belief committed verbatim, got %+v", got)
	}
}
