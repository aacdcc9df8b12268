package kernel

import (
	"encoding/json"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/pranalabs/breathloop/internal/breath"
)

// Status is the kernel's session lifecycle state.
type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusRunning    Status = "RUNNING"
	StatusPaused     Status = "PAUSED"
	StatusSafetyLock Status = "SAFETY_LOCK"
)

// Config holds the kernel and safety-guard tuning parameters. These are
// constants of the build, not a file format.
type Config struct {
	// Safety guard.
	EmergencyThreshold    float64 // prediction error above this forces a halt
	MinSessionSec         float64 // grace period before emergency eligibility
	LowAlignmentThreshold float64 // rhythm alignment below this counts as off-pace
	AlignmentDeadband     float64 // recovery margin above the threshold
	AlignmentSustainSec   float64 // how long alignment must stay low before acting
	LockoutDuration       time.Duration

	// Tempo discipline, shared by guard- and externally-issued changes.
	TempoMin      float64
	TempoMax      float64
	TempoStepUp   float64
	TempoStepDown float64

	// Control loop tolerances.
	MaxFrameDelta        float64 // seconds; larger tick deltas are clamped
	MaxPhaseStepsPerTick int

	LogCapacity int
}

// DefaultConfig returns the default kernel configuration.
func DefaultConfig() Config {
	return Config{
		EmergencyThreshold:    0.95,
		MinSessionSec:         10.0,
		LowAlignmentThreshold: 0.2,
		AlignmentDeadband:     0.1,
		AlignmentSustainSec:   2.0,
		LockoutDuration:       24 * time.Hour,
		TempoMin:              0.6,
		TempoMax:              1.8,
		TempoStepUp:           0.05,
		TempoStepDown:         0.02,
		MaxFrameDelta:         5.0,
		MaxPhaseStepsPerTick:  64,
		LogCapacity:           2048,
	}
}

// Persistence is the narrow slice of the external store the kernel calls.
// Failures are logged locally and never propagate into the control loop.
type Persistence interface {
	WriteEvent(Event) error
	SetMeta(key, value string) error
}

// persistWhitelist is the event subset forwarded to persistence.
// ADJUST_TEMPO is persisted only when AI-issued, and EMERGENCY_HALT
// interdictions are persisted unconditionally; both are handled at
// commit sites rather than here.
var persistWhitelist = map[EventKind]bool{
	EventStartSession:       true,
	EventHalt:               true,
	EventSafetyInterdiction: true,
	EventCycleComplete:      true,
}

// Snapshot is an immutable copy of the kernel's runtime state. Pattern
// and Registry are deep-copied; mutating a snapshot never touches the
// kernel.
type Snapshot struct {
	Status         Status
	Phase          breath.Phase
	PhaseElapsed   float64
	PhaseDuration  float64
	CycleCount     int
	TempoScale     float64
	SessionElapsed float64
	SessionID      string
	Pattern        *breath.Pattern
	Belief         breath.Belief
	Registry       map[string]breath.SafetyProfile
	LastObs        breath.Observation
	EventCount     int
}

// Kernel is the session state machine. Single-writer: Dispatch, Tick and
// ApplyBeliefUpdate must be serialized by the caller.
type Kernel struct {
	cfg   Config
	id    string
	store Persistence // may be nil
	clock func() time.Time

	status         Status
	phase          breath.Phase
	phaseElapsed   float64
	phaseDuration  float64
	cycleCount     int
	tempoScale     float64
	sessionElapsed float64
	sessionID      string
	sessionStress  float64
	pattern        *breath.Pattern
	belief         breath.Belief
	lastObs        breath.Observation
	registry       map[string]breath.SafetyProfile

	guard guard
	log   *EventLog
	seq   int64
	subs  []func(Snapshot)
}

// New creates a kernel and emits BOOT. A nil store disables persistence.
func New(cfg Config, store Persistence) *Kernel {
	k := &Kernel{
		cfg:        cfg,
		id:         uuid.NewString(),
		store:      store,
		clock:      time.Now,
		status:     StatusIdle,
		phase:      breath.PhaseInhale,
		tempoScale: 1.0,
		registry:   make(map[string]breath.SafetyProfile),
		guard:      newGuard(cfg),
		log:        NewEventLog(cfg.LogCapacity),
	}
	k.commit(EventBoot, BootPayload{KernelID: k.id}, false)
	return k
}

// SetClock overrides the kernel's time source. Test hook.
func (k *Kernel) SetClock(fn func() time.Time) { k.clock = fn }

// Subscribe registers an observer invoked synchronously after every
// committed mutation, in registration order. A panicking subscriber is
// contained and cannot corrupt kernel state or block later subscribers.
func (k *Kernel) Subscribe(fn func(Snapshot)) {
	k.subs = append(k.subs, fn)
}

// State returns a deep snapshot of the runtime state.
func (k *Kernel) State() Snapshot {
	snap := Snapshot{
		Status:         k.status,
		Phase:          k.phase,
		PhaseElapsed:   k.phaseElapsed,
		PhaseDuration:  k.phaseDuration,
		CycleCount:     k.cycleCount,
		TempoScale:     k.tempoScale,
		SessionElapsed: k.sessionElapsed,
		SessionID:      k.sessionID,
		Belief:         k.belief,
		LastObs:        k.lastObs,
		EventCount:     k.log.Len(),
		Registry:       make(map[string]breath.SafetyProfile, len(k.registry)),
	}
	if k.pattern != nil {
		p := *k.pattern
		snap.Pattern = &p
	}
	for id, prof := range k.registry {
		prof.Outcomes = append([]float64(nil), prof.Outcomes...)
		snap.Registry[id] = prof
	}
	return snap
}

// Events returns up to n recent log entries, oldest first.
func (k *Kernel) Events(n int) []Event { return k.log.Recent(n) }

// Dispatch applies one event to the runtime state. Synchronous and
// single-threaded; the caller owns serialization.
func (k *Kernel) Dispatch(e Event) {
	switch e.Kind {
	case EventLoadProtocol:
		p, _ := e.Payload.(LoadProtocolPayload)
		k.loadProtocol(p.PatternID)
	case EventStartSession:
		k.startSession()
	case EventInterruption:
		p, _ := e.Payload.(InterruptionPayload)
		k.interrupt(p.Reason)
	case EventResume:
		k.resume()
	case EventHalt:
		p, _ := e.Payload.(HaltPayload)
		reason := p.Reason
		if reason == "" {
			reason = "requested"
		}
		k.halt(reason, 1.0)
	case EventAdjustTempo:
		p, ok := e.Payload.(TempoPayload)
		if !ok {
			log.Printf("kernel: ADJUST_TEMPO without tempo payload dropped")
			return
		}
		origin := p.Origin
		if origin == "" {
			origin = TempoOriginUser
		}
		k.adjustTempo(p.Requested, p.Reason, origin)
	case EventBeliefUpdate:
		p, ok := e.Payload.(BeliefPayload)
		if !ok {
			log.Printf("kernel: BELIEF_UPDATE without belief payload dropped")
			return
		}
		k.ApplyBeliefUpdate(p.Belief)
	case EventIntervention, EventVoiceCommand:
		// Audit-only: the bridge follows up with concrete command events.
		k.commit(e.Kind, e.Payload, false)
	default:
		log.Printf("kernel: unhandled event kind %s dropped", e.Kind)
	}
}

// Tick advances the breathing phase clock. dt is wall seconds since the
// previous tick; values beyond the configured frame delta are clamped so
// a stalled render loop cannot smear a whole session into one call.
func (k *Kernel) Tick(dt float64, obs breath.Observation) {
	if dt < 0 {
		dt = 0
	}
	if dt > k.cfg.MaxFrameDelta {
		dt = k.cfg.MaxFrameDelta
	}

	// Interaction hints ride on the observation stream.
	switch obs.Interaction {
	case breath.InteractionPause:
		if k.status == StatusRunning {
			k.interrupt("user")
		}
	case breath.InteractionResume:
		if k.status == StatusPaused {
			k.resume()
		}
	}

	k.lastObs = obs
	if k.status != StatusRunning || k.pattern == nil {
		return
	}

	k.sessionElapsed += dt
	// TempoScale stretches the guide: scale > 1 makes each phase take
	// proportionally longer wall time.
	k.phaseElapsed += dt / k.tempoScale
	k.commit(EventTick, TickPayload{DT: dt}, false)

	// A dt much larger than one phase is resolved by looping, never by
	// assuming a single-phase advance.
	steps := 0
	for k.phaseElapsed >= k.phaseDuration && k.phaseDuration > 0 && steps < k.cfg.MaxPhaseStepsPerTick {
		k.phaseElapsed -= k.phaseDuration
		k.advancePhase()
		steps++
	}
}

// ApplyBeliefUpdate runs the safety guard over a belief update and then
// commits it into the runtime state.
func (k *Kernel) ApplyBeliefUpdate(b breath.Belief) {
	if k.status != StatusRunning && k.status != StatusPaused {
		return
	}

	v := k.guard.evaluate(b, k.sessionElapsed)
	k.sessionStress += v.stressDelta

	k.belief = b
	k.commit(EventBeliefUpdate, BeliefPayload{Belief: b}, false)

	if v.emergency {
		k.emergencyHalt(b.PredictionError)
		return
	}
	switch v.tempo {
	case tempoUp:
		k.adjustTempo(k.tempoScale+k.cfg.TempoStepUp, "low rhythm alignment", TempoOriginGuard)
	case tempoDown:
		// Recovered alignment eases the guide back toward baseline pace.
		if k.tempoScale > 1.0 {
			k.adjustTempo(math.Max(1.0, k.tempoScale-k.cfg.TempoStepDown), "alignment recovered", TempoOriginGuard)
		}
	}
}

// LoadSafetyRegistry replaces the in-memory safety registry.
func (k *Kernel) LoadSafetyRegistry(profiles map[string]breath.SafetyProfile) {
	k.registry = make(map[string]breath.SafetyProfile, len(profiles))
	for id, prof := range profiles {
		prof.Outcomes = append([]float64(nil), prof.Outcomes...)
		k.registry[id] = prof
	}
	k.commit(EventLoadSafetyRegistry, RegistryPayload{Profiles: len(profiles)}, false)
}

// UpdateSafetyProfile replaces one registry entry.
func (k *Kernel) UpdateSafetyProfile(id string, prof breath.SafetyProfile) {
	prof.PatternID = id
	prof.Outcomes = append([]float64(nil), prof.Outcomes...)
	k.registry[id] = prof
	k.persistProfile(prof)
	k.commit(EventLoadSafetyRegistry, RegistryPayload{Profiles: 1}, false)
}

// Reset is the explicit external escape from SAFETY_LOCK. It returns the
// kernel to IDLE with no pattern loaded; registry lockouts stay in force.
func (k *Kernel) Reset() {
	k.status = StatusIdle
	k.pattern = nil
	k.sessionID = ""
	k.sessionElapsed = 0
	k.sessionStress = 0
	k.phase = breath.PhaseInhale
	k.phaseElapsed = 0
	k.phaseDuration = 0
	k.cycleCount = 0
	k.tempoScale = 1.0
	k.belief = breath.Belief{}
	k.guard.reset()
	k.commit(EventIntervention, InterventionPayload{Source: "external", Command: "reset"}, false)
}

// --- transitions ---

func (k *Kernel) loadProtocol(id string) {
	if k.status != StatusIdle {
		log.Printf("kernel: LOAD_PROTOCOL %s ignored in status %s", id, k.status)
		return
	}
	// Fail closed: a locked pattern is never loaded.
	if prof, ok := k.registry[id]; ok && prof.Locked(k.clock()) {
		k.commit(EventSafetyInterdiction, SafetyPayload{
			Action:    ActionPatternLocked,
			PatternID: id,
		}, true)
		return
	}
	p, err := breath.LookupPattern(id)
	if err != nil {
		log.Printf("kernel: %v", err)
		k.commit(EventLoadProtocol, LoadProtocolPayload{PatternID: id, Loaded: false}, false)
		return
	}
	if err := p.Validate(); err != nil {
		log.Printf("kernel: %v", err)
		k.commit(EventLoadProtocol, LoadProtocolPayload{PatternID: id, Loaded: false}, false)
		return
	}
	k.pattern = &p
	k.phase = k.firstPhase()
	k.phaseElapsed = 0
	k.phaseDuration = p.PhaseDuration(k.phase)
	k.cycleCount = 0
	k.commit(EventLoadProtocol, LoadProtocolPayload{PatternID: id, Loaded: true}, false)
}

func (k *Kernel) startSession() {
	if k.status == StatusSafetyLock {
		k.commit(EventSafetyInterdiction, SafetyPayload{Action: ActionRejectStart}, true)
		return
	}
	if k.status != StatusIdle || k.pattern == nil {
		log.Printf("kernel: START_SESSION ignored (status=%s, pattern loaded=%t)", k.status, k.pattern != nil)
		return
	}
	k.sessionID = uuid.NewString()
	k.sessionElapsed = 0
	k.sessionStress = 0
	k.cycleCount = 0
	k.tempoScale = 1.0
	k.phase = k.firstPhase()
	k.phaseElapsed = 0
	k.phaseDuration = k.pattern.PhaseDuration(k.phase)
	k.guard.reset()
	k.status = StatusRunning
	k.commit(EventStartSession, StartSessionPayload{
		SessionID: k.sessionID,
		PatternID: k.pattern.ID,
	}, true)
}

func (k *Kernel) interrupt(reason string) {
	if k.status != StatusRunning {
		return
	}
	k.status = StatusPaused
	k.commit(EventInterruption, InterruptionPayload{Reason: reason}, false)
}

func (k *Kernel) resume() {
	if k.status != StatusPaused {
		return
	}
	k.status = StatusRunning
	k.commit(EventResume, nil, false)
}

func (k *Kernel) halt(reason string, outcome float64) {
	if k.status != StatusRunning && k.status != StatusPaused {
		return
	}
	k.finishSession(outcome, false)
	k.status = StatusIdle
	k.commit(EventHalt, HaltPayload{Reason: reason, Outcome: outcome}, true)
}

func (k *Kernel) emergencyHalt(risk float64) {
	k.finishSession(0.0, true)
	k.status = StatusSafetyLock
	// Never dropped: persisted regardless of the whitelist.
	k.commit(EventSafetyInterdiction, SafetyPayload{
		Action:    ActionEmergencyHalt,
		RiskLevel: risk,
		PatternID: k.patternID(),
	}, true)
}

// finishSession folds the session outcome into the pattern's safety
// profile and forwards it to persistence.
func (k *Kernel) finishSession(outcome float64, incident bool) {
	id := k.patternID()
	if id == "" {
		return
	}
	prof := k.registry[id]
	prof.PatternID = id
	prof.CumulativeStress += k.sessionStress
	prof.PushOutcome(outcome)
	if incident {
		now := k.clock()
		prof.LastIncidentAt = now
		prof.LockUntil = now.Add(k.cfg.LockoutDuration)
	}
	k.registry[id] = prof
	k.persistProfile(prof)
}

func (k *Kernel) adjustTempo(requested float64, reason string, origin TempoOrigin) {
	if k.status != StatusRunning && k.status != StatusPaused {
		return
	}
	target := breath.Clamp(requested, k.cfg.TempoMin, k.cfg.TempoMax)
	applied := k.tempoScale
	switch {
	case target > k.tempoScale:
		applied = math.Min(k.tempoScale+k.cfg.TempoStepUp, target)
	case target < k.tempoScale:
		applied = math.Max(k.tempoScale-k.cfg.TempoStepDown, target)
	}
	if applied == k.tempoScale {
		return
	}
	k.tempoScale = applied
	k.commit(EventAdjustTempo, TempoPayload{
		Requested: requested,
		Applied:   applied,
		Reason:    reason,
		Origin:    origin,
	}, origin == TempoOriginAI)
}

func (k *Kernel) advancePhase() {
	from := k.phase
	p := k.phase
	for i := 0; i < len(breath.PhaseOrder); i++ {
		p = p.Next()
		if p == breath.PhaseInhale {
			k.cycleCount++
			k.commit(EventCycleComplete, CyclePayload{Cycle: k.cycleCount}, true)
		}
		if k.pattern.PhaseDuration(p) > 0 {
			break
		}
	}
	k.phase = p
	k.phaseDuration = k.pattern.PhaseDuration(p)
	k.commit(EventPhaseTransition, PhasePayload{From: from, To: p}, false)
}

// firstPhase returns the first phase of the cycle with a nonzero
// duration. Patterns are validated to have at least one.
func (k *Kernel) firstPhase() breath.Phase {
	p := breath.PhaseInhale
	for i := 0; i < len(breath.PhaseOrder); i++ {
		if k.pattern.PhaseDuration(p) > 0 {
			return p
		}
		p = p.Next()
	}
	return breath.PhaseInhale
}

func (k *Kernel) patternID() string {
	if k.pattern == nil {
		return ""
	}
	return k.pattern.ID
}

// --- commit path ---

// commit appends an event to the log, forwards it to persistence when
// whitelisted (or forced), and notifies subscribers. This is the single
// point every mutation flows through.
func (k *Kernel) commit(kind EventKind, payload Payload, forcePersist bool) {
	k.seq++
	e := Event{
		Seq:     k.seq,
		Session: k.sessionID,
		Kind:    kind,
		At:      k.clock(),
		Payload: payload,
	}
	k.log.Append(e)

	if k.store != nil && (forcePersist || persistWhitelist[kind]) {
		if err := k.store.WriteEvent(e); err != nil {
			// Fire and forget: a failed write must not reach the control loop.
			log.Printf("kernel: persist %s failed: %v", kind, err)
		}
	}

	k.notify()
}

func (k *Kernel) persistProfile(prof breath.SafetyProfile) {
	if k.store == nil {
		return
	}
	raw, err := json.Marshal(prof)
	if err != nil {
		log.Printf("kernel: marshal safety profile %s: %v", prof.PatternID, err)
		return
	}
	if err := k.store.SetMeta("safety_profile:"+prof.PatternID, string(raw)); err != nil {
		log.Printf("kernel: persist safety profile %s: %v", prof.PatternID, err)
	}
}

func (k *Kernel) notify() {
	if len(k.subs) == 0 {
		return
	}
	snap := k.State()
	for i, fn := range k.subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("kernel: subscriber %d panicked: %v", i, r)
				}
			}()
			fn(snap)
		}()
	}
}
