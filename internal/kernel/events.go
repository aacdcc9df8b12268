package kernel

import (
	"time"

	"github.com/pranalabs/breathloop/internal/breath"
)

// EventKind tags a kernel event.
type EventKind string

const (
	EventBoot               EventKind = "BOOT"
	EventLoadProtocol       EventKind = "LOAD_PROTOCOL"
	EventStartSession       EventKind = "START_SESSION"
	EventTick               EventKind = "TICK"
	EventBeliefUpdate       EventKind = "BELIEF_UPDATE"
	EventPhaseTransition    EventKind = "PHASE_TRANSITION"
	EventCycleComplete      EventKind = "CYCLE_COMPLETE"
	EventInterruption       EventKind = "INTERRUPTION"
	EventResume             EventKind = "RESUME"
	EventHalt               EventKind = "HALT"
	EventSafetyInterdiction EventKind = "SAFETY_INTERDICTION"
	EventLoadSafetyRegistry EventKind = "LOAD_SAFETY_REGISTRY"
	EventAdjustTempo        EventKind = "ADJUST_TEMPO"

	// Externally sourced events. Any outside actor (voice bridge, UI,
	// coaching AI) injects these through Dispatch like everything else.
	EventIntervention EventKind = "INTERVENTION"
	EventVoiceCommand EventKind = "VOICE_COMMAND"
)

// SafetyAction identifies what the safety guard did.
type SafetyAction string

const (
	ActionEmergencyHalt SafetyAction = "EMERGENCY_HALT"
	ActionPatternLocked SafetyAction = "PATTERN_LOCKED"
	ActionRejectStart   SafetyAction = "REJECT_START"
)

// TempoOrigin records which actor asked for a tempo change.
type TempoOrigin string

const (
	TempoOriginGuard TempoOrigin = "guard"
	TempoOriginAI    TempoOrigin = "ai"
	TempoOriginUser  TempoOrigin = "user"
)

// Event is one entry in the kernel's append-only log. Seq, Session and At
// are assigned by the kernel at commit time; callers constructing an event
// for Dispatch only fill Kind and Payload.
type Event struct {
	Seq     int64
	Session string
	Kind    EventKind
	At      time.Time
	Payload Payload
}

// Payload is the closed set of per-kind event payloads.
type Payload interface{ isPayload() }

// BootPayload accompanies the BOOT event emitted at construction.
type BootPayload struct {
	KernelID string `json:"kernel_id"`
}

// LoadProtocolPayload records a protocol load attempt.
type LoadProtocolPayload struct {
	PatternID string `json:"pattern_id"`
	Loaded    bool   `json:"loaded"`
}

// StartSessionPayload records a session start.
type StartSessionPayload struct {
	SessionID string `json:"session_id"`
	PatternID string `json:"pattern_id"`
}

// TickPayload records one control tick.
type TickPayload struct {
	DT float64 `json:"dt"`
}

// BeliefPayload carries a committed belief update.
type BeliefPayload struct {
	Belief breath.Belief `json:"belief"`
}

// PhasePayload records a breathing-phase transition.
type PhasePayload struct {
	From breath.Phase `json:"from"`
	To   breath.Phase `json:"to"`
}

// CyclePayload records completion of a full breathing cycle.
type CyclePayload struct {
	Cycle int `json:"cycle"`
}

// InterruptionPayload records a pause.
type InterruptionPayload struct {
	Reason string `json:"reason"`
}

// HaltPayload records the end of a session.
type HaltPayload struct {
	Reason  string  `json:"reason"`
	Outcome float64 `json:"outcome"` // 1.0 success, 0.0 safety failure
}

// SafetyPayload records a safety-guard interdiction.
type SafetyPayload struct {
	Action    SafetyAction `json:"action"`
	RiskLevel float64      `json:"risk_level"`
	PatternID string       `json:"pattern_id,omitempty"`
}

// RegistryPayload records a safety-registry load.
type RegistryPayload struct {
	Profiles int `json:"profiles"`
}

// TempoPayload records a tempo adjustment request and its committed result.
type TempoPayload struct {
	Requested float64     `json:"requested"`
	Applied   float64     `json:"applied"`
	Reason    string      `json:"reason"`
	Origin    TempoOrigin `json:"origin"`
}

// InterventionPayload records an external intervention or voice command.
type InterventionPayload struct {
	Source  string `json:"source"`
	Command string `json:"command"`
}

func (BootPayload) isPayload()         {}
func (LoadProtocolPayload) isPayload() {}
func (StartSessionPayload) isPayload() {}
func (TickPayload) isPayload()         {}
func (BeliefPayload) isPayload()       {}
func (PhasePayload) isPayload()        {}
func (CyclePayload) isPayload()        {}
func (InterruptionPayload) isPayload() {}
func (HaltPayload) isPayload()         {}
func (SafetyPayload) isPayload()       {}
func (RegistryPayload) isPayload()     {}
func (TempoPayload) isPayload()        {}
func (InterventionPayload) isPayload() {}

// EventLog is a fixed-capacity append-only ring of kernel events. The
// oldest entries are evicted on overflow; persistence of the important
// subset happens at commit time, not here.
type EventLog struct {
	events   []Event
	capacity int
	head     int // next write position
	size     int
}

// NewEventLog creates an event log with the given capacity.
func NewEventLog(capacity int) *EventLog {
	if capacity < 1 {
		capacity = 1024
	}
	return &EventLog{
		events:   make([]Event, capacity),
		capacity: capacity,
	}
}

// Append stores an event, overwriting the oldest if at capacity.
func (l *EventLog) Append(e Event) {
	l.events[l.head] = e
	l.head = (l.head + 1) % l.capacity
	if l.size < l.capacity {
		l.size++
	}
}

// Len returns the number of events currently retained.
func (l *EventLog) Len() int { return l.size }

// Recent returns up to n of the most recent events, oldest first.
func (l *EventLog) Recent(n int) []Event {
	if n > l.size {
		n = l.size
	}
	out := make([]Event, 0, n)
	for i := n; i >= 1; i-- {
		idx := (l.head - i + l.capacity) % l.capacity
		out = append(out, l.events[idx])
	}
	return out
}

// All returns every retained event, oldest first.
func (l *EventLog) All() []Event { return l.Recent(l.size) }
