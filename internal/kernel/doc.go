// Package kernel owns the session state machine for the biofeedback
// engine: session status, breathing-phase progression, the append-only
// event log, and the embedded safety guard that can halt a session or
// lock out a protocol based on the estimated risk.
//
// The kernel is single-threaded by contract. Dispatch and Tick must be
// called from one logical control loop; the kernel takes no internal
// locks. All reads by other components go through State(), which returns
// a deep snapshot, never the live mutable state.
package kernel
