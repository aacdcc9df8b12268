// Package store is the SQLite-backed persistence collaborator for the
// kernel: the durable event subset, session metadata, and the persisted
// safety registry. The kernel only ever sees the narrow Persistence
// interface; nothing here may call back into the control loop.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pranalabs/breathloop/internal/breath"
	"github.com/pranalabs/breathloop/internal/kernel"
)

// Store wraps the session database.
type Store struct {
	*sql.DB
}

// Open opens (and if needed creates) the session database at path. Use
// ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS kernel_events (
			seq INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			at_unix_nanos INTEGER NOT NULL,
			payload TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_kernel_events_session
			ON kernel_events(session_id);
		CREATE INDEX IF NOT EXISTS idx_kernel_events_at
			ON kernel_events(at_unix_nanos);
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db}, nil
}

// WriteEvent persists one kernel event. Payloads are stored as JSON.
func (s *Store) WriteEvent(e kernel.Event) error {
	payload := "{}"
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", e.Kind, err)
		}
		payload = string(raw)
	}
	_, err := s.Exec(
		"INSERT INTO kernel_events (seq, session_id, kind, at_unix_nanos, payload) VALUES (?, ?, ?, ?, ?)",
		e.Seq, e.Session, string(e.Kind), e.At.UnixNano(), payload,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// SetMeta upserts one metadata entry.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// GetMeta reads one metadata entry. A missing key returns ("", nil).
func (s *Store) GetMeta(key string) (string, error) {
	var value string
	err := s.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get meta %s: %w", key, err)
	}
	return value, nil
}

// GarbageCollect deletes persisted events older than the retention
// window.
func (s *Store) GarbageCollect(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UnixNano()
	res, err := s.Exec("DELETE FROM kernel_events WHERE at_unix_nanos < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("garbage collect: %w", err)
	}
	return res.RowsAffected()
}

// SessionLog returns the persisted events of one session, in commit
// order.
func (s *Store) SessionLog(sessionID string) ([]kernel.Event, error) {
	rows, err := s.Query(
		"SELECT seq, session_id, kind, at_unix_nanos, payload FROM kernel_events WHERE session_id = ? ORDER BY seq",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query session log: %w", err)
	}
	defer rows.Close()

	var events []kernel.Event
	for rows.Next() {
		var (
			e       kernel.Event
			kind    string
			atNanos int64
			payload string
		)
		if err := rows.Scan(&e.Seq, &e.Session, &kind, &atNanos, &payload); err != nil {
			return nil, err
		}
		e.Kind = kernel.EventKind(kind)
		e.At = time.Unix(0, atNanos)
		p, err := decodePayload(e.Kind, payload)
		if err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		e.Payload = p
		events = append(events, e)
	}
	return events, rows.Err()
}

// SessionIDs lists distinct persisted sessions, most recent first.
func (s *Store) SessionIDs() ([]string, error) {
	rows, err := s.Query(
		"SELECT session_id, MAX(at_unix_nanos) AS latest FROM kernel_events WHERE session_id != '' GROUP BY session_id ORDER BY latest DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		var latest int64
		if err := rows.Scan(&id, &latest); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const profileKeyPrefix = "safety_profile:"

// SafetyRegistry loads every persisted safety profile, keyed by pattern
// ID. Used at kernel boot to restore lockouts across restarts.
func (s *Store) SafetyRegistry() (map[string]breath.SafetyProfile, error) {
	rows, err := s.Query("SELECT key, value FROM meta WHERE key LIKE ?", profileKeyPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("query safety registry: %w", err)
	}
	defer rows.Close()

	registry := make(map[string]breath.SafetyProfile)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		var prof breath.SafetyProfile
		if err := json.Unmarshal([]byte(value), &prof); err != nil {
			return nil, fmt.Errorf("decode profile %s: %w", key, err)
		}
		registry[strings.TrimPrefix(key, profileKeyPrefix)] = prof
	}
	return registry, rows.Err()
}

// decodePayload rebuilds the typed payload for a persisted event kind.
func decodePayload(kind kernel.EventKind, raw string) (kernel.Payload, error) {
	data := []byte(raw)
	switch kind {
	case kernel.EventBoot:
		var p kernel.BootPayload
		return p, json.Unmarshal(data, &p)
	case kernel.EventLoadProtocol:
		var p kernel.LoadProtocolPayload
		return p, json.Unmarshal(data, &p)
	case kernel.EventStartSession:
		var p kernel.StartSessionPayload
		return p, json.Unmarshal(data, &p)
	case kernel.EventTick:
		var p kernel.TickPayload
		return p, json.Unmarshal(data, &p)
	case kernel.EventBeliefUpdate:
		var p kernel.BeliefPayload
		return p, json.Unmarshal(data, &p)
	case kernel.EventPhaseTransition:
		var p kernel.PhasePayload
		return p, json.Unmarshal(data, &p)
	case kernel.EventCycleComplete:
		var p kernel.CyclePayload
		return p, json.Unmarshal(data, &p)
	case kernel.EventInterruption, kernel.EventResume:
		var p kernel.InterruptionPayload
		return p, json.Unmarshal(data, &p)
	case kernel.EventHalt:
		var p kernel.HaltPayload
		return p, json.Unmarshal(data, &p)
	case kernel.EventSafetyInterdiction:
		var p kernel.SafetyPayload
		return p, json.Unmarshal(data, &p)
	case kernel.EventLoadSafetyRegistry:
		var p kernel.RegistryPayload
		return p, json.Unmarshal(data, &p)
	case kernel.EventAdjustTempo:
		var p kernel.TempoPayload
		return p, json.Unmarshal(data, &p)
	case kernel.EventIntervention, kernel.EventVoiceCommand:
		var p kernel.InterventionPayload
		return p, json.Unmarshal(data, &p)
	default:
		return nil, nil
	}
}
