// Package monitor provides a debugging-only HTTP surface over a running
// kernel: JSON state snapshots, the recent event log, and a quick
// go-echarts chart of the belief trajectory. It is not the product UI.
package monitor

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pranalabs/breathloop/internal/kernel"
)

// samplePoint is one recorded snapshot for charting.
type samplePoint struct {
	At         time.Time
	Arousal    float64
	Rhythm     float64
	Valence    float64
	PredErr    float64
	TempoScale float64
	HeartRate  float64
}

// Recorder retains a rolling window of kernel snapshots. Register its
// Observe method as a kernel subscriber; reads from HTTP handlers are
// locked against the control loop's writes.
type Recorder struct {
	mu     sync.Mutex
	points []samplePoint
	max    int
}

// NewRecorder creates a recorder holding up to max points.
func NewRecorder(max int) *Recorder {
	if max < 1 {
		max = 4096
	}
	return &Recorder{max: max}
}

// Observe is the kernel subscriber callback.
func (r *Recorder) Observe(snap kernel.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, samplePoint{
		At:         time.Now(),
		Arousal:    snap.Belief.Arousal,
		Rhythm:     snap.Belief.Rhythm,
		Valence:    snap.Belief.Valence,
		PredErr:    snap.Belief.PredictionError,
		TempoScale: snap.TempoScale,
		HeartRate:  snap.LastObs.HeartRate,
	})
	if len(r.points) > r.max {
		r.points = r.points[len(r.points)-r.max:]
	}
}

func (r *Recorder) snapshot() []samplePoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]samplePoint(nil), r.points...)
}

// StateSource supplies the current kernel snapshot and recent events.
// Accesses must be safe to call from HTTP handler goroutines; wire these
// through a mutex-guarded adapter when the kernel lives on another
// goroutine.
type StateSource interface {
	State() kernel.Snapshot
	Events(n int) []kernel.Event
}

// WebServer is the monitoring HTTP server.
type WebServer struct {
	address  string
	source   StateSource
	recorder *Recorder
	server   *http.Server
}

// NewWebServer creates a monitor server bound to address.
func NewWebServer(address string, source StateSource, recorder *Recorder) *WebServer {
	ws := &WebServer{
		address:  address,
		source:   source,
		recorder: recorder,
	}
	ws.server = &http.Server{
		Addr:    address,
		Handler: ws.routes(),
	}
	return ws
}

func (ws *WebServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", ws.handleHealth)
	mux.HandleFunc("/api/state", ws.handleState)
	mux.HandleFunc("/api/events", ws.handleEvents)
	mux.HandleFunc("/chart", ws.handleChart)
	return mux
}

// Start serves in a goroutine and shuts down when ctx is cancelled.
func (ws *WebServer) Start(ctx context.Context) {
	go func() {
		log.Printf("monitor: listening on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("monitor: server error: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := ws.server.Shutdown(shutdownCtx); err != nil {
			log.Printf("monitor: shutdown: %v", err)
		}
	}()
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func (ws *WebServer) handleState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ws.source.State()); err != nil {
		log.Printf("monitor: encode state: %v", err)
	}
}

func (ws *WebServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	n := 100
	if q := r.URL.Query().Get("n"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 {
			n = v
		}
	}
	events := ws.source.Events(n)
	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		out = append(out, map[string]any{
			"seq":     e.Seq,
			"session": e.Session,
			"kind":    e.Kind,
			"at":      e.At,
			"payload": e.Payload,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Printf("monitor: encode events: %v", err)
	}
}
