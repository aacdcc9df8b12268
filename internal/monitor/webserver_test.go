package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pranalabs/breathloop/internal/breath"
	"github.com/pranalabs/breathloop/internal/kernel"
)

// fakeSource serves canned kernel state to the handlers.
type fakeSource struct {
	snap   kernel.Snapshot
	events []kernel.Event
}

func (f *fakeSource) State() kernel.Snapshot { return f.snap }

func (f *fakeSource) Events(n int) []kernel.Event {
	if n > len(f.events) {
		n = len(f.events)
	}
	return f.events[len(f.events)-n:]
}

func newTestServer(src *fakeSource, rec *Recorder) *httptest.Server {
	ws := NewWebServer("127.0.0.1:0", src, rec)
	return httptest.NewServer(ws.routes())
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&fakeSource{}, NewRecorder(16))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHandleState(t *testing.T) {
	src := &fakeSource{snap: kernel.Snapshot{
		Status:     kernel.StatusRunning,
		Phase:      breath.PhaseExhale,
		CycleCount: 3,
		TempoScale: 1.1,
	}}
	srv := newTestServer(src, NewRecorder(16))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got kernel.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Status != kernel.StatusRunning || got.Phase != breath.PhaseExhale || got.CycleCount != 3 {
		t.Errorf("unexpected snapshot: %+v", got)
	}
}

func TestHandleEventsLimit(t *testing.T) {
	src := &fakeSource{}
	for i := 1; i <= 10; i++ {
		src.events = append(src.events, kernel.Event{Seq: int64(i), Kind: kernel.EventTick})
	}
	srv := newTestServer(src, NewRecorder(16))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/events?n=3")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0]["seq"].(float64) != 8 {
		t.Errorf("expected the 3 most recent events, first seq = %v", got[0]["seq"])
	}
}

func TestHandleChart(t *testing.T) {
	rec := NewRecorder(16)
	srv := newTestServer(&fakeSource{}, rec)
	defer srv.Close()

	// Empty recorder: 404 rather than a blank chart.
	resp, err := http.Get(srv.URL + "/chart")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("empty chart status = %d, want 404", resp.StatusCode)
	}

	rec.Observe(kernel.Snapshot{TempoScale: 1.0, Belief: breath.Belief{Arousal: 0.4}})
	resp, err = http.Get(srv.URL + "/chart")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("chart status = %d, want 200", resp.StatusCode)
	}
	buf := make([]byte, 1024)
	n, _ := resp.Body.Read(buf)
	if !strings.Contains(string(buf[:n]), "<") {
		t.Error("expected an HTML chart body")
	}
}

func TestRecorderRollingWindow(t *testing.T) {
	rec := NewRecorder(4)
	for i := 0; i < 10; i++ {
		rec.Observe(kernel.Snapshot{TempoScale: float64(i)})
	}
	points := rec.snapshot()
	if len(points) != 4 {
		t.Fatalf("expected window pinned at 4, got %d", len(points))
	}
	if points[0].TempoScale != 6 || points[3].TempoScale != 9 {
		t.Errorf("expected the 4 most recent points, got %+v", points)
	}
}
