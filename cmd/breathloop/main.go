// Command breathloop runs a demo biofeedback session against a synthetic
// camera feed: frames flow through the extraction pipeline, the vitals
// worker, the state estimator and the kernel, with events persisted to
// SQLite and an optional monitoring server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pranalabs/breathloop/internal/breath"
	"github.com/pranalabs/breathloop/internal/capture"
	"github.com/pranalabs/breathloop/internal/estimator"
	"github.com/pranalabs/breathloop/internal/kernel"
	"github.com/pranalabs/breathloop/internal/monitor"
	"github.com/pranalabs/breathloop/internal/store"
	"github.com/pranalabs/breathloop/internal/vitals"
)

// guardedKernel serializes kernel access between the control loop and
// the monitor's HTTP handlers. The kernel itself is single-threaded by
// contract; this is the one place that contract meets another goroutine.
type guardedKernel struct {
	mu sync.Mutex
	k  *kernel.Kernel
}

func (g *guardedKernel) State() kernel.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.k.State()
}

func (g *guardedKernel) Events(n int) []kernel.Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.k.Events(n)
}

func (g *guardedKernel) do(fn func(*kernel.Kernel)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g.k)
}

func main() {
	var (
		dbPath    = flag.String("db", "breathloop.db", "session database path")
		listen    = flag.String("listen", "", "monitor listen address (empty disables)")
		patternID = flag.String("pattern", "coherent-55", "breath pattern to run")
		duration  = flag.Duration("duration", 2*time.Minute, "session duration")
		hz        = flag.Float64("hz", 30, "control loop frequency")
		heartRate = flag.Float64("sim-hr", 72, "synthetic pulse rate in BPM")
		retention = flag.Duration("retention", 30*24*time.Hour, "persisted event retention")
	)
	flag.Parse()

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	gk := &guardedKernel{k: kernel.New(kernel.DefaultConfig(), st)}

	// Restore lockouts from previous runs.
	if registry, err := st.SafetyRegistry(); err != nil {
		log.Printf("load safety registry: %v", err)
	} else if len(registry) > 0 {
		gk.do(func(k *kernel.Kernel) { k.LoadSafetyRegistry(registry) })
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *listen != "" {
		recorder := monitor.NewRecorder(8192)
		gk.do(func(k *kernel.Kernel) { k.Subscribe(recorder.Observe) })
		monitor.NewWebServer(*listen, gk, recorder).Start(ctx)
	}

	est := estimator.New(estimator.DefaultConfig())
	pipeline := capture.NewPipeline(capture.DefaultConfig())
	worker := vitals.NewWorker(vitals.DefaultConfig(), nil)
	defer worker.Close()

	gen := capture.NewSyntheticGenerator(time.Now().UnixNano())
	gen.HeartRateBPM = *heartRate
	gen.FrameRate = *hz

	gk.do(func(k *kernel.Kernel) {
		k.Dispatch(kernel.Event{
			Kind:    kernel.EventLoadProtocol,
			Payload: kernel.LoadProtocolPayload{PatternID: *patternID},
		})
	})
	snap := gk.State()
	if snap.Pattern == nil {
		log.Fatalf("pattern %s did not load (locked or unknown)", *patternID)
	}
	est.SetProtocol(snap.Pattern)

	gk.do(func(k *kernel.Kernel) {
		k.Dispatch(kernel.Event{Kind: kernel.EventStartSession})
	})

	log.Printf("session started: pattern=%s duration=%s", *patternID, *duration)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / *hz))
	defer ticker.Stop()
	deadline := time.After(*duration)
	last := time.Now()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline:
			break loop
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now

			frame, kp := gen.Next()
			pipeline.Process(frame, kp)

			if pipeline.Ready() {
				worker.TrySubmit(pipeline.Samples(), pipeline.Motion())
			}
			if v, ok := worker.Last(); ok {
				pipeline.SetVitals(v)
			}

			obs := observe(pipeline, now, dt)
			gk.do(func(k *kernel.Kernel) {
				k.Tick(dt, obs)
				k.ApplyBeliefUpdate(est.Update(obs, dt))
			})
		}
	}

	gk.do(func(k *kernel.Kernel) {
		k.Dispatch(kernel.Event{Kind: kernel.EventHalt, Payload: kernel.HaltPayload{Reason: "session complete"}})
	})

	if removed, err := st.GarbageCollect(*retention); err != nil {
		log.Printf("garbage collect: %v", err)
	} else if removed > 0 {
		log.Printf("garbage collected %d expired events", removed)
	}

	final := gk.State()
	log.Printf("session ended: status=%s cycles=%d tempo=%.2f belief(arousal=%.2f rhythm=%.2f conf=%.2f)",
		final.Status, final.CycleCount, final.TempoScale,
		final.Belief.Arousal, final.Belief.Rhythm, final.Belief.Confidence)
}

// observe assembles the per-tick observation vector from the pipeline's
// current outputs.
func observe(p *capture.Pipeline, now time.Time, dt float64) breath.Observation {
	obs := breath.Observation{At: now, DT: dt}
	if v, ok := p.Vitals(); ok {
		obs.HeartRate = v.HeartRateBPM
		obs.HRConfidence = v.Confidence
		obs.Respiration = v.RespirationRPM
		if v.StressIndex > 0 {
			obs.Stress = v.StressIndex
			obs.HasStress = true
		}
	}
	if val, ok := p.Valence(); ok {
		obs.Valence = val
		obs.HasValence = true
	}
	return obs
}
