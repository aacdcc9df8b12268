package vitals

import (
	"sync"

	"github.com/pranalabs/breathloop/internal/breath"
)

// Result is one completed extraction, successful or not.
type Result struct {
	Vitals breath.VitalSigns
	Err    error
}

type job struct {
	samples []breath.ColorSample
	motion  float64
}

// Worker runs extractions on its own goroutine with single-flight
// discipline: at most one job in flight, and a submission while busy is
// refused rather than queued. There is no timeout or cancellation; a
// stuck job simply blocks future triggering until it resolves.
type Worker struct {
	cfg      Config
	jobs     chan job
	done     chan struct{}
	onResult func(Result) // invoked on the worker goroutine; may be nil

	mu      sync.Mutex
	last    breath.VitalSigns
	hasLast bool
}

// NewWorker starts a worker. onResult, if non-nil, is called on the
// worker goroutine after every job; callers needing the result on their
// own goroutine can poll Last instead.
func NewWorker(cfg Config, onResult func(Result)) *Worker {
	w := &Worker{
		cfg:      cfg,
		jobs:     make(chan job), // unbuffered: a receive means the worker is idle
		done:     make(chan struct{}),
		onResult: onResult,
	}
	go w.run()
	return w
}

// TrySubmit hands a buffer snapshot to the worker. It returns false
// without blocking when a job is already in flight. The worker takes
// ownership of samples; callers must pass a copy, never the live buffer.
func (w *Worker) TrySubmit(samples []breath.ColorSample, motion float64) bool {
	select {
	case w.jobs <- job{samples: samples, motion: motion}:
		return true
	default:
		return false
	}
}

// Last returns the most recent successful result, if any.
func (w *Worker) Last() (breath.VitalSigns, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.hasLast
}

// Close stops the worker goroutine. Any in-flight job finishes first.
func (w *Worker) Close() {
	close(w.done)
}

func (w *Worker) run() {
	for {
		select {
		case <-w.done:
			return
		case j := <-w.jobs:
			v, err := Analyze(j.samples, j.motion, w.cfg)
			if err == nil {
				w.mu.Lock()
				w.last = v
				w.hasLast = true
				w.mu.Unlock()
			}
			if w.onResult != nil {
				w.onResult(Result{Vitals: v, Err: err})
			}
		}
	}
}
