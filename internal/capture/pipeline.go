package capture

import (
	"time"

	"github.com/pranalabs/breathloop/internal/breath"
)

// Frame is one raw video frame in RGBA layout (4 bytes per pixel,
// row-major). Camera access is a collaborator; frames arrive here
// already decoded.
type Frame struct {
	Width  int
	Height int
	Pixels []uint8
	At     time.Time
}

// Config holds the extraction pipeline tuning parameters.
type Config struct {
	BufferSeconds   float64 // rolling sample window
	FrameRate       float64 // expected capture cadence, Hz
	SubsampleStride int     // spatial stride when averaging a region

	// Valence proxy geometry. Ratios are empirically centered so a
	// neutral face maps near zero, then amplified into [-1,1].
	SmileCenter  float64
	SmileGain    float64
	FurrowCenter float64
	FurrowGain   float64
	ValenceAlpha float64 // slow EMA factor for the smoothed proxy

	MotionGain      float64 // displacement-to-score gain
	LostFaceDecay   float64 // confidence decay factor per face-lost frame
	MinAnalysisSamp int     // buffer length before analysis is triggered
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		BufferSeconds:   6.0,
		FrameRate:       30.0,
		SubsampleStride: 2,
		SmileCenter:     0.38,
		SmileGain:       6.0,
		FurrowCenter:    0.22,
		FurrowGain:      8.0,
		ValenceAlpha:    0.05,
		MotionGain:      12.0,
		LostFaceDecay:   0.95,
		MinAnalysisSamp: 128,
	}
}

// Pipeline extracts rPPG inputs from frames. Not thread-safe; it lives on
// the capture loop. Last-known vitals are an explicit field here rather
// than ambient global state so the fallback path stays unit-testable.
type Pipeline struct {
	cfg Config
	buf *SampleBuffer

	valence    float64
	hasValence bool

	motion      float64
	lastNose    Point
	hasLastNose bool

	vitals     breath.VitalSigns
	hasVitals  bool
	confidence float64
}

// NewPipeline creates a pipeline with a buffer sized for the configured
// window at the configured frame rate.
func NewPipeline(cfg Config) *Pipeline {
	capacity := int(cfg.BufferSeconds * cfg.FrameRate)
	return &Pipeline{
		cfg: cfg,
		buf: NewSampleBuffer(capacity),
	}
}

// Process ingests one frame and its detected keypoints. A nil or
// incomplete keypoint set means no face: vitals are not recomputed and
// the last-known confidence decays geometrically instead of dropping to
// zero, so a briefly lost face cannot produce a cliff-edge downstream.
func (p *Pipeline) Process(frame Frame, kp Keypoints) {
	if !kp.Valid() {
		p.faceLost()
		return
	}

	rois := regionsOfInterest(kp, frame.Width, frame.Height)
	var r, g, b float64
	regions := 0
	for _, roi := range rois {
		if roi.Empty() {
			continue
		}
		rr, rg, rb := p.meanColor(frame, roi)
		r += rr
		g += rg
		b += rb
		regions++
	}
	if regions > 0 {
		// Multi-region fusion by simple mean.
		p.buf.Add(breath.ColorSample{
			R:  r / float64(regions),
			G:  g / float64(regions),
			B:  b / float64(regions),
			At: frame.At,
		})
	}

	p.updateValence(kp)
	p.updateMotion(kp)
}

func (p *Pipeline) faceLost() {
	p.confidence *= p.cfg.LostFaceDecay
	if p.hasVitals {
		p.vitals.Confidence = p.confidence
		p.vitals.Quality = breath.QualityForConfidence(p.confidence)
	}
	p.hasLastNose = false
}

// meanColor averages a region's color, spatially subsampled for speed.
func (p *Pipeline) meanColor(frame Frame, roi Rect) (r, g, b float64) {
	stride := p.cfg.SubsampleStride
	if stride < 1 {
		stride = 1
	}
	var n float64
	for y := roi.Y0; y < roi.Y1; y += stride {
		row := y * frame.Width * 4
		for x := roi.X0; x < roi.X1; x += stride {
			off := row + x*4
			r += float64(frame.Pixels[off])
			g += float64(frame.Pixels[off+1])
			b += float64(frame.Pixels[off+2])
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0
	}
	return r / n, g / n, b / n
}

// updateValence computes the geometric valence proxy: mouth width as a
// smile signal minus brow pinch as a furrow signal, each normalised by
// face width, then smoothed with a slow exponential filter.
func (p *Pipeline) updateValence(kp Keypoints) {
	faceW := kp.FaceWidth()
	if faceW <= 0 {
		return
	}
	smile := (dist(kp[IdxMouthLeft], kp[IdxMouthRight])/faceW - p.cfg.SmileCenter) * p.cfg.SmileGain
	// Brows pinch together when furrowed, so the signal grows as the
	// inner-brow gap shrinks below its neutral center.
	furrow := (p.cfg.FurrowCenter - dist(kp[IdxBrowInnerLeft], kp[IdxBrowInnerRight])/faceW) * p.cfg.FurrowGain
	raw := breath.Clamp(smile-furrow, -1, 1)

	if !p.hasValence {
		p.valence = raw
		p.hasValence = true
		return
	}
	p.valence += (raw - p.valence) * p.cfg.ValenceAlpha
}

// updateMotion scores frame-to-frame displacement of the nose tip,
// normalised by face width.
func (p *Pipeline) updateMotion(kp Keypoints) {
	nose := kp[IdxNoseTip]
	if p.hasLastNose {
		faceW := kp.FaceWidth()
		if faceW > 0 {
			d := dist(nose, p.lastNose) / faceW
			p.motion = breath.Clamp(d*p.cfg.MotionGain, 0, 1)
		}
	}
	p.lastNose = nose
	p.hasLastNose = true
}

// Ready reports whether the buffer holds enough samples to trigger an
// analysis job.
func (p *Pipeline) Ready() bool { return p.buf.Len() >= p.cfg.MinAnalysisSamp }

// Samples returns a chronological copy of the buffered color samples.
func (p *Pipeline) Samples() []breath.ColorSample { return p.buf.Snapshot() }

// Motion returns the current motion score in [0,1].
func (p *Pipeline) Motion() float64 { return p.motion }

// Valence returns the smoothed valence proxy and whether one exists yet.
func (p *Pipeline) Valence() (float64, bool) { return p.valence, p.hasValence }

// SetVitals records a completed extraction result as the last-known
// fallback.
func (p *Pipeline) SetVitals(v breath.VitalSigns) {
	p.vitals = v
	p.hasVitals = true
	p.confidence = v.Confidence
}

// Vitals returns the last-known vitals and whether any exist.
func (p *Pipeline) Vitals() (breath.VitalSigns, bool) { return p.vitals, p.hasVitals }
