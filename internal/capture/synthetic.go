package capture

// Synthetic frame generation for tests and demos.

import (
	"math"
	"math/rand"
	"time"
)

// SyntheticGenerator produces frames of a synthetic face whose skin color
// pulses at a configured heart rate, plus matching keypoints. Used by the
// demo binary and the extraction tests.
type SyntheticGenerator struct {
	HeartRateBPM float64
	FrameRate    float64
	NoiseAmp     float64 // per-channel uniform noise amplitude
	JitterPx     float64 // landmark jitter, simulates head micro-motion
	Width        int
	Height       int

	start time.Time
	frame int64
	rng   *rand.Rand
}

// NewSyntheticGenerator creates a generator with a deterministic seed.
func NewSyntheticGenerator(seed int64) *SyntheticGenerator {
	return &SyntheticGenerator{
		HeartRateBPM: 72,
		FrameRate:    30,
		NoiseAmp:     0.5,
		JitterPx:     0.3,
		Width:        96,
		Height:       96,
		start:        time.Now(),
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// Next produces the next frame and its keypoints. Timestamps advance at
// the configured frame rate regardless of wall time, which keeps test
// runs deterministic.
func (g *SyntheticGenerator) Next() (Frame, Keypoints) {
	t := float64(g.frame) / g.FrameRate
	at := g.start.Add(time.Duration(t * float64(time.Second)))
	g.frame++

	// Pulsatile component: blood volume changes absorb green most.
	pulse := math.Sin(2 * math.Pi * g.HeartRateBPM / 60.0 * t)
	baseR := 182 + 1.2*pulse + g.noise()
	baseG := 128 + 2.5*pulse + g.noise()
	baseB := 108 + 0.8*pulse + g.noise()

	px := make([]uint8, g.Width*g.Height*4)
	for i := 0; i < len(px); i += 4 {
		px[i] = clampByte(baseR)
		px[i+1] = clampByte(baseG)
		px[i+2] = clampByte(baseB)
		px[i+3] = 255
	}

	w := float64(g.Width)
	h := float64(g.Height)
	kp := Keypoints{
		IdxNoseTip:        g.jitter(Point{X: 0.50 * w, Y: 0.55 * h}),
		IdxMouthLeft:      g.jitter(Point{X: 0.38 * w, Y: 0.75 * h}),
		IdxMouthRight:     g.jitter(Point{X: 0.62 * w, Y: 0.75 * h}),
		IdxBrowInnerLeft:  g.jitter(Point{X: 0.42 * w, Y: 0.38 * h}),
		IdxBrowInnerRight: g.jitter(Point{X: 0.58 * w, Y: 0.38 * h}),
		IdxBrowOuterLeft:  g.jitter(Point{X: 0.30 * w, Y: 0.40 * h}),
		IdxBrowOuterRight: g.jitter(Point{X: 0.70 * w, Y: 0.40 * h}),
		IdxCheekLeft:      g.jitter(Point{X: 0.32 * w, Y: 0.60 * h}),
		IdxCheekRight:     g.jitter(Point{X: 0.68 * w, Y: 0.60 * h}),
		IdxJawLeft:        g.jitter(Point{X: 0.22 * w, Y: 0.62 * h}),
		IdxJawRight:       g.jitter(Point{X: 0.78 * w, Y: 0.62 * h}),
	}

	return Frame{Width: g.Width, Height: g.Height, Pixels: px, At: at}, kp
}

func (g *SyntheticGenerator) noise() float64 {
	return (g.rng.Float64()*2 - 1) * g.NoiseAmp
}

func (g *SyntheticGenerator) jitter(p Point) Point {
	return Point{
		X: p.X + (g.rng.Float64()*2-1)*g.JitterPx,
		Y: p.Y + (g.rng.Float64()*2-1)*g.JitterPx,
	}
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
