package capture

import "math"

// Point is a pixel-space 2D coordinate from the face-landmark detector.
type Point struct {
	X, Y float64
}

func dist(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Semantic keypoint indices. The external detector returns points at
// these fixed positions; anything shorter than KeypointCount is treated
// as no face.
const (
	IdxNoseTip = iota
	IdxMouthLeft
	IdxMouthRight
	IdxBrowInnerLeft
	IdxBrowInnerRight
	IdxBrowOuterLeft
	IdxBrowOuterRight
	IdxCheekLeft
	IdxCheekRight
	IdxJawLeft
	IdxJawRight
	KeypointCount
)

// Keypoints is one face's landmark set, indexed by the Idx constants.
type Keypoints []Point

// Valid reports whether the set carries all semantic indices.
func (k Keypoints) Valid() bool { return len(k) >= KeypointCount }

// FaceWidth is the jaw-to-jaw distance used to normalise geometric
// measurements against camera distance.
func (k Keypoints) FaceWidth() float64 { return dist(k[IdxJawLeft], k[IdxJawRight]) }

// Rect is an axis-aligned pixel region, clamped to frame bounds.
type Rect struct {
	X0, Y0, X1, Y1 int // half-open: [X0,X1) x [Y0,Y1)
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

func clampRect(r Rect, w, h int) Rect {
	if r.X0 < 0 {
		r.X0 = 0
	}
	if r.Y0 < 0 {
		r.Y0 = 0
	}
	if r.X1 > w {
		r.X1 = w
	}
	if r.Y1 > h {
		r.Y1 = h
	}
	return r
}

// regionsOfInterest computes the three skin regions sampled for rPPG:
// forehead plus both cheeks. Any single region is vulnerable to local
// specular highlights or partial occlusion; the caller fuses all three.
func regionsOfInterest(k Keypoints, frameW, frameH int) [3]Rect {
	faceW := k.FaceWidth()

	// Forehead: the band spanning the outer brows, extending upward by a
	// fraction of the face width.
	fx0 := int(math.Min(k[IdxBrowOuterLeft].X, k[IdxBrowOuterRight].X))
	fx1 := int(math.Max(k[IdxBrowOuterLeft].X, k[IdxBrowOuterRight].X))
	browY := math.Min(k[IdxBrowInnerLeft].Y, k[IdxBrowInnerRight].Y)
	forehead := Rect{
		X0: fx0,
		Y0: int(browY - 0.35*faceW),
		X1: fx1,
		Y1: int(browY - 0.08*faceW),
	}

	// Cheeks: squares centered on the cheek landmarks.
	half := 0.12 * faceW
	left := Rect{
		X0: int(k[IdxCheekLeft].X - half),
		Y0: int(k[IdxCheekLeft].Y - half),
		X1: int(k[IdxCheekLeft].X + half),
		Y1: int(k[IdxCheekLeft].Y + half),
	}
	right := Rect{
		X0: int(k[IdxCheekRight].X - half),
		Y0: int(k[IdxCheekRight].Y - half),
		X1: int(k[IdxCheekRight].X + half),
		Y1: int(k[IdxCheekRight].Y + half),
	}

	return [3]Rect{
		clampRect(forehead, frameW, frameH),
		clampRect(left, frameW, frameH),
		clampRect(right, frameW, frameH),
	}
}
