// Package capture turns raw video frames plus externally detected facial
// keypoints into the inputs the vitals extractor needs: a rolling buffer
// of fused skin-color samples, a per-frame motion score, and a smoothed
// facial-valence proxy.
//
// Face detection itself is a collaborator, not built here: the pipeline
// accepts zero or one keypoint set per frame and treats zero as "signal
// lost", decaying confidence instead of cliff-edging to nothing.
package capture
