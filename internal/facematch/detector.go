package facematch

import "math"

// Face is a single face found in a frame, with its location and the
// embedding vector used for identification.
type Face struct {
	// Box is the bounding rectangle as top, right, bottom, left pixel
	// offsets.
	Box [4]int

	// Embedding is the face descriptor. All embeddings in a deployment
	// share one dimension.
	Embedding []float64
}

// Detector locates faces in a frame and computes their embeddings.
// Implementations wrap an external recognition engine or, for tests
// and the sim profile, a canned mapping.
type Detector interface {
	Detect(frame Frame) ([]Face, error)
}

// euclideanDistance returns the L2 distance between two embeddings.
func euclideanDistance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// distanceConfidence converts a match distance into a 0..1 confidence.
// A perfect match (distance 0) is 1.0; anything past 1.0 clamps to 0.
func distanceConfidence(distance float64) float64 {
	c := 1.0 - distance
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
