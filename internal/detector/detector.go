package detector

import (
	"context"
)

// Point is a single landmark coordinate in frame-pixel units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is a face bounding box in frame-pixel units.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is one face found in a single frame. Instances are built fresh
// per frame and never persisted.
type Detection struct {
	Box         Box                `json:"box"`
	Confidence  float64            `json:"confidence"`
	Landmarks   []Point            `json:"landmarks"`
	Expressions map[string]float64 `json:"expressions"`
}

// DetectOptions is passed through to the inference service.
type DetectOptions struct {
	InputSize       int     `json:"input_size"`
	ScoreThreshold  float64 `json:"score_threshold"`
	WithLandmarks   bool    `json:"with_landmarks"`
	WithExpressions bool    `json:"with_expressions"`
}

// FaceDetector runs face detection on a single JPEG-encoded frame.
// Detections come back in the inference service's own order; implementations
// must not re-sort them. No internal retries: a failed call returns an error
// and the caller owns the retry policy.
type FaceDetector interface {
	DetectFaces(ctx context.Context, frame []byte, opts DetectOptions) ([]Detection, error)
}

// DetectOrEmpty maps detection failures to an empty list for callers that
// have no retry path of their own (one-shot tooling).
func DetectOrEmpty(ctx context.Context, d FaceDetector, frame []byte, opts DetectOptions) []Detection {
	detections, err := d.DetectFaces(ctx, frame, opts)
	if err != nil {
		return nil
	}
	return detections
}
