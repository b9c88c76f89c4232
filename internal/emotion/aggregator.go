package emotion

import (
	"github.com/kdemchenko/emocam/internal/detector"
)

// ActivationThreshold is the minimum averaged probability an emotion needs
// before it is promoted to the dominant label.
const ActivationThreshold = 0.2

// HighlightThreshold gates the per-face emotion strip in the overlay. It is
// a display decision only and never changes the dominant label.
const HighlightThreshold = 0.3

const Neutral = "neutral"

// Labels is the fixed emotion label set in canonical order. The order doubles
// as the tie-break rule: when two labels share the maximum averaged
// probability, the one earlier in this list wins.
var Labels = []string{"happy", "sad", "angry", "fearful", "disgusted", "surprised", Neutral}

var emojis = map[string]string{
	"happy":     "😊",
	"sad":       "😢",
	"angry":     "😠",
	"fearful":   "😨",
	"disgusted": "🤢",
	"surprised": "😲",
	Neutral:     "😐",
}

// Distribution maps each of the fixed labels to its averaged probability
// across the faces of one frame. Recomputed every frame, no history kept.
type Distribution map[string]float64

// Summary is the per-frame aggregate consumed by the API and the overlay.
// Emoji mirrors Dominant for display; the raster overlay font is ASCII-only,
// so the glyph travels in the JSON payloads instead of the strip.
type Summary struct {
	Distribution  Distribution `json:"distribution"`
	Dominant      string       `json:"dominant"`
	Emoji         string       `json:"emoji"`
	Promoted      bool         `json:"promoted"`
	FaceCount     int          `json:"face_count"`
	AvgConfidence float64      `json:"avg_confidence"`
}

// Aggregate averages the expression vectors of all detections into one
// Distribution and selects the dominant label. Zero faces yields an all-zero
// distribution with dominant neutral and no division. The result is
// independent of the input order.
func Aggregate(detections []detector.Detection) Summary {
	dist := make(Distribution, len(Labels))
	for _, label := range Labels {
		dist[label] = 0
	}

	summary := Summary{
		Distribution: dist,
		Dominant:     Neutral,
		Emoji:        Emoji(Neutral),
		FaceCount:    len(detections),
	}

	if len(detections) == 0 {
		return summary
	}

	confidenceSum := 0.0
	for _, d := range detections {
		confidenceSum += d.Confidence
		for _, label := range Labels {
			dist[label] += d.Expressions[label]
		}
	}

	n := float64(len(detections))
	for _, label := range Labels {
		dist[label] /= n
	}
	summary.AvgConfidence = confidenceSum / n

	top, max := topLabel(dist)
	if max >= ActivationThreshold {
		summary.Dominant = top
		summary.Emoji = Emoji(top)
		summary.Promoted = true
	}

	return summary
}

// TopExpression returns the highest-scoring label of a single face's
// expression vector, ties broken by canonical label order.
func TopExpression(expressions map[string]float64) (string, float64) {
	return topLabel(expressions)
}

// Highlight reports whether a face's emotion strip should be drawn.
func Highlight(expressions map[string]float64) bool {
	_, max := topLabel(expressions)
	return max > HighlightThreshold
}

// Emoji returns the display glyph for a label, falling back to neutral.
func Emoji(label string) string {
	if e, ok := emojis[label]; ok {
		return e
	}
	return emojis[Neutral]
}

func topLabel(scores map[string]float64) (string, float64) {
	top := Neutral
	max := -1.0
	for _, label := range Labels {
		if scores[label] > max {
			top = label
			max = scores[label]
		}
	}
	if max < 0 {
		max = 0
	}
	return top, max
}
