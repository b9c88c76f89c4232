package emotion

import (
	"math"
	"math/rand"
	"testing"

	"github.com/kdemchenko/emocam/internal/detector"
)

func face(confidence float64, expressions map[string]float64) detector.Detection {
	return detector.Detection{Confidence: confidence, Expressions: expressions}
}

func TestAggregateDominantPromotion(t *testing.T) {
	tests := []struct {
		name         string
		detections   []detector.Detection
		wantDominant string
		wantPromoted bool
	}{
		{
			name: "clear winner above activation threshold",
			detections: []detector.Detection{
				face(0.9, map[string]float64{"happy": 0.5, "neutral": 0.3}),
			},
			wantDominant: "happy",
			wantPromoted: true,
		},
		{
			name: "maximum below activation threshold",
			detections: []detector.Detection{
				face(0.9, map[string]float64{"happy": 0.15, "neutral": 0.1}),
			},
			wantDominant: "neutral",
			wantPromoted: false,
		},
		{
			name:         "no faces defaults to neutral",
			detections:   nil,
			wantDominant: "neutral",
			wantPromoted: false,
		},
		{
			name: "tie resolved by canonical label order",
			detections: []detector.Detection{
				face(0.8, map[string]float64{"sad": 0.4, "angry": 0.4}),
			},
			wantDominant: "sad",
			wantPromoted: true,
		},
		{
			name: "exactly at activation threshold promotes",
			detections: []detector.Detection{
				face(0.8, map[string]float64{"surprised": 0.2}),
			},
			wantDominant: "surprised",
			wantPromoted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := Aggregate(tt.detections)

			if summary.Dominant != tt.wantDominant {
				t.Errorf("expected dominant %q, got %q", tt.wantDominant, summary.Dominant)
			}
			if summary.Promoted != tt.wantPromoted {
				t.Errorf("expected promoted=%v, got %v", tt.wantPromoted, summary.Promoted)
			}
			if want := Emoji(tt.wantDominant); summary.Emoji != want {
				t.Errorf("expected emoji %q, got %q", want, summary.Emoji)
			}
		})
	}
}

func TestAggregateAveraging(t *testing.T) {
	detections := []detector.Detection{
		face(0.9, map[string]float64{"happy": 0.8, "neutral": 0.2}),
		face(0.7, map[string]float64{"happy": 0.4, "sad": 0.6}),
	}

	summary := Aggregate(detections)

	if summary.FaceCount != 2 {
		t.Errorf("expected face count 2, got %d", summary.FaceCount)
	}
	if math.Abs(summary.AvgConfidence-0.8) > 1e-9 {
		t.Errorf("expected avg confidence 0.8, got %f", summary.AvgConfidence)
	}
	if math.Abs(summary.Distribution["happy"]-0.6) > 1e-9 {
		t.Errorf("expected happy 0.6, got %f", summary.Distribution["happy"])
	}
	if math.Abs(summary.Distribution["sad"]-0.3) > 1e-9 {
		t.Errorf("expected sad 0.3, got %f", summary.Distribution["sad"])
	}
}

func TestAggregateEmptyDistribution(t *testing.T) {
	summary := Aggregate(nil)

	if summary.FaceCount != 0 {
		t.Errorf("expected face count 0, got %d", summary.FaceCount)
	}
	if summary.AvgConfidence != 0 {
		t.Errorf("expected avg confidence 0, got %f", summary.AvgConfidence)
	}
	for _, label := range Labels {
		if summary.Distribution[label] != 0 {
			t.Errorf("expected %s to be 0, got %f", label, summary.Distribution[label])
		}
	}
}

func TestAggregatePermutationInvariant(t *testing.T) {
	detections := []detector.Detection{
		face(0.9, map[string]float64{"happy": 0.7, "neutral": 0.3}),
		face(0.5, map[string]float64{"sad": 0.9, "fearful": 0.1}),
		face(0.8, map[string]float64{"angry": 0.5, "disgusted": 0.5}),
		face(0.6, map[string]float64{"surprised": 1.0}),
	}

	base := Aggregate(detections)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 10; trial++ {
		shuffled := make([]detector.Detection, len(detections))
		copy(shuffled, detections)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got := Aggregate(shuffled)

		if got.Dominant != base.Dominant {
			t.Fatalf("trial %d: dominant changed: %q vs %q", trial, got.Dominant, base.Dominant)
		}
		for _, label := range Labels {
			if math.Abs(got.Distribution[label]-base.Distribution[label]) > 1e-9 {
				t.Fatalf("trial %d: %s differs: %f vs %f",
					trial, label, got.Distribution[label], base.Distribution[label])
			}
		}
	}
}

func TestTopExpressionTieBreak(t *testing.T) {
	label, prob := TopExpression(map[string]float64{"neutral": 0.4, "fearful": 0.4})
	if label != "fearful" {
		t.Errorf("expected fearful to win tie over neutral, got %q", label)
	}
	if math.Abs(prob-0.4) > 1e-9 {
		t.Errorf("expected probability 0.4, got %f", prob)
	}
}

func TestHighlight(t *testing.T) {
	tests := []struct {
		name        string
		expressions map[string]float64
		want        bool
	}{
		{"above threshold", map[string]float64{"happy": 0.31}, true},
		{"at threshold is not enough", map[string]float64{"happy": 0.3}, false},
		{"below threshold", map[string]float64{"happy": 0.1}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Highlight(tt.expressions); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
