package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kdemchenko/emocam/internal/detector"
	"github.com/kdemchenko/emocam/internal/emotion"
)

func main() {
	file := flag.String("file", "", "path to a JPEG image")
	url := flag.String("url", "http://localhost:9090", "inference service base URL")
	threshold := flag.Float64("threshold", 0.5, "detection score threshold")
	maxFaces := flag.Int("max-faces", 5, "max faces to report")
	lenient := flag.Bool("lenient", false, "report zero faces instead of failing when the service errors")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal("Failed to read image: ", err)
	}

	client := detector.NewHTTPClient(*url)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	opts := detector.DetectOptions{
		InputSize:       416,
		ScoreThreshold:  *threshold,
		WithLandmarks:   true,
		WithExpressions: true,
	}

	var detections []detector.Detection
	if *lenient {
		detections = detector.DetectOrEmpty(ctx, client, data, opts)
	} else {
		detections, err = client.DetectFaces(ctx, data, opts)
		if err != nil {
			log.Fatal("Detection failed: ", err)
		}
	}

	if len(detections) > *maxFaces {
		detections = detections[:*maxFaces]
	}

	fmt.Printf("Faces detected: %d\n", len(detections))
	for i, d := range detections {
		top, prob := emotion.TopExpression(d.Expressions)
		fmt.Printf("  #%d box=(%.0f,%.0f %.0fx%.0f) confidence=%.0f%% top-emotion=%s (%.0f%%)\n",
			i+1, d.Box.X, d.Box.Y, d.Box.Width, d.Box.Height, d.Confidence*100, top, prob*100)
	}

	summary := emotion.Aggregate(detections)
	fmt.Printf("\nDominant emotion: %s %s (promoted=%v)\n",
		summary.Dominant, emotion.Emoji(summary.Dominant), summary.Promoted)
	fmt.Println("Distribution:")
	for _, label := range emotion.Labels {
		fmt.Printf("  %-10s %.3f\n", label, summary.Distribution[label])
	}
}
