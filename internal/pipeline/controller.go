package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kdemchenko/emocam/internal/camera"
	"github.com/kdemchenko/emocam/internal/detector"
	"github.com/kdemchenko/emocam/internal/emotion"
	"github.com/kdemchenko/emocam/internal/overlay"
	"github.com/kdemchenko/emocam/internal/settings"
)

// State is the loop's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	// StateUnavailable is terminal: too many consecutive detection failures.
	// Only an explicit Start leaves it.
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Result is the outcome of one detect→aggregate→render iteration.
type Result struct {
	Seq        uint64              `json:"seq"`
	CapturedAt time.Time           `json:"captured_at"`
	FPS        float64             `json:"fps"`
	Detections []detector.Detection `json:"detections"`
	Summary    emotion.Summary     `json:"summary"`
	Annotated  []byte              `json:"-"`
}

// Notifier receives dominant-emotion transitions.
type Notifier interface {
	EmotionChanged(label string, faceCount int, avgConfidence float64)
}

// Config holds the loop timing knobs.
type Config struct {
	// FrameInterval is the normal cadence between iterations.
	FrameInterval time.Duration
	// RetryDelay is the degraded cadence after a failed iteration.
	RetryDelay time.Duration
	// InputSize is the detector's model input size.
	InputSize int
}

func DefaultConfig() Config {
	return Config{
		FrameInterval: 33 * time.Millisecond,
		RetryDelay:    time.Second,
		InputSize:     416,
	}
}

// Stats is a non-blocking snapshot for the status endpoint.
type Stats struct {
	State         string            `json:"state"`
	FPS           float64           `json:"fps"`
	FaceCount     int               `json:"face_count"`
	AvgConfidence float64           `json:"avg_confidence"`
	Dominant      string            `json:"dominant_emotion"`
	Promoted      bool              `json:"promoted"`
	Failures      int               `json:"consecutive_failures"`
	Subscribers   map[string]uint64 `json:"subscriber_drops"`
}

// Controller drives the detect→aggregate→render cycle. Strictly sequential:
// one iteration completes in full before the next is scheduled, so no two
// detection calls are ever in flight together.
type Controller struct {
	source   camera.Source
	det      detector.FaceDetector
	settings *settings.Store
	cfg      Config
	notifier Notifier
	log      *logrus.Logger

	mu          sync.Mutex
	state       State
	failures    int
	lastTick    time.Time
	fps         float64
	seq         uint64
	last        *Result
	lastEmotion string
	cancel      context.CancelFunc

	subsMu sync.Mutex
	subs   map[string]*mailbox

	wg sync.WaitGroup
}

func NewController(src camera.Source, det detector.FaceDetector, store *settings.Store, cfg Config, notifier Notifier, log *logrus.Logger) *Controller {
	return &Controller{
		source:   src,
		det:      det,
		settings: store,
		cfg:      cfg,
		notifier: notifier,
		log:      log,
		subs:     make(map[string]*mailbox),
	}
}

// Start acquires the camera and enters the running state. Valid from idle
// and from unavailable (explicit restart clears the terminal state).
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.state == StateRunning || c.state == StatePaused {
		c.mu.Unlock()
		return fmt.Errorf("loop already active (state %s)", c.state)
	}
	c.mu.Unlock()

	if err := c.source.Start(); err != nil {
		return fmt.Errorf("camera start failed: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.state = StateRunning
	c.failures = 0
	c.lastTick = time.Time{}
	c.fps = 0
	c.lastEmotion = ""
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(ctx)

	c.log.Info("frame loop started")
	return nil
}

// Stop releases the camera and returns the loop to idle. An in-flight
// detection is not aborted; its result is discarded on arrival.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.state = StateIdle
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	if err := c.source.Stop(); err != nil {
		return fmt.Errorf("camera stop failed: %w", err)
	}

	c.wakeSubscribers()
	c.log.Info("frame loop stopped")
	return nil
}

// Pause suspends iteration without releasing the camera.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.state == StateRunning {
		c.state = StatePaused
		c.lastTick = time.Time{}
	}
	c.mu.Unlock()
}

// Resume continues a paused loop.
func (c *Controller) Resume() {
	c.mu.Lock()
	if c.state == StatePaused {
		c.state = StateRunning
	}
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastResult returns the most recent iteration result, nil before the first.
func (c *Controller) LastResult() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Subscribe registers a mailbox and returns a blocking read function that
// yields the latest Result, or nil once the subscription or loop ends.
func (c *Controller) Subscribe(id string) func() *Result {
	m := newMailbox()
	c.subsMu.Lock()
	c.subs[id] = m
	c.subsMu.Unlock()
	return m.read
}

func (c *Controller) Unsubscribe(id string) {
	c.subsMu.Lock()
	m, ok := c.subs[id]
	if ok {
		delete(c.subs, id)
	}
	c.subsMu.Unlock()
	if ok {
		m.close()
	}
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	st := Stats{
		State:    c.state.String(),
		FPS:      c.fps,
		Failures: c.failures,
	}
	if c.last != nil {
		st.FaceCount = c.last.Summary.FaceCount
		st.AvgConfidence = c.last.Summary.AvgConfidence
		st.Dominant = c.last.Summary.Dominant
		st.Promoted = c.last.Summary.Promoted
	} else {
		st.Dominant = emotion.Neutral
	}
	c.mu.Unlock()

	st.Subscribers = make(map[string]uint64)
	c.subsMu.Lock()
	for id, m := range c.subs {
		st.Subscribers[id] = m.dropCount()
	}
	c.subsMu.Unlock()

	return st
}

func (c *Controller) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		delay := c.cfg.FrameInterval

		switch c.State() {
		case StateRunning:
			if err := c.iterate(ctx); err != nil {
				c.log.WithError(err).Warn("frame iteration failed")
				if c.recordFailure() {
					return
				}
				delay = c.cfg.RetryDelay
			} else {
				c.resetFailures()
			}
		case StatePaused:
			// Poll for resume at the normal cadence.
		default:
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (c *Controller) iterate(ctx context.Context) error {
	frame, err := c.source.Frame()
	if err != nil {
		if errors.Is(err, camera.ErrFrameNotReady) {
			// Not a detection failure, just nothing to do yet.
			return nil
		}
		return fmt.Errorf("frame grab failed: %w", err)
	}

	st := c.settings.Get()
	opts := detector.DetectOptions{
		InputSize:       c.cfg.InputSize,
		ScoreThreshold:  st.Sensitivity,
		WithLandmarks:   true,
		WithExpressions: st.EmotionEnabled,
	}

	detections, err := c.det.DetectFaces(ctx, frame, opts)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	// Stop or pause may have raced the detection call; drop the late result.
	if c.State() != StateRunning {
		return nil
	}

	// Cap once so aggregator and renderer see the identical list, the first
	// MaxFaces entries in the detector's order.
	if len(detections) > st.MaxFaces {
		detections = detections[:st.MaxFaces]
	}

	summary := emotion.Aggregate(detections)

	annotated, err := c.annotate(frame, detections, st.EmotionEnabled)
	if err != nil {
		return fmt.Errorf("overlay render failed: %w", err)
	}

	now := time.Now()
	fps := 0.0

	c.mu.Lock()
	// Instantaneous rate from the previous frame's delta; jitter expected.
	if !c.lastTick.IsZero() {
		if d := now.Sub(c.lastTick).Seconds(); d > 0 {
			fps = 1.0 / d
		}
	}
	c.lastTick = now
	c.fps = fps
	c.seq++
	result := &Result{
		Seq:        c.seq,
		CapturedAt: now,
		FPS:        fps,
		Detections: detections,
		Summary:    summary,
		Annotated:  annotated,
	}
	c.last = result

	notify := false
	if c.notifier != nil && summary.Promoted && summary.Dominant != c.lastEmotion {
		c.lastEmotion = summary.Dominant
		notify = true
	}
	c.mu.Unlock()

	c.broadcast(result)

	if notify {
		c.notifier.EmotionChanged(summary.Dominant, summary.FaceCount, summary.AvgConfidence)
	}

	return nil
}

func (c *Controller) annotate(frame []byte, detections []detector.Detection, emotionEnabled bool) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("frame decode failed: %w", err)
	}

	// Layer is reallocated per frame because the source dimensions may
	// change between camera sessions.
	layer := image.NewRGBA(img.Bounds())
	cmds := overlay.Plan(detections, emotionEnabled)
	overlay.Render(layer, cmds)

	out := overlay.Composite(img, layer)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("frame encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Controller) broadcast(r *Result) {
	c.subsMu.Lock()
	for _, m := range c.subs {
		m.publish(r)
	}
	c.subsMu.Unlock()
}

func (c *Controller) wakeSubscribers() {
	c.subsMu.Lock()
	for _, m := range c.subs {
		m.interrupt()
	}
	c.subsMu.Unlock()
}

// recordFailure counts a consecutive detection failure and trips the
// terminal unavailable state once the configured bound is reached.
func (c *Controller) recordFailure() bool {
	limit := c.settings.Get().MaxDetectRetries

	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return false
	}
	c.failures++
	tripped := c.failures >= limit
	if tripped {
		c.state = StateUnavailable
	}
	c.mu.Unlock()

	if tripped {
		c.log.WithField("failures", limit).Error("detection unavailable, stopping retries")
		c.source.Stop()
		c.wakeSubscribers()
	}
	return tripped
}

func (c *Controller) resetFailures() {
	c.mu.Lock()
	c.failures = 0
	c.mu.Unlock()
}
