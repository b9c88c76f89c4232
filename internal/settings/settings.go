package settings

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Settings holds the per-session runtime knobs. Mutated only through
// Store.Update; never persisted across restarts.
type Settings struct {
	// Sensitivity is the detector score threshold.
	Sensitivity float64 `json:"sensitivity" validate:"gte=0.1,lte=0.9"`
	// MaxFaces caps the detection list after detection, before both
	// aggregation and rendering see it.
	MaxFaces int `json:"max_faces" validate:"gte=1,lte=10"`
	// EmotionEnabled toggles expression classification and emotion strips.
	EmotionEnabled bool `json:"emotion_enabled"`
	// PreferredDevice selects the camera device path.
	PreferredDevice string `json:"preferred_device"`
	// MaxDetectRetries bounds consecutive per-frame detection failures
	// before the loop gives up as unavailable.
	MaxDetectRetries int `json:"max_detect_retries" validate:"gte=1"`
}

func Default() Settings {
	return Settings{
		Sensitivity:      0.5,
		MaxFaces:         5,
		EmotionEnabled:   true,
		PreferredDevice:  "/dev/video0",
		MaxDetectRetries: 30,
	}
}

// Store is a thread-safe settings holder. Invalid updates are rejected and
// the previous value stays in effect.
type Store struct {
	mu       sync.RWMutex
	current  Settings
	validate *validator.Validate
}

func NewStore() *Store {
	return &Store{
		current:  Default(),
		validate: validator.New(),
	}
}

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) Update(next Settings) error {
	if err := s.validate.Struct(next); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return nil
}
