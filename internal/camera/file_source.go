package camera

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileSource loops over the JPEG files of a directory, serving them as
// camera frames. Used for development and tests where no device exists.
type FileSource struct {
	dir string

	mu      sync.Mutex
	frames  [][]byte
	next    int
	width   int
	height  int
	running bool
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (s *FileSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("file source already started")
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read frame directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".jpg" || ext == ".jpeg" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return fmt.Errorf("no jpeg frames in %s", s.dir)
	}

	s.frames = s.frames[:0]
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return fmt.Errorf("failed to read frame %s: %w", name, err)
		}
		s.frames = append(s.frames, data)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(s.frames[0]))
	if err != nil {
		return fmt.Errorf("failed to decode first frame: %w", err)
	}
	s.width, s.height = cfg.Width, cfg.Height

	s.next = 0
	s.running = true
	return nil
}

func (s *FileSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

func (s *FileSource) Frame() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrNotRunning
	}

	frame := s.frames[s.next]
	s.next = (s.next + 1) % len(s.frames)
	return frame, nil
}

func (s *FileSource) Dimensions() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}
