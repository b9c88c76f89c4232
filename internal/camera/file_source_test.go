package camera

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func writeTestFrames(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 32, 24))
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, nil); err != nil {
			t.Fatalf("failed to encode frame: %v", err)
		}
		name := filepath.Join(dir, fmt.Sprintf("frame-%02d.jpg", i))
		if err := os.WriteFile(name, buf.Bytes(), 0644); err != nil {
			t.Fatalf("failed to write frame: %v", err)
		}
	}
}

func TestFileSourceLoops(t *testing.T) {
	dir := t.TempDir()
	writeTestFrames(t, dir, 2)

	src := NewFileSource(dir)
	if err := src.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer src.Stop()

	w, h := src.Dimensions()
	if w != 32 || h != 24 {
		t.Errorf("expected 32x24, got %dx%d", w, h)
	}

	// Three reads over two frames: the source must wrap around.
	first, err := src.Frame()
	if err != nil {
		t.Fatalf("frame 1 failed: %v", err)
	}
	if _, err := src.Frame(); err != nil {
		t.Fatalf("frame 2 failed: %v", err)
	}
	third, err := src.Frame()
	if err != nil {
		t.Fatalf("frame 3 failed: %v", err)
	}
	if !bytes.Equal(first, third) {
		t.Error("expected third frame to wrap back to the first")
	}
}

func TestFileSourceStoppedState(t *testing.T) {
	dir := t.TempDir()
	writeTestFrames(t, dir, 1)

	src := NewFileSource(dir)
	if _, err := src.Frame(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning before start, got %v", err)
	}

	if err := src.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if _, err := src.Frame(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning after stop, got %v", err)
	}

	// Restart must work with the same directory.
	if err := src.Start(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if _, err := src.Frame(); err != nil {
		t.Errorf("frame after restart failed: %v", err)
	}
}

func TestFileSourceEmptyDir(t *testing.T) {
	src := NewFileSource(t.TempDir())
	if err := src.Start(); err == nil {
		t.Error("expected error for directory without frames")
	}
}
