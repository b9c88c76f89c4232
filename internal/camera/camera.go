package camera

import "errors"

// ErrNotRunning is returned by Frame when the source is stopped.
var ErrNotRunning = errors.New("camera source is not running")

// ErrFrameNotReady is returned when the source is running but has not
// produced a frame yet.
var ErrFrameNotReady = errors.New("no frame available yet")

// Source is a camera-like frame producer. Implementations own the underlying
// hardware (or file) resource between Start and Stop; Frame returns the most
// recent JPEG-encoded frame.
type Source interface {
	Start() error
	Stop() error
	Frame() ([]byte, error)
	Dimensions() (width, height int)
}
