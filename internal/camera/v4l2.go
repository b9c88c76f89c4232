package camera

import (
	"fmt"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kdemchenko/emocam/internal/logger"
)

const (
	v4l2BufTypeVideoCapture = 1
	v4l2PixFmtJpeg          = 0x4745504a
	v4l2FieldNone           = 1
	v4l2MemoryMmap          = 1

	vidiocSFmt      = 0xc0cc5605
	vidiocReqbufs   = 0xc0145608
	vidiocQuerybuf  = 0xc0445609
	vidiocStreamon  = 0x40045612
	vidiocStreamoff = 0x40045613
	vidiocQbuf      = 0xc044560f
	vidiocDqbuf     = 0xc0445611
)

type v4l2PixFormat struct {
	typ          uint32
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
}

type v4l2Requestbuffers struct {
	count    uint32
	typ      uint32
	memory   uint32
	reserved [2]uint32
}

type v4l2Timecode struct {
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

type v4l2Timeval struct {
	sec  uint32
	usec uint32
}

type v4l2Buffer struct {
	index     uint32
	typ       uint32
	bytesused uint32
	flags     uint32
	field     uint32
	timestamp v4l2Timeval
	timecode  v4l2Timecode
	sequence  uint32
	memory    uint32
	offset    uint32
	length    uint32
	reserved2 uint32
	reserved  uint32
}

// V4L2Source captures MJPEG frames from a video4linux device. A single pump
// goroutine dequeues frames into a latest-frame buffer; Frame returns a copy
// of that buffer so callers never share memory with the driver.
type V4L2Source struct {
	device   string
	deviceFn func() string
	width    uint32
	height   uint32

	fd   int
	data []byte
	buf  v4l2Buffer

	mu       sync.RWMutex
	frameBuf []byte
	frameLen uint32
	running  bool

	ready chan struct{}
	stopC chan struct{}
	done  chan struct{}
}

func NewV4L2Source(device string, width, height int) *V4L2Source {
	return &V4L2Source{
		device: device,
		width:  uint32(width),
		height: uint32(height),
	}
}

// NewSwitchableV4L2Source re-resolves the device path on every Start, so a
// changed preferred device takes effect on the next camera acquisition.
func NewSwitchableV4L2Source(device func() string, width, height int) *V4L2Source {
	return &V4L2Source{
		deviceFn: device,
		width:    uint32(width),
		height:   uint32(height),
	}
}

func (s *V4L2Source) Dimensions() (int, int) {
	return int(s.width), int(s.height)
}

// Start opens the device, negotiates the MJPEG format and begins streaming.
// It blocks until the first frame arrives so callers can treat a returned
// nil as camera-ready.
func (s *V4L2Source) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("camera %s already started", s.device)
	}
	if s.deviceFn != nil {
		s.device = s.deviceFn()
	}
	s.mu.Unlock()

	fd, err := unix.Open(s.device, unix.O_RDWR|unix.O_NONBLOCK, 0666)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.device, err)
	}
	s.fd = fd

	if err := s.setup(); err != nil {
		unix.Close(fd)
		return err
	}

	s.ready = make(chan struct{})
	s.stopC = make(chan struct{})
	s.done = make(chan struct{})

	s.mu.Lock()
	s.running = true
	s.frameLen = 0
	s.mu.Unlock()

	go s.framePump()

	select {
	case <-s.ready:
	case <-time.After(5 * time.Second):
		s.Stop()
		return fmt.Errorf("timed out waiting for first frame from %s", s.device)
	}

	logger.Get().WithField("device", s.device).Info("camera streaming")
	return nil
}

// Stop halts the stream and releases the device. Idempotent.
func (s *V4L2Source) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopC)
	<-s.done

	if _, _, errno := syscall.Syscall(
		syscall.SYS_IOCTL,
		uintptr(s.fd),
		uintptr(vidiocStreamoff),
		uintptr(unsafe.Pointer(&s.buf.typ)),
	); errno != 0 {
		logger.Get().WithField("device", s.device).Warnf("failed to stop stream: %d", errno)
	}

	unix.Munmap(s.data)
	unix.Close(s.fd)
	return nil
}

// Frame returns a copy of the most recent frame.
func (s *V4L2Source) Frame() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return nil, ErrNotRunning
	}
	if s.frameLen == 0 {
		return nil, ErrFrameNotReady
	}

	out := make([]byte, s.frameLen)
	copy(out, s.frameBuf[:s.frameLen])
	return out, nil
}

func (s *V4L2Source) setup() error {
	format := v4l2PixFormat{
		typ:         v4l2BufTypeVideoCapture,
		width:       s.width,
		height:      s.height,
		pixelformat: v4l2PixFmtJpeg,
		field:       v4l2FieldNone,
	}
	if err := s.ioctl(vidiocSFmt, unsafe.Pointer(&format)); err != nil {
		return fmt.Errorf("failed to set format: %w", err)
	}

	req := v4l2Requestbuffers{
		count:  1,
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := s.ioctl(vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("failed to request buffer: %w", err)
	}

	s.buf = v4l2Buffer{
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := s.ioctl(vidiocQuerybuf, unsafe.Pointer(&s.buf)); err != nil {
		return fmt.Errorf("failed to query buffer: %w", err)
	}

	data, err := unix.Mmap(
		s.fd,
		int64(s.buf.offset),
		int(s.buf.length),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return fmt.Errorf("failed to mmap buffer: %w", err)
	}
	s.data = data
	s.frameBuf = make([]byte, len(data))

	qbuf := v4l2Buffer{
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := s.ioctl(vidiocQbuf, unsafe.Pointer(&qbuf)); err != nil {
		return fmt.Errorf("failed to enqueue initial buffer: %w", err)
	}

	if err := s.ioctl(vidiocStreamon, unsafe.Pointer(&s.buf.typ)); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}

	return nil
}

func (s *V4L2Source) framePump() {
	defer close(s.done)

	first := true
	for {
		select {
		case <-s.stopC:
			return
		default:
		}

		// Bounded select so Stop is noticed even when the device stalls.
		fds := unix.FdSet{}
		fds.Set(s.fd)
		timeout := unix.Timeval{Sec: 0, Usec: 200_000}
		n, err := unix.Select(s.fd+1, &fds, nil, nil, &timeout)
		if err != nil || n == 0 {
			continue
		}

		qbuf := v4l2Buffer{
			typ:    v4l2BufTypeVideoCapture,
			memory: v4l2MemoryMmap,
		}
		if err := s.ioctl(vidiocDqbuf, unsafe.Pointer(&qbuf)); err != nil {
			continue
		}

		s.mu.Lock()
		s.frameLen = qbuf.bytesused
		copy(s.frameBuf, s.data)
		s.mu.Unlock()

		if first {
			first = false
			close(s.ready)
		}

		if err := s.ioctl(vidiocQbuf, unsafe.Pointer(&qbuf)); err != nil {
			logger.Get().WithField("device", s.device).Warnf("failed to re-enqueue buffer: %v", err)
			return
		}
	}
}

func (s *V4L2Source) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(s.fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
