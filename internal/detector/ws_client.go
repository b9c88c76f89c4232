package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient keeps a persistent websocket connection to the inference service.
// Frames go out as binary messages, results come back as JSON. The connection
// is (re)established lazily on the first call after a failure.
type WSClient struct {
	url string

	mu       sync.Mutex
	conn     *websocket.Conn
	lastOpts DetectOptions

	handshakeTimeout time.Duration
	readTimeout      time.Duration
	writeTimeout     time.Duration
}

func NewWSClient(url string) *WSClient {
	return &WSClient{
		url:              url,
		handshakeTimeout: 10 * time.Second,
		readTimeout:      10 * time.Second,
		writeTimeout:     5 * time.Second,
	}
}

// connectLocked dials the service and sends the current detector options.
// Caller must hold c.mu.
func (c *WSClient) connectLocked(opts DetectOptions) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.handshakeTimeout}

	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
	})

	if err := conn.WriteJSON(opts); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send detector options: %w", err)
	}

	c.conn = conn
	c.lastOpts = opts
	return nil
}

func (c *WSClient) DetectFaces(ctx context.Context, frame []byte, opts DetectOptions) ([]Detection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connectLocked(opts); err != nil {
			return nil, err
		}
	} else if opts != c.lastOpts {
		if err := c.conn.WriteJSON(opts); err != nil {
			c.dropLocked()
			return nil, fmt.Errorf("failed to update detector options: %w", err)
		}
		c.lastOpts = opts
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		c.dropLocked()
		return nil, err
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("failed to send frame: %w", err)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		c.dropLocked()
		return nil, err
	}

	var result detectResponse
	if err := c.conn.ReadJSON(&result); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("failed to read inference result: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("inference service error: %s", result.Error)
	}

	return result.Detections, nil
}

// dropLocked closes the broken connection so the next call redials.
// Caller must hold c.mu.
func (c *WSClient) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
	return nil
}
