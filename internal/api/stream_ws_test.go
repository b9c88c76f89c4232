package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kdemchenko/emocam/internal/pipeline"
)

// trackingLoop counts live subscriptions. Its read functions block until
// Unsubscribe, like a real loop that is idle and publishing nothing.
type trackingLoop struct {
	fakeLoop
	mu   sync.Mutex
	subs map[string]chan *pipeline.Result
}

func (l *trackingLoop) Subscribe(id string) func() *pipeline.Result {
	ch := make(chan *pipeline.Result)
	l.mu.Lock()
	if l.subs == nil {
		l.subs = make(map[string]chan *pipeline.Result)
	}
	l.subs[id] = ch
	l.mu.Unlock()
	return func() *pipeline.Result { return <-ch }
}

func (l *trackingLoop) Unsubscribe(id string) {
	l.mu.Lock()
	ch, ok := l.subs[id]
	if ok {
		delete(l.subs, id)
	}
	l.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (l *trackingLoop) subscriberCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

func waitForSubscribers(t *testing.T, loop *trackingLoop, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if loop.subscriberCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers, still at %d", want, loop.subscriberCount())
}

func TestResultsWebSocketUnsubscribesOnDisconnect(t *testing.T) {
	loop := &trackingLoop{}
	srv := httptest.NewServer(NewRouter(testApp(t, loop)))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/results"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}

	waitForSubscribers(t, loop, 1)

	// Client goes away while the loop is idle and nothing publishes.
	conn.Close()

	waitForSubscribers(t, loop, 0)
}

func TestStreamUnsubscribesOnDisconnect(t *testing.T) {
	loop := &trackingLoop{}
	srv := httptest.NewServer(NewRouter(testApp(t, loop)))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()

	waitForSubscribers(t, loop, 1)

	cancel()

	waitForSubscribers(t, loop, 0)
}
