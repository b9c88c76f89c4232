package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ResultsWebSocketHandler pushes each frame's detections, emotion summary
// and rate over a websocket as JSON. Pixels are served by /stream; this feed
// is for UI overlays and dashboards.
func (app *App) ResultsWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		app.Log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	app.Log.Info("results websocket client connected")
	defer app.Log.Info("results websocket client disconnected")

	id := "ws-" + uuid.New().String()
	read := app.Loop.Subscribe(id)
	defer app.Loop.Unsubscribe(id)

	// Drain client messages so close frames and pings are processed. A read
	// error means the client is gone; unsubscribing here unblocks read below
	// even when the loop is idle and nothing is publishing.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				app.Loop.Unsubscribe(id)
				return
			}
		}
	}()

	for {
		result := read()
		if result == nil {
			return
		}

		if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			return
		}
		if err := conn.WriteJSON(result); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				app.Log.WithError(err).Warn("results websocket write failed")
			}
			return
		}
	}
}
