package api

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// StreamHandler serves the annotated feed as an MJPEG multipart stream.
func (app *App) StreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	id := "mjpeg-" + uuid.New().String()
	read := app.Loop.Subscribe(id)
	defer app.Loop.Unsubscribe(id)

	// Unsubscribing on disconnect unblocks read even when the loop is idle
	// and nothing is publishing.
	go func() {
		<-r.Context().Done()
		app.Loop.Unsubscribe(id)
	}()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.WriteHeader(http.StatusOK)

	for {
		result := read()
		if result == nil {
			return
		}

		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(result.Annotated)); err != nil {
			return
		}
		if _, err := w.Write(result.Annotated); err != nil {
			return
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}
