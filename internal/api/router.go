package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", app.StatusHandler)

		r.Get("/settings", app.GetSettingsHandler)
		r.Put("/settings", app.UpdateSettingsHandler)

		r.Post("/camera/start", app.CameraStartHandler)
		r.Post("/camera/stop", app.CameraStopHandler)
		r.Post("/camera/pause", app.CameraPauseHandler)
		r.Post("/camera/resume", app.CameraResumeHandler)

		r.Post("/snapshots", app.CreateSnapshotHandler)
		r.Get("/snapshots", app.ListSnapshotsHandler)
		r.Get("/snapshots/{id}/image", app.SnapshotImageHandler)
	})

	r.Get("/stream", app.StreamHandler)
	r.Get("/ws/results", app.ResultsWebSocketHandler)

	return r
}
