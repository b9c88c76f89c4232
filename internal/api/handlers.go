package api

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/kdemchenko/emocam/internal/database"
	"github.com/kdemchenko/emocam/internal/emotion"
	"github.com/kdemchenko/emocam/internal/pipeline"
	"github.com/kdemchenko/emocam/internal/settings"
	"github.com/kdemchenko/emocam/internal/storage"
)

// Loop is the slice of the frame loop controller the handlers need.
type Loop interface {
	Start() error
	Stop() error
	Pause()
	Resume()
	State() pipeline.State
	Stats() pipeline.Stats
	LastResult() *pipeline.Result
	Subscribe(id string) func() *pipeline.Result
	Unsubscribe(id string)
}

type App struct {
	Loop         Loop
	Settings     *settings.Store
	Storage      storage.Storage
	SnapshotRepo *database.SnapshotRepo
	Log          *logrus.Logger
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

type statusResponse struct {
	State            string  `json:"state"`
	FPS              float64 `json:"fps"`
	FaceCount        int     `json:"face_count"`
	AvgConfidencePct int     `json:"avg_confidence_pct"`
	DominantEmotion  string  `json:"dominant_emotion"`
	Emoji            string  `json:"emoji"`
	Promoted         bool    `json:"promoted"`
}

func (app *App) StatusHandler(w http.ResponseWriter, r *http.Request) {
	stats := app.Loop.Stats()

	writeJSON(w, http.StatusOK, statusResponse{
		State:            stats.State,
		FPS:              stats.FPS,
		FaceCount:        stats.FaceCount,
		AvgConfidencePct: int(math.Round(stats.AvgConfidence * 100)),
		DominantEmotion:  stats.Dominant,
		Emoji:            emotion.Emoji(stats.Dominant),
		Promoted:         stats.Promoted,
	})
}

func (app *App) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Settings.Get())
}

func (app *App) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var next settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := app.Settings.Update(next); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, app.Settings.Get())
}

func (app *App) CameraStartHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.Loop.Start(); err != nil {
		app.Log.WithError(err).Error("camera start failed")
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": app.Loop.State().String()})
}

func (app *App) CameraStopHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.Loop.Stop(); err != nil {
		app.Log.WithError(err).Error("camera stop failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": app.Loop.State().String()})
}

func (app *App) CameraPauseHandler(w http.ResponseWriter, r *http.Request) {
	app.Loop.Pause()
	writeJSON(w, http.StatusOK, map[string]string{"state": app.Loop.State().String()})
}

func (app *App) CameraResumeHandler(w http.ResponseWriter, r *http.Request) {
	app.Loop.Resume()
	writeJSON(w, http.StatusOK, map[string]string{"state": app.Loop.State().String()})
}

// CreateSnapshotHandler exports the latest annotated frame: pixels to
// storage, metadata to the database.
func (app *App) CreateSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	result := app.Loop.LastResult()
	if result == nil {
		writeError(w, http.StatusConflict, "no frame available")
		return
	}

	filename, err := app.Storage.SaveBytes(result.Annotated, ".jpg")
	if err != nil {
		app.Log.WithError(err).Error("failed to save snapshot image")
		writeError(w, http.StatusInternalServerError, "failed to save snapshot")
		return
	}

	snapshot := &database.Snapshot{
		Filename:        filename,
		FaceCount:       result.Summary.FaceCount,
		DominantEmotion: result.Summary.Dominant,
		AvgConfidence:   result.Summary.AvgConfidence,
		TakenAt:         result.CapturedAt,
	}
	if err := app.SnapshotRepo.Create(r.Context(), snapshot); err != nil {
		app.Storage.DeleteFile(filename)
		app.Log.WithError(err).Error("failed to store snapshot metadata")
		writeError(w, http.StatusInternalServerError, "failed to store snapshot")
		return
	}

	writeJSON(w, http.StatusCreated, snapshot)
}

func (app *App) ListSnapshotsHandler(w http.ResponseWriter, r *http.Request) {
	snapshots, err := app.SnapshotRepo.List(r.Context(), 100)
	if err != nil {
		app.Log.WithError(err).Error("failed to list snapshots")
		writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	if snapshots == nil {
		snapshots = []*database.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (app *App) SnapshotImageHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snapshot, err := app.SnapshotRepo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	if snapshot == nil {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}

	file, err := app.Storage.OpenFile(snapshot.Filename)
	if err != nil {
		writeError(w, http.StatusNotFound, "snapshot image missing")
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeContent(w, r, snapshot.Filename, snapshot.TakenAt, file)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
