package main

import (
	"net/http"

	"github.com/kdemchenko/emocam/internal/api"
	"github.com/kdemchenko/emocam/internal/camera"
	"github.com/kdemchenko/emocam/internal/config"
	"github.com/kdemchenko/emocam/internal/database"
	"github.com/kdemchenko/emocam/internal/detector"
	"github.com/kdemchenko/emocam/internal/events"
	"github.com/kdemchenko/emocam/internal/logger"
	"github.com/kdemchenko/emocam/internal/pipeline"
	"github.com/kdemchenko/emocam/internal/settings"
	"github.com/kdemchenko/emocam/internal/storage"
)

func main() {
	log := logger.Get()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	localStorage, err := storage.NewLocalStorage(cfg.SnapshotDir)
	if err != nil {
		log.Fatal("Failed to initialize storage: ", err)
	}

	db, err := database.NewDB(cfg.DB)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer db.Close()

	snapshotRepo := database.NewSnapshotRepo(db)

	var det detector.FaceDetector
	switch cfg.DetectorBackend {
	case "websocket":
		det = detector.NewWSClient(cfg.DetectorURL)
	default:
		det = detector.NewHTTPClient(cfg.DetectorURL)
	}

	store := settings.NewStore()
	current := store.Get()
	current.PreferredDevice = cfg.CameraDevice
	if err := store.Update(current); err != nil {
		log.Fatal("Failed to apply camera device setting: ", err)
	}

	var source camera.Source
	if cfg.FrameSourceDir != "" {
		source = camera.NewFileSource(cfg.FrameSourceDir)
		log.Infof("Using file frame source: %s", cfg.FrameSourceDir)
	} else {
		// Consult the settings store on every acquisition so a changed
		// preferred device takes effect on the next camera start.
		source = camera.NewSwitchableV4L2Source(func() string { return store.Get().PreferredDevice }, cfg.CameraWidth, cfg.CameraHeight)
		log.Infof("Using camera device: %s (%dx%d)", cfg.CameraDevice, cfg.CameraWidth, cfg.CameraHeight)
	}

	var notifier pipeline.Notifier
	if cfg.MQTTBroker != "" {
		publisher, err := events.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, log)
		if err != nil {
			log.Warnf("MQTT publisher disabled: %v", err)
		} else {
			defer publisher.Close()
			notifier = publisher
			log.Infof("Publishing emotion events to %s on %s", cfg.MQTTTopic, cfg.MQTTBroker)
		}
	}

	loopCfg := pipeline.Config{
		FrameInterval: cfg.FrameInterval,
		RetryDelay:    cfg.RetryDelay,
		InputSize:     cfg.DetectorInput,
	}
	controller := pipeline.NewController(source, det, store, loopCfg, notifier, log)

	// Camera failure only disables the camera subsystem; the API stays up.
	if err := controller.Start(); err != nil {
		log.Warnf("Camera not started: %v", err)
	}

	app := &api.App{
		Loop:         controller,
		Settings:     store,
		Storage:      localStorage,
		SnapshotRepo: snapshotRepo,
		Log:          log,
	}

	router := api.NewRouter(app)

	log.Infof("Server starting on port %s", cfg.Port)
	log.Infof("Detector backend: %s (%s)", cfg.DetectorBackend, cfg.DetectorURL)
	log.Infof("Database type: %s", cfg.DB.Type)
	log.Infof("Snapshot directory: %s", cfg.SnapshotDir)

	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal(err)
	}
}
