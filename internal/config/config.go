package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/kdemchenko/emocam/internal/database"
)

// Config is the process configuration, read from the environment with an
// optional .env file.
type Config struct {
	Port string

	// DetectorBackend is "http" or "websocket".
	DetectorBackend string
	DetectorURL     string
	DetectorInput   int

	// CameraDevice is the V4L2 device path; FrameSourceDir switches to the
	// looping file source when set.
	CameraDevice   string
	FrameSourceDir string
	CameraWidth    int
	CameraHeight   int

	FrameInterval time.Duration
	RetryDelay    time.Duration

	SnapshotDir string
	DB          database.Config

	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string
}

func Load() (*Config, error) {
	// Missing .env is fine, the environment may be set directly.
	godotenv.Load()

	cfg := &Config{
		Port:            getenv("PORT", "8080"),
		DetectorBackend: getenv("DETECTOR_BACKEND", "http"),
		DetectorURL:     getenv("DETECTOR_URL", "http://localhost:9090"),
		DetectorInput:   getint("DETECTOR_INPUT_SIZE", 416),
		CameraDevice:    getenv("CAMERA_DEVICE", "/dev/video0"),
		FrameSourceDir:  os.Getenv("FRAME_SOURCE_DIR"),
		CameraWidth:     getint("CAMERA_WIDTH", 1280),
		CameraHeight:    getint("CAMERA_HEIGHT", 720),
		FrameInterval:   getduration("FRAME_INTERVAL", 33*time.Millisecond),
		RetryDelay:      getduration("RETRY_DELAY", time.Second),
		SnapshotDir:     getenv("SNAPSHOT_DIR", "./snapshots"),
		MQTTBroker:      os.Getenv("MQTT_BROKER"),
		MQTTClientID:    getenv("MQTT_CLIENT_ID", "emocam"),
		MQTTTopic:       getenv("MQTT_TOPIC", "emocam/emotions"),
	}

	if cfg.DetectorBackend != "http" && cfg.DetectorBackend != "websocket" {
		return nil, fmt.Errorf("unsupported detector backend: %s", cfg.DetectorBackend)
	}

	cfg.DB.Type = getenv("DB_TYPE", "sqlite")
	if cfg.DB.Type == "postgres" {
		cfg.DB.Host = getenv("DB_HOST", "localhost")
		cfg.DB.Port = getint("DB_PORT", 5432)
		cfg.DB.User = getenv("DB_USER", "emocam")
		cfg.DB.Password = getenv("DB_PASSWORD", "emocam_dev")
		cfg.DB.Name = getenv("DB_NAME", "emocam")
	} else {
		cfg.DB.SQLitePath = getenv("DB_PATH", "./emocam.db")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getduration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
