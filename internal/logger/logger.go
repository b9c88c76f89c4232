package logger

import (
	"io"
	"os"
	"sync"
	"time"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	log  *logrus.Logger
	once sync.Once
)

// Get returns the process-wide logger. Logs go to stderr plus a rotated file
// unless APP_ENV=test.
func Get() *logrus.Logger {
	once.Do(func() {
		log = logrus.New()

		level := logrus.InfoLevel
		if os.Getenv("LOG_LEVEL") == "debug" {
			level = logrus.DebugLevel
		}
		log.SetLevel(level)

		log.SetFormatter(&formatter.Formatter{
			TimestampFormat: time.RFC3339,
			HideKeys:        false,
			NoColors:        os.Getenv("LOG_COLOR") == "off",
		})

		writers := []io.Writer{os.Stderr}
		if os.Getenv("APP_ENV") != "test" {
			writers = append(writers, &lumberjack.Logger{
				Filename:   "./logs/emocam.log",
				LocalTime:  true,
				Compress:   true,
				MaxSize:    50,
				MaxAge:     7,
				MaxBackups: 3,
			})
		}
		log.SetOutput(io.MultiWriter(writers...))
	})

	return log
}
