// Package logger настраивает структурированное логирование.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/artemshloyda/jpegcompress/internal/config"
)

// Options содержит настройки логгера.
type Options struct {
	// Config - уровень, файл и ротация.
	Config config.LoggingConfig

	// Console - куда писать помимо файла (nil = os.Stderr).
	Console io.Writer
}

// New создаёт logrus.Logger с JSON форматом и ротацией файла через lumberjack.
func New(opts Options) (*logrus.Logger, error) {
	log := logrus.New()

	levelName := opts.Config.Level
	if levelName == "" {
		levelName = "info"
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{console}

	if opts.Config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Config.FilePath), 0755); err != nil {
			return nil, err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.Config.FilePath,
			MaxSize:    opts.Config.MaxSize,
			MaxBackups: opts.Config.MaxBackups,
			MaxAge:     opts.Config.MaxAge,
			Compress:   opts.Config.Compress,
		})
	}

	if len(writers) > 1 {
		log.SetOutput(io.MultiWriter(writers...))
	} else {
		log.SetOutput(writers[0])
	}

	return log, nil
}

// Discard возвращает логгер, который ничего не пишет.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// WithRequest возвращает запись лога с контекстом запроса на сжатие.
func WithRequest(log logrus.FieldLogger, id string, quality float64) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"id":      id,
		"quality": quality,
	})
}
