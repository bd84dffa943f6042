// Package config содержит конфигурацию приложения.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/artemshloyda/jpegcompress/internal/compressor"
)

// Config содержит все настройки приложения.
type Config struct {
	// EngineDir - директория, где лежит движок (пусто = рядом с программой).
	EngineDir string

	// Quality - коэффициент качества (0.002-1.0).
	Quality float64

	// Preset - именованный уровень качества (best, balanced, high, extreme).
	Preset string

	// Timeout - таймаут на одно сжатие (0 = без ограничения).
	Timeout time.Duration

	// WorkDir - где создавать временные директории (пусто = системная).
	WorkDir string

	// DBPath - путь к SQLite базе с историей (пусто = история отключена).
	DBPath string

	// CacheEnabled - переиспользовать результаты для одинаковых входов.
	CacheEnabled bool

	// CacheDir - директория для кэша.
	CacheDir string

	// Listen - адрес HTTP сервера.
	Listen string

	// ResultsDir - где сервер хранит результаты для скачивания.
	ResultsDir string

	// MaxUploadMB - максимальный размер загружаемого файла.
	MaxUploadMB int

	// Logging - настройки логирования.
	Logging LoggingConfig

	// Verbose - подробный вывод.
	Verbose bool

	// NoProgress - отключить спиннер.
	NoProgress bool
}

// LoggingConfig содержит настройки логирования.
type LoggingConfig struct {
	Level      string
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // дни
	Compress   bool
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() *Config {
	return &Config{
		Quality:     0.5,
		Timeout:     compressor.DefaultTimeout,
		Listen:      ":8080",
		MaxUploadMB: 32,
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// Validate проверяет корректность конфигурации.
// Пресет, если задан, применяется до проверки качества.
func (c *Config) Validate() error {
	if c.Preset != "" {
		if !c.ApplyPreset(c.Preset) {
			return fmt.Errorf("неизвестный пресет: %s (доступны: %s)",
				c.Preset, strings.Join(ValidPresets(), ", "))
		}
	}
	if err := compressor.ValidateQuality(c.Quality); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("таймаут не может быть отрицательным: %s", c.Timeout)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("максимальный размер загрузки должен быть >= 1 MB, получено: %d", c.MaxUploadMB)
	}

	// Директория кэша по умолчанию
	if c.CacheEnabled && c.CacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		c.CacheDir = filepath.Join(base, "jpegcompress")
	}

	return nil
}

// MaxUploadBytes возвращает лимит загрузки в байтах.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
