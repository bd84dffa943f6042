package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig представляет структуру конфигурационного файла YAML.
// Все поля опциональны - если не указаны, используются значения по умолчанию.
type FileConfig struct {
	// Engine - настройки движка.
	Engine *EngineFileConfig `yaml:"engine,omitempty"`

	// Compression - настройки сжатия.
	Compression *CompressionFileConfig `yaml:"compression,omitempty"`

	// Server - настройки HTTP сервера.
	Server *ServerFileConfig `yaml:"server,omitempty"`

	// Paths - настройки путей.
	Paths *PathsFileConfig `yaml:"paths,omitempty"`

	// Logging - настройки логирования.
	Logging *LoggingFileConfig `yaml:"logging,omitempty"`
}

// EngineFileConfig содержит настройки движка.
type EngineFileConfig struct {
	// Dir - директория с бинарником jpeg_compressor.
	Dir string `yaml:"dir,omitempty"`

	// Timeout - таймаут на одно сжатие (например, "2m").
	Timeout *time.Duration `yaml:"timeout,omitempty"`
}

// CompressionFileConfig содержит настройки сжатия.
type CompressionFileConfig struct {
	// Quality - коэффициент качества (0.002-1.0).
	Quality float64 `yaml:"quality,omitempty"`

	// Preset - именованный уровень качества.
	Preset string `yaml:"preset,omitempty"`

	// Cache - переиспользовать результаты.
	Cache bool `yaml:"cache,omitempty"`
}

// ServerFileConfig содержит настройки HTTP сервера.
type ServerFileConfig struct {
	Listen      string `yaml:"listen,omitempty"`
	ResultsDir  string `yaml:"results_dir,omitempty"`
	MaxUploadMB int    `yaml:"max_upload_mb,omitempty"`
}

// PathsFileConfig содержит настройки путей.
type PathsFileConfig struct {
	// DB - путь к SQLite базе данных.
	DB string `yaml:"db,omitempty"`

	// WorkDir - директория для временных файлов.
	WorkDir string `yaml:"work_dir,omitempty"`

	// CacheDir - директория кэша.
	CacheDir string `yaml:"cache_dir,omitempty"`
}

// LoggingFileConfig содержит настройки логирования.
type LoggingFileConfig struct {
	Level      string `yaml:"level,omitempty"`
	FilePath   string `yaml:"file,omitempty"`
	MaxSize    int    `yaml:"max_size,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAge     int    `yaml:"max_age,omitempty"`
	Compress   *bool  `yaml:"compress,omitempty"`
}

// DefaultConfigPaths возвращает список путей для поиска конфигурационного файла.
// Поиск выполняется в следующем порядке:
// 1. ./jpegcompress.yaml (текущая директория)
// 2. ./jpegcompress.yml
// 3. ~/.config/jpegcompress/config.yaml
// 4. ~/.config/jpegcompress/config.yml
func DefaultConfigPaths() []string {
	paths := []string{
		"jpegcompress.yaml",
		"jpegcompress.yml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "jpegcompress", "config.yaml"),
			filepath.Join(home, ".config", "jpegcompress", "config.yml"),
		)
	}

	return paths
}

// LoadFromFile загружает конфигурацию из указанного файла.
// Возвращает nil, nil если файл не существует.
func LoadFromFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("ошибка парсинга YAML в %s: %w", path, err)
	}

	return &fc, nil
}

// FindAndLoadConfig ищет и загружает конфигурационный файл из стандартных путей.
// Если configPath указан явно, использует только его.
// Возвращает nil, "", nil если файл не найден.
func FindAndLoadConfig(configPath string) (*FileConfig, string, error) {
	if configPath != "" {
		fc, err := LoadFromFile(configPath)
		if err != nil {
			return nil, "", err
		}
		if fc == nil {
			return nil, "", fmt.Errorf("файл конфигурации не найден: %s", configPath)
		}
		return fc, configPath, nil
	}

	for _, path := range DefaultConfigPaths() {
		fc, err := LoadFromFile(path)
		if err != nil {
			return nil, "", err
		}
		if fc != nil {
			return fc, path, nil
		}
	}

	return nil, "", nil
}

// ApplyToConfig применяет настройки из файла к основной конфигурации.
// CLI флаги имеют приоритет: вызывающий восстанавливает их после.
func (fc *FileConfig) ApplyToConfig(cfg *Config) {
	if fc == nil {
		return
	}

	if fc.Engine != nil {
		if fc.Engine.Dir != "" {
			cfg.EngineDir = fc.Engine.Dir
		}
		if fc.Engine.Timeout != nil {
			cfg.Timeout = *fc.Engine.Timeout
		}
	}

	if fc.Compression != nil {
		if fc.Compression.Quality > 0 {
			cfg.Quality = fc.Compression.Quality
		}
		if fc.Compression.Preset != "" {
			cfg.Preset = fc.Compression.Preset
		}
		if fc.Compression.Cache {
			cfg.CacheEnabled = true
		}
	}

	if fc.Server != nil {
		if fc.Server.Listen != "" {
			cfg.Listen = fc.Server.Listen
		}
		if fc.Server.ResultsDir != "" {
			cfg.ResultsDir = fc.Server.ResultsDir
		}
		if fc.Server.MaxUploadMB > 0 {
			cfg.MaxUploadMB = fc.Server.MaxUploadMB
		}
	}

	if fc.Paths != nil {
		if fc.Paths.DB != "" {
			cfg.DBPath = fc.Paths.DB
		}
		if fc.Paths.WorkDir != "" {
			cfg.WorkDir = fc.Paths.WorkDir
		}
		if fc.Paths.CacheDir != "" {
			cfg.CacheDir = fc.Paths.CacheDir
		}
	}

	if fc.Logging != nil {
		if fc.Logging.Level != "" {
			cfg.Logging.Level = fc.Logging.Level
		}
		if fc.Logging.FilePath != "" {
			cfg.Logging.FilePath = fc.Logging.FilePath
		}
		if fc.Logging.MaxSize > 0 {
			cfg.Logging.MaxSize = fc.Logging.MaxSize
		}
		if fc.Logging.MaxBackups > 0 {
			cfg.Logging.MaxBackups = fc.Logging.MaxBackups
		}
		if fc.Logging.MaxAge > 0 {
			cfg.Logging.MaxAge = fc.Logging.MaxAge
		}
		if fc.Logging.Compress != nil {
			cfg.Logging.Compress = *fc.Logging.Compress
		}
	}
}

// GenerateExampleConfig генерирует пример конфигурационного файла.
func GenerateExampleConfig() string {
	return `# jpegcompress configuration file
# Все параметры опциональны - если не указаны, используются значения по умолчанию.
# CLI флаги имеют приоритет над этим файлом.

engine:
  # Директория с бинарником jpeg_compressor (по умолчанию рядом с программой)
  dir: ""
  # Таймаут на одно сжатие
  timeout: 5m

compression:
  # Коэффициент качества: 1.0 = лучшее качество, 0.002 = максимальное сжатие
  quality: 0.5
  # Пресет: best, balanced, high, extreme (перекрывает quality)
  preset: ""
  # Переиспользовать результаты для одинаковых файлов
  cache: false

server:
  listen: ":8080"
  # Где хранить результаты для скачивания (по умолчанию временная директория)
  results_dir: ""
  max_upload_mb: 32

paths:
  # SQLite база с историей (пусто = не вести историю)
  db: ""
  work_dir: ""
  cache_dir: ""

logging:
  level: info
  # Файл лога с ротацией (пусто = только консоль)
  file: ""
  max_size: 10
  max_backups: 3
  max_age: 30
  compress: true
`
}
