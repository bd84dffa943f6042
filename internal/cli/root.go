// Package cli содержит CLI интерфейс приложения.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/artemshloyda/jpegcompress/internal/config"
	"github.com/artemshloyda/jpegcompress/internal/logger"
)

var (
	// Version будет установлена при сборке.
	Version = "dev"

	// BuildTime будет установлена при сборке.
	BuildTime = "unknown"
)

// app хранит состояние одного запуска CLI.
type app struct {
	cfg        *config.Config
	configPath string

	// loadedFrom - путь к прочитанному конфигурационному файлу.
	loadedFrom string
}

// NewRootCmd создаёт корневую команду CLI.
func NewRootCmd() *cobra.Command {
	a := &app{cfg: config.DefaultConfig()}

	rootCmd := &cobra.Command{
		Use:   "jpegcompress",
		Short: "Сжатие JPEG через внешний движок jpeg_compressor",
		Long: `jpegcompress - сжатие JPEG изображений с выбранным коэффициентом качества.

Само сжатие выполняет движок jpeg_compressor, который ищется рядом с программой
(или в --engine-dir). Качество задаётся числом от 0.002 (максимальное сжатие)
до 1.0 (лучшее качество) или пресетом.

Примеры:
  # Сжать файл с качеством 0.5
  jpegcompress compress --in photo.jpg --out small.jpg --quality 0.5

  # Сжать с пресетом
  jpegcompress compress --in photo.jpg --out small.jpg --preset extreme

  # Запустить HTTP сервер
  jpegcompress serve --listen :8080`,
		SilenceUsage:      true,
		PersistentPreRunE: a.loadConfig,
	}

	// Глобальные флаги
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Путь к YAML файлу конфигурации")
	flags.StringVar(&a.cfg.EngineDir, "engine-dir", a.cfg.EngineDir, "Директория с движком (по умолчанию рядом с программой)")
	flags.DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "Таймаут на одно сжатие (0 = без ограничения)")
	flags.StringVar(&a.cfg.Logging.Level, "log-level", a.cfg.Logging.Level, "Уровень логирования: debug, info, warn, error")
	flags.StringVar(&a.cfg.Logging.FilePath, "log-file", a.cfg.Logging.FilePath, "Файл лога с ротацией")
	flags.StringVar(&a.cfg.DBPath, "db", a.cfg.DBPath, "Путь к SQLite базе с историей")
	flags.BoolVar(&a.cfg.CacheEnabled, "cache", a.cfg.CacheEnabled, "Переиспользовать результаты для одинаковых файлов")
	flags.BoolVarP(&a.cfg.Verbose, "verbose", "v", a.cfg.Verbose, "Подробный вывод")

	// Подкоманды
	rootCmd.AddCommand(newCompressCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newStatsCmd(a))
	rootCmd.AddCommand(newPresetsCmd())
	rootCmd.AddCommand(newVersionCmd(a))
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// loadConfig применяет конфигурационный файл, сохраняя приоритет явно заданных флагов.
func (a *app) loadConfig(cmd *cobra.Command, args []string) error {
	changed := make(map[string]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	fc, path, err := config.FindAndLoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if fc == nil {
		return nil
	}
	fc.ApplyToConfig(a.cfg)
	a.loadedFrom = path

	for name, value := range changed {
		if err := cmd.Flags().Set(name, value); err != nil {
			return fmt.Errorf("флаг --%s: %w", name, err)
		}
	}
	return nil
}

// newLogger создаёт логгер. Без --verbose консоль не засоряется JSON логами.
func (a *app) newLogger() (*logrus.Logger, error) {
	var console io.Writer = io.Discard
	if a.cfg.Verbose {
		console = os.Stderr
	}
	log, err := logger.New(logger.Options{Config: a.cfg.Logging, Console: console})
	if err != nil {
		return nil, fmt.Errorf("не удалось настроить логирование: %w", err)
	}
	return log, nil
}

// newVersionCmd создаёт команду version.
func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "jpegcompress %s (built %s)\n", Version, BuildTime)

			info, err := a.finder().Locate()
			if err != nil {
				fmt.Fprintf(out, "engine: %v\n", err)
				return
			}
			info.Probe(cmd.Context())
			version := info.Version
			if version == "" {
				version = "unknown"
			}
			fmt.Fprintf(out, "engine: %s (version %s)\n", info.Path, version)
		},
	}
}

// Execute запускает CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		// Не выводим ошибку, cobra уже вывела
		os.Exit(1)
	}
}

/*
Возможные расширения:
- Добавить команду history для просмотра последних сжатий с фильтрами
- Добавить команду cache clear
- Добавить вывод результата compress в JSON (--json)
*/
