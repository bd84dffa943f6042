package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/jpegcompress/internal/web"
)

// shutdownTimeout - сколько ждать завершения текущего запроса при остановке.
const shutdownTimeout = 10 * time.Second

// newServeCmd создаёт команду serve.
func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP сервер для загрузки и скачивания",
		Long: `Запускает HTTP API:

  GET  /api/status          движок и занятость
  GET  /api/presets         пресеты качества
  POST /api/compress        multipart: file, quality или preset
  GET  /api/download/{id}   результат (compressed.jpg)
  GET  /api/stats           статистика истории (нужен --db)`,
		PreRunE: a.preferExplicitQuality,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&a.cfg.Listen, "listen", a.cfg.Listen, "Адрес для HTTP сервера")
	flags.StringVar(&a.cfg.ResultsDir, "results-dir", a.cfg.ResultsDir, "Директория для результатов")
	flags.IntVar(&a.cfg.MaxUploadMB, "max-upload-mb", a.cfg.MaxUploadMB, "Максимальный размер загрузки, MB")
	flags.Float64Var(&a.cfg.Quality, "quality", a.cfg.Quality, "Качество по умолчанию для запросов без quality")
	flags.StringVar(&a.cfg.Preset, "preset", a.cfg.Preset, "Пресет по умолчанию: best, balanced, high, extreme")

	return cmd
}

func (a *app) runServe(cmd *cobra.Command) error {
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}

	// Сервер всегда пишет логи в консоль
	a.cfg.Verbose = true
	log, err := a.newLogger()
	if err != nil {
		return err
	}

	rt, err := a.openSession(log)
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.info.Probe(cmd.Context())

	deps := web.Deps{Session: rt.sess, Engine: rt.info}
	if rt.store != nil {
		deps.History = rt.store
	}

	srv, err := web.NewServer(a.cfg, log, deps)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	fmt.Fprintf(cmd.OutOrStdout(), "🌐 Сервер запущен на %s (движок: %s)\n", a.cfg.Listen, rt.info.Path)

	select {
	case err := <-errCh:
		return err
	case <-sigChan:
		log.Info("получен сигнал завершения, останавливаем сервер")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(ctx)
}
