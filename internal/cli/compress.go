package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/artemshloyda/jpegcompress/internal/cache"
	"github.com/artemshloyda/jpegcompress/internal/enginefinder"
	"github.com/artemshloyda/jpegcompress/internal/progress"
	"github.com/artemshloyda/jpegcompress/internal/session"
	"github.com/artemshloyda/jpegcompress/internal/storage"
)

// errCompressionFailed - движок не выдал результат.
var errCompressionFailed = errors.New("сжатие не удалось")

// newCompressCmd создаёт команду compress.
func newCompressCmd(a *app) *cobra.Command {
	var inPath, outPath string

	cmd := &cobra.Command{
		Use:   "compress",
		Short: "Сжать один JPEG файл",
		Long: `Сжимает один JPEG файл движком jpeg_compressor.

Пресеты качества: best (1.0), balanced (0.5), high (0.1), extreme (0.002).`,
		PreRunE: a.preferExplicitQuality,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCompress(cmd, inPath, outPath)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&inPath, "in", "", "Исходный JPEG файл (обязательно)")
	flags.StringVar(&outPath, "out", "", "Куда сохранить результат (обязательно)")
	flags.Float64Var(&a.cfg.Quality, "quality", a.cfg.Quality, "Коэффициент качества (0.002-1.0)")
	flags.StringVar(&a.cfg.Preset, "preset", a.cfg.Preset, "Пресет: best, balanced, high, extreme")
	flags.BoolVar(&a.cfg.NoProgress, "no-progress", a.cfg.NoProgress, "Не показывать спиннер")

	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// preferExplicitQuality сбрасывает пресет из конфигурационного файла,
// если качество задано флагом, а пресет нет.
func (a *app) preferExplicitQuality(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("quality") && !cmd.Flags().Changed("preset") {
		a.cfg.Preset = ""
	}
	return nil
}

// runCompress выполняет одно сжатие и сохраняет результат.
func (a *app) runCompress(cmd *cobra.Command, inPath, outPath string) error {
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}

	log, err := a.newLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := a.openSession(log)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	if a.cfg.Verbose {
		fmt.Fprintf(out, "📦 Движок: %s\n", rt.info.Path)
	}

	spinner := progress.New(progress.Options{
		Disabled: a.cfg.NoProgress || !progress.IsTerminal(os.Stderr),
		Writer:   cmd.ErrOrStderr(),
	})
	spinner.Start()
	res, err := rt.sess.CompressFile(ctx, inPath, a.cfg.Quality)
	spinner.Stop()
	if err != nil {
		return err
	}

	if !res.Success {
		fmt.Fprintf(cmd.ErrOrStderr(), "❌ Compression failed: %s\n", strings.TrimSpace(res.Diagnostic))
		return fmt.Errorf("%w (%s)", errCompressionFailed, res.Kind)
	}

	if err := os.WriteFile(outPath, res.Output, 0644); err != nil {
		return fmt.Errorf("не удалось сохранить результат: %w", err)
	}

	printResult(out, res, outPath)
	return nil
}

// engineSession - открытая сессия вместе с историей и кэшем.
type engineSession struct {
	sess  *session.Session
	info  *enginefinder.EngineInfo
	store *storage.Storage

	closers []func()
}

// Close закрывает ресурсы в обратном порядке.
func (r *engineSession) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// openSession находит движок и подключает историю и кэш.
// Отсутствие движка - фатальная ошибка с точным путём.
func (a *app) openSession(log logrus.FieldLogger) (*engineSession, error) {
	rt := &engineSession{}
	opts := session.Options{
		WorkDir: a.cfg.WorkDir,
		Logger:  log,
	}

	if a.cfg.DBPath != "" {
		store, err := storage.New(a.cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("не удалось инициализировать БД: %w", err)
		}
		rt.store = store
		rt.closers = append(rt.closers, func() { _ = store.Close() })

		if cleaned, err := store.CleanupInProgress(); err != nil {
			log.WithError(err).Warn("не удалось очистить in_progress")
		} else if cleaned > 0 {
			log.WithField("count", cleaned).Info("очищены прерванные записи")
		}
		opts.History = store
	}

	if a.cfg.CacheEnabled {
		c, err := cache.New(a.cfg.CacheDir)
		if err != nil {
			rt.Close()
			return nil, err
		}
		opts.Cache = c
	}

	sess, info, err := session.Open(a.finder(), a.cfg.Timeout, opts)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.sess = sess
	rt.info = info
	return rt, nil
}

// finder возвращает поисковик движка с учётом --engine-dir.
func (a *app) finder() *enginefinder.Finder {
	return enginefinder.NewFinder(a.cfg.EngineDir)
}

func printResult(out io.Writer, res *session.Result, outPath string) {
	fmt.Fprintf(out, "✅ Сжато: %s\n", outPath)
	fmt.Fprintf(out, "   Original: %s\n", humanize.IBytes(uint64(res.OriginalSize)))
	fmt.Fprintf(out, "   Compressed: %s\n", humanize.IBytes(uint64(res.CompressedSize)))
	fmt.Fprintf(out, "   Ratio: %.2f:1 (сэкономлено %.1f%%)\n", res.Ratio, res.SavedPercent)
	if res.Width > 0 {
		fmt.Fprintf(out, "   Размер изображения: %dx%d\n", res.Width, res.Height)
	}
	if res.Cached {
		fmt.Fprintln(out, "   Результат взят из кэша")
	}
	if diag := strings.TrimSpace(res.Diagnostic); diag != "" {
		fmt.Fprintf(out, "   Вывод движка: %s\n", diag)
	}
}
