// Package session проводит одно сжатие от загруженных байт до результата:
// временные файлы, вызов движка, проверка выхода, метрики.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/artemshloyda/jpegcompress/internal/cache"
	"github.com/artemshloyda/jpegcompress/internal/compressor"
	"github.com/artemshloyda/jpegcompress/internal/enginefinder"
	"github.com/artemshloyda/jpegcompress/internal/logger"
	"github.com/artemshloyda/jpegcompress/internal/storage"
)

var (
	// ErrBusy - предыдущее сжатие ещё не завершилось.
	ErrBusy = errors.New("сжатие уже выполняется")

	// ErrEmptyUpload - загружен пустой файл.
	ErrEmptyUpload = errors.New("пустой файл")
)

const (
	inputName  = "input.jpg"
	outputName = "output.jpg"
)

// History - журнал попыток сжатия.
// Реализуется storage.Storage.
type History interface {
	StartJob(job storage.NewJob) (int64, error)
	FinalizeJobOK(jobID int64, dstSize int64, diagnostic string) error
	FinalizeJobFailed(jobID int64, kind, diagnostic string) error
}

// Upload - загруженный пользователем файл и выбранное качество.
type Upload struct {
	// Name - исходное имя файла (только для отображения и истории).
	Name string

	// Data - содержимое файла.
	Data []byte

	// Quality - коэффициент качества.
	Quality float64
}

// Result содержит итог одного сжатия.
type Result struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Quality float64 `json:"quality"`

	// Success - движок отработал и выходной файл существует.
	Success bool `json:"success"`

	// Diagnostic - вывод движка, показывается пользователю как есть.
	Diagnostic string `json:"diagnostic"`

	Kind compressor.Kind `json:"kind"`

	OriginalSize   int64 `json:"original_size"`
	CompressedSize int64 `json:"compressed_size"`

	// Ratio - original / compressed (0, если сжатие не удалось).
	Ratio        float64 `json:"ratio"`
	SavedPercent float64 `json:"saved_percent"`

	// Width, Height - размеры исходного изображения (0, если не удалось прочитать).
	Width  int `json:"width"`
	Height int `json:"height"`

	// Cached - результат взят из кэша, движок не запускался.
	Cached bool `json:"cached"`

	Duration time.Duration `json:"duration"`

	// Output - сжатые байты; nil при неудаче.
	Output []byte `json:"-"`
}

// Options содержит зависимости и настройки сессии.
type Options struct {
	// WorkDir - где создавать временные директории (пусто = системная).
	WorkDir string

	// Logger - логгер (nil = без логов).
	Logger logrus.FieldLogger

	// History - журнал (nil = без истории).
	History History

	// Cache - кэш результатов (nil = без кэша).
	Cache *cache.Cache
}

// Session выполняет сжатия по одному за раз.
type Session struct {
	comp compressor.Compressor
	opts Options
	log  logrus.FieldLogger
	busy atomic.Bool
}

// New создаёт сессию поверх готового Compressor.
func New(comp compressor.Compressor, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Session{comp: comp, opts: opts, log: log}
}

// Open находит движок и создаёт сессию.
// Если движка нет, возвращается *enginefinder.MissingError и ни один файл не трогается.
func Open(finder *enginefinder.Finder, timeout time.Duration, opts Options) (*Session, *enginefinder.EngineInfo, error) {
	info, err := finder.Locate()
	if err != nil {
		return nil, nil, err
	}

	eng := compressor.New(info.Path)
	eng.SetTimeout(timeout)

	return New(eng, opts), info, nil
}

// Busy возвращает true, пока выполняется сжатие.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// CompressFile читает файл с диска и сжимает его.
func (s *Session) CompressFile(ctx context.Context, path string, quality float64) (*Result, error) {
	if err := compressor.ValidateQuality(quality); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать %s: %w", path, err)
	}
	return s.Compress(ctx, Upload{Name: filepath.Base(path), Data: data, Quality: quality})
}

// Compress выполняет одно сжатие.
// Ошибка возвращается только если движок не вызывался (занято, неверное качество,
// проблемы с временными файлами). Неудача движка - это Result с Success=false.
func (s *Session) Compress(ctx context.Context, up Upload) (*Result, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	if err := compressor.ValidateQuality(up.Quality); err != nil {
		return nil, err
	}
	if len(up.Data) == 0 {
		return nil, ErrEmptyUpload
	}

	start := time.Now()
	res := &Result{
		ID:           uuid.NewString(),
		Name:         up.Name,
		Quality:      up.Quality,
		OriginalSize: int64(len(up.Data)),
	}
	log := logger.WithRequest(s.log, res.ID, up.Quality).WithField("file", up.Name)

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(up.Data)); err == nil {
		res.Width, res.Height = cfg.Width, cfg.Height
	} else {
		log.WithError(err).Warn("не удалось прочитать размеры изображения")
	}

	dir, err := os.MkdirTemp(s.opts.WorkDir, "jpegcompress-*")
	if err != nil {
		return nil, fmt.Errorf("не удалось создать временную директорию: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.WithError(err).Warn("не удалось удалить временную директорию")
		}
	}()

	inPath := filepath.Join(dir, inputName)
	outPath := filepath.Join(dir, outputName)
	if err := os.WriteFile(inPath, up.Data, 0600); err != nil {
		return nil, fmt.Errorf("не удалось сохранить загруженный файл: %w", err)
	}

	var contentHash string
	if s.opts.History != nil || s.cacheEnabled() {
		contentHash = cache.ContentHash(up.Data)
	}

	jobID := s.startJob(log, storage.NewJob{
		RequestID: res.ID,
		SrcName:   up.Name,
		SrcSize:   res.OriginalSize,
		SrcSHA256: contentHash,
		Quality:   up.Quality,
	})

	log.Debug("запуск сжатия")

	outcome := s.fromCache(log, contentHash, up.Quality, outPath)
	if outcome != nil {
		res.Cached = true
	} else {
		outcome = s.comp.Compress(ctx, compressor.Request{
			InputPath:  inPath,
			OutputPath: outPath,
			Quality:    up.Quality,
		})
	}

	s.collect(log, res, outcome, outPath)
	res.Duration = time.Since(start)

	if res.Success && !res.Cached && s.cacheEnabled() {
		if err := s.opts.Cache.Put(contentHash, up.Quality, outPath); err != nil {
			log.WithError(err).Warn("не удалось сохранить результат в кэш")
		}
	}

	s.finishJob(log, jobID, res)

	entry := log.WithFields(logrus.Fields{
		"kind":     res.Kind,
		"duration": res.Duration.String(),
	})
	if res.Success {
		entry.WithFields(logrus.Fields{
			"original_size":   res.OriginalSize,
			"compressed_size": res.CompressedSize,
			"ratio":           res.Ratio,
			"cached":          res.Cached,
		}).Info("сжатие завершено")
	} else {
		entry.WithField("diagnostic", res.Diagnostic).Warn("сжатие не удалось")
	}

	return res, nil
}

// collect переносит Outcome в Result и сам проверяет наличие выхода.
// Размер и содержимое читаются только после завершения движка.
func (s *Session) collect(log logrus.FieldLogger, res *Result, outcome *compressor.Outcome, outPath string) {
	res.Kind = outcome.Kind
	res.Diagnostic = outcome.Diagnostic
	if !outcome.Success {
		return
	}

	info, err := os.Stat(outPath)
	if err != nil {
		res.Kind = compressor.KindNoOutput
		res.Diagnostic = fmt.Sprintf("output file was not produced: %s", outPath)
		return
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		res.Kind = compressor.KindNoOutput
		res.Diagnostic = fmt.Sprintf("output file is unreadable: %v", err)
		return
	}

	res.Success = true
	res.Output = data
	res.CompressedSize = info.Size()
	res.Ratio = Ratio(res.OriginalSize, res.CompressedSize)
	res.SavedPercent = SavedPercent(res.OriginalSize, res.CompressedSize)
}

// fromCache копирует результат из кэша; nil если в кэше ничего нет.
func (s *Session) fromCache(log logrus.FieldLogger, contentHash string, quality float64, outPath string) *compressor.Outcome {
	if !s.cacheEnabled() {
		return nil
	}
	cached := s.opts.Cache.Get(contentHash, quality)
	if cached == "" {
		return nil
	}
	if err := s.opts.Cache.CopyFromCache(cached, outPath); err != nil {
		log.WithError(err).Warn("не удалось прочитать кэш, запускаем движок")
		_ = os.Remove(outPath)
		return nil
	}
	return &compressor.Outcome{
		Success:    true,
		Kind:       compressor.KindOK,
		Diagnostic: "result reused from cache",
	}
}

func (s *Session) cacheEnabled() bool {
	return s.opts.Cache != nil && s.opts.Cache.IsEnabled()
}

func (s *Session) startJob(log logrus.FieldLogger, job storage.NewJob) int64 {
	if s.opts.History == nil {
		return 0
	}
	id, err := s.opts.History.StartJob(job)
	if err != nil {
		log.WithError(err).Warn("не удалось записать историю")
		return 0
	}
	return id
}

func (s *Session) finishJob(log logrus.FieldLogger, jobID int64, res *Result) {
	if s.opts.History == nil || jobID == 0 {
		return
	}
	var err error
	if res.Success {
		err = s.opts.History.FinalizeJobOK(jobID, res.CompressedSize, res.Diagnostic)
	} else {
		err = s.opts.History.FinalizeJobFailed(jobID, string(res.Kind), res.Diagnostic)
	}
	if err != nil {
		log.WithError(err).Warn("не удалось обновить историю")
	}
}

// Ratio возвращает коэффициент сжатия original / compressed.
func Ratio(original, compressed int64) float64 {
	if compressed <= 0 {
		return 0
	}
	return float64(original) / float64(compressed)
}

// SavedPercent возвращает процент экономии.
func SavedPercent(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	return float64(original-compressed) / float64(original) * 100
}
