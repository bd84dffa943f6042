// Package compressor содержит вызов внешнего движка сжатия JPEG.
package compressor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// MinQuality - минимальный коэффициент качества (максимальное сжатие).
	MinQuality = 0.002

	// MaxQuality - максимальный коэффициент качества (минимальное сжатие).
	MaxQuality = 1.0
)

// Ошибки, которыми помечается неудачный Outcome.
var (
	ErrInvalidQuality = errors.New("недопустимое качество")
	ErrLaunchFailure  = errors.New("не удалось запустить движок")
	ErrEngineFailure  = errors.New("движок завершился с ошибкой")
	ErrNoOutput       = errors.New("движок не создал выходной файл")
	ErrTimeout        = errors.New("превышено время ожидания движка")
	ErrCancelled      = errors.New("сжатие отменено")
)

// Kind классифицирует результат одной попытки сжатия.
type Kind string

const (
	KindOK             Kind = "ok"
	KindInvalidQuality Kind = "invalid_quality"
	KindLaunchFailure  Kind = "launch_failure"
	KindEngineFailure  Kind = "engine_failure"
	KindNoOutput       Kind = "no_output"
	KindTimeout        Kind = "timeout"
	KindCancelled      Kind = "cancelled"
)

// Request описывает одну операцию сжатия.
type Request struct {
	// InputPath - путь к исходному JPEG (должен существовать).
	InputPath string

	// OutputPath - путь к выходному файлу (директория должна существовать).
	OutputPath string

	// Quality - коэффициент качества в диапазоне [MinQuality, MaxQuality].
	Quality float64
}

// Outcome содержит результат одной попытки сжатия.
type Outcome struct {
	// Success - движок завершился успешно и выходной файл существует.
	Success bool

	// Diagnostic - текст для пользователя: stdout при успехе, текст ошибки при неудаче.
	Diagnostic string

	// Kind - класс результата.
	Kind Kind

	// Err - ошибка (nil при успехе), совместима с errors.Is для Err* выше.
	Err error

	// Stdout - захваченный stdout движка.
	Stdout string

	// Stderr - захваченный stderr движка.
	Stderr string

	// ExitCode - код завершения движка (-1, если процесс не завершился сам).
	ExitCode int

	// Duration - время выполнения.
	Duration time.Duration
}

// Compressor - возможность сжать один файл.
// Основная реализация - Engine, в тестах подставляются заглушки.
type Compressor interface {
	Compress(ctx context.Context, req Request) *Outcome
}

// InvalidQualityError возвращается для качества вне допустимого диапазона.
type InvalidQualityError struct {
	Quality float64
}

func (e *InvalidQualityError) Error() string {
	return fmt.Sprintf("качество должно быть от %s до %s, получено: %v",
		FormatQuality(MinQuality), FormatQuality(MaxQuality), e.Quality)
}

func (e *InvalidQualityError) Is(target error) bool {
	return target == ErrInvalidQuality
}

// ValidateQuality проверяет, что q лежит в [MinQuality, MaxQuality].
func ValidateQuality(q float64) error {
	if math.IsNaN(q) || q < MinQuality || q > MaxQuality {
		return &InvalidQualityError{Quality: q}
	}
	return nil
}

// FormatQuality форматирует качество для передачи движку.
// Всегда содержит десятичную точку: 1 -> "1.0", 0.5 -> "0.5".
func FormatQuality(q float64) string {
	s := strconv.FormatFloat(q, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// failed строит неудачный Outcome.
func failed(kind Kind, err error, diagnostic string) *Outcome {
	return &Outcome{
		Success:    false,
		Kind:       kind,
		Err:        err,
		Diagnostic: diagnostic,
		ExitCode:   -1,
	}
}
