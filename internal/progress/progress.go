// Package progress показывает спиннер, пока движок сжимает файл.
package progress

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// tick - период перерисовки спиннера.
const tick = 100 * time.Millisecond

// Spinner - индикатор ожидания без известного объёма работы.
type Spinner struct {
	// bar - внутренний progressbar в режиме спиннера.
	bar *progressbar.ProgressBar

	// mu защищает запуск и остановку.
	mu sync.Mutex

	// stop закрывается при остановке.
	stop chan struct{}

	// done закрывается, когда горутина перерисовки завершилась.
	done chan struct{}
}

// Options содержит настройки для спиннера.
type Options struct {
	// Description - текст рядом со спиннером.
	Description string

	// Disabled - не рисовать ничего.
	Disabled bool

	// Writer - куда выводить (по умолчанию os.Stderr).
	Writer io.Writer
}

// New создаёт новый спиннер.
func New(opts Options) *Spinner {
	s := &Spinner{}
	if opts.Disabled {
		return s
	}

	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	description := opts.Description
	if description == "" {
		description = "Compressing..."
	}

	s.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetSpinnerChangeInterval(0),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
	return s
}

// IsTerminal проверяет, что f - терминал (для автоматического отключения спиннера).
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Start запускает перерисовку в фоне. Повторный вызов ничего не делает.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bar == nil || s.stop != nil {
		return
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = s.bar.Add(1)
			}
		}
	}(s.stop, s.done)
}

// Stop останавливает спиннер и стирает его строку.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop == nil {
		return
	}

	close(s.stop)
	<-s.done
	s.stop = nil
	_ = s.bar.Finish()
}

// IsDisabled возвращает true, если спиннер отключён.
func (s *Spinner) IsDisabled() bool {
	return s.bar == nil
}
