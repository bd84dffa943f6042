package compressor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// DefaultTimeout - таймаут на сжатие одного файла по умолчанию.
const DefaultTimeout = 5 * time.Minute

// defaultWaitDelay - сколько ждать закрытия pipe после завершения движка.
const defaultWaitDelay = 5 * time.Second

// Engine выполняет сжатие через внешний бинарник:
// <engine> <input_path> <output_path> <quality>
type Engine struct {
	// enginePath - путь к бинарнику движка.
	enginePath string

	// timeout - таймаут на сжатие одного файла.
	timeout time.Duration

	// waitDelay - сколько ждать закрытия pipe после завершения движка.
	waitDelay time.Duration
}

var _ Compressor = (*Engine)(nil)

// New создаёт новый Engine.
func New(enginePath string) *Engine {
	return &Engine{
		enginePath: enginePath,
		timeout:    DefaultTimeout,
		waitDelay:  defaultWaitDelay,
	}
}

// SetTimeout устанавливает таймаут на сжатие. 0 отключает таймаут.
func (e *Engine) SetTimeout(d time.Duration) {
	e.timeout = d
}

// Path возвращает путь к бинарнику движка.
func (e *Engine) Path() string {
	return e.enginePath
}

// Compress запускает движок и ждёт его завершения.
// Ошибки не возвращаются отдельно: любой исход сводится к Outcome.
func (e *Engine) Compress(ctx context.Context, req Request) *Outcome {
	start := time.Now()

	if err := ValidateQuality(req.Quality); err != nil {
		out := failed(KindInvalidQuality, err, err.Error())
		out.Duration = time.Since(start)
		return out
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, e.enginePath, req.InputPath, req.OutputPath, FormatQuality(req.Quality))
	cmd.WaitDelay = e.waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	out := e.classify(ctx, runCtx, req, err, cmd.ProcessState, stdout.String(), stderr.String())
	out.Stdout = stdout.String()
	out.Stderr = stderr.String()
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}
	out.Duration = time.Since(start)
	return out
}

// classify определяет исход по ошибке процесса и наличию выходного файла.
func (e *Engine) classify(ctx, runCtx context.Context, req Request, err error, state *os.ProcessState, stdout, stderr string) *Outcome {
	// Движок завершился с кодом 0, но его потомок держит stdout/stderr открытыми
	if errors.Is(err, exec.ErrWaitDelay) && state != nil && state.Success() {
		err = nil
	}

	if err != nil {
		// Отмена вызывающим важнее кода завершения убитого процесса
		if ctx.Err() != nil {
			return failed(KindCancelled, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()),
				fmt.Sprintf("compression cancelled: %v", ctx.Err()))
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return failed(KindTimeout, fmt.Errorf("%w (%s)", ErrTimeout, e.timeout),
				fmt.Sprintf("compression engine did not finish within %s", e.timeout))
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			diagnostic := engineDiagnostic(stdout, stderr, exitErr.ExitCode())
			return failed(KindEngineFailure, fmt.Errorf("%w: %s", ErrEngineFailure, err), diagnostic)
		}

		// Бинарник не запустился: нет файла, нет прав, ошибка ОС
		return failed(KindLaunchFailure, fmt.Errorf("%w: %w", ErrLaunchFailure, err), err.Error())
	}

	// Код 0 ещё не успех: движок мог не записать результат
	if _, statErr := os.Stat(req.OutputPath); statErr != nil {
		return failed(KindNoOutput, fmt.Errorf("%w: %s", ErrNoOutput, req.OutputPath),
			fmt.Sprintf("output file was not produced: %s", req.OutputPath))
	}

	diagnostic := stdout
	if stderr != "" {
		if diagnostic != "" && diagnostic[len(diagnostic)-1] != '\n' {
			diagnostic += "\n"
		}
		diagnostic += stderr
	}

	return &Outcome{
		Success:    true,
		Kind:       KindOK,
		Diagnostic: diagnostic,
	}
}

// engineDiagnostic выбирает текст ошибки движка для пользователя.
func engineDiagnostic(stdout, stderr string, exitCode int) string {
	if stderr != "" {
		return stderr
	}
	if stdout != "" {
		return stdout
	}
	return fmt.Sprintf("engine exited with status %d", exitCode)
}

// CheckHealth проверяет, что бинарник движка всё ещё на месте.
func (e *Engine) CheckHealth(ctx context.Context) error {
	if _, err := os.Stat(e.enginePath); err != nil {
		return fmt.Errorf("движок недоступен: %w", err)
	}
	return nil
}

/*
Возможные расширения:
- Передавать прогресс движка построчно (сейчас вывод доступен только после завершения)
- Ограничить размер захваченного stdout/stderr
*/
