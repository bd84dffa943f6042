// Package enginefinder отвечает за поиск бинарника движка сжатия JPEG.
package enginefinder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// ErrEngineMissing - движок сжатия не найден по ожидаемому пути.
var ErrEngineMissing = errors.New("движок сжатия не найден")

// MissingError содержит точный путь, по которому ожидался движок.
type MissingError struct {
	// Path - ожидаемый абсолютный путь к бинарнику.
	Path string

	// Err - исходная ошибка stat (если есть).
	Err error
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("JPEG compressor engine not found at: %s", e.Path)
}

// Is позволяет сравнивать с ErrEngineMissing через errors.Is.
func (e *MissingError) Is(target error) bool {
	return target == ErrEngineMissing
}

func (e *MissingError) Unwrap() error {
	return e.Err
}

// EngineInfo содержит информацию о найденном движке.
type EngineInfo struct {
	// Path - абсолютный путь к бинарнику движка.
	Path string

	// Version - версия движка (заполняется Probe, может быть пустой).
	Version string
}

// Finder ищет бинарник движка относительно базовой директории.
type Finder struct {
	// BaseDir - директория установки программы.
	BaseDir string

	// BinaryName - имя бинарника движка.
	BinaryName string
}

// NewFinder создаёт новый Finder.
// Пустой baseDir означает директорию исполняемого файла.
func NewFinder(baseDir string) *Finder {
	return &Finder{
		BaseDir:    baseDir,
		BinaryName: BinaryName(),
	}
}

// DefaultBaseDir возвращает директорию запущенной программы.
// Рабочая директория процесса не учитывается.
func DefaultBaseDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("не удалось определить путь к исполняемому файлу: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}
	return filepath.Dir(execPath), nil
}

// ExpectedPath возвращает абсолютный путь, по которому ищется движок.
func (f *Finder) ExpectedPath() (string, error) {
	baseDir := f.BaseDir
	if baseDir == "" {
		dir, err := DefaultBaseDir()
		if err != nil {
			return "", err
		}
		baseDir = dir
	}

	name := f.BinaryName
	if name == "" {
		name = BinaryName()
	}

	absPath, err := filepath.Abs(filepath.Join(baseDir, name))
	if err != nil {
		return "", fmt.Errorf("не удалось получить абсолютный путь: %w", err)
	}
	return absPath, nil
}

// Locate проверяет, что движок существует по ожидаемому пути.
// Процесс движка при этом не запускается.
func (f *Finder) Locate() (*EngineInfo, error) {
	path, err := f.ExpectedPath()
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &MissingError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &MissingError{Path: path, Err: fmt.Errorf("%s является директорией", path)}
	}

	return &EngineInfo{Path: path}, nil
}

// Probe пробует получить версию через "<engine> --version".
// Ошибки игнорируются: не каждый движок поддерживает этот флаг.
func (e *EngineInfo) Probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, e.Path, "--version").Output()
	if err != nil {
		return
	}
	e.Version = parseVersion(string(output))
}

// parseVersion извлекает версию из вывода "--version".
// Пример вывода: "jpeg_compressor 1.2.0"
func parseVersion(output string) string {
	output = strings.TrimSpace(output)
	if i := strings.IndexByte(output, '\n'); i >= 0 {
		output = strings.TrimSpace(output[:i])
	}

	for _, prefix := range []string{"jpeg_compressor-", "jpeg_compressor ", "version "} {
		if strings.HasPrefix(output, prefix) {
			return strings.TrimPrefix(output, prefix)
		}
	}

	return output
}

// BinaryName возвращает имя бинарника движка для текущей ОС.
func BinaryName() string {
	if runtime.GOOS == "windows" {
		return "jpeg_compressor.exe"
	}
	return "jpeg_compressor"
}
