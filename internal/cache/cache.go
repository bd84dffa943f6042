// Package cache хранит результаты сжатия для повторных запросов.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/artemshloyda/jpegcompress/internal/compressor"
)

// Cache управляет кэшированием сжатых изображений.
// Ключ - sha256 содержимого входа и коэффициент качества.
type Cache struct {
	// dir - директория для кэша.
	dir string

	// enabled - включён ли кэш.
	enabled bool
}

// New создаёт новый Cache. Пустой dir отключает кэш.
func New(dir string) (*Cache, error) {
	if dir == "" {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию кэша: %w", err)
	}

	return &Cache{
		dir:     dir,
		enabled: true,
	}, nil
}

// IsEnabled возвращает true если кэш включён.
func (c *Cache) IsEnabled() bool {
	return c.enabled
}

// ContentHash возвращает sha256 хэш содержимого в hex.
func ContentHash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Key генерирует ключ кэша из хэша содержимого и качества.
func (c *Cache) Key(contentSHA256 string, quality float64) string {
	h := sha256.New()
	h.Write([]byte(contentSHA256))
	h.Write([]byte(compressor.FormatQuality(quality)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// path возвращает путь к файлу кэша.
func (c *Cache) path(contentSHA256 string, quality float64) string {
	return filepath.Join(c.dir, c.Key(contentSHA256, quality)+".jpg")
}

// Get возвращает путь к кэшированному файлу, если он существует.
// Возвращает пустую строку если файл не найден в кэше.
func (c *Cache) Get(contentSHA256 string, quality float64) string {
	if !c.enabled {
		return ""
	}

	cachePath := c.path(contentSHA256, quality)
	if _, err := os.Stat(cachePath); err == nil {
		return cachePath
	}
	return ""
}

// Put сохраняет сжатый файл в кэш.
func (c *Cache) Put(contentSHA256 string, quality float64, compressedPath string) error {
	if !c.enabled {
		return nil
	}

	cachePath := c.path(contentSHA256, quality)
	tmpPath := cachePath + ".tmp"
	if err := copyFile(compressedPath, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, cachePath)
}

// CopyFromCache копирует файл из кэша в целевой путь.
func (c *Cache) CopyFromCache(cachePath string, dstPath string) error {
	return copyFile(cachePath, dstPath)
}

// Clear очищает весь кэш.
func (c *Cache) Clear() error {
	if !c.enabled || c.dir == "" {
		return nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Size возвращает общий размер кэша в байтах.
func (c *Cache) Size() (int64, error) {
	if !c.enabled || c.dir == "" {
		return 0, nil
	}

	var size int64
	err := filepath.WalkDir(c.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})

	return size, err
}

// copyFile копирует файл из src в dst.
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return err
	}
	return dstFile.Close()
}

/*
Возможные расширения:
- LRU eviction при превышении лимита размера
*/
