// Package refengine - эталонный движок сжатия JPEG.
// Реализует тот же контракт, что и внешний бинарник: вход, выход, качество.
package refengine

import (
	"fmt"
	"image"
	"math"
	"os"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
)

// Version - версия эталонного движка.
const Version = "1.0.0"

// Stats содержит результат одного сжатия.
type Stats struct {
	// JPEGQuality - качество по шкале JPEG (1-100).
	JPEGQuality int

	// InputSize - размер входного файла в байтах.
	InputSize int64

	// OutputSize - размер выходного файла в байтах.
	OutputSize int64

	// Width, Height - размеры изображения.
	Width, Height int
}

// String форматирует Stats для stdout движка.
func (s Stats) String() string {
	return fmt.Sprintf("%dx%d, jpeg quality %d: %s -> %s",
		s.Width, s.Height, s.JPEGQuality,
		humanize.Bytes(uint64(s.InputSize)), humanize.Bytes(uint64(s.OutputSize)))
}

// JPEGQuality переводит коэффициент [0.002, 1.0] в шкалу JPEG 1-100.
func JPEGQuality(q float64) int {
	jq := int(math.Round(q * 100))
	if jq < 1 {
		return 1
	}
	if jq > 100 {
		return 100
	}
	return jq
}

// Compress перекодирует inPath в outPath с заданным качеством.
func Compress(inPath, outPath string, quality float64) (*Stats, error) {
	inInfo, err := os.Stat(inPath)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать вход: %w", err)
	}

	img, err := imaging.Open(inPath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("не удалось декодировать %s: %w", inPath, err)
	}

	jq := JPEGQuality(quality)
	if err := encode(img, outPath, jq); err != nil {
		_ = os.Remove(outPath)
		return nil, fmt.Errorf("не удалось записать %s: %w", outPath, err)
	}

	outInfo, err := os.Stat(outPath)
	if err != nil {
		return nil, fmt.Errorf("выходной файл не создан: %w", err)
	}

	bounds := img.Bounds()
	return &Stats{
		JPEGQuality: jq,
		InputSize:   inInfo.Size(),
		OutputSize:  outInfo.Size(),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

// encode пишет JPEG независимо от расширения outPath.
func encode(img image.Image, outPath string, jpegQuality int) error {
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := imaging.Encode(f, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
