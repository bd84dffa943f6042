package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artemshloyda/jpegcompress/internal/cache"
	"github.com/artemshloyda/jpegcompress/internal/compressor"
	"github.com/artemshloyda/jpegcompress/internal/enginefinder"
	"github.com/artemshloyda/jpegcompress/internal/refengine"
	"github.com/artemshloyda/jpegcompress/internal/storage"
)

// fakeCompressor - заглушка Compressor с подменяемым поведением.
type fakeCompressor struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req compressor.Request) *compressor.Outcome
}

func (f *fakeCompressor) Compress(ctx context.Context, req compressor.Request) *compressor.Outcome {
	f.calls.Add(1)
	return f.fn(ctx, req)
}

// halving пишет первую половину входа и сообщает об успехе.
func halving(t *testing.T) *fakeCompressor {
	return &fakeCompressor{fn: func(_ context.Context, req compressor.Request) *compressor.Outcome {
		data, err := os.ReadFile(req.InputPath)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(req.OutputPath, data[:len(data)/2], 0644))
		return &compressor.Outcome{Success: true, Kind: compressor.KindOK, Diagnostic: "halved\n"}
	}}
}

// refCompressor вызывает эталонный движок в том же процессе.
type refCompressor struct{}

func (refCompressor) Compress(_ context.Context, req compressor.Request) *compressor.Outcome {
	stats, err := refengine.Compress(req.InputPath, req.OutputPath, req.Quality)
	if err != nil {
		return &compressor.Outcome{Kind: compressor.KindEngineFailure, Diagnostic: err.Error(), Err: err}
	}
	return &compressor.Outcome{Success: true, Kind: compressor.KindOK, Diagnostic: stats.String()}
}

func testPhoto(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 400, 300))
	seed := uint32(7)
	for y := 0; y < 300; y++ {
		for x := 0; x < 400; x++ {
			seed = seed*1664525 + 1013904223
			img.Set(x, y, color.NRGBA{R: uint8(x) ^ uint8(seed>>24), G: uint8(y), B: uint8(seed >> 16), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(98)))
	return buf.Bytes()
}

func assertWorkDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary directories must be removed")
}

func TestSession_CompressSuccess(t *testing.T) {
	workDir := t.TempDir()
	fake := halving(t)
	s := New(fake, Options{WorkDir: workDir})
	data := testPhoto(t)

	res, err := s.Compress(context.Background(), Upload{Name: "photo.jpg", Data: data, Quality: 0.5})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, compressor.KindOK, res.Kind)
	assert.Equal(t, "halved\n", res.Diagnostic)
	assert.Equal(t, int64(len(data)), res.OriginalSize)
	assert.Equal(t, int64(len(data)/2), res.CompressedSize)
	assert.Equal(t, data[:len(data)/2], res.Output)
	assert.InDelta(t, 2.0, res.Ratio, 0.01)
	assert.InDelta(t, 50.0, res.SavedPercent, 0.1)
	assert.Equal(t, 400, res.Width)
	assert.Equal(t, 300, res.Height)
	assert.NotEmpty(t, res.ID)
	assert.False(t, s.Busy())
	assertWorkDirEmpty(t, workDir)
}

func TestSession_EngineFailure(t *testing.T) {
	workDir := t.TempDir()
	fake := &fakeCompressor{fn: func(_ context.Context, req compressor.Request) *compressor.Outcome {
		// частичный вывод не должен попасть к пользователю
		_ = os.WriteFile(req.OutputPath, []byte("partial"), 0644)
		return &compressor.Outcome{Kind: compressor.KindEngineFailure, Diagnostic: "corrupt header\n"}
	}}
	s := New(fake, Options{WorkDir: workDir})

	res, err := s.Compress(context.Background(), Upload{Name: "photo.jpg", Data: []byte("data"), Quality: 0.5})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "corrupt header\n", res.Diagnostic)
	assert.Equal(t, compressor.KindEngineFailure, res.Kind)
	assert.Nil(t, res.Output)
	assert.Zero(t, res.CompressedSize)
	assert.Zero(t, res.Ratio)
	assertWorkDirEmpty(t, workDir)
}

func TestSession_ReportedSuccessWithoutOutput(t *testing.T) {
	fake := &fakeCompressor{fn: func(context.Context, compressor.Request) *compressor.Outcome {
		return &compressor.Outcome{Success: true, Kind: compressor.KindOK, Diagnostic: "ok"}
	}}
	s := New(fake, Options{WorkDir: t.TempDir()})

	res, err := s.Compress(context.Background(), Upload{Name: "a.jpg", Data: []byte("x"), Quality: 0.5})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, compressor.KindNoOutput, res.Kind)
	assert.Contains(t, res.Diagnostic, "not produced")
	assert.Nil(t, res.Output)
}

func TestSession_InvalidQualityRejectedBeforeFiles(t *testing.T) {
	workDir := t.TempDir()
	fake := halving(t)
	s := New(fake, Options{WorkDir: workDir})

	for _, q := range []float64{0, -0.1, 0.001, 1.2} {
		_, err := s.Compress(context.Background(), Upload{Name: "a.jpg", Data: []byte("x"), Quality: q})
		assert.ErrorIs(t, err, compressor.ErrInvalidQuality, "quality %v", q)
	}

	assert.Zero(t, fake.calls.Load())
	assertWorkDirEmpty(t, workDir)
}

func TestSession_EmptyUpload(t *testing.T) {
	s := New(halving(t), Options{WorkDir: t.TempDir()})
	_, err := s.Compress(context.Background(), Upload{Name: "a.jpg", Quality: 0.5})
	assert.ErrorIs(t, err, ErrEmptyUpload)
}

func TestSession_RejectsConcurrentRequest(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fake := &fakeCompressor{fn: func(_ context.Context, req compressor.Request) *compressor.Outcome {
		close(started)
		<-release
		_ = os.WriteFile(req.OutputPath, []byte("x"), 0644)
		return &compressor.Outcome{Success: true, Kind: compressor.KindOK}
	}}
	s := New(fake, Options{WorkDir: t.TempDir()})

	var wg sync.WaitGroup
	wg.Add(1)
	var first *Result
	go func() {
		defer wg.Done()
		first, _ = s.Compress(context.Background(), Upload{Name: "a.jpg", Data: []byte("abc"), Quality: 0.5})
	}()

	<-started
	assert.True(t, s.Busy())
	_, err := s.Compress(context.Background(), Upload{Name: "b.jpg", Data: []byte("abc"), Quality: 0.5})
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	wg.Wait()
	require.NotNil(t, first)
	assert.True(t, first.Success)
	assert.Equal(t, int32(1), fake.calls.Load())

	// после завершения сессия снова принимает запросы
	fake.fn = halving(t).fn
	res, err := s.Compress(context.Background(), Upload{Name: "c.jpg", Data: []byte("abcd"), Quality: 0.5})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestSession_HistoryAndCache(t *testing.T) {
	st, err := storage.New(filepath.Join(t.TempDir(), "history.sqlite"))
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	c, err := cache.New(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	fake := halving(t)
	s := New(fake, Options{WorkDir: t.TempDir(), History: st, Cache: c})
	data := []byte("the same upload twice")

	first, err := s.Compress(context.Background(), Upload{Name: "a.jpg", Data: data, Quality: 0.5})
	require.NoError(t, err)
	require.True(t, first.Success)
	assert.False(t, first.Cached)

	second, err := s.Compress(context.Background(), Upload{Name: "a.jpg", Data: data, Quality: 0.5})
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, int32(1), fake.calls.Load())

	third, err := s.Compress(context.Background(), Upload{Name: "a.jpg", Data: data, Quality: 0.1})
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, int32(2), fake.calls.Load())

	stats, err := st.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(3), stats.OK)

	job, err := st.GetJob(first.ID)
	require.NoError(t, err)
	assert.Equal(t, cache.ContentHash(data), job.SrcSHA256)
	assert.Equal(t, first.CompressedSize, job.DstSize)
}

func TestSession_HistoryRecordsFailure(t *testing.T) {
	st, err := storage.New(filepath.Join(t.TempDir(), "history.sqlite"))
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	fake := &fakeCompressor{fn: func(context.Context, compressor.Request) *compressor.Outcome {
		return &compressor.Outcome{Kind: compressor.KindLaunchFailure, Diagnostic: "exec format error"}
	}}
	s := New(fake, Options{WorkDir: t.TempDir(), History: st})

	res, err := s.Compress(context.Background(), Upload{Name: "a.jpg", Data: []byte("x"), Quality: 0.5})
	require.NoError(t, err)

	job, err := st.GetJob(res.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusFailed, job.Status)
	assert.Equal(t, "launch_failure", job.Kind)
	assert.Equal(t, "exec format error", job.Diagnostic)
}

func TestSession_ReferenceEngineOutputIsJPEG(t *testing.T) {
	s := New(refCompressor{}, Options{WorkDir: t.TempDir()})
	data := testPhoto(t)

	sizes := map[float64]int64{}
	for _, q := range []float64{1.0, 0.5, 0.1, 0.002} {
		res, err := s.Compress(context.Background(), Upload{Name: "photo.jpg", Data: data, Quality: q})
		require.NoError(t, err)
		require.True(t, res.Success, res.Diagnostic)

		_, err = jpeg.Decode(bytes.NewReader(res.Output))
		require.NoError(t, err, "quality %v", q)
		sizes[q] = res.CompressedSize
	}

	assert.GreaterOrEqual(t, sizes[1.0], sizes[0.1])
	assert.Less(t, sizes[0.002], sizes[0.5])
}

// writeEngine кладёт shell-скрипт движка в dir под ожидаемым именем.
func writeEngine(t *testing.T, dir, body string) {
	t.Helper()
	path := filepath.Join(dir, enginefinder.BinaryName())
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
}

// sizedEngine пишет quality*100000 байт входа и печатает отчёт в stdout.
const sizedEngine = `n=$(awk "BEGIN { print int($3 * 100000) }")
head -c "$n" "$1" > "$2"
echo "engine: wrote $n bytes"
`

func TestSession_EndToEndWithEngineBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake engines are shell scripts")
	}
	engineDir := t.TempDir()
	writeEngine(t, engineDir, sizedEngine)

	s, info, err := Open(enginefinder.NewFinder(engineDir), time.Minute, Options{WorkDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(engineDir, enginefinder.BinaryName()), info.Path)

	photo := bytes.Repeat([]byte{0xAB}, 500*1024)
	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, photo, 0644))

	balanced, err := s.CompressFile(context.Background(), path, 0.5)
	require.NoError(t, err)
	require.True(t, balanced.Success, balanced.Diagnostic)
	assert.Equal(t, "photo.jpg", balanced.Name)
	assert.Greater(t, balanced.Ratio, 1.0)
	assert.Contains(t, balanced.Diagnostic, "engine: wrote 50000 bytes")

	extreme, err := s.CompressFile(context.Background(), path, 0.002)
	require.NoError(t, err)
	require.True(t, extreme.Success, extreme.Diagnostic)
	assert.Less(t, extreme.CompressedSize, balanced.CompressedSize)
}

func TestSession_EngineExitsZeroWithoutOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake engines are shell scripts")
	}
	engineDir := t.TempDir()
	writeEngine(t, engineDir, "echo done\nexit 0\n")

	s, _, err := Open(enginefinder.NewFinder(engineDir), time.Minute, Options{WorkDir: t.TempDir()})
	require.NoError(t, err)

	res, err := s.Compress(context.Background(), Upload{Name: "a.jpg", Data: []byte("x"), Quality: 0.5})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, compressor.KindNoOutput, res.Kind)
}

func TestOpen_EngineMissing(t *testing.T) {
	engineDir := t.TempDir()

	s, info, err := Open(enginefinder.NewFinder(engineDir), time.Minute, Options{})
	assert.Nil(t, s)
	assert.Nil(t, info)
	require.Error(t, err)
	assert.True(t, errors.Is(err, enginefinder.ErrEngineMissing))
	assert.Contains(t, err.Error(), filepath.Join(engineDir, enginefinder.BinaryName()))
}

func TestRatio(t *testing.T) {
	assert.InDelta(t, 4.0, Ratio(400, 100), 1e-9)
	assert.Zero(t, Ratio(400, 0))
	assert.InDelta(t, 75.0, SavedPercent(400, 100), 1e-9)
	assert.Zero(t, SavedPercent(0, 100))
}
