package compressor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// writeEngine создаёт фейковый движок из shell-скрипта.
func writeEngine(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engines are shell scripts")
	}
	path := filepath.Join(t.TempDir(), "jpeg_compressor")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

// newRequest создаёт входной файл и запрос в отдельной директории.
func newRequest(t *testing.T, quality float64) Request {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "input.jpg")
	if err := os.WriteFile(in, []byte("fake jpeg data"), 0644); err != nil {
		t.Fatal(err)
	}
	return Request{
		InputPath:  in,
		OutputPath: filepath.Join(dir, "output.jpg"),
		Quality:    quality,
	}
}

const copyEngine = `echo "compressed $1 at $3"
cp "$1" "$2"
`

func TestEngine_CompressSuccess(t *testing.T) {
	eng := New(writeEngine(t, copyEngine))
	req := newRequest(t, 0.5)

	out := eng.Compress(context.Background(), req)

	if !out.Success {
		t.Fatalf("Success = false, diagnostic = %q", out.Diagnostic)
	}
	if out.Kind != KindOK {
		t.Errorf("Kind = %v, want %v", out.Kind, KindOK)
	}
	if out.Err != nil {
		t.Errorf("Err = %v, want nil", out.Err)
	}
	want := "compressed " + req.InputPath + " at 0.5\n"
	if out.Diagnostic != want {
		t.Errorf("Diagnostic = %q, want %q", out.Diagnostic, want)
	}
	if out.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", out.ExitCode)
	}
	if _, err := os.Stat(req.OutputPath); err != nil {
		t.Errorf("output file missing: %v", err)
	}
}

func TestEngine_PassesPositionalArguments(t *testing.T) {
	eng := New(writeEngine(t, `printf '%s|%s|%s' "$1" "$2" "$3" > "$2"
`))
	req := newRequest(t, 1.0)

	out := eng.Compress(context.Background(), req)
	if !out.Success {
		t.Fatalf("Success = false, diagnostic = %q", out.Diagnostic)
	}

	data, err := os.ReadFile(req.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	want := req.InputPath + "|" + req.OutputPath + "|1.0"
	if string(data) != want {
		t.Errorf("engine args = %q, want %q", data, want)
	}
}

func TestEngine_SuccessAppendsStderr(t *testing.T) {
	eng := New(writeEngine(t, `echo done
echo "warning: progressive" >&2
cp "$1" "$2"
`))

	out := eng.Compress(context.Background(), newRequest(t, 0.5))
	if !out.Success {
		t.Fatalf("Success = false, diagnostic = %q", out.Diagnostic)
	}
	if out.Diagnostic != "done\nwarning: progressive\n" {
		t.Errorf("Diagnostic = %q", out.Diagnostic)
	}
}

func TestEngine_CompressEngineFailure(t *testing.T) {
	eng := New(writeEngine(t, `echo "corrupt JPEG header" >&2
exit 3
`))

	out := eng.Compress(context.Background(), newRequest(t, 0.5))

	if out.Success {
		t.Fatal("Success = true, want false")
	}
	if out.Kind != KindEngineFailure {
		t.Errorf("Kind = %v, want %v", out.Kind, KindEngineFailure)
	}
	if out.Diagnostic != "corrupt JPEG header\n" {
		t.Errorf("Diagnostic = %q, want engine stderr", out.Diagnostic)
	}
	if out.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", out.ExitCode)
	}
	if !errors.Is(out.Err, ErrEngineFailure) {
		t.Errorf("Err = %v, want ErrEngineFailure", out.Err)
	}
}

func TestEngine_CompressFailureWithoutOutputText(t *testing.T) {
	eng := New(writeEngine(t, "exit 4\n"))

	out := eng.Compress(context.Background(), newRequest(t, 0.5))
	if out.Success {
		t.Fatal("Success = true, want false")
	}
	if out.Diagnostic != "engine exited with status 4" {
		t.Errorf("Diagnostic = %q", out.Diagnostic)
	}
}

func TestEngine_ExitZeroWithoutOutput(t *testing.T) {
	eng := New(writeEngine(t, "echo 'all good'\nexit 0\n"))
	req := newRequest(t, 0.5)

	out := eng.Compress(context.Background(), req)

	if out.Success {
		t.Fatal("Success = true for missing output file")
	}
	if out.Kind != KindNoOutput {
		t.Errorf("Kind = %v, want %v", out.Kind, KindNoOutput)
	}
	if !strings.Contains(out.Diagnostic, "not produced") {
		t.Errorf("Diagnostic = %q, want a 'not produced' message", out.Diagnostic)
	}
	if !errors.Is(out.Err, ErrNoOutput) {
		t.Errorf("Err = %v, want ErrNoOutput", out.Err)
	}
}

func TestEngine_LaunchFailure(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "missing binary",
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
		},
		{
			name: "not executable",
			path: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "jpeg_compressor")
				if err := os.WriteFile(p, []byte("#!/bin/sh\n"), 0644); err != nil {
					t.Fatal(err)
				}
				return p
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if runtime.GOOS == "windows" {
				t.Skip("permission bits are not meaningful on windows")
			}
			out := New(tt.path(t)).Compress(context.Background(), newRequest(t, 0.5))

			if out.Success {
				t.Fatal("Success = true, want false")
			}
			if out.Kind != KindLaunchFailure {
				t.Errorf("Kind = %v, want %v", out.Kind, KindLaunchFailure)
			}
			if out.Diagnostic == "" {
				t.Error("Diagnostic should contain the OS error")
			}
			if !errors.Is(out.Err, ErrLaunchFailure) {
				t.Errorf("Err = %v, want ErrLaunchFailure", out.Err)
			}
		})
	}
}

func TestEngine_InvalidQualityNeverLaunches(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "invoked")
	eng := New(writeEngine(t, "touch '"+marker+"'\ncp \"$1\" \"$2\"\n"))

	for _, q := range []float64{0, -1, 0.0019, 1.5} {
		out := eng.Compress(context.Background(), newRequest(t, q))
		if out.Success {
			t.Errorf("quality %v: Success = true", q)
		}
		if out.Kind != KindInvalidQuality {
			t.Errorf("quality %v: Kind = %v, want %v", q, out.Kind, KindInvalidQuality)
		}
	}

	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("engine must not be launched for invalid quality")
	}
}

func TestEngine_Timeout(t *testing.T) {
	eng := New(writeEngine(t, "exec sleep 10\n"))
	eng.SetTimeout(100 * time.Millisecond)

	start := time.Now()
	out := eng.Compress(context.Background(), newRequest(t, 0.5))

	if out.Success {
		t.Fatal("Success = true, want false")
	}
	if out.Kind != KindTimeout {
		t.Errorf("Kind = %v, want %v", out.Kind, KindTimeout)
	}
	if !errors.Is(out.Err, ErrTimeout) {
		t.Errorf("Err = %v, want ErrTimeout", out.Err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %s, engine was not terminated", elapsed)
	}
}

func TestEngine_SuccessWhileChildHoldsPipes(t *testing.T) {
	eng := New(writeEngine(t, `cp "$1" "$2"
(sleep 8) &
exit 0
`))
	eng.waitDelay = 200 * time.Millisecond
	req := newRequest(t, 0.5)

	start := time.Now()
	out := eng.Compress(context.Background(), req)

	if !out.Success {
		t.Fatalf("Success = false, kind = %v, diagnostic = %q", out.Kind, out.Diagnostic)
	}
	if out.Kind != KindOK {
		t.Errorf("Kind = %v, want %v", out.Kind, KindOK)
	}
	if out.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", out.ExitCode)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Compress took %s, waited for the background child", elapsed)
	}
}

func TestEngine_Cancelled(t *testing.T) {
	eng := New(writeEngine(t, "exec sleep 10\n"))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	out := eng.Compress(ctx, newRequest(t, 0.5))

	if out.Kind != KindCancelled {
		t.Errorf("Kind = %v, want %v", out.Kind, KindCancelled)
	}
	if !errors.Is(out.Err, ErrCancelled) || !errors.Is(out.Err, context.Canceled) {
		t.Errorf("Err = %v, want ErrCancelled wrapping context.Canceled", out.Err)
	}
}

func TestEngine_SequentialRequestsShareDirectory(t *testing.T) {
	eng := New(writeEngine(t, `printf '%s' "$3" > "$2"
`))
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(in, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	first := Request{InputPath: in, OutputPath: filepath.Join(dir, "out-1.jpg"), Quality: 0.1}
	second := Request{InputPath: in, OutputPath: filepath.Join(dir, "out-2.jpg"), Quality: 0.9}

	for _, req := range []Request{first, second} {
		if out := eng.Compress(context.Background(), req); !out.Success {
			t.Fatalf("Compress(%s) failed: %s", req.OutputPath, out.Diagnostic)
		}
	}

	for _, tc := range []struct {
		path string
		want string
	}{
		{first.OutputPath, "0.1"},
		{second.OutputPath, "0.9"},
	} {
		data, err := os.ReadFile(tc.path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != tc.want {
			t.Errorf("%s = %q, want %q", filepath.Base(tc.path), data, tc.want)
		}
	}
}

func TestEngine_CheckHealth(t *testing.T) {
	if err := New(filepath.Join(t.TempDir(), "missing")).CheckHealth(context.Background()); err == nil {
		t.Error("CheckHealth() should fail for a missing engine")
	}
	if err := New(writeEngine(t, "exit 0\n")).CheckHealth(context.Background()); err != nil {
		t.Errorf("CheckHealth() error = %v", err)
	}
}
