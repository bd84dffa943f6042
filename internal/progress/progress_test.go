package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSpinner_Disabled(t *testing.T) {
	var buf bytes.Buffer
	s := New(Options{Disabled: true, Writer: &buf})

	s.Start()
	s.Stop()

	if !s.IsDisabled() {
		t.Error("IsDisabled() = false, want true")
	}
	if buf.Len() != 0 {
		t.Errorf("disabled spinner wrote %q", buf.String())
	}
}

func TestSpinner_Renders(t *testing.T) {
	var buf bytes.Buffer
	s := New(Options{Description: "Compressing photo.jpg", Writer: &buf})

	s.Start()
	s.Start() // повторный запуск не создаёт вторую горутину
	time.Sleep(3 * tick)
	s.Stop()
	s.Stop()

	if !strings.Contains(buf.String(), "Compressing photo.jpg") {
		t.Errorf("output %q does not contain description", buf.String())
	}
}

func TestSpinner_StopWithoutStart(t *testing.T) {
	s := New(Options{Writer: &bytes.Buffer{}})
	s.Stop()
}
