package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-kit/log/level"
)

func TestNewFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn")

	level.Info(l).Log("msg", "hidden")
	level.Warn(l).Log("msg", "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered:\n%s", out)
	}
	if !strings.Contains(out, "level=warn") || !strings.Contains(out, "msg=shown") {
		t.Errorf("missing warn line:\n%s", out)
	}
	if !strings.Contains(out, "caller=logger_test.go") {
		t.Errorf("missing caller:\n%s", out)
	}
}

func TestNewUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "chatty")

	level.Debug(l).Log("msg", "hidden")
	level.Info(l).Log("msg", "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "msg=shown") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
