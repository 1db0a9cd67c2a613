package monitoring

import (
	"fmt"
	"testing"
)

func capture(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() {
		Logf = original
		SetVerbose(false)
	})

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := capture(t)

	Logf("opened %s", "/dev/ttyACM0")
	if len(*lines) != 1 || (*lines)[0] != "opened /dev/ttyACM0" {
		t.Errorf("lines = %q", *lines)
	}

	SetLogger(nil)
	// must not panic and must not reach the previous logger
	Logf("dropped")
	if len(*lines) != 1 {
		t.Errorf("no-op logger forwarded a message: %q", *lines)
	}
}

func TestWarnf(t *testing.T) {
	lines := capture(t)

	Warnf("wrote %d of %d bytes", 3, 5)
	if len(*lines) != 1 || (*lines)[0] != "warning: wrote 3 of 5 bytes" {
		t.Errorf("lines = %q", *lines)
	}
}

func TestDebugf(t *testing.T) {
	lines := capture(t)

	Debugf("hidden")
	if len(*lines) != 0 {
		t.Fatalf("Debugf logged while quiet: %q", *lines)
	}

	SetVerbose(true)
	Debugf("rx %d bytes", 12)
	if len(*lines) != 1 || (*lines)[0] != "rx 12 bytes" {
		t.Errorf("lines = %q", *lines)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
}
