package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level, format string
		want          zapcore.Level
	}{
		{"debug", "console", zapcore.DebugLevel},
		{"info", "json", zapcore.InfoLevel},
		{"warn", "", zapcore.WarnLevel},
		{"error", "json", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		l, err := New(tt.level, tt.format)
		if err != nil {
			t.Fatalf("New(%q, %q) error: %v", tt.level, tt.format, err)
		}
		if !l.Core().Enabled(tt.want) {
			t.Errorf("New(%q) does not log at %v", tt.level, tt.want)
		}
		if tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1) {
			t.Errorf("New(%q) logs below %v", tt.level, tt.want)
		}
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New("loud", "console"); err == nil {
		t.Error("New(loud) should fail")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Error("New(info, xml) should fail")
	}
}
