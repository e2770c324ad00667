package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"palpiteiros/internal/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		l, err := New(config.LogConfig{Level: tt.level, Encoding: "json"})
		if err != nil {
			t.Fatalf("New(%s): %v", tt.level, err)
		}
		if !l.Core().Enabled(tt.want) {
			t.Fatalf("level %s: %s not enabled", tt.level, tt.want)
		}
		if tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1) {
			t.Fatalf("level %s: %s unexpectedly enabled", tt.level, tt.want-1)
		}
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatalf("expected a logger")
	}
}
