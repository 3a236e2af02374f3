package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected logger to be enabled")
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("batch imported")

	if !strings.Contains(buf.String(), "batch imported") {
		t.Errorf("Expected output to contain 'batch imported', got: %s", buf.String())
	}
}

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantLevel zerolog.Level
		wantErr   bool
	}{
		{name: "defaults", cfg: Config{}, wantLevel: zerolog.InfoLevel},
		{name: "debug json", cfg: Config{Level: "debug", Format: FormatJSON}, wantLevel: zerolog.DebugLevel},
		{name: "upper case level", cfg: Config{Level: "WARN"}, wantLevel: zerolog.WarnLevel},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewFromConfig(tt.cfg, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && log.GetLevel() != tt.wantLevel {
				t.Errorf("NewFromConfig() level = %v, want %v", log.GetLevel(), tt.wantLevel)
			}
		})
	}
}

func TestNewFromConfig_JSONFiltersLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := NewFromConfig(Config{Level: "warn", Format: FormatJSON}, buf)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}

	log.Info().Msg("dropped")
	log.Warn().Str("file", "wechat.csv").Msg("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info message written at warn level: %s", out)
	}
	if !strings.Contains(out, `"file":"wechat.csv"`) {
		t.Errorf("Expected JSON field in output, got: %s", out)
	}
	if !strings.Contains(out, `"caller":`) {
		t.Errorf("Expected caller field in output, got: %s", out)
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	retrieved := FromContext(ctx)
	retrieved.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"source": "alipay",
		"rows":   3,
	})
	log.Info().Msg("normalized")

	out := buf.String()
	if !strings.Contains(out, `"source":"alipay"`) || !strings.Contains(out, `"rows":3`) {
		t.Errorf("Expected output to contain fields, got: %s", out)
	}
}
