package shared

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestMaskToken(t *testing.T) {
	tc := []struct {
		name  string
		token string
		want  string
	}{
		{name: "empty", token: "", want: ""},
		{name: "short", token: "abc", want: "****"},
		{name: "long", token: "BQDxyz1234", want: "****1234"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskToken(tt.token); got != tt.want {
				t.Errorf("MaskToken() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	t.Run("SetLogLevel", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewLogger(buf)

		SetLogLevel(logger, "warn")
		if logger.GetLevel() != log.WarnLevel {
			t.Errorf("expected warn level, got %v", logger.GetLevel())
		}

		SetLogLevel(logger, "nonsense")
		if logger.GetLevel() != log.InfoLevel {
			t.Errorf("expected info level for unknown input, got %v", logger.GetLevel())
		}
	})

	t.Run("WithLogger adds context", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := WithLogger(NewLogger(buf), "component", "tokens")
		logger.Info("hello")

		if !strings.Contains(buf.String(), "component=tokens") {
			t.Errorf("expected key/value context in output, got %q", buf.String())
		}
	})

	t.Run("GenerateID is unique", func(t *testing.T) {
		if GenerateID() == GenerateID() {
			t.Error("expected distinct ids")
		}
	})
}
