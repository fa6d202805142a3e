package shared

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestGenerateToken(t *testing.T) {
	t.Run("encodes sixteen bytes as base64url", func(t *testing.T) {
		token, err := GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}

		if strings.ContainsAny(token, "+/=") {
			t.Errorf("token %q is not url-safe", token)
		}

		raw, err := base64.RawURLEncoding.DecodeString(token)
		if err != nil {
			t.Fatalf("failed to decode token: %v", err)
		}
		if len(raw) != tokenBytes {
			t.Errorf("expected %d bytes, got %d", tokenBytes, len(raw))
		}
	})

	t.Run("tokens do not repeat", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 500 {
			token, err := GenerateToken()
			if err != nil {
				t.Fatalf("GenerateToken() error = %v", err)
			}
			if seen[token] {
				t.Fatalf("duplicate token %q", token)
			}
			seen[token] = true
		}
	})
}

func TestConfigureLogger(t *testing.T) {
	tc := []struct {
		name    string
		level   string
		want    log.Level
		wantErr bool
	}{
		{name: "empty keeps default", level: "", want: log.InfoLevel},
		{name: "debug", level: "debug", want: log.DebugLevel},
		{name: "warn", level: "warn", want: log.WarnLevel},
		{name: "unknown", level: "loud", want: log.InfoLevel, wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewLogger(&buf)

			err := ConfigureLogger(l, LogConfig{Level: tt.level})
			if (err != nil) != tt.wantErr {
				t.Fatalf("ConfigureLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if l.GetLevel() != tt.want {
				t.Errorf("level = %v, want %v", l.GetLevel(), tt.want)
			}
		})
	}
}
