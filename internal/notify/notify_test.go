package notify

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/echo/internal/models"
)

func TestNotificationMessage(t *testing.T) {
	t.Run("playlist", func(t *testing.T) {
		msg := Notification{FirstName: "Ada", PlaylistURL: "https://open.spotify.com/playlist/abc"}.Message()
		if !strings.Contains(msg, "Ada") || !strings.Contains(msg, "playlist/abc") {
			t.Errorf("unexpected message %q", msg)
		}
	})

	t.Run("fallback", func(t *testing.T) {
		msg := Notification{FirstName: "Ada", PlaylistURL: "u", Fallback: true}.Message()
		if !strings.Contains(msg, "haven't shared") {
			t.Errorf("expected fallback wording, got %q", msg)
		}
	})
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(log.New(&buf))

	err := n.Notify(context.Background(), Notification{
		UserID:      "u1",
		Platform:    models.PlatformSpotify,
		PlaylistURL: "https://open.spotify.com/playlist/abc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "u1") {
		t.Errorf("expected user id in log output, got %q", buf.String())
	}

	if err := n.Notify(context.Background(), Notification{UserID: "u2"}); err == nil {
		t.Error("expected error for notification without a link")
	}
}
