// package notify defines the hand-off to the notification channel.
//
// Message delivery lives outside this module; [LogNotifier] records what would be sent.
package notify

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/echo/internal/models"
)

// Notification is the per-user message produced by a successful playlist run.
type Notification struct {
	UserID      string
	FirstName   string
	PhoneNumber string
	Platform    models.Platform
	PlaylistURL string
	Fallback    bool // PlaylistURL points at the shared fallback playlist
}

// Message renders the text body of the notification.
func (n Notification) Message() string {
	if n.Fallback {
		return fmt.Sprintf("hey %s, your friends haven't shared anything yet. here's a playlist to start with: %s", n.FirstName, n.PlaylistURL)
	}
	return fmt.Sprintf("hey %s, your echo is ready: %s", n.FirstName, n.PlaylistURL)
}

// Notifier delivers notifications to users.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a logger instead of delivering them.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier creates a [LogNotifier].
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	if n.UserID == "" || n.PlaylistURL == "" {
		return fmt.Errorf("notification for %q has no playlist link", n.UserID)
	}
	l.logger.Info("notify", "user_id", n.UserID, "platform", n.Platform, "url", n.PlaylistURL, "fallback", n.Fallback)
	return nil
}
