package amqp

import (
	"context"
	"log/slog"
)

// Notifier delivers account notifications.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// LogNotifier writes notifications to the log instead of a broker. It is
// used when no broker is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n *Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Notification",
		"notification", n.Kind,
		"email", n.Email,
		"subject", n.Subject(),
		"link", n.Link)
	return nil
}
