// Package notify provides the default notification sink. The bot front-end
// plugs in its own implementation of application.Notifier; this one just
// logs, which keeps the subsystem runnable on its own.
package notify

import (
	"context"
	"log/slog"
)

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, userID int64, message string) error {
	n.logger.Info("user notification", "user_id", userID, "message", message)
	return nil
}
