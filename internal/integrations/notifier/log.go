package notifier

import "context"

// LogNotifier только пишет уведомления в лог (локальная разработка)
type LogNotifier struct {
	log Logger
}

// NewLog создает логирующий notifier
func NewLog(log Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify пишет уведомление в лог
func (n *LogNotifier) Notify(_ context.Context, userID int64, templateKey string, payload map[string]interface{}) error {
	n.log.Info("Notify: %s for user=%d payload=%v", templateKey, userID, payload)
	return nil
}
