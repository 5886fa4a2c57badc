// Package lognotifier delivers notifications to the process log.
package lognotifier

import (
	"context"

	"go.uber.org/zap"
)

// Notifier writes each summary as a structured log entry.
type Notifier struct {
	logger    *zap.Logger
	recipient string
}

// New builds a Notifier. recipient is recorded on every entry when set.
func New(logger *zap.Logger, recipient string) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{logger: logger.Named("notifier"), recipient: recipient}
}

// Notify never fails.
func (n *Notifier) Notify(_ context.Context, subject, body string) error {
	fields := []zap.Field{zap.String("subject", subject), zap.String("body", body)}
	if n.recipient != "" {
		fields = append(fields, zap.String("recipient", n.recipient))
	}
	n.logger.Info("keyword notification", fields...)
	return nil
}
