package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender only logs the message. It is the sender of last resort in dev setups.
type LogSender struct {
	Logger *zap.Logger
}

func (l LogSender) Name() string { return "log" }

func (l LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.Logger != nil {
		l.Logger.Info("email (log only)",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Int("html_bytes", len(msg.HTML)),
		)
	}
	return nil
}
