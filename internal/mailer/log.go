package mailer

import (
	"context"

	"github.com/Baaaki/car-rental/pkg/logger"
	"go.uber.org/zap"
)

// LogSender writes messages to the application log instead of sending them.
// Used in development when no MailerSend key is configured.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (LogSender) Send(_ context.Context, msg Message) error {
	logger.Log.Info("[DEV MAIL] email not sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}
