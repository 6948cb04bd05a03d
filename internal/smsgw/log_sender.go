package smsgw

import (
	"context"

	"go.uber.org/zap"

	"github.com/danghamo/rescueme/pkg/logger"
	"github.com/danghamo/rescueme/pkg/sms"
)

// LogSender only logs messages. It is the development default.
type LogSender struct {
	logger *logger.Logger
}

// NewLogSender creates a sender that writes messages to the log
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{logger: log.WithComponent("sms-log-sender")}
}

func (s *LogSender) Send(ctx context.Context, phone, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("SMS", zap.String("to", phone), zap.String("body", body))
	return nil
}

func (s *LogSender) SendMultipart(ctx context.Context, phone string, parts []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, p := range parts {
		s.logger.Info("SMS part",
			zap.String("to", phone),
			zap.Int("part", i+1),
			zap.Int("of", len(parts)),
			zap.String("body", p))
	}
	return nil
}

func (s *LogSender) Divide(body string) []string {
	return sms.Divide(body)
}
