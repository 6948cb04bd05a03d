// Package smsgw holds the text-message transports used by the dispatch gateway.
package smsgw

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"github.com/danghamo/rescueme/pkg/logger"
	"github.com/danghamo/rescueme/pkg/sms"
)

// OutboundSMS is the payload published for the modem/SMS bridge
type OutboundSMS struct {
	Reference string   `json:"reference"`
	To        string   `json:"to"`
	Parts     []string `json:"parts"`
	Encoding  string   `json:"encoding"`
}

// StreamSender publishes each message to a watermill topic that an external
// SMS bridge consumes. A send succeeds once the publisher acknowledges it.
type StreamSender struct {
	publisher message.Publisher
	topic     string
	logger    *logger.Logger
}

// NewStreamSender creates a new stream-backed sender
func NewStreamSender(publisher message.Publisher, topic string, log *logger.Logger) *StreamSender {
	return &StreamSender{
		publisher: publisher,
		topic:     topic,
		logger:    log.WithComponent("sms-stream-sender"),
	}
}

func (s *StreamSender) Send(ctx context.Context, phone, body string) error {
	return s.publish(ctx, phone, []string{body})
}

func (s *StreamSender) SendMultipart(ctx context.Context, phone string, parts []string) error {
	return s.publish(ctx, phone, parts)
}

func (s *StreamSender) Divide(body string) []string {
	return sms.Divide(body)
}

func (s *StreamSender) publish(ctx context.Context, phone string, parts []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := OutboundSMS{
		Reference: watermill.NewUUID(),
		To:        phone,
		Parts:     parts,
		Encoding:  sms.Detect(strings.Join(parts, "")).String(),
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode outbound sms: %w", err)
	}

	msg := message.NewMessage(out.Reference, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("to", phone)

	if err := s.publisher.Publish(s.topic, msg); err != nil {
		return fmt.Errorf("failed to publish outbound sms: %w", err)
	}

	s.logger.Debug("Outbound SMS queued",
		zap.String("reference", out.Reference),
		zap.String("topic", s.topic),
		zap.Int("parts", len(parts)))
	return nil
}
