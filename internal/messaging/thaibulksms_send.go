package messaging

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/sms-dispatch-gateway/internal/messaging/thaibulksms"
	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

var thbSendTracer = otel.Tracer("smsgateway.internal.messaging.thaibulksms_send")

// ThaiBulkSMSClient is the subset of thaibulksms.Client the sender uses.
type ThaiBulkSMSClient interface {
	SendSMS(ctx context.Context, req thaibulksms.SendSMSRequest) (*thaibulksms.SendSMSResponse, error)
}

// ThaiBulkSMSSender adapts the ThaiBulkSMS client to Provider.
type ThaiBulkSMSSender struct {
	client     ThaiBulkSMSClient
	normalizer PhoneNormalizer
	logger     *logging.Logger
}

// NewThaiBulkSMSSender wraps a configured client.
func NewThaiBulkSMSSender(client ThaiBulkSMSClient, normalizer PhoneNormalizer, logger *logging.Logger) *ThaiBulkSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &ThaiBulkSMSSender{client: client, normalizer: normalizer, logger: logger}
}

var _ Provider = (*ThaiBulkSMSSender)(nil)

func (s *ThaiBulkSMSSender) Name() string { return SMSProviderThaiBulkSMS }

// Send converts the recipient to local form and queues the message.
func (s *ThaiBulkSMSSender) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("messaging: thaibulksms client not configured")
	}
	msisdn := s.normalizer.Local(req.To)

	ctx, span := thbSendTracer.Start(ctx, "messaging.thaibulksms.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("sms.to", msisdn),
		attribute.String("sms.sender", req.Sender),
	)

	resp, err := s.client.SendSMS(ctx, thaibulksms.SendSMSRequest{
		Msisdn:  msisdn,
		Message: req.Body,
		Sender:  req.Sender,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	result := &SendResult{Provider: SMSProviderThaiBulkSMS, Recipient: msisdn, MessageID: resp.MessageID()}
	span.SetAttributes(attribute.String("sms.message_id", result.MessageID))
	s.logger.Debug("thaibulksms sms queued", "to", msisdn, "message_id", result.MessageID)
	return result, nil
}
