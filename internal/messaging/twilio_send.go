package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

const twilioDefaultBaseURL = "https://api.twilio.com"

var twilioSendTracer = otel.Tracer("smsgateway.internal.messaging.twilio_send")

// TwilioSender posts SMS messages using Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	logger     *logging.Logger
}

// NewTwilioSender builds a sender with sane defaults.
func NewTwilioSender(accountSID, authToken, defaultFrom string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       defaultFrom,
		baseURL:    twilioDefaultBaseURL,
		backoff:    250 * time.Millisecond,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// WithBaseURL points the sender at another API host.
func (s *TwilioSender) WithBaseURL(baseURL string) *TwilioSender {
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		s.baseURL = baseURL
	}
	return s
}

// WithMaxRetries enables retries on 429 and 5xx responses.
func (s *TwilioSender) WithMaxRetries(n int) *TwilioSender {
	if n >= 0 {
		s.maxRetries = n
	}
	return s
}

// WithHTTPClient swaps the HTTP client.
func (s *TwilioSender) WithHTTPClient(c *http.Client) *TwilioSender {
	if c != nil {
		s.httpClient = c
	}
	return s
}

var _ Provider = (*TwilioSender)(nil)

func (s *TwilioSender) Name() string { return SMSProviderTwilio }

// Send dispatches a single SMS. The sender name, when set, is used as an
// alphanumeric sender ID; otherwise the default From number is used.
func (s *TwilioSender) Send(ctx context.Context, msg SendRequest) (*SendResult, error) {
	if s.accountSID == "" || s.authToken == "" {
		return nil, errors.New("messaging: twilio credentials missing")
	}
	if msg.To == "" {
		return nil, errors.New("messaging: to required")
	}
	from := msg.Sender
	if from == "" {
		from = s.from
	}
	if from == "" {
		return nil, errors.New("messaging: from required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return nil, errors.New("messaging: body required")
	}

	ctx, span := twilioSendTracer.Start(ctx, "messaging.twilio.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("sms.to", msg.To),
		attribute.String("sms.sender", from),
	)

	payload := url.Values{}
	payload.Set("To", msg.To)
	payload.Set("From", from)
	payload.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			lastErr = err
			break
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("twilio send failed: %w", err)
			if ctx.Err() != nil {
				break
			}
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				var parsed struct {
					SID string `json:"sid"`
				}
				_ = json.Unmarshal(body, &parsed)
				s.logger.Debug("twilio sms sent", "to", msg.To, "sid", parsed.SID)
				return &SendResult{Provider: SMSProviderTwilio, Recipient: msg.To, MessageID: parsed.SID}, nil
			}
			lastErr = fmt.Errorf("twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
			// Don't retry non-rate-limit 4xx errors.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				break
			}
		}

		if attempt < s.maxRetries {
			timer := time.NewTimer(s.backoff * time.Duration(1<<attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				lastErr = ctx.Err()
				attempt = s.maxRetries
			case <-timer.C:
			}
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
	}
	return nil, lastErr
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
