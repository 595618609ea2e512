package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/sms-dispatch-gateway/internal/messaging/thaibulksms"
	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

const (
	// SMSProviderThaiBulkSMS sends through the ThaiBulkSMS REST API.
	SMSProviderThaiBulkSMS = "thaibulksms"
	// SMSProviderTwilio sends through Twilio's Messages API.
	SMSProviderTwilio = "twilio"
)

// SendRequest is one outbound SMS. To is always in international form; each
// provider converts it to whatever its API expects.
type SendRequest struct {
	To     string
	Sender string
	Body   string
}

// SendResult carries what the provider told us about an accepted message.
type SendResult struct {
	Provider  string
	Recipient string
	MessageID string
}

// Provider delivers a single SMS. Any returned error means the message was
// not accepted.
type Provider interface {
	Name() string
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}

// ProviderSelectionConfig captures the credentials required to build a provider.
type ProviderSelectionConfig struct {
	Preference       string
	CountryCode      string
	THBAPIKey        string
	THBAPISecret     string
	THBBaseURL       string
	THBTimeout       time.Duration
	THBMaxRetries    int
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

// BuildProvider instantiates the preferred provider. It returns a reason
// when the provider could not be initialized.
func BuildProvider(cfg ProviderSelectionConfig, logger *logging.Logger) (Provider, string) {
	if logger == nil {
		logger = logging.Default()
	}
	preference := strings.ToLower(strings.TrimSpace(cfg.Preference))
	if preference == "" {
		preference = SMSProviderThaiBulkSMS
	}

	switch preference {
	case SMSProviderThaiBulkSMS:
		var reasons []string
		if cfg.THBAPIKey == "" {
			reasons = append(reasons, "THB_API_KEY missing")
		}
		if cfg.THBAPISecret == "" {
			reasons = append(reasons, "THB_API_SECRET missing")
		}
		if len(reasons) > 0 {
			return nil, strings.Join(reasons, ", ")
		}
		client, err := thaibulksms.New(thaibulksms.Config{
			BaseURL:    cfg.THBBaseURL,
			APIKey:     cfg.THBAPIKey,
			APISecret:  cfg.THBAPISecret,
			Timeout:    cfg.THBTimeout,
			MaxRetries: cfg.THBMaxRetries,
			Logger:     logger.Logger,
		})
		if err != nil {
			return nil, err.Error()
		}
		return NewThaiBulkSMSSender(client, NewPhoneNormalizer(cfg.CountryCode), logger), ""
	case SMSProviderTwilio:
		var reasons []string
		if cfg.TwilioAccountSID == "" {
			reasons = append(reasons, "TWILIO_ACCOUNT_SID missing")
		}
		if cfg.TwilioAuthToken == "" {
			reasons = append(reasons, "TWILIO_AUTH_TOKEN missing")
		}
		if len(reasons) > 0 {
			return nil, strings.Join(reasons, ", ")
		}
		return NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger), ""
	default:
		return nil, fmt.Sprintf("unknown SMS provider %q", preference)
	}
}
