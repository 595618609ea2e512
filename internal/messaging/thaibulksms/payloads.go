package thaibulksms

import (
	"errors"
	"strings"
)

// SendSMSRequest describes one outbound SMS. Msisdn is in provider-local
// form (leading 0, no country prefix).
type SendSMSRequest struct {
	Msisdn  string `json:"msisdn"`
	Message string `json:"message"`
	Sender  string `json:"sender,omitempty"`
	Force   string `json:"force,omitempty"`
}

func (r SendSMSRequest) validate() error {
	if strings.TrimSpace(r.Msisdn) == "" {
		return errors.New("thaibulksms: msisdn required")
	}
	if strings.TrimSpace(r.Message) == "" {
		return errors.New("thaibulksms: message required")
	}
	return nil
}

// PhoneNumberResult is one accepted recipient in a send response.
type PhoneNumberResult struct {
	Number     string `json:"number"`
	MessageID  string `json:"message_id"`
	UsedCredit int    `json:"used_credit"`
}

// SendSMSResponse is the body returned with 201 Created.
type SendSMSResponse struct {
	RemainingCredit    float64             `json:"remaining_credit"`
	TotalUseCredit     float64             `json:"total_use_credit"`
	CreditType         string              `json:"credit_type"`
	PhoneNumberList    []PhoneNumberResult `json:"phone_number_list"`
	BadPhoneNumberList []PhoneNumberResult `json:"bad_phone_number_list"`
}

// MessageID returns the first accepted message id, if any.
func (r *SendSMSResponse) MessageID() string {
	if r == nil || len(r.PhoneNumberList) == 0 {
		return ""
	}
	return r.PhoneNumberList[0].MessageID
}
