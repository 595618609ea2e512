package line

import (
	"context"
	"fmt"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// APIReplier replies through the LINE Messaging API.
type APIReplier struct {
	api *messaging_api.MessagingApiAPI
}

// NewAPIReplier creates a replier for the channel access token. endpoint
// and client are optional.
func NewAPIReplier(accessToken, endpoint string, client *http.Client) (*APIReplier, error) {
	var opts []messaging_api.MessagingApiAPIOption
	if endpoint != "" {
		opts = append(opts, messaging_api.WithEndpoint(endpoint))
	}
	if client != nil {
		opts = append(opts, messaging_api.WithHTTPClient(client))
	}
	api, err := messaging_api.NewMessagingApiAPI(accessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("line: messaging api client: %w", err)
	}
	return &APIReplier{api: api}, nil
}

func (r *APIReplier) Reply(ctx context.Context, replyToken, text string) error {
	_, err := r.api.WithContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: text},
		},
	})
	if err != nil {
		return fmt.Errorf("line: reply message: %w", err)
	}
	return nil
}
