// Package line adapts the LINE Official Account webhook to batch jobs.
package line

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/wolfman30/sms-dispatch-gateway/internal/command"
	"github.com/wolfman30/sms-dispatch-gateway/internal/dispatch"
	"github.com/wolfman30/sms-dispatch-gateway/internal/observability/metrics"
	batchworker "github.com/wolfman30/sms-dispatch-gateway/internal/worker/batch"
	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

// BusyMessage is replied when the job queue is full.
const BusyMessage = "The gateway is busy. Please try again in a few minutes."

// Replier answers a webhook event through its reply token.
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// JobSubmitter queues batch requests.
type JobSubmitter interface {
	Submit(req dispatch.Request, notifiers ...dispatch.Notifier) (string, error)
}

// Handler serves POST /webhook.
type Handler struct {
	channelSecret string
	parser        command.Parser
	jobs          JobSubmitter
	replier       Replier
	metrics       *metrics.DispatchMetrics
	logger        *logging.Logger
}

// NewHandler builds a webhook handler.
func NewHandler(channelSecret string, parser command.Parser, jobs JobSubmitter, replier Replier, m *metrics.DispatchMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		channelSecret: channelSecret,
		parser:        parser,
		jobs:          jobs,
		replier:       replier,
		metrics:       m,
		logger:        logger,
	}
}

// Webhook verifies the X-Line-Signature header and handles text message
// events. A bad signature yields 400; everything else 200.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	cb, err := webhook.ParseRequest(h.channelSecret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.logger.Warn("line webhook signature rejected", "remote_addr", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}
		h.logger.Warn("line webhook parse failed", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	for _, event := range cb.Events {
		e, ok := event.(webhook.MessageEvent)
		if !ok {
			continue
		}
		msg, ok := e.Message.(webhook.TextMessageContent)
		if !ok {
			continue
		}
		h.handleText(r.Context(), e.ReplyToken, msg.Text)
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) handleText(ctx context.Context, replyToken, text string) {
	cmd, err := h.parser.Parse(strings.TrimSpace(text))
	if err != nil {
		h.metrics.ObserveCommand("usage")
		h.reply(ctx, replyToken, command.UsageMessage)
		return
	}

	req := dispatch.Request{
		Target:  cmd.Target,
		Sender:  cmd.Sender,
		Message: cmd.Message,
		Source:  dispatch.SourceLine,
	}
	if cmd.Kind == command.KindFile {
		req.ListName = cmd.Target
	} else {
		req.Numbers = []string{cmd.Target}
	}

	jobID, err := h.jobs.Submit(req, dispatch.NotifierFunc(func(ctx context.Context, s dispatch.Summary) error {
		return h.replier.Reply(ctx, replyToken, s.Text())
	}))
	if err != nil {
		h.metrics.ObserveCommand("rejected")
		h.logger.Warn("line command rejected", "target", cmd.Target, "error", err)
		if errors.Is(err, batchworker.ErrQueueFull) {
			h.reply(ctx, replyToken, BusyMessage)
		} else {
			h.reply(ctx, replyToken, "Error: "+err.Error())
		}
		return
	}
	h.metrics.ObserveCommand("accepted")
	h.logger.Info("line command accepted", "job_id", jobID, "target", cmd.Target, "kind", cmd.Kind.String())
}

func (h *Handler) reply(ctx context.Context, token, text string) {
	if err := h.replier.Reply(ctx, token, text); err != nil {
		h.logger.Warn("line reply failed", "error", err)
	}
}
