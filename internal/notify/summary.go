package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/sms-dispatch-gateway/internal/dispatch"
	"github.com/wolfman30/sms-dispatch-gateway/internal/messaging/templates"
	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

// SummaryMailer emails an operator when a batch finishes.
type SummaryMailer struct {
	sender   Mailer
	to       string
	renderer *templates.Renderer
	logger   *logging.Logger
}

// NewSummaryMailer returns nil when there is no sender or recipient, so
// callers can append it to a notifier list unconditionally.
func NewSummaryMailer(sender Mailer, to string, logger *logging.Logger) *SummaryMailer {
	if sender == nil || to == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SummaryMailer{
		sender:   sender,
		to:       to,
		renderer: &templates.Renderer{},
		logger:   logger,
	}
}

// Notify implements dispatch.Notifier.
func (m *SummaryMailer) Notify(ctx context.Context, summary dispatch.Summary) error {
	if m == nil {
		return nil
	}
	data := templates.SummaryData{
		JobID:      summary.JobID,
		Source:     string(summary.Source),
		Target:     summary.Target,
		Sender:     summary.Sender,
		Succeeded:  summary.Result.Succeeded,
		Failed:     summary.Result.Failed,
		Skipped:    summary.Result.Skipped,
		Stopped:    summary.Err != nil && (errors.Is(summary.Err, context.Canceled) || errors.Is(summary.Err, context.DeadlineExceeded)),
		FinishedAt: summary.FinishedAt.Format(time.RFC3339),
		Text:       summary.Text(),
	}
	subject, err := m.renderer.RenderNamed(templates.SummarySubject, data)
	if err != nil {
		return fmt.Errorf("notify: render subject: %w", err)
	}
	body, err := m.renderer.RenderNamed(templates.SummaryBody, data)
	if err != nil {
		return fmt.Errorf("notify: render body: %w", err)
	}
	if err := m.sender.Deliver(ctx, Mail{To: m.to, Subject: subject, Text: body}); err != nil {
		return err
	}
	m.logger.Debug("batch summary emailed", "job_id", summary.JobID, "to", m.to)
	return nil
}

var _ dispatch.Notifier = (*SummaryMailer)(nil)
