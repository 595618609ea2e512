// Package dispatch runs deduplicated, paced batch sends through an SMS provider.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/wolfman30/sms-dispatch-gateway/internal/dedup"
	"github.com/wolfman30/sms-dispatch-gateway/internal/messaging"
	"github.com/wolfman30/sms-dispatch-gateway/internal/observability/metrics"
	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

var tracer = otel.Tracer("smsgateway.internal.dispatch")

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeSkipped = "skipped"
)

// Batch is one list of raw numbers to receive the same message.
type Batch struct {
	Numbers []string
	Sender  string
	Message string
}

// Result tallies a batch. Skipped numbers were already sent earlier and
// count as neither success nor failure.
type Result struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// NewLimiter returns a limiter allowing one provider call per interval. A
// non-positive interval disables pacing.
func NewLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Config wires a Dispatcher.
type Config struct {
	Provider   messaging.Provider
	Store      dedup.Store
	Keys       dedup.KeyBuilder
	Normalizer messaging.PhoneNormalizer
	// Limiter paces provider calls. Share one limiter between dispatchers to
	// bound the process-wide rate.
	Limiter *rate.Limiter
	Metrics *metrics.DispatchMetrics
	Logger  *logging.Logger
}

// Dispatcher sends batches. It is safe for concurrent use; concurrent
// batches share the limiter.
type Dispatcher struct {
	provider   messaging.Provider
	store      dedup.Store
	keys       dedup.KeyBuilder
	normalizer messaging.PhoneNormalizer
	limiter    *rate.Limiter
	metrics    *metrics.DispatchMetrics
	logger     *logging.Logger
}

func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Provider == nil {
		return nil, errors.New("dispatch: provider required")
	}
	if cfg.Store == nil {
		return nil, errors.New("dispatch: dedup store required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewLimiter(0)
	}
	return &Dispatcher{
		provider:   cfg.Provider,
		store:      cfg.Store,
		keys:       cfg.Keys,
		normalizer: cfg.Normalizer,
		limiter:    cfg.Limiter,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}, nil
}

// Send runs one batch. Keys of successful sends are saved even when ctx is
// cancelled part way; the cancellation error is then returned alongside the
// partial result.
func (d *Dispatcher) Send(ctx context.Context, batch Batch) (Result, error) {
	ctx, span := tracer.Start(ctx, "dispatch.batch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("dispatch.numbers", len(batch.Numbers)),
		attribute.String("sms.sender", batch.Sender),
		attribute.String("sms.provider", d.provider.Name()),
	)

	sent, err := d.store.Load(ctx)
	if err != nil || sent == nil {
		if err != nil {
			d.logger.Warn("dedup store load failed, continuing with empty set", "error", err)
		}
		sent = dedup.NewSet()
	}
	thisRun := dedup.NewSet()

	var (
		res    Result
		runErr error
	)
	for _, raw := range batch.Numbers {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		number := d.normalizer.International(raw)
		key := d.keys.Key(number, batch.Sender, batch.Message)
		if sent.Has(key) || thisRun.Has(key) {
			res.Skipped++
			d.metrics.ObserveSend(d.provider.Name(), outcomeSkipped)
			d.logger.Info("skipping duplicate send", "to", number)
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			runErr = err
			break
		}
		out, err := d.provider.Send(ctx, messaging.SendRequest{
			To:     number,
			Sender: batch.Sender,
			Body:   batch.Message,
		})
		if err != nil {
			res.Failed++
			d.metrics.ObserveSend(d.provider.Name(), outcomeFailure)
			d.logger.Warn("sms send failed", "to", number, "provider", d.provider.Name(), "error", err)
			continue
		}
		if out == nil {
			out = &messaging.SendResult{Provider: d.provider.Name(), Recipient: number}
		}
		res.Succeeded++
		thisRun.Add(key)
		d.metrics.ObserveSend(d.provider.Name(), outcomeSuccess)
		d.logger.Info("sms queued", "to", out.Recipient, "provider", out.Provider, "message_id", out.MessageID)
	}

	if thisRun.Len() > 0 {
		if err := d.store.Save(context.WithoutCancel(ctx), thisRun); err != nil {
			d.logger.Error("dedup store save failed", "error", err, "keys", thisRun.Len())
		}
	}

	span.SetAttributes(
		attribute.Int("dispatch.succeeded", res.Succeeded),
		attribute.Int("dispatch.failed", res.Failed),
		attribute.Int("dispatch.skipped", res.Skipped),
	)
	if runErr != nil {
		span.RecordError(runErr)
	}
	return res, runErr
}
