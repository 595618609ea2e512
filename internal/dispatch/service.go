package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/sms-dispatch-gateway/internal/history"
	"github.com/wolfman30/sms-dispatch-gateway/internal/observability/metrics"
	"github.com/wolfman30/sms-dispatch-gateway/internal/recipients"
	batchworker "github.com/wolfman30/sms-dispatch-gateway/internal/worker/batch"
	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

// ErrListNotFound is matched by errors.Is for a missing recipient list.
var ErrListNotFound = errors.New("dispatch: list not found")

// ListNotFoundError names the missing list.
type ListNotFoundError struct {
	Name string
}

func (e *ListNotFoundError) Error() string {
	return fmt.Sprintf("file '%s' not found on the server", e.Name)
}

func (e *ListNotFoundError) Is(target error) bool { return target == ErrListNotFound }

// Source identifies where a request came from.
type Source string

const (
	SourceLine Source = "line"
	SourceAPI  Source = "api"
	SourceCLI  Source = "cli"
)

// Request asks for one batch. Exactly one of ListName or Numbers is used;
// ListName wins when both are set.
type Request struct {
	Target   string
	ListName string
	Numbers  []string
	Sender   string
	Message  string
	Source   Source
}

func (r Request) target() string {
	switch {
	case r.Target != "":
		return r.Target
	case r.ListName != "":
		return r.ListName
	case len(r.Numbers) == 1:
		return r.Numbers[0]
	default:
		return fmt.Sprintf("%d numbers", len(r.Numbers))
	}
}

// Summary is the outcome of an executed request.
type Summary struct {
	JobID      string
	Target     string
	Source     Source
	Sender     string
	Result     Result
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Text renders the summary for a chat reply or terminal.
func (s Summary) Text() string {
	if s.Err != nil && !isStop(s.Err) {
		return "Error: " + s.Err.Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Summary for '%s':\n✅ Sent: %d\n❌ Failed: %d", s.Target, s.Result.Succeeded, s.Result.Failed)
	if s.Result.Skipped > 0 {
		fmt.Fprintf(&b, "\n⏭️ Skipped (already sent): %d", s.Result.Skipped)
	}
	if s.Err != nil {
		fmt.Fprintf(&b, "\n⚠️ Stopped early: %v", s.Err)
	}
	return b.String()
}

func isStop(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Notifier is told about every finished request.
type Notifier interface {
	Notify(ctx context.Context, summary Summary) error
}

// NotifierFunc adapts a func to Notifier.
type NotifierFunc func(ctx context.Context, summary Summary) error

func (f NotifierFunc) Notify(ctx context.Context, summary Summary) error { return f(ctx, summary) }

// BatchSender is satisfied by *Dispatcher.
type BatchSender interface {
	Send(ctx context.Context, batch Batch) (Result, error)
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Sender       BatchSender
	Lists        recipients.Source
	Pool         *batchworker.Pool
	History      history.Store
	Notifiers    []Notifier
	BatchTimeout time.Duration
	Metrics      *metrics.DispatchMetrics
	Logger       *logging.Logger
}

// Service resolves requests into batches and runs them inline or on the pool.
type Service struct {
	sender       BatchSender
	lists        recipients.Source
	pool         *batchworker.Pool
	history      history.Store
	notifiers    []Notifier
	batchTimeout time.Duration
	metrics      *metrics.DispatchMetrics
	logger       *logging.Logger
	now          func() time.Time
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Sender == nil {
		return nil, errors.New("dispatch: batch sender required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Service{
		sender:       cfg.Sender,
		lists:        cfg.Lists,
		pool:         cfg.Pool,
		history:      cfg.History,
		notifiers:    cfg.Notifiers,
		batchTimeout: cfg.BatchTimeout,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		now:          time.Now,
	}, nil
}

// Execute runs req on the calling goroutine and returns its summary. The
// summary is recorded in history but notifiers are not called.
func (s *Service) Execute(ctx context.Context, jobID string, req Request) Summary {
	if jobID == "" {
		jobID = uuid.NewString()
	}
	summary := Summary{
		JobID:     jobID,
		Target:    req.target(),
		Source:    req.Source,
		Sender:    req.Sender,
		StartedAt: s.now().UTC(),
	}
	logger := s.logger.With("job_id", jobID, "source", string(req.Source), "target", summary.Target)

	s.metrics.JobStarted()
	defer s.metrics.JobFinished()

	numbers, err := s.resolve(ctx, req)
	if err != nil {
		summary.Err = err
	} else {
		logger.Info("batch started", "numbers", len(numbers))
		summary.Result, summary.Err = s.sender.Send(ctx, Batch{
			Numbers: numbers,
			Sender:  req.Sender,
			Message: req.Message,
		})
	}
	summary.FinishedAt = s.now().UTC()

	status := "completed"
	switch {
	case summary.Err != nil && isStop(summary.Err):
		status = "cancelled"
		logger.Warn("batch stopped early", "error", summary.Err)
	case summary.Err != nil:
		status = "failed"
		logger.Error("batch failed", "error", summary.Err)
	default:
		logger.Info("batch finished",
			"succeeded", summary.Result.Succeeded,
			"failed", summary.Result.Failed,
			"skipped", summary.Result.Skipped,
		)
	}
	s.metrics.ObserveBatch(string(req.Source), status, summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	s.record(ctx, summary)
	return summary
}

// Submit queues req on the worker pool and returns its job id. The extra
// notifiers run before the configured ones, since a chat reply token only
// lives for about a minute.
func (s *Service) Submit(req Request, notifiers ...Notifier) (string, error) {
	if s.pool == nil {
		return "", errors.New("dispatch: worker pool not configured")
	}
	jobID := uuid.NewString()
	all := append(append([]Notifier(nil), notifiers...), s.notifiers...)
	err := s.pool.Submit(batchworker.Task{
		ID:   jobID,
		Name: "batch:" + req.target(),
		Run: func(ctx context.Context) error {
			if s.batchTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, s.batchTimeout)
				defer cancel()
			}
			summary := s.Execute(ctx, jobID, req)
			s.notify(context.WithoutCancel(ctx), summary, all)
			return summary.Err
		},
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("batch queued", "job_id", jobID, "source", string(req.Source), "target", req.target())
	return jobID, nil
}

// Cancel stops a queued or running job.
func (s *Service) Cancel(jobID string) bool {
	if s.pool == nil {
		return false
	}
	return s.pool.Cancel(jobID)
}

// History lists recent runs.
func (s *Service) History(ctx context.Context, limit int) ([]history.BatchRun, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.List(ctx, limit)
}

func (s *Service) resolve(ctx context.Context, req Request) ([]string, error) {
	if req.ListName == "" {
		return req.Numbers, nil
	}
	if s.lists == nil {
		return nil, errors.New("dispatch: no list source configured")
	}
	numbers, err := recipients.Load(ctx, s.lists, req.ListName)
	if err != nil {
		if errors.Is(err, recipients.ErrNotFound) {
			return nil, &ListNotFoundError{Name: req.ListName}
		}
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return numbers, nil
}

func (s *Service) record(ctx context.Context, summary Summary) {
	if s.history == nil {
		return
	}
	run := history.BatchRun{
		ID:         summary.JobID,
		Source:     string(summary.Source),
		Target:     summary.Target,
		Sender:     summary.Sender,
		Succeeded:  summary.Result.Succeeded,
		Failed:     summary.Result.Failed,
		Skipped:    summary.Result.Skipped,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
	}
	if summary.Err != nil {
		run.Error = summary.Err.Error()
	}
	if err := s.history.Record(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("failed to record batch run", "job_id", summary.JobID, "error", err)
	}
}

func (s *Service) notify(ctx context.Context, summary Summary, notifiers []Notifier) {
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		nctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := n.Notify(nctx, summary); err != nil {
			s.logger.Warn("batch notifier failed", "job_id", summary.JobID, "error", err)
		}
		cancel()
	}
}
