package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/sms-dispatch-gateway/internal/dedup"
	"github.com/wolfman30/sms-dispatch-gateway/internal/messaging"
	"github.com/wolfman30/sms-dispatch-gateway/internal/observability/metrics"
	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

type stubProvider struct {
	mu    sync.Mutex
	calls []messaging.SendRequest
	err   error
	hook  func(n int)
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Send(_ context.Context, req messaging.SendRequest) (*messaging.SendResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	n := len(p.calls)
	p.mu.Unlock()
	if p.hook != nil {
		p.hook(n)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &messaging.SendResult{Provider: "stub", Recipient: req.To, MessageID: "m"}, nil
}

func (p *stubProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type memoryStore struct {
	mu      sync.Mutex
	keys    dedup.Set
	loadErr error
	saves   int
}

func newMemoryStore(keys ...string) *memoryStore {
	return &memoryStore{keys: dedup.NewSet(keys...)}
}

func (s *memoryStore) Load(context.Context) (dedup.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := dedup.NewSet()
	out.Merge(s.keys)
	return out, nil
}

func (s *memoryStore) Save(_ context.Context, keys dedup.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.keys.Merge(keys)
	return nil
}

func newTestDispatcher(t *testing.T, provider messaging.Provider, store dedup.Store) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(Config{
		Provider:   provider,
		Store:      store,
		Keys:       dedup.KeyBuilder{IncludeSender: true},
		Normalizer: messaging.NewPhoneNormalizer("+66"),
		Logger:     logging.Discard(),
	})
	require.NoError(t, err)
	return d
}

func TestSendUniqueNumbersAllSucceed(t *testing.T) {
	provider := &stubProvider{}
	store := newMemoryStore()
	d := newTestDispatcher(t, provider, store)

	res, err := d.Send(context.Background(), Batch{
		Numbers: []string{"0811111111", "0822222222", "0833333333"},
		Sender:  "ACME",
		Message: "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Succeeded: 3}, res)
	assert.Equal(t, 3, store.keys.Len())
	assert.Equal(t, "+66811111111", provider.calls[0].To)
}

func TestSendAllFailuresRecordNothing(t *testing.T) {
	provider := &stubProvider{err: errors.New("provider says no")}
	store := newMemoryStore()
	d := newTestDispatcher(t, provider, store)

	res, err := d.Send(context.Background(), Batch{
		Numbers: []string{"0811111111", "0822222222"},
		Message: "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 2}, res)
	assert.Equal(t, 0, store.keys.Len())
	assert.Equal(t, 0, store.saves)
}

func TestSendSkipsKeysAlreadyStored(t *testing.T) {
	provider := &stubProvider{}
	store := newMemoryStore("+66811111111|ACME|hi")
	d := newTestDispatcher(t, provider, store)

	res, err := d.Send(context.Background(), Batch{Numbers: []string{"0811111111"}, Sender: "ACME", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 1}, res)
	assert.Equal(t, 0, provider.count())
}

func TestSendDifferentSenderIsNotDuplicate(t *testing.T) {
	provider := &stubProvider{}
	store := newMemoryStore("+66811111111|ACME|hi")
	d := newTestDispatcher(t, provider, store)

	res, err := d.Send(context.Background(), Batch{Numbers: []string{"0811111111"}, Sender: "PROMO", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, Result{Succeeded: 1}, res)
}

func TestSendIgnoresBlankLines(t *testing.T) {
	provider := &stubProvider{}
	d := newTestDispatcher(t, provider, newMemoryStore())

	res, err := d.Send(context.Background(), Batch{Numbers: []string{"", "  ", "0811111111", "\r"}, Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, Result{Succeeded: 1}, res)
}

func TestSendFailedNumberIsRetriedLaterInSameBatch(t *testing.T) {
	provider := &stubProvider{}
	provider.hook = func(n int) {
		if n == 1 {
			provider.err = errors.New("transient")
		} else {
			provider.err = nil
		}
	}
	d := newTestDispatcher(t, provider, newMemoryStore())

	res, err := d.Send(context.Background(), Batch{Numbers: []string{"0811111111", "0811111111"}, Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, Result{Succeeded: 1, Failed: 1}, res)
}

func TestSendLoadErrorTreatedAsEmpty(t *testing.T) {
	provider := &stubProvider{}
	store := newMemoryStore("+66811111111|hi")
	store.loadErr = errors.New("redis down")
	d, err := NewDispatcher(Config{Provider: provider, Store: store, Logger: logging.Discard()})
	require.NoError(t, err)

	res, err := d.Send(context.Background(), Batch{Numbers: []string{"0811111111"}, Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, Result{Succeeded: 1}, res)
}

func TestSendEndToEndWithFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sent_log.json")
	store := dedup.NewFileStore(path, logging.Discard())
	provider := &stubProvider{}
	d := newTestDispatcher(t, provider, store)

	res, err := d.Send(context.Background(), Batch{
		Numbers: []string{"0812345678", "0812345678"},
		Sender:  "ACME",
		Message: "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Succeeded: 1, Skipped: 1}, res)
	require.Equal(t, 1, provider.count())
	assert.Equal(t, "+66812345678", provider.calls[0].To)
	assert.Equal(t, "ACME", provider.calls[0].Sender)

	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"+66812345678|ACME|hi"}, set.Keys())

	// A second run of the same list is a no-op.
	res, err = d.Send(context.Background(), Batch{Numbers: []string{"0812345678"}, Sender: "ACME", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 1}, res)
	assert.Equal(t, 1, provider.count())
}

func TestSendInvalidDedupFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sent_log.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	provider := &stubProvider{}
	d := newTestDispatcher(t, provider, dedup.NewFileStore(path, logging.Discard()))

	res, err := d.Send(context.Background(), Batch{Numbers: []string{"0812345678"}, Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, Result{Succeeded: 1}, res)
}

func TestSendPacesProviderCalls(t *testing.T) {
	provider := &stubProvider{}
	d, err := NewDispatcher(Config{
		Provider: provider,
		Store:    newMemoryStore(),
		Limiter:  NewLimiter(30 * time.Millisecond),
		Logger:   logging.Discard(),
	})
	require.NoError(t, err)

	start := time.Now()
	res, err := d.Send(context.Background(), Batch{Numbers: []string{"0811111111", "0822222222", "0833333333"}, Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Succeeded)
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestSendSkipsDoNotWait(t *testing.T) {
	provider := &stubProvider{}
	d, err := NewDispatcher(Config{
		Provider: provider,
		Store:    newMemoryStore("0|hi"),
		Limiter:  NewLimiter(time.Hour),
		Logger:   logging.Discard(),
	})
	require.NoError(t, err)

	done := make(chan Result, 1)
	go func() {
		res, _ := d.Send(context.Background(), Batch{Numbers: []string{"0811111111", "0811111111", "0811111111"}, Message: "hi"})
		done <- res
	}()
	select {
	case res := <-done:
		assert.Equal(t, Result{Succeeded: 1, Skipped: 2}, res)
	case <-time.After(2 * time.Second):
		t.Fatal("skipped numbers should not wait on the limiter")
	}
}

func TestSendCancellationSavesSentKeys(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	provider := &stubProvider{hook: func(n int) {
		if n == 1 {
			cancel()
		}
	}}
	store := newMemoryStore()
	d := newTestDispatcher(t, provider, store)

	res, err := d.Send(ctx, Batch{Numbers: []string{"0811111111", "0822222222", "0833333333"}, Message: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Result{Succeeded: 1}, res)
	assert.True(t, store.keys.Has("+66811111111|hi"))
	assert.Equal(t, 1, provider.count())
}

func TestSendRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewDispatchMetrics(reg)
	provider := &stubProvider{}
	d, err := NewDispatcher(Config{Provider: provider, Store: newMemoryStore(), Metrics: m, Logger: logging.Discard()})
	require.NoError(t, err)

	_, err = d.Send(context.Background(), Batch{Numbers: []string{"0811111111", "0811111111"}, Message: "hi"})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "smsgateway_dispatch_sends_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" {
					found[label.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, map[string]float64{"success": 1, "skipped": 1}, found)
}

func TestNewDispatcherValidation(t *testing.T) {
	_, err := NewDispatcher(Config{Store: newMemoryStore()})
	assert.Error(t, err)
	_, err = NewDispatcher(Config{Provider: &stubProvider{}})
	assert.Error(t, err)
}
