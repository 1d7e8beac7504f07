package jobboard

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nkhaldi/jobradar/internal/logger"
)

// scriptedTransport returns the queued errors in order, then succeeds with the
// configured page.
type scriptedTransport struct {
	errs  []error
	page  *Page
	calls int
}

func (s *scriptedTransport) Name() string { return "scripted" }

func (s *scriptedTransport) FetchPage(_ context.Context, _ string, _ int) (*Page, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return s.page, nil
}

func stubWait(t *testing.T) *[]time.Duration {
	t.Helper()

	var delays []time.Duration
	orig := wait
	wait = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	t.Cleanup(func() { wait = orig })

	return &delays
}

func TestFetchPageRetriesTransientUntilSuccess(t *testing.T) {
	delays := stubWait(t)

	transport := &scriptedTransport{
		errs: []error{
			&TransientError{Detail: "connection reset"},
			&TransientError{Detail: "timeout"},
		},
		page: &Page{Raw: []*RawPosting{{Title: "Security Engineer"}}, HasNextPage: true},
	}
	fetcher := NewFetcher(transport, RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}, zap.NewNop())

	outcome := fetcher.FetchPage(context.Background(), "linux", 0)

	if outcome.Kind != OutcomeSuccess {
		t.Fatalf("outcome = %s, want success", outcome.Kind)
	}
	if transport.calls != 3 {
		t.Fatalf("transport called %d times, want 3", transport.calls)
	}
	if len(outcome.Postings) != 1 || !outcome.HasNextPage {
		t.Fatalf("unexpected outcome payload: %+v", outcome)
	}

	// Backoff doubles from the base delay.
	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("waited %d times, want %d", len(*delays), len(want))
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Fatalf("delay %d = %v, want %v", i, (*delays)[i], d)
		}
	}
}

func TestFetchPageExhaustsRetries(t *testing.T) {
	stubWait(t)

	transport := &scriptedTransport{
		errs: []error{
			&TransientError{Detail: "timeout"},
			&TransientError{Detail: "timeout"},
			&TransientError{Detail: "timeout"},
		},
	}
	fetcher := NewFetcher(transport, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, zap.NewNop())

	outcome := fetcher.FetchPage(context.Background(), "linux", 0)

	if outcome.Kind != OutcomeTransient {
		t.Fatalf("outcome = %s, want transient_error", outcome.Kind)
	}
	if transport.calls != 3 {
		t.Fatalf("transport called %d times, want 3", transport.calls)
	}
}

func TestFetchPageDoesNotRetryBlocked(t *testing.T) {
	stubWait(t)

	transport := &scriptedTransport{
		errs: []error{&BlockedError{Reason: "status 403 Forbidden"}},
	}
	fetcher := NewFetcher(transport, DefaultRetryPolicy(), zap.NewNop())

	outcome := fetcher.FetchPage(context.Background(), "linux", 0)

	if outcome.Kind != OutcomeBlocked {
		t.Fatalf("outcome = %s, want blocked", outcome.Kind)
	}
	if transport.calls != 1 {
		t.Fatalf("transport called %d times, want 1", transport.calls)
	}
	if outcome.Detail != "status 403 Forbidden" {
		t.Fatalf("unexpected detail: %q", outcome.Detail)
	}
}

func TestFetchPageDoesNotRetryFatal(t *testing.T) {
	stubWait(t)

	transport := &scriptedTransport{
		errs: []error{&FatalError{Detail: "bad status: 404 Not Found"}},
	}
	fetcher := NewFetcher(transport, DefaultRetryPolicy(), zap.NewNop())

	outcome := fetcher.FetchPage(context.Background(), "linux", 0)

	if outcome.Kind != OutcomeFatal {
		t.Fatalf("outcome = %s, want fatal_error", outcome.Kind)
	}
	if transport.calls != 1 {
		t.Fatalf("transport called %d times, want 1", transport.calls)
	}
}

func TestFetchPageStopsWhenContextCanceledDuringBackoff(t *testing.T) {
	orig := wait
	wait = func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}
	t.Cleanup(func() { wait = orig })

	transport := &scriptedTransport{
		errs: []error{
			&TransientError{Detail: "timeout"},
			&TransientError{Detail: "timeout"},
		},
	}
	fetcher := NewFetcher(transport, DefaultRetryPolicy(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := fetcher.FetchPage(ctx, "linux", 0)

	if outcome.Kind != OutcomeTransient {
		t.Fatalf("outcome = %s, want transient_error", outcome.Kind)
	}
	if transport.calls != 1 {
		t.Fatalf("transport called %d times, want 1 before the wait aborts", transport.calls)
	}
}

func TestFetchPageLogsSourceAndQuery(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)

	transport := &scriptedTransport{page: &Page{}}
	fetcher := NewFetcher(transport, DefaultRetryPolicy(), zap.New(core))

	fetcher.FetchPage(context.Background(), "linux", 0)

	entries := observed.All()
	if len(entries) == 0 {
		t.Fatal("expected a log entry")
	}

	ctx := entries[0].ContextMap()
	if ctx[logger.FieldSource] != "scripted" {
		t.Fatalf("expected source field, got %v", ctx)
	}
	if ctx[logger.FieldQuery] != "linux" {
		t.Fatalf("expected query field, got %v", ctx)
	}
}

func TestNewFetcherNormalizesPolicy(t *testing.T) {
	stubWait(t)

	transport := &scriptedTransport{
		errs: []error{&TransientError{Detail: "timeout"}},
	}
	fetcher := NewFetcher(transport, RetryPolicy{MaxAttempts: 0}, zap.NewNop())

	outcome := fetcher.FetchPage(context.Background(), "linux", 0)

	if outcome.Kind != OutcomeTransient {
		t.Fatalf("outcome = %s, want transient_error", outcome.Kind)
	}
	if transport.calls != 1 {
		t.Fatalf("transport called %d times, want exactly 1 with MaxAttempts 0", transport.calls)
	}
}
