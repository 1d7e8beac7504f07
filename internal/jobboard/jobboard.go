// Package jobboard retrieves and normalizes job postings from an external
// job board through pluggable transports, applying a retry/backoff policy
// around every page fetch.
package jobboard

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/nkhaldi/jobradar/internal/logger"
	"github.com/nkhaldi/jobradar/internal/utils"
)

var wait = utils.WaitFor

// Page is one raw result page as returned by a transport.
type Page struct {
	Raw         []*RawPosting
	HasNextPage bool
}

// Transport fetches one raw page of results for a query. Implementations
// classify their failures with BlockedError, TransientError or FatalError so
// the fetcher can branch on the failure kind.
type Transport interface {
	Name() string
	FetchPage(ctx context.Context, term string, page int) (*Page, error)
}

// OutcomeKind enumerates the classified results of a page fetch.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeBlocked
	OutcomeTransient
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeTransient:
		return "transient_error"
	case OutcomeFatal:
		return "fatal_error"
	default:
		return "unknown"
	}
}

// FetchOutcome is the final, post-retry result of fetching one page.
type FetchOutcome struct {
	Kind        OutcomeKind
	Postings    []*RawPosting
	HasNextPage bool
	Detail      string
}

// BlockedError signals an anti-bot or access-denial response. Never retried.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked by job board: %s", e.Reason)
}

// TransientError signals a network or timeout class failure, eligible for retry.
type TransientError struct {
	Detail string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient fetch error: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("transient fetch error: %s", e.Detail)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError signals a malformed request or unrecoverable condition. Never retried.
type FatalError struct {
	Detail string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal fetch error: %s", e.Detail)
}

// RetryPolicy bounds how transient failures are retried.
type RetryPolicy struct {
	// MaxAttempts counts the initial try as well. Values below 1 mean one attempt.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt; it doubles per attempt.
	BaseDelay time.Duration
	// Jitter adds up to 50% random delay on top of the backoff when set.
	Jitter bool
}

// DefaultRetryPolicy matches the documented defaults: 3 attempts, 500ms base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}
}

// Fetcher wraps a transport with the retry/backoff policy. Blocked and fatal
// failures are surfaced immediately; transient failures are retried until the
// policy is exhausted and then surfaced as a final transient outcome.
type Fetcher struct {
	transport Transport
	policy    RetryPolicy
	logger    *zap.Logger
}

func NewFetcher(transport Transport, policy RetryPolicy, log *zap.Logger) *Fetcher {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Fetcher{
		transport: transport,
		policy:    policy,
		logger:    log,
	}
}

// Source returns the name of the underlying transport.
func (f *Fetcher) Source() string {
	return f.transport.Name()
}

// FetchPage retrieves one page of raw postings for the query term.
func (f *Fetcher) FetchPage(ctx context.Context, term string, page int) FetchOutcome {
	log := logger.WithFetchFields(f.logger, f.transport.Name(), term).With(zap.Int("page", page))

	for attempt := 1; ; attempt++ {
		result, err := f.transport.FetchPage(ctx, term, page)
		if err == nil {
			log.Debug("page fetched",
				zap.Int("postings", len(result.Raw)),
				zap.Bool("has_next_page", result.HasNextPage),
			)
			return FetchOutcome{
				Kind:        OutcomeSuccess,
				Postings:    result.Raw,
				HasNextPage: result.HasNextPage,
			}
		}

		var blocked *BlockedError
		if errors.As(err, &blocked) {
			log.Warn("fetch blocked", zap.String("reason", blocked.Reason))
			return FetchOutcome{Kind: OutcomeBlocked, Detail: blocked.Reason}
		}

		var fatal *FatalError
		if errors.As(err, &fatal) {
			log.Warn("fetch failed permanently", zap.String("detail", fatal.Detail))
			return FetchOutcome{Kind: OutcomeFatal, Detail: fatal.Detail}
		}

		if attempt >= f.policy.MaxAttempts {
			log.Warn("retries exhausted", zap.Int("attempts", attempt), zap.Error(err))
			return FetchOutcome{Kind: OutcomeTransient, Detail: err.Error()}
		}

		delay := f.backoff(attempt)
		log.Debug("retrying after transient error",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if waitErr := wait(ctx, delay); waitErr != nil {
			return FetchOutcome{Kind: OutcomeTransient, Detail: waitErr.Error()}
		}
	}
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	delay := f.policy.BaseDelay << (attempt - 1)
	if f.policy.Jitter && delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)/2 + 1)) //nolint:gosec // jitter does not need crypto randomness
	}
	return delay
}
