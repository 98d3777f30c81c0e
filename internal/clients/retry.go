package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryPolicy decides whether and when a failed attempt is repeated.
// MaxAttempts counts the first attempt.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	ShouldRetry func(resp *http.Response, err error) bool
}

// LinearBackoff waits attempt*unit after the given attempt.
func LinearBackoff(unit time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * unit
	}
}

// RetryOnNetworkOrServerError retries when no response came back for a
// reason other than a timeout, or when the status is 5xx.
func RetryOnNetworkOrServerError(resp *http.Response, err error) bool {
	if err != nil {
		return !IsTimeout(err) && !errors.Is(err, context.Canceled)
	}
	return resp != nil && resp.StatusCode >= http.StatusInternalServerError
}

func DefaultRetryPolicy(unit time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(unit),
		ShouldRetry: RetryOnNetworkOrServerError,
	}
}

func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type retryingDoer struct {
	next   HTTPDoer
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
	log    *logrus.Logger
}

func NewRetryingDoer(next HTTPDoer, policy RetryPolicy, logger *logrus.Logger) HTTPDoer {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Backoff == nil {
		policy.Backoff = func(int) time.Duration { return 0 }
	}
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = RetryOnNetworkOrServerError
	}
	return &retryingDoer{
		next:   next,
		policy: policy,
		sleep:  sleepContext,
		log:    logger,
	}
}

func (d *retryingDoer) Do(req *http.Request) (*http.Response, error) {
	for attempt := 1; ; attempt++ {
		attemptReq := req
		if attempt > 1 {
			var err error
			attemptReq, err = rewind(req)
			if err != nil {
				return nil, err
			}
		}

		resp, err := d.next.Do(attemptReq)
		if attempt >= d.policy.MaxAttempts || !d.policy.ShouldRetry(resp, err) {
			return resp, err
		}
		if req.Body != nil && req.GetBody == nil {
			// body already consumed and cannot be replayed
			return resp, err
		}

		if err != nil {
			d.log.Warnf("RetryingDoer: Attempt %d/%d to %s failed: %v", attempt, d.policy.MaxAttempts, req.URL.Redacted(), err)
		} else {
			d.log.Warnf("RetryingDoer: Attempt %d/%d to %s returned status %d", attempt, d.policy.MaxAttempts, req.URL.Redacted(), resp.StatusCode)
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		if err := d.sleep(req.Context(), d.policy.Backoff(attempt)); err != nil {
			return nil, err
		}
	}
}

func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		clone.Body = body
	}
	return clone, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
