package fetcher

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/rs/zerolog"
)

// retryPolicy retries transient fetch failures with exponential backoff.
type retryPolicy struct {
	maxRetries       int
	baseDelay        time.Duration
	maxDelay         time.Duration
	retryStatusCodes map[int]bool
	logger           zerolog.Logger
}

func newRetryPolicy(cfg config.FetchConfig, logger zerolog.Logger) retryPolicy {
	codes := make(map[int]bool, len(cfg.RetryStatusCodes))
	for _, code := range cfg.RetryStatusCodes {
		codes[code] = true
	}
	return retryPolicy{
		maxRetries:       cfg.MaxRetries,
		baseDelay:        cfg.RetryBaseDelay(),
		maxDelay:         cfg.RetryMaxDelay(),
		retryStatusCodes: codes,
		logger:           logger,
	}
}

// shouldRetry reports whether a failed attempt is worth repeating. Oversize
// and malformed content will not change on a retry.
func (p retryPolicy) shouldRetry(err error, statusCode int, attempt int) bool {
	if attempt >= p.maxRetries {
		return false
	}
	var fe *common.FetchError
	if !errors.As(err, &fe) {
		return false
	}
	switch fe.Kind {
	case common.FetchUnreachable:
		return fe.Reason != reasonInvalidRequest
	case common.FetchHTTPStatus:
		return p.retryStatusCodes[statusCode]
	}
	return false
}

// delay is baseDelay * 2^attempt capped at maxDelay, plus up to 10% jitter.
func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.baseDelay << attempt
	if d <= 0 || d > p.maxDelay {
		d = p.maxDelay
	}
	if tenth := int64(d / 10); tenth > 0 {
		d += time.Duration(rand.Int63n(tenth)) //nolint:gosec // jitter only
	}
	return d
}

func (p retryPolicy) wait(ctx context.Context, attempt int, statusCode int, url string) error {
	d := p.delay(attempt)
	p.logger.Debug().
		Str("url", url).
		Int("status_code", statusCode).
		Int("attempt", attempt+1).
		Int("max_retries", p.maxRetries).
		Dur("delay", d).
		Msg("Transient fetch failure, waiting before retry")

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// do runs attempt until it succeeds, fails permanently or retries run out.
func (p retryPolicy) do(ctx context.Context, url string, attempt func() ([]byte, int, error)) ([]byte, error) {
	for n := 0; ; n++ {
		body, status, err := attempt()
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil || !p.shouldRetry(err, status, n) {
			return nil, err
		}
		if waitErr := p.wait(ctx, n, status, url); waitErr != nil {
			return nil, common.NewFetchError(common.FetchUnreachable, url, "retry interrupted", waitErr)
		}
	}
}
