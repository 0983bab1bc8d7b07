package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"opportunity-hunter/internal/domain"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultRetryBase        = time.Second
	defaultRetryMaxAttempts = 4
	maxResponseBytes        = 8 << 20
)

var errRateLimited = errors.New("rate limited")

// pageRequester performs one logical page request against a provider,
// retrying the same page on HTTP 429 with exponential backoff. Any other
// failure is returned immediately as a typed provider error.
type pageRequester struct {
	client      *http.Client
	source      string
	retryBase   time.Duration
	maxAttempts int
}

func newPageRequester(source string, client *http.Client, retryBase time.Duration, maxAttempts int) pageRequester {
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryMaxAttempts
	}
	return pageRequester{client: client, source: source, retryBase: retryBase, maxAttempts: maxAttempts}
}

func (r pageRequester) do(ctx context.Context, page int, newRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.retryBase
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxInterval = r.retryBase * time.Duration(1<<uint(r.maxAttempts))

	attempts := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempts++
		req, err := newRequest(ctx)
		if err != nil {
			return nil, backoff.Permanent(&domain.ProviderTransportError{Source: r.source, Page: page, Err: err})
		}
		req.Header.Set("Accept", "application/json")

		resp, err := r.client.Do(req)
		if err != nil {
			return nil, backoff.Permanent(&domain.ProviderTransportError{Source: r.source, Page: page, Err: err})
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, errRateLimited
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, backoff.Permanent(&domain.ProviderTransportError{
				Source:     r.source,
				Page:       page,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("%s API error: %s", r.source, string(snippet)),
			})
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, backoff.Permanent(&domain.ProviderTransportError{Source: r.source, Page: page, Err: err})
		}
		return data, nil
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(r.maxAttempts)),
	)
	if err == nil {
		return body, nil
	}

	if errors.Is(err, errRateLimited) {
		return nil, &domain.ProviderRateLimitedError{Source: r.source, Page: page, Attempts: attempts}
	}
	var transportErr *domain.ProviderTransportError
	if errors.As(err, &transportErr) {
		return nil, transportErr
	}
	// context cancellation while waiting between attempts
	return nil, &domain.ProviderTransportError{Source: r.source, Page: page, Err: err}
}
