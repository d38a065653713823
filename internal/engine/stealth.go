package engine

import (
	"context"
	"net/http"

	stealth "github.com/anatolykoptev/go-stealth"
)

// RetryConfig controls backoff for caption and player calls.
type RetryConfig = stealth.RetryConfig

// DefaultRetryConfig is used for caption and player calls.
// Audio transfers and transcription uploads are not retried.
var DefaultRetryConfig = stealth.DefaultRetryConfig

// NoRetry runs the operation exactly once.
var NoRetry = stealth.RetryConfig{}

func RandomUserAgent() string         { return stealth.RandomUserAgent() }
func IsRetryableStatus(code int) bool { return stealth.IsRetryableStatus(code) }

func RetryDo[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	return stealth.RetryDo(ctx, rc, fn)
}

func RetryHTTP(ctx context.Context, rc RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return stealth.RetryHTTP(ctx, rc, fn)
}
