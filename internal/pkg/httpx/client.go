package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/hashicorp/go-retryablehttp"
)

// leveledLogger bridges retryablehttp logging onto a kratos logger. Errors are
// logged at warn since the request is retried.
type leveledLogger struct {
	helper *log.Helper
}

func (l leveledLogger) log(level log.Level, msg string, keysAndValues []any) {
	l.helper.Log(level, append([]any{log.DefaultMessageKey, msg}, keysAndValues...)...)
}

func (l leveledLogger) Error(msg string, keysAndValues ...any) {
	l.log(log.LevelWarn, msg, keysAndValues)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...any) {
	l.log(log.LevelWarn, msg, keysAndValues)
}

func (l leveledLogger) Info(msg string, keysAndValues ...any) {
	l.log(log.LevelInfo, msg, keysAndValues)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...any) {
	l.log(log.LevelDebug, msg, keysAndValues)
}

type Option func(*retryablehttp.Client)

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(c *retryablehttp.Client) {
		c.RetryMax = n
	}
}

// WithRetryWait sets the backoff bounds between retries.
func WithRetryWait(min, max time.Duration) Option {
	return func(c *retryablehttp.Client) {
		c.RetryWaitMin = min
		c.RetryWaitMax = max
	}
}

// WithLogger routes retry logging to logger.
func WithLogger(logger log.Logger) Option {
	return func(c *retryablehttp.Client) {
		c.Logger = retryablehttp.LeveledLogger(leveledLogger{
			helper: log.NewHelper(log.With(logger, "module", "pkg/httpx")),
		})
	}
}

// NewClient returns an *http.Client for classifier backends. It retries
// connection errors and 5xx responses, and never retries 429 so rate limits
// surface to the caller.
func NewClient(timeout time.Duration, options ...Option) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.CheckRetry = RetryPolicy

	for _, o := range options {
		o(rc)
	}

	client := rc.StandardClient()
	client.Timeout = timeout
	return client
}

// RetryPolicy wraps retryablehttp.DefaultRetryPolicy, treating 429 as final.
func RetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
