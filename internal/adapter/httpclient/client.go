// Package httpclient builds the resty client shared by the HTTP-backed
// collaborators (link crawling, downloads, translation).
package httpclient

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client defaults.
const (
	DefaultTimeout   = 45 * time.Second
	RetryCount       = 3
	RetryWaitTime    = 100 * time.Millisecond
	RetryWaitTimeMax = 3 * time.Second
	UserAgent        = "s4h-workbench"
)

// New creates a resty client with retries on transient status codes.
// A zero timeout uses DefaultTimeout.
func New(logger *slog.Logger, timeout time.Duration) *resty.Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := resty.New()
	c.SetLogger(&restyLogger{logger: logger})
	c.SetHeader("User-Agent", UserAgent)
	c.SetTimeout(timeout)
	c.SetRetryCount(RetryCount)
	c.SetRetryWaitTime(RetryWaitTime)
	c.SetRetryMaxWaitTime(RetryWaitTimeMax)
	c.AddRetryCondition(func(response *resty.Response, err error) bool {
		if response == nil {
			return false
		}
		switch response.StatusCode() {
		case
			http.StatusRequestTimeout,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	})
	return c
}

// restyLogger forwards resty diagnostics to slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l *restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l *restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l *restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.URL, e.Status, e.Body)
}

// Check turns an error response into a *StatusError.
func Check(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	body := resp.String()
	if len(body) > 200 {
		body = body[:200]
	}
	return &StatusError{URL: resp.Request.URL, Status: resp.StatusCode(), Body: body}
}
