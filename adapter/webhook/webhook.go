// Package webhook publishes step completion events as JSON POST requests.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/pithecene-io/scriptrun/adapter"
)

const (
	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
	// DefaultRetries is the default number of retry attempts.
	DefaultRetries = 3
)

// Config configures the webhook adapter.
type Config struct {
	// URL is the endpoint to POST to (required).
	URL     string
	Headers map[string]string
	Timeout time.Duration
	Retries int
}

// Adapter publishes events via HTTP POST.
type Adapter struct {
	config Config
	client *resty.Client
}

// New creates a webhook adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	// Retries are driven by Publish so 4xx can stop early.
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeaders(cfg.Headers)
	return &Adapter{config: cfg, client: client}, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// nonRetriable reports 4xx responses.
func nonRetriable(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
}

// Publish POSTs the event. 5xx and network errors are retried; 4xx fails
// immediately.
func (a *Adapter) Publish(ctx context.Context, event *adapter.StepCompletedEvent) error {
	body, err := sonic.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	attempts, err := adapter.Retry(ctx, a.config.Retries, func() error {
		return a.post(ctx, body)
	}, nonRetriable)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("webhook: context canceled: %w", err)
	case nonRetriable(err):
		return fmt.Errorf("webhook: non-retriable error: %w", err)
	default:
		return fmt.Errorf("webhook: failed after %d attempts: %w", attempts, err)
	}
}

func (a *Adapter) post(ctx context.Context, body []byte) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(a.config.URL)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return &StatusError{Code: resp.StatusCode()}
	}
	return nil
}

// Close releases idle connections.
func (a *Adapter) Close() error {
	a.client.GetClient().CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
