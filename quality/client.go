// Package quality reports quality gate values collected from a step to
// the quality service.
package quality

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	upsertPath = "/quality/api/build/indicator/v3/project/%s/upsertIndicator"
	savePath   = "/quality/api/build/metadata/saveHisMetadata"

	// HeaderUserID carries the user that started the build.
	HeaderUserID = "X-DEVOPS-UID"

	// DefaultElementType is the element type recorded with saved metadata.
	DefaultElementType = "run"

	defaultTimeout = 30 * time.Second
	defaultRetries = 2
)

var (
	// ErrIndicatorRejected is returned when the service does not confirm
	// an indicator upsert.
	ErrIndicatorRejected = errors.New("Failed to create run redline indicator") //nolint:staticcheck // user-facing message
	// ErrMetadataRejected is returned when the service does not confirm
	// a metadata save.
	ErrMetadataRejected = errors.New("Failed to save run redline data") //nolint:staticcheck // user-facing message
)

// Indicator is a quality indicator definition.
type Indicator struct {
	Name     string `json:"name"`
	CnName   string `json:"cnName"`
	DataType string `json:"dataType"`
}

// Response is the service envelope.
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Data    bool   `json:"data"`
}

// API is the subset of the quality service used by the reporter.
type API interface {
	UpsertIndicator(ctx context.Context, userID, projectID string, indicators []Indicator) (bool, error)
	SaveMetadata(ctx context.Context, taskID, taskName string, data map[string]string) (bool, error)
}

// Config configures a Client.
type Config struct {
	URL         string
	ElementType string
	Timeout     time.Duration
	Retries     int
	Headers     map[string]string
}

// Client talks to the quality service over HTTP.
type Client struct {
	client      *resty.Client
	elementType string
}

// NewClient creates a client for cfg.URL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("quality URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid quality URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.ElementType == "" {
		cfg.ElementType = DefaultElementType
	}

	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeaders(cfg.Headers)
	return &Client{client: client, elementType: cfg.ElementType}, nil
}

// UpsertIndicator creates or updates indicators for projectID.
func (c *Client) UpsertIndicator(ctx context.Context, userID, projectID string, indicators []Indicator) (bool, error) {
	var out Response
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader(HeaderUserID, userID).
		SetBody(indicators).
		SetResult(&out).
		Post(fmt.Sprintf(upsertPath, url.PathEscape(projectID)))
	if err != nil {
		return false, fmt.Errorf("upsert indicator: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("upsert indicator: status %d", resp.StatusCode())
	}
	return out.Data, nil
}

// SaveMetadata saves gate values for one task.
func (c *Client) SaveMetadata(ctx context.Context, taskID, taskName string, data map[string]string) (bool, error) {
	var out Response
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"elementType": c.elementType,
			"taskId":      taskID,
			"taskName":    taskName,
		}).
		SetBody(data).
		SetResult(&out).
		Post(savePath)
	if err != nil {
		return false, fmt.Errorf("save metadata: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("save metadata: status %d", resp.StatusCode())
	}
	return out.Data, nil
}
