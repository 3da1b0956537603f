package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrRejected is returned when the workspace service refuses a request.
// Rejections are not retried.
var ErrRejected = errors.New("workspace rejected request")

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// RetryDelay is the initial backoff; it doubles on each attempt.
	RetryDelay time.Duration
}

// Client posts artifacts to a workspace service:
//
//	POST {base}/files   {"path": ..., "content": ...}
//	POST {base}/routes  {"symbol": ..., "location": ...}
type Client struct {
	baseURL string
	http    *http.Client
	config  Config
	logger  *slog.Logger
}

// NewClient creates a Client.
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("workspace base URL cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 200 * time.Millisecond
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		http:    &http.Client{Timeout: config.Timeout},
		config:  config,
		logger:  logger.With("component", "workspace_client"),
	}, nil
}

type writeFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type registerRouteRequest struct {
	Symbol   string `json:"symbol"`
	Location string `json:"location"`
}

// WriteFile implements task.FileWriter.
func (c *Client) WriteFile(ctx context.Context, location, content string) error {
	return c.post(ctx, "workspace.write_file", "/files", writeFileRequest{Path: location, Content: content})
}

// RegisterRoute implements task.RouteRegistrar.
func (c *Client) RegisterRoute(ctx context.Context, symbol, location string) error {
	return c.post(ctx, "workspace.register_route", "/routes", registerRouteRequest{Symbol: symbol, Location: location})
}

func (c *Client) post(ctx context.Context, spanName, path string, payload any) error {
	ctx, span := otel.Tracer("workspace").Start(ctx, spanName)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal workspace request: %w", err)
	}

	url := c.baseURL + path
	span.SetAttributes(attribute.String("http.url", url))

	backoff := retry.WithMaxRetries(uint64(c.config.MaxRetries), retry.NewExponential(c.config.RetryDelay))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.send(ctx, url, body)
		if err == nil || errors.Is(err, ErrRejected) {
			return err
		}
		c.logger.Warn("workspace request failed",
			"url", url,
			"attempt", attempt,
			"error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "workspace request failed")
		return err
	}
	return nil
}

func (c *Client) send(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("workspace call to %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("workspace %s returned status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(detail)))
}
