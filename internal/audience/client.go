package audience

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/audiencer/audiencer/internal/logging"
)

const apiKeyHeader = "X-Api-Key"

// Config configures the audience API client.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.audience.example.com/v1".
	BaseURL string

	// APIKey authenticates every request.
	APIKey string

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client

	// MaxRetries bounds retry attempts for transient failures
	// (default 3, counting the initial attempt as the first try).
	MaxRetries int

	// RetryInterval is the initial backoff delay (default 500ms).
	RetryInterval time.Duration

	// Logger for structured logging (optional).
	Logger *slog.Logger

	// Metrics receives per-operation counters and latencies (optional).
	Metrics OperationRecorder
}

// OperationRecorder receives API operation metrics. Implemented by
// instrumentation.Metrics; a nil recorder disables recording.
type OperationRecorder interface {
	RecordAudienceOperation(ctx context.Context, operation, status string, duration time.Duration)
}

// Client talks to the email-marketing API.
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	maxRetries    int
	retryInterval time.Duration
	logger        *slog.Logger
	metrics       OperationRecorder
}

// NewClient creates a new audience API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("audience API base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid audience API base URL: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, errors.New("audience API key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryInterval := cfg.RetryInterval
	if retryInterval <= 0 {
		retryInterval = 500 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		httpClient:    httpClient,
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
		logger:        logger,
		metrics:       cfg.Metrics,
	}, nil
}

// ListSubscribers returns one page of subscribers. Page numbering starts
// at 1; page 0 means the first page.
func (c *Client) ListSubscribers(ctx context.Context, page int) (*SubscriberList, error) {
	path := "/subscribers"
	if page > 0 {
		path += "?page=" + strconv.Itoa(page)
	}
	var list SubscriberList
	if err := c.do(ctx, "subscribers.list", http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetSubscriber fetches a single subscriber by ID.
func (c *Client) GetSubscriber(ctx context.Context, id string) (*Subscriber, error) {
	if id == "" {
		return nil, &APIError{Op: "subscribers.get", Err: errors.New("subscriber id is required")}
	}
	var sub Subscriber
	if err := c.do(ctx, "subscribers.get", http.MethodGet, "/subscribers/"+url.PathEscape(id), nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubscriber adds a new audience member.
func (c *Client) CreateSubscriber(ctx context.Context, req *CreateSubscriberRequest) (*Subscriber, error) {
	if req.Email == "" {
		return nil, &APIError{Op: "subscribers.create", Err: errors.New("email is required")}
	}
	var sub Subscriber
	if err := c.do(ctx, "subscribers.create", http.MethodPost, "/subscribers", req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateSubscriber modifies an existing subscriber.
func (c *Client) UpdateSubscriber(ctx context.Context, id string, req *UpdateSubscriberRequest) (*Subscriber, error) {
	if id == "" {
		return nil, &APIError{Op: "subscribers.update", Err: errors.New("subscriber id is required")}
	}
	var sub Subscriber
	if err := c.do(ctx, "subscribers.update", http.MethodPatch, "/subscribers/"+url.PathEscape(id), req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// DeleteSubscriber removes a subscriber from the audience.
func (c *Client) DeleteSubscriber(ctx context.Context, id string) error {
	if id == "" {
		return &APIError{Op: "subscribers.delete", Err: errors.New("subscriber id is required")}
	}
	return c.do(ctx, "subscribers.delete", http.MethodDelete, "/subscribers/"+url.PathEscape(id), nil, nil)
}

// ListSegments returns all segments.
func (c *Client) ListSegments(ctx context.Context) (*SegmentList, error) {
	var list SegmentList
	if err := c.do(ctx, "segments.list", http.MethodGet, "/segments", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetSegment fetches a single segment by ID.
func (c *Client) GetSegment(ctx context.Context, id string) (*Segment, error) {
	if id == "" {
		return nil, &APIError{Op: "segments.get", Err: errors.New("segment id is required")}
	}
	var seg Segment
	if err := c.do(ctx, "segments.get", http.MethodGet, "/segments/"+url.PathEscape(id), nil, &seg); err != nil {
		return nil, err
	}
	return &seg, nil
}

// CreateSegment adds a new segment.
func (c *Client) CreateSegment(ctx context.Context, req *CreateSegmentRequest) (*Segment, error) {
	if req.Name == "" {
		return nil, &APIError{Op: "segments.create", Err: errors.New("segment name is required")}
	}
	var seg Segment
	if err := c.do(ctx, "segments.create", http.MethodPost, "/segments", req, &seg); err != nil {
		return nil, err
	}
	return &seg, nil
}

// DeleteSegment removes a segment. Its subscribers are not deleted.
func (c *Client) DeleteSegment(ctx context.Context, id string) error {
	if id == "" {
		return &APIError{Op: "segments.delete", Err: errors.New("segment id is required")}
	}
	return c.do(ctx, "segments.delete", http.MethodDelete, "/segments/"+url.PathEscape(id), nil, nil)
}

// ListSegmentMembers returns one page of a segment's subscribers.
func (c *Client) ListSegmentMembers(ctx context.Context, segmentID string, page int) (*SubscriberList, error) {
	if segmentID == "" {
		return nil, &APIError{Op: "segments.members", Err: errors.New("segment id is required")}
	}
	path := "/segments/" + url.PathEscape(segmentID) + "/subscribers"
	if page > 0 {
		path += "?page=" + strconv.Itoa(page)
	}
	var list SubscriberList
	if err := c.do(ctx, "segments.members", http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// AddToSegment places a subscriber into a segment. Adding an existing
// member is a no-op on the API side.
func (c *Client) AddToSegment(ctx context.Context, segmentID, subscriberID string) error {
	if segmentID == "" || subscriberID == "" {
		return &APIError{Op: "segments.add", Err: errors.New("segment id and subscriber id are required")}
	}
	path := "/segments/" + url.PathEscape(segmentID) + "/subscribers/" + url.PathEscape(subscriberID)
	return c.do(ctx, "segments.add", http.MethodPut, path, nil, nil)
}

// RemoveFromSegment takes a subscriber out of a segment.
func (c *Client) RemoveFromSegment(ctx context.Context, segmentID, subscriberID string) error {
	if segmentID == "" || subscriberID == "" {
		return &APIError{Op: "segments.remove", Err: errors.New("segment id and subscriber id are required")}
	}
	path := "/segments/" + url.PathEscape(segmentID) + "/subscribers/" + url.PathEscape(subscriberID)
	return c.do(ctx, "segments.remove", http.MethodDelete, path, nil, nil)
}

// do runs one API call with retries. Responses are decoded into out when
// out is non-nil. Transport errors, 429, and 5xx are retried; other
// statuses fail immediately.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &APIError{Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.retryInterval

	operation := func() ([]byte, error) {
		return c.roundTrip(ctx, op, method, path, payload)
	}

	start := time.Now()
	respBody, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(c.maxRetries)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			c.logger.Debug("Retrying audience API call",
				logging.Operation(op),
				logging.Err(err),
				"delay", delay,
			)
		}),
	)
	c.recordOperation(ctx, op, err, time.Since(start))
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &APIError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}
	return nil
}

func (c *Client) recordOperation(ctx context.Context, op string, err error, duration time.Duration) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordAudienceOperation(ctx, op, status, duration)
}

// roundTrip performs a single HTTP exchange and classifies the outcome
// for the retry loop.
func (c *Client) roundTrip(ctx context.Context, op, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, backoff.Permanent(&APIError{Op: op, Err: err})
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &APIError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	apiErr := &APIError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(respBody),
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, apiErr
	}
	return nil, backoff.Permanent(apiErr)
}

// errorMessage extracts a message from an API error body.
func errorMessage(body []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	return parsed.Error
}
