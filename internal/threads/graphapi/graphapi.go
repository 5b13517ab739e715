package graphapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blacktop/threadpost/internal/logutil"
	"github.com/blacktop/threadpost/internal/threads"
)

const (
	// DefaultBaseURL is the versioned Threads Graph API root.
	DefaultBaseURL = "https://graph.threads.net/v1.0"

	defaultTimeout   = 30 * time.Second
	maxErrorBodySize = 64 << 10
)

var quotaFields = []string{
	"quota_usage",
	"config",
	"reply_quota_usage",
	"reply_config",
	"delete_quota_usage",
	"delete_config",
	"location_search_quota_usage",
	"location_search_config",
}

// Config describes how to reach the API.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	UserAgent  string
}

// Client talks to the Threads Graph API over HTTP. It implements
// threads.ContainerService and threads.QuotaReader.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
}

var (
	_ threads.ContainerService = (*Client)(nil)
	_ threads.QuotaReader      = (*Client)(nil)
)

// New constructs a Client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "threadpost/1"
	}
	return &Client{http: httpClient, baseURL: base, userAgent: ua}
}

// CreateContainer creates a media container and returns its id.
func (c *Client) CreateContainer(ctx context.Context, creds threads.Credentials, params threads.Params) (string, error) {
	const op = "create container"
	form := params.Values()
	form.Set("access_token", creds.AccessToken)

	logutil.Debugf("creating container: user_id=%s params=%s", creds.UserID, params)
	var out idResponse
	if err := c.do(ctx, op, http.MethodPost, c.endpoint(creds.UserID, "threads"), form, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// ContainerStatus reads the status and error message of a container.
func (c *Client) ContainerStatus(ctx context.Context, creds threads.Credentials, containerID string) (threads.Container, error) {
	const op = "container status"
	q := url.Values{}
	q.Set("fields", "id,status,error_message")
	q.Set("access_token", creds.AccessToken)

	var out threads.Container
	if err := c.do(ctx, op, http.MethodGet, c.endpoint(containerID), q, &out); err != nil {
		return threads.Container{}, err
	}
	return out, nil
}

// Publish publishes a FINISHED container and returns the media id.
func (c *Client) Publish(ctx context.Context, creds threads.Credentials, containerID string) (string, error) {
	const op = "publish"
	form := url.Values{}
	form.Set("creation_id", containerID)
	form.Set("access_token", creds.AccessToken)

	var out idResponse
	if err := c.do(ctx, op, http.MethodPost, c.endpoint(creds.UserID, "threads_publish"), form, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// PublishedItem reads the id and permalink of a published post.
func (c *Client) PublishedItem(ctx context.Context, creds threads.Credentials, mediaID string) (threads.PublishedItem, error) {
	const op = "published item"
	q := url.Values{}
	q.Set("fields", "id,permalink")
	q.Set("access_token", creds.AccessToken)

	var out threads.PublishedItem
	if err := c.do(ctx, op, http.MethodGet, c.endpoint(mediaID), q, &out); err != nil {
		return threads.PublishedItem{}, err
	}
	return out, nil
}

// PublishingLimit reads the account's quota usage.
func (c *Client) PublishingLimit(ctx context.Context, creds threads.Credentials) (threads.QuotaSnapshot, error) {
	const op = "publishing limit"
	q := url.Values{}
	q.Set("fields", strings.Join(quotaFields, ","))
	q.Set("access_token", creds.AccessToken)

	var out publishingLimitResponse
	if err := c.do(ctx, op, http.MethodGet, c.endpoint(creds.UserID, "threads_publishing_limit"), q, &out); err != nil {
		return threads.QuotaSnapshot{}, err
	}
	if len(out.Data) == 0 {
		return threads.QuotaSnapshot{}, threads.TransportError{Op: op, Message: "response contained no quota data"}
	}
	return out.Data[0].snapshot(), nil
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, 0, len(parts)+1)
	escaped = append(escaped, c.baseURL)
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return strings.Join(escaped, "/")
}

// do sends a form-encoded POST or a GET with query parameters and decodes a
// JSON response into out. Every failure is a threads.TransportError.
func (c *Client) do(ctx context.Context, op, method, endpoint string, values url.Values, out any) error {
	var body io.Reader
	target := endpoint
	if method == http.MethodGet {
		target = endpoint + "?" + values.Encode()
	} else {
		body = strings.NewReader(values.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return threads.TransportError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return threads.TransportError{Op: op, Err: unwrapURLError(err)}
	}
	defer resp.Body.Close()

	logutil.Debugf("%s: method=%s status=%d", op, method, resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return apiError(op, resp, data)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return threads.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func apiError(op string, resp *http.Response, data []byte) error {
	te := threads.TransportError{Op: op, StatusCode: resp.StatusCode}

	var envelope errorEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != nil {
		te.Code = envelope.Error.Code
		te.Message = summarizeAPIError(envelope.Error)
		return te
	}

	if msg := strings.TrimSpace(string(data)); msg != "" {
		te.Message = msg
	} else {
		te.Message = http.StatusText(resp.StatusCode)
	}
	return te
}

func summarizeAPIError(e *apiErrorBody) string {
	parts := make([]string, 0, 3)
	if e.Type != "" {
		parts = append(parts, e.Type)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.UserMessage != "" && e.UserMessage != e.Message {
		parts = append(parts, e.UserMessage)
	}
	if len(parts) == 0 {
		parts = append(parts, "Threads API request failed")
	}
	return strings.Join(parts, "; ")
}

// unwrapURLError drops the *url.Error wrapper, which repeats the request URL
// and with it the access token.
func unwrapURLError(err error) error {
	var uErr *url.Error
	if errors.As(err, &uErr) && uErr.Err != nil {
		return uErr.Err
	}
	return err
}

type idResponse struct {
	ID string `json:"id"`
}

type errorEnvelope struct {
	Error *apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Message     string `json:"message"`
	Type        string `json:"type"`
	Code        int    `json:"code"`
	Subcode     int    `json:"error_subcode"`
	UserMessage string `json:"error_user_msg"`
	TraceID     string `json:"fbtrace_id"`
}

type quotaConfig struct {
	Total    int `json:"quota_total"`
	Duration int `json:"quota_duration"`
}

type publishingLimit struct {
	QuotaUsage                int          `json:"quota_usage"`
	Config                    *quotaConfig `json:"config"`
	ReplyQuotaUsage           int          `json:"reply_quota_usage"`
	ReplyConfig               *quotaConfig `json:"reply_config"`
	DeleteQuotaUsage          int          `json:"delete_quota_usage"`
	DeleteConfig              *quotaConfig `json:"delete_config"`
	LocationSearchQuotaUsage  int          `json:"location_search_quota_usage"`
	LocationSearchQuotaConfig *quotaConfig `json:"location_search_config"`
}

type publishingLimitResponse struct {
	Data []publishingLimit `json:"data"`
}

func usage(n int, cfg *quotaConfig) threads.QuotaUsage {
	u := threads.QuotaUsage{Usage: n}
	if cfg != nil {
		u.Total = cfg.Total
		u.Window = time.Duration(cfg.Duration) * time.Second
	}
	return u
}

func (l publishingLimit) snapshot() threads.QuotaSnapshot {
	return threads.QuotaSnapshot{
		Post:           usage(l.QuotaUsage, l.Config),
		Reply:          usage(l.ReplyQuotaUsage, l.ReplyConfig),
		Delete:         usage(l.DeleteQuotaUsage, l.DeleteConfig),
		LocationSearch: usage(l.LocationSearchQuotaUsage, l.LocationSearchQuotaConfig),
	}
}
