package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"savings-client/internal/pkg/logger"
)

// TokenSource supplies the bearer token for protected routes.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client performs JSON requests against the savings API. Every response uses
// the envelope {success, code, message, data}.
type Client struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
	logger  logger.ILogger
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type requestOptions struct {
	isPublicRoute bool
	query         url.Values
}

type RequestOption func(*requestOptions)

// PublicRoute suppresses the Authorization header.
func PublicRoute() RequestOption {
	return func(o *requestOptions) {
		o.isPublicRoute = true
	}
}

func WithQuery(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.query == nil {
			o.query = url.Values{}
		}
		o.query.Set(key, value)
	}
}

func New(baseURL string, tokens TokenSource, timeout time.Duration, log logger.ILogger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

func (c *Client) Get(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.do(ctx, http.MethodGet, path, nil, out, opts)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPost, path, body, out, opts)
}

func (c *Client) Patch(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPatch, path, body, out, opts)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, opts []RequestOption) error {
	o := requestOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(o.query) > 0 {
		target += "?" + o.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("error creating request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !o.isPublicRoute && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("error reading access token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("APIClient", "Request failed", map[string]interface{}{"method": method, "path": path, "error": err.Error()})
		return &APIError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Kind: KindNetwork, StatusCode: resp.StatusCode, Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Kind: kindForStatus(resp.StatusCode), StatusCode: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Message = env.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		c.logger.Debug("APIClient", "Request rejected", map[string]interface{}{"method": method, "path": path, "status": resp.StatusCode})
		return apiErr
	}

	if decodeErr != nil {
		return &APIError{Kind: KindUnknown, StatusCode: resp.StatusCode, Message: "malformed response body", Err: decodeErr}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &APIError{Kind: KindUnknown, StatusCode: resp.StatusCode, Message: "malformed response data", Err: err}
	}
	return nil
}
