package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// TokenSource yields the bearer token to attach to a request. It is consulted
// before every request; an empty token means no Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// Client sends JSON-RPC 2.0 requests to a single base URL.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	headers http.Header
	log     zerolog.Logger

	lastID atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Timeouts are owned by this client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithToken attaches a fixed bearer token to every request.
func WithToken(token string) Option {
	return WithTokenSource(StaticToken(token))
}

// WithHeader adds an extra header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Add(key, value) }
}

// WithHeaders adds every header in h to every request.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		for k, vs := range h {
			for _, v := range vs {
				c.headers.Add(k, v)
			}
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for baseURL. Each client numbers its requests
// independently, starting at 1.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		headers: make(http.Header),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CallOption adjusts a single call.
type CallOption func(*callConfig)

type callConfig struct {
	token   *string
	headers http.Header
}

// CallToken overrides the token source for one call. An empty token sends no
// Authorization header.
func CallToken(token string) CallOption {
	return func(cc *callConfig) { cc.token = &token }
}

// CallHeader adds a header to one call.
func CallHeader(key, value string) CallOption {
	return func(cc *callConfig) { cc.headers.Add(key, value) }
}

// nextID returns the next request id. Ids are never reused.
func (c *Client) nextID() int64 {
	return c.lastID.Add(1)
}

// Call sends method with params to endpoint and decodes the result into out.
// out may be nil to discard the result, or a *json.RawMessage to receive the
// result bytes untouched.
func (c *Client) Call(ctx context.Context, endpoint, method string, params, out any, opts ...CallOption) error {
	if strings.TrimSpace(method) == "" {
		return fmt.Errorf("%w: method is required", ErrInvalidRequest)
	}

	cc := callConfig{headers: make(http.Header)}
	for _, opt := range opts {
		opt(&cc)
	}

	id := c.nextID()
	body, err := json.Marshal(newRequest(id, method, params))
	if err != nil {
		return fmt.Errorf("%w: marshal params for %s: %v", ErrInvalidRequest, method, err)
	}

	logger := c.log.With().Str("method", method).Int64("id", id).Str("endpoint", endpoint).Logger()
	logger.Debug().Msg("rpc call")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrInvalidRequest, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if err := c.decorate(ctx, httpReq, &cc); err != nil {
		return err
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		logger.Error().Err(err).Msg("rpc transport failure")
		return &TransportError{Method: method, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		logger.Error().Err(err).Msg("rpc read failure")
		return &TransportError{Method: method, StatusCode: httpResp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	var resp Response
	decodeErr := json.Unmarshal(respBody, &resp)

	// An embedded RPC error is preferred over the HTTP status.
	if decodeErr == nil && resp.Error != nil {
		logger.Error().Int("code", resp.Error.Code).Str("message", resp.Error.Message).Msg("rpc error")
		return resp.Error
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		text := truncateBody(respBody)
		logger.Error().Int("status", httpResp.StatusCode).Msg("rpc http failure")
		return &TransportError{
			Method:     method,
			StatusCode: httpResp.StatusCode,
			Body:       text,
			Err:        fmt.Errorf("server returned %s", httpResp.Status),
		}
	}

	if decodeErr != nil {
		logger.Error().Err(decodeErr).Msg("rpc malformed response")
		return &TransportError{
			Method:     method,
			StatusCode: httpResp.StatusCode,
			Body:       truncateBody(respBody),
			Err:        fmt.Errorf("malformed response: %w", decodeErr),
		}
	}

	if !idMatches(resp.ID, id) {
		logger.Warn().RawJSON("response_id", resp.ID).Msg("rpc response id does not match request")
	}

	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], resp.Result...)
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return &TransportError{
			Method:     method,
			StatusCode: httpResp.StatusCode,
			Body:       truncateBody(resp.Result),
			Err:        fmt.Errorf("decode result: %w", err),
		}
	}
	return nil
}

// Get fetches a plain JSON document from path, outside the RPC envelope.
// Authentication and extra headers are applied exactly as for Call.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...CallOption) error {
	label := "GET " + path

	cc := callConfig{headers: make(http.Header)}
	for _, opt := range opts {
		opt(&cc)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrInvalidRequest, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if err := c.decorate(ctx, httpReq, &cc); err != nil {
		return err
	}

	c.log.Debug().Str("path", path).Msg("http get")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Error().Err(err).Str("path", path).Msg("http get failure")
		return &TransportError{Method: label, Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &TransportError{Method: label, StatusCode: httpResp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.log.Error().Int("status", httpResp.StatusCode).Str("path", path).Msg("http get failure")
		return &TransportError{
			Method:     label,
			StatusCode: httpResp.StatusCode,
			Body:       truncateBody(body),
			Err:        fmt.Errorf("server returned %s", httpResp.Status),
		}
	}

	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		if !json.Valid(body) {
			return &TransportError{Method: label, StatusCode: httpResp.StatusCode, Body: truncateBody(body), Err: fmt.Errorf("malformed document")}
		}
		*raw = append((*raw)[:0], body...)
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Method: label, StatusCode: httpResp.StatusCode, Body: truncateBody(body), Err: fmt.Errorf("malformed document: %w", err)}
	}
	return nil
}

// decorate applies extra headers and the bearer token to req.
func (c *Client) decorate(ctx context.Context, req *http.Request, cc *callConfig) error {
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range cc.headers {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	token := ""
	switch {
	case cc.token != nil:
		token = *cc.token
	case c.tokens != nil:
		t, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("read auth token: %w", err)
		}
		token = t
	}
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// idMatches reports whether an echoed response id refers to id. Absent or
// null ids are accepted; some servers omit them on success.
func idMatches(echoed json.RawMessage, id int64) bool {
	if len(echoed) == 0 || string(echoed) == "null" {
		return true
	}
	var n json.Number
	if err := json.Unmarshal(echoed, &n); err == nil {
		return n.String() == strconv.FormatInt(id, 10)
	}
	var s string
	if err := json.Unmarshal(echoed, &s); err == nil {
		return s == strconv.FormatInt(id, 10)
	}
	return false
}
