// Package api is the client for the panel's REST endpoints. Every endpoint
// is a POST that answers with a {code,msg,ts,data} envelope; data is handed
// to internal/model for construction.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/missuo/flux-panel/internal/diag"
)

const defaultTimeout = 10 * time.Second

// ErrUnauthorized is returned when the session token is missing, expired or
// rejected.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a business failure reported in the envelope (code != 0).
type APIError struct {
	Path string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: code %d: %s", e.Path, e.Code, e.Msg)
}

type Client struct {
	resty    *resty.Client
	token    string
	reporter diag.Reporter
}

type Option func(*Client)

// WithToken sets the session token sent as a bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.resty.SetTimeout(d)
		}
	}
}

// WithReporter routes data-quality warnings from decoded responses to r.
func WithReporter(r diag.Reporter) Option {
	return func(c *Client) { c.reporter = r }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		resty: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(defaultTimeout).
			SetHeader("Content-Type", "application/json"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.reporter = diag.OrDiscard(c.reporter)
	return c
}

// WithToken returns a copy of c that authenticates with token. The
// underlying HTTP client is shared.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = strings.TrimSpace(token)
	return &cp
}

func (c *Client) Token() string { return c.token }

func (c *Client) BaseURL() string { return c.resty.BaseURL }

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Ts   int64           `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// post sends body to path and returns the envelope's data on success.
func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	if body == nil {
		body = map[string]any{}
	}
	req := c.resty.R().
		SetContext(ctx).
		SetBody(body)
	if c.token != "" {
		req.SetAuthToken(c.token)
	}
	resp, err := req.Post(path)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.IsError() {
		return nil, fmt.Errorf("post %s: %s", path, resp.Status())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if env.Code == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if env.Code != 0 {
		return nil, &APIError{Path: path, Code: env.Code, Msg: env.Msg}
	}
	return env.Data, nil
}

// decodeFields decodes raw into untyped values, keeping numbers exact.
func decodeFields(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeObject(path string, raw json.RawMessage) (map[string]any, error) {
	v, err := decodeFields(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode %s: data is not an object", path)
	}
	return m, nil
}

// decodeList accepts a bare array or null; null is an empty list.
func decodeList(path string, raw json.RawMessage) ([]any, error) {
	v, err := decodeFields(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if v == nil {
		return nil, nil
	}
	l, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("decode %s: data is not an array", path)
	}
	return l, nil
}
