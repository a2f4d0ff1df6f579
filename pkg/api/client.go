// Package api is the typed client for the CRPM backend.
// All backend requests made by crpm go through this client.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// UserAgent is sent with every request.
var UserAgent = "crpm/dev"

// Client is the central connection to the CRPM backend.
type Client struct {
	rest     *resty.Client
	auth     *Auth
	baseURL  string
	validate *validator.Validate
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	auth       *Auth
	timeout    time.Duration
	logger     *zap.Logger
}

// WithAuth attaches a bearer token and tenant header to every request.
func WithAuth(auth *Auth) Option {
	return func(o *clientOptions) {
		o.auth = auth
	}
}

// WithHTTPClient uses hc as the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}

// WithTimeout bounds every request. Zero (the default) means no client-side timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithLogger routes resty's internal warnings and debug output to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var rc *resty.Client
	if o.httpClient != nil {
		rc = resty.NewWithClient(o.httpClient)
	} else {
		rc = resty.New()
	}

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	rc.SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", UserAgent)
	if o.timeout > 0 {
		rc.SetTimeout(o.timeout)
	}
	if o.logger != nil {
		rc.SetLogger(o.logger.Sugar())
	}
	if o.auth != nil {
		if o.auth.Token != "" {
			rc.SetAuthToken(o.auth.Token)
		}
		if o.auth.Tenant != "" {
			rc.SetHeader(TenantHeader, o.auth.Tenant)
		}
	}

	return &Client{
		rest:     rc,
		auth:     o.auth,
		baseURL:  baseURL,
		validate: validator.New(),
	}
}

// BaseURL returns the backend address this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Authenticated reports whether requests carry a bearer token.
func (c *Client) Authenticated() bool {
	return c.auth.IsAuthenticated()
}

// Health checks that the backend answers /healthz.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, HealthPath, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, out any) error {
	req := c.rest.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return decode(resp, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	req := c.rest.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(path)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	return decode(resp, out)
}

// checkRequest runs the struct validation tags of a request body.
func (c *Client) checkRequest(name string, req any) error {
	if err := c.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid %s request: %w", name, err)
	}
	return nil
}

// decode turns a non-2xx response into a *StatusError and otherwise unmarshals the body into out.
func decode(resp *resty.Response, out any) error {
	if !resp.IsSuccess() {
		return newStatusError(resp)
	}
	body := resp.Body()
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", resp.Request.Method, resp.Request.URL, err)
	}
	return nil
}
