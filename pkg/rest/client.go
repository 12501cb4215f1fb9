package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Client sends requests against a base URL and keeps the last response for inspection.
// A Client is not safe for concurrent use.
type Client struct {
	opts      Options
	transport Transport
	logger    zerolog.Logger
	clock     func() time.Time
	nonce     func() (string, error)

	last     *Response
	expected Expectation
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTransport replaces the net/http transport.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithLogger sets the logger. The global zerolog logger is used by default.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithClock sets the time source used for OAuth1 timestamps.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.clock = now
	}
}

// WithNonceSource sets the generator used for OAuth1 nonces.
func WithNonceSource(nonce func() (string, error)) ClientOption {
	return func(c *Client) {
		c.nonce = nonce
	}
}

// New resolves overrides against DefaultOptions and returns a client. Invalid options, such
// as an unsupported authentication mode, fail with ErrConfiguration.
func New(overrides Overrides, opts ...ClientOption) (*Client, error) {
	c := &Client{
		opts:   Resolve(DefaultOptions(), overrides),
		logger: log.Logger,
		clock:  time.Now,
		nonce:  GenerateNonce,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.opts.Verify(); err != nil {
		return nil, err
	}
	if c.opts.Debug {
		c.logger = c.logger.Level(zerolog.DebugLevel)
	}
	if c.transport == nil {
		c.transport = NewHTTPTransport(c.logger)
	}
	return c, nil
}

// Options returns a copy of the effective options.
func (c *Client) Options() Options {
	return c.opts.apply(Overrides{}, false)
}

// SetOption replaces a single option. Map-valued options are replaced, not merged. Unknown
// keys and values that leave the options invalid are rejected and nothing is changed.
func (c *Client) SetOption(key string, value any) error {
	o, err := OverridesFromMap(map[string]any{key: value})
	if err != nil {
		return err
	}
	next := c.opts.apply(o, false)
	if err := next.Verify(); err != nil {
		return err
	}
	c.opts = next
	if key == "debug" {
		level := zerolog.InfoLevel
		if next.Debug {
			level = zerolog.DebugLevel
		}
		c.logger = c.logger.Level(level)
		if t, ok := c.transport.(loggerSetter); ok {
			t.SetLogger(c.logger)
		}
	}
	return nil
}

// loggerSetter is implemented by transports whose logger follows the debug option.
type loggerSetter interface {
	SetLogger(zerolog.Logger)
}

// Get sends a GET request. Parameters are sent in the query string.
func (c *Client) Get(ctx context.Context, uri string, params Params, headers map[string]string) (*Response, error) {
	return c.Send(ctx, uri, http.MethodGet, params, headers)
}

// Post sends a POST request with the parameters as the body.
func (c *Client) Post(ctx context.Context, uri string, params Params, headers map[string]string) (*Response, error) {
	return c.Send(ctx, uri, http.MethodPost, params, headers)
}

// Put sends a PUT request with the parameters as the body.
func (c *Client) Put(ctx context.Context, uri string, params Params, headers map[string]string) (*Response, error) {
	return c.Send(ctx, uri, http.MethodPut, params, headers)
}

// Patch sends a PATCH request with the parameters as the body.
func (c *Client) Patch(ctx context.Context, uri string, params Params, headers map[string]string) (*Response, error) {
	return c.Send(ctx, uri, http.MethodPatch, params, headers)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, uri string, params Params, headers map[string]string) (*Response, error) {
	return c.Send(ctx, uri, http.MethodDelete, params, headers)
}

// Send builds, signs and executes a request, then validates the status code.
//
// Configuration problems fail with ErrConfiguration before any I/O. A failed HTTP call fails
// with ErrTransport and clears the last response. A status code outside the expectation for
// method returns the response together with a *ResponseError.
func (c *Client) Send(ctx context.Context, uri, method string, params Params, headers map[string]string) (*Response, error) {
	expected, err := Expected(method)
	if err != nil {
		return nil, err
	}
	req, err := BuildRequest(c.opts, uri, method, params, headers)
	if err != nil {
		return nil, err
	}
	signer, err := NewSigner(c.opts.Authentication, c.clock, c.nonce)
	if err != nil {
		return nil, err
	}
	if err := signer.Sign(req, c.opts); err != nil {
		return nil, err
	}

	c.expected = expected
	resp, err := c.transport.Execute(ctx, req)
	if err != nil {
		c.last = nil
		return nil, err
	}
	c.last = resp
	if c.opts.Debug {
		c.logger.Info().
			Str("request_id", resp.RequestID).
			Msgf("request took %dms in total", resp.TotalTime.Milliseconds())
	}

	if _, err := Validate(resp, req.Method, c.opts); err != nil {
		return resp, err
	}
	return resp, nil
}

// LastResponse returns the response of the last successful round trip, or nil.
func (c *Client) LastResponse() *Response {
	return c.last
}

// StatusCode returns the status code of the last response, or 0.
func (c *Client) StatusCode() int {
	if c.last == nil {
		return 0
	}
	return c.last.StatusCode
}

// TotalTime returns the duration of the last request.
func (c *Client) TotalTime() time.Duration {
	if c.last == nil {
		return 0
	}
	return c.last.TotalTime
}

// ConnectTime returns the time it took to establish the connection of the last request.
// It is zero when a pooled connection was reused.
func (c *Client) ConnectTime() time.Duration {
	if c.last == nil {
		return 0
	}
	return c.last.ConnectTime
}

// CertInfo returns the certificate chain of the last response.
func (c *Client) CertInfo() []CertInfo {
	if c.last == nil {
		return nil
	}
	return c.last.Certificates
}

// ContentType returns the Content-Type of the last response.
func (c *Client) ContentType() string {
	if c.last == nil {
		return ""
	}
	return c.last.ContentType
}

// RawResponse returns the body of the last response.
func (c *Client) RawResponse() string {
	if c.last == nil {
		return ""
	}
	return c.last.Raw()
}

// Response decodes the last response. With asObject the result is a gjson.Result, without it
// native maps and slices. The default follows the response_as_array option.
func (c *Client) Response(asObject ...bool) any {
	if c.last == nil {
		return nil
	}
	asArray := c.opts.ResponseAsArray
	if len(asObject) > 0 {
		asArray = !asObject[0]
	}
	return c.last.Decode(asArray)
}

// JSON decodes the last response into native values unless asArray is false.
func (c *Client) JSON(asArray ...bool) any {
	if len(asArray) > 0 {
		return c.Response(!asArray[0])
	}
	return c.Response(false)
}

// Data returns the "data" member of the last response, see Response.Data.
func (c *Client) Data() any {
	if c.last == nil {
		return nil
	}
	return c.last.Data()
}

// Expected returns the expectation recorded for the last request.
func (c *Client) Expected() Expectation {
	return c.expected
}

// Succeeded reports whether the last status code equals code or, without code, whether it is
// in the recorded expectation. With no recorded expectation it checks for 200.
func (c *Client) Succeeded(code ...int) bool {
	status := c.StatusCode()
	if len(code) > 0 {
		return status == code[0]
	}
	if !c.expected.IsZero() {
		return c.expected.Contains(status)
	}
	return status == http.StatusOK
}
