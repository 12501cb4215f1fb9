package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"reflect"
	"time"

	"github.com/rs/zerolog"
	"github.com/tansive/restclient/internal/common/requestid"
)

// RequestIDHeader carries the id the client assigns to every request.
const RequestIDHeader = "X-Request-ID"

// TransportSettings are the transport knobs that can be overridden through the
// curl_options option map. The map keys are the mapstructure tags below. Durations accept
// Go duration strings ("5s") or numbers of seconds.
type TransportSettings struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	FollowRedirects     bool          `mapstructure:"follow_redirects"`
	MaxRedirects        int           `mapstructure:"max_redirects"`
	Proxy               string        `mapstructure:"proxy"`
	InsecureSkipVerify  bool          `mapstructure:"insecure_skip_verify"`
	UserAgent           string        `mapstructure:"user_agent"`
	DisableKeepAlives   bool          `mapstructure:"disable_keep_alives"`
}

// DefaultTransportSettings returns the settings used when no override is given.
func DefaultTransportSettings() TransportSettings {
	return TransportSettings{
		Timeout:             30 * time.Second,
		ConnectTimeout:      10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		FollowRedirects:     true,
		MaxRedirects:        10,
	}
}

// ResolveTransportSettings starts from the defaults, disables certificate verification when
// self-signed certificates are allowed, and then assigns every raw override by key.
func ResolveTransportSettings(opts Options) (TransportSettings, error) {
	settings := DefaultTransportSettings()
	if opts.AllowSelfSigned {
		settings.InsecureSkipVerify = true
	}
	if len(opts.TransportOptions) == 0 {
		return settings, nil
	}
	if err := decodeSettings(opts.TransportOptions, &settings); err != nil {
		return TransportSettings{}, err
	}
	if settings.Proxy != "" {
		if _, err := url.Parse(settings.Proxy); err != nil {
			return TransportSettings{}, ErrInvalidOptions.MsgErr("invalid proxy URL", err)
		}
	}
	return settings, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsHook reads plain numbers as seconds when the target is a duration.
func secondsHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType || from == durationType {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
	}
	return data, nil
}

// Transport executes built requests.
type Transport interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport is the net/http Transport. The underlying client is rebuilt only when the
// request's transport settings differ from the previous request's.
type HTTPTransport struct {
	logger   zerolog.Logger
	client   *http.Client
	settings TransportSettings
}

// NewHTTPTransport creates a Transport backed by net/http.
func NewHTTPTransport(logger zerolog.Logger) *HTTPTransport {
	t := &HTTPTransport{}
	t.SetLogger(logger)
	return t
}

// SetLogger replaces the transport logger.
func (t *HTTPTransport) SetLogger(logger zerolog.Logger) {
	t.logger = logger.With().Str("component", "transport").Logger()
}

// Execute sends req and reads the whole response. Any failure of the HTTP call itself is
// returned as ErrTransport and is never retried.
func (t *HTTPTransport) Execute(ctx context.Context, req *Request) (*Response, error) {
	client, err := t.clientFor(req.Transport)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	start := time.Now()
	var connectTime time.Duration
	trace := &httptrace.ClientTrace{
		ConnectDone: func(_, _ string, err error) {
			if err == nil {
				connectTime = time.Since(start)
			}
		},
	}
	ctx = httptrace.WithClientTrace(ctx, trace)

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, ErrTransport.MsgErr(fmt.Sprintf("%s %s: invalid request", req.Method, req.URL), err)
	}
	httpReq.Header = req.Header.Clone()
	if req.Transport.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.Transport.UserAgent)
	}
	requestID := httpReq.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = requestid.New()
		httpReq.Header.Set(RequestIDHeader, requestID)
	}

	log := t.logger.With().Str("request_id", requestID).Logger()
	log.Debug().
		Str("method", req.Method).
		Str("url", req.URL).
		Int("body_bytes", len(req.Body)).
		Msg("sending request")

	resp, err := client.Do(httpReq)
	if err != nil {
		log.Warn().Err(err).Str("method", req.Method).Str("url", req.URL).Msg("request failed")
		return nil, ErrTransport.MsgErr(fmt.Sprintf("%s %s failed", req.Method, req.URL), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn().Err(err).Str("url", req.URL).Msg("failed to read response body")
		return nil, ErrTransport.MsgErr(fmt.Sprintf("%s %s: reading body failed", req.Method, req.URL), err)
	}

	result := &Response{
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
		Body:        respBody,
		ContentType: resp.Header.Get("Content-Type"),
		TotalTime:   time.Since(start),
		ConnectTime: connectTime,
		URL:         req.URL,
		Method:      req.Method,
		RequestID:   requestID,
	}
	if resp.TLS != nil {
		result.Certificates = certInfoFrom(resp.TLS.PeerCertificates)
	}

	log.Debug().
		Int("status", result.StatusCode).
		Dur("total_time", result.TotalTime).
		Dur("connect_time", result.ConnectTime).
		Msg("response received")
	return result, nil
}

func (t *HTTPTransport) clientFor(s TransportSettings) (*http.Client, error) {
	if t.client != nil && t.settings == s {
		return t.client, nil
	}
	client, err := newHTTPClient(s)
	if err != nil {
		return nil, err
	}
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	t.client, t.settings = client, s
	return client, nil
}

// CloseIdleConnections releases pooled connections of the current client.
func (t *HTTPTransport) CloseIdleConnections() {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
}

func newHTTPClient(s TransportSettings) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   s.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = s.TLSHandshakeTimeout
	transport.DisableKeepAlives = s.DisableKeepAlives
	if s.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via allow_self_signed
	}
	if s.Proxy != "" {
		proxyURL, err := url.Parse(s.Proxy)
		if err != nil {
			return nil, ErrInvalidOptions.MsgErr("invalid proxy URL", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   s.Timeout,
	}
	client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if !s.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if s.MaxRedirects > 0 && len(via) >= s.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", s.MaxRedirects)
		}
		return nil
	}
	return client, nil
}
