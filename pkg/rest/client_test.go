package rest

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/restclient/internal/common/logtrace"
	"github.com/tansive/restclient/internal/mockapi"
	"github.com/tidwall/gjson"
)

func newMockAPI(t *testing.T) *httptest.Server {
	t.Helper()
	s := mockapi.NewServer(0)
	s.MountHandlers()
	ts := httptest.NewServer(s.Router)
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, url string, o Overrides, opts ...ClientOption) *Client {
	t.Helper()
	o.URL = Ptr(url)
	c, err := New(o, append([]ClientOption{WithLogger(zerolog.Nop())}, opts...)...)
	require.NoError(t, err)
	return c
}

// recordingTransport answers every request with a fixed status and keeps the last request.
type recordingTransport struct {
	status int
	calls  int
	last   *Request
}

func (rt *recordingTransport) Execute(_ context.Context, req *Request) (*Response, error) {
	rt.calls++
	rt.last = req
	return &Response{StatusCode: rt.status, Method: req.Method, URL: req.URL}, nil
}

func TestGetList(t *testing.T) {
	ts := newMockAPI(t)
	c := newTestClient(t, ts.URL, Overrides{})

	resp, err := c.Get(context.Background(), "/posts", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.True(t, c.Succeeded())
	assert.Equal(t, http.StatusOK, c.StatusCode())
	assert.Equal(t, "application/json", c.ContentType())
	assert.Equal(t, []int{200}, c.Expected().Codes())
	assert.Positive(t, c.TotalTime())
	assert.NotEmpty(t, c.RawResponse())
	assert.Nil(t, c.CertInfo())

	list, ok := c.JSON().([]any)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(list), 1)
	for _, item := range list {
		assert.IsType(t, map[string]any{}, item)
	}

	objects, ok := c.JSON(false).(gjson.Result)
	require.True(t, ok)
	assert.True(t, objects.IsArray())
	for _, item := range objects.Array() {
		assert.True(t, item.IsObject())
	}

	assert.IsType(t, gjson.Result{}, c.Response(), "objects by default")
	assert.IsType(t, []any{}, c.Response(false))
}

func TestResponseAsArrayOption(t *testing.T) {
	ts := newMockAPI(t)
	c := newTestClient(t, ts.URL, Overrides{ResponseAsArray: Ptr(true)})
	_, err := c.Get(context.Background(), "/posts/1", nil, nil)
	require.NoError(t, err)
	assert.IsType(t, map[string]any{}, c.Response())
	assert.IsType(t, gjson.Result{}, c.Response(true))
}

func TestPostCreates(t *testing.T) {
	ts := newMockAPI(t)
	c := newTestClient(t, ts.URL, Overrides{})

	resp, err := c.Post(context.Background(), "/posts", Params{
		"title": "lorem",
		"body":  "lorem ipsum dolor set",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, c.Succeeded())
	assert.True(t, c.Succeeded(201))

	created := c.JSON().(map[string]any)
	assert.Equal(t, "lorem", created["title"])
	assert.Equal(t, "lorem ipsum dolor set", created["body"])
}

func TestPostJSONBody(t *testing.T) {
	ts := newMockAPI(t)
	c := newTestClient(t, ts.URL, Overrides{Headers: map[string]string{"Content-Type": "application/json"}})

	_, err := c.Post(context.Background(), "/echo", Params{"user": map[string]any{"name": "x", "admin": true}}, nil)
	require.NoError(t, err)

	echoed := gjson.Parse(c.RawResponse())
	assert.Equal(t, `{"user":{"admin":true,"name":"x"}}`, echoed.Get("raw").String())
	assert.True(t, echoed.Get("body.user.admin").Bool())
}

func TestPutAndDelete(t *testing.T) {
	ts := newMockAPI(t)
	c := newTestClient(t, ts.URL, Overrides{})
	ctx := context.Background()

	_, err := c.Put(ctx, "/posts/1", Params{"title": "lorem", "body": "lorem ipsum dolor set"}, nil)
	require.NoError(t, err)
	assert.True(t, c.Succeeded())

	_, err = c.Delete(ctx, "/posts/1", nil, nil)
	require.NoError(t, err)
	assert.True(t, c.Succeeded())

	_, err = c.Delete(ctx, "/status/204", nil, nil)
	require.NoError(t, err)
	assert.True(t, c.Succeeded())
	assert.Nil(t, c.JSON())
}

func TestPatch(t *testing.T) {
	ts := newMockAPI(t)
	c := newTestClient(t, ts.URL, Overrides{})
	ctx := context.Background()

	_, err := c.Patch(ctx, "/posts/1", Params{"title": "lorem ipsum"}, map[string]string{mockapi.StatusHeader: "202"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, c.StatusCode())
	assert.True(t, c.Succeeded())

	resp, err := c.Patch(ctx, "/posts/999", Params{"title": "lorem ipsum"}, nil)
	require.Error(t, err)
	require.NotNil(t, resp, "the response is returned with the validation error")
	assert.ErrorIs(t, err, ErrResponseValidation)

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, http.StatusNotFound, respErr.StatusCode)
	assert.Equal(t, []int{200, 202}, respErr.Expected.Codes())
	assert.Equal(t, http.MethodPatch, respErr.Method)
	assert.Equal(t, ts.URL+"/posts/999", respErr.URL)
	assert.Equal(t, "application/json", respErr.ContentType)
	assert.False(t, c.Succeeded())
	assert.Equal(t, http.StatusNotFound, c.StatusCode())
}

func TestMissingResource(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(ts.Close)
	c := newTestClient(t, ts.URL, Overrides{})
	ctx := context.Background()

	_, err := c.Get(ctx, "/missing", nil, nil)
	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, http.StatusNotFound, respErr.StatusCode)

	require.NoError(t, c.SetOption("validate", false))
	resp, err := c.Get(ctx, "/missing", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, c.StatusCode())
	assert.Contains(t, c.RawResponse(), "404 page not found")
	assert.Equal(t, c.RawResponse(), c.JSON(), "non-json body is returned as is")
	assert.False(t, c.Succeeded())
}

func TestOAuth1Header(t *testing.T) {
	rt := &recordingTransport{status: http.StatusOK}
	c := newTestClient(t, "https://api.example.com/v1", Overrides{
		Authentication: Ptr(AuthOAuth1),
		Token:          Ptr("T"),
		Secret:         Ptr("S"),
	},
		WithTransport(rt),
		WithClock(func() time.Time { return time.Unix(fixedTimestamp, 0) }),
		WithNonceSource(func() (string, error) { return fixedNonce, nil }),
	)

	_, err := c.Get(context.Background(), "/posts", Params{"page": 2}, nil)
	require.NoError(t, err)
	require.NotNil(t, rt.last)

	assert.Equal(t, "https://api.example.com/v1/posts?page=2", rt.last.URL)
	assert.Equal(t, `OAuth oauth_nonce="abcdefghijklmnopqrstuvwxyz012345",oauth_signature_method="HMAC-SHA256",`+
		`oauth_timestamp="1700000000",oauth_token="T",oauth_version="1.0",`+
		`oauth_signature="YwOqRl%2BaNGrJG0AExRv4nj%2FCdnEtfYr91c4Vio%2F6Wwo%3D"`,
		rt.last.Header.Get("Authorization"))
	assert.NotContains(t, c.Options().Headers, "Authorization")
}

func TestOAuth1OverTheWire(t *testing.T) {
	ts := newMockAPI(t)
	c := newTestClient(t, ts.URL, Overrides{
		Authentication: Ptr(AuthOAuth1),
		Token:          Ptr("T"),
		Secret:         Ptr("S"),
	})
	_, err := c.Get(context.Background(), "/echo", nil, nil)
	require.NoError(t, err)

	auth := gjson.Get(c.RawResponse(), "headers.Authorization").String()
	assert.Regexp(t, `^OAuth oauth_nonce="[0-9a-zA-Z]{32}",oauth_signature_method="HMAC-SHA256",`+
		`oauth_timestamp="\d+",oauth_token="T",oauth_version="1\.0",oauth_signature="[^"]+"$`, auth)
}

func TestBasicAuthOverTheWire(t *testing.T) {
	ts := newMockAPI(t)
	c := newTestClient(t, ts.URL, Overrides{
		Authentication: Ptr(AuthBasic),
		Username:       Ptr("foo"),
		Password:       Ptr("bar"),
	})
	_, err := c.Get(context.Background(), "/echo", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Basic Zm9vOmJhcg==", gjson.Get(c.RawResponse(), "headers.Authorization").String())
	assert.Equal(t, UserAgent(), gjson.Get(c.RawResponse(), "headers.User-Agent").String())
}

func TestServerVerifiesCredentials(t *testing.T) {
	ts := newMockAPI(t)
	tests := []struct {
		name   string
		uri    string
		params Params
		o      Overrides
		status int
	}{
		{
			name:   "basic",
			uri:    "/auth/basic",
			o:      Overrides{Authentication: Ptr(AuthBasic), Username: Ptr(mockapi.DefaultUsername), Password: Ptr(mockapi.DefaultPassword)},
			status: http.StatusOK,
		},
		{
			name:   "basic with wrong password",
			uri:    "/auth/basic",
			o:      Overrides{Authentication: Ptr(AuthBasic), Username: Ptr(mockapi.DefaultUsername), Password: Ptr("nope")},
			status: http.StatusUnauthorized,
		},
		{
			name:   "signature",
			uri:    "/auth/signature",
			params: Params{"ids": []int{1, 2}, "q": "a b"},
			o:      Overrides{Authentication: Ptr(AuthSignature), Secret: Ptr(mockapi.DefaultSecret)},
			status: http.StatusOK,
		},
		{
			name:   "signature with wrong secret",
			uri:    "/auth/signature",
			params: Params{"q": "a b"},
			o:      Overrides{Authentication: Ptr(AuthSignature), Secret: Ptr("other")},
			status: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, ts.URL, tt.o)
			resp, err := c.Get(context.Background(), tt.uri, tt.params, nil)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == http.StatusOK {
				require.NoError(t, err)
				assert.True(t, gjson.GetBytes(resp.Body, "authenticated").Bool())
			} else {
				assert.ErrorIs(t, err, ErrResponseValidation)
			}
		})
	}
}

func TestRepeatedQueryKeys(t *testing.T) {
	ts := newMockAPI(t)
	c := newTestClient(t, ts.URL, Overrides{})
	resp, err := c.Get(context.Background(), "/echo", Params{"tag": []string{"a", "b"}}, nil)
	require.NoError(t, err)

	assert.NotContains(t, resp.URL, "%5B")
	assert.Equal(t, `["a","b"]`, gjson.Get(c.RawResponse(), "query.tag").Raw)
}

func TestRequestID(t *testing.T) {
	ts := newMockAPI(t)
	c := newTestClient(t, ts.URL, Overrides{})
	resp, err := c.Get(context.Background(), "/posts/1", nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, resp.Header.Get(RequestIDHeader))
}

func TestDataAndMediaType(t *testing.T) {
	ts := newMockAPI(t)
	c := newTestClient(t, ts.URL, Overrides{})
	ctx := context.Background()

	_, err := c.Get(ctx, "/envelope/posts", nil, nil)
	require.NoError(t, err)
	data, ok := c.Data().([]any)
	require.True(t, ok)
	assert.Len(t, data, 5)

	resp, err := c.Get(ctx, "/blob", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, resp.ContentType)
	assert.Equal(t, "image/png", resp.MediaType())

	_, err = c.Get(ctx, "/text", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "this is not json", c.JSON())
}

func TestUnsupportedMethod(t *testing.T) {
	rt := &recordingTransport{status: http.StatusOK}
	c := newTestClient(t, "http://h", Overrides{}, WithTransport(rt))

	_, err := c.Send(context.Background(), "/posts", "HEAD", nil, nil)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Zero(t, rt.calls)
}

func TestMissingCredentialsFailBeforeIO(t *testing.T) {
	rt := &recordingTransport{status: http.StatusOK}
	c := newTestClient(t, "http://h", Overrides{Authentication: Ptr(AuthOAuth1), Secret: Ptr("S")}, WithTransport(rt))

	_, err := c.Get(context.Background(), "/posts", nil, nil)
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Zero(t, rt.calls)
}

func TestNewInvalidOptions(t *testing.T) {
	_, err := New(Overrides{Authentication: Ptr(AuthMode("digest"))})
	assert.ErrorIs(t, err, ErrUnsupportedAuth)

	_, err = New(Overrides{Algorithm: Ptr("crc32")})
	assert.ErrorIs(t, err, ErrUnsupportedAlgo)
}

func TestSetOption(t *testing.T) {
	c := newTestClient(t, "http://h", Overrides{Headers: map[string]string{"Accept": "text/plain"}})

	require.NoError(t, c.SetOption("headers", map[string]string{"X-Only": "1"}))
	assert.Equal(t, map[string]string{"X-Only": "1"}, c.Options().Headers, "map options are replaced")

	require.NoError(t, c.SetOption("url", "http://other"))
	assert.Equal(t, "http://other", c.Options().URL)

	assert.ErrorIs(t, c.SetOption("bogus", 1), ErrUnknownOption)
	assert.ErrorIs(t, c.SetOption("authentication", "digest"), ErrUnsupportedAuth)
	assert.Equal(t, AuthNone, c.Options().Authentication, "failed updates change nothing")
}

func TestOptionsReturnsCopy(t *testing.T) {
	c := newTestClient(t, "http://h", Overrides{})
	opts := c.Options()
	opts.Headers["X-Mutated"] = "1"
	assert.NotContains(t, c.Options().Headers, "X-Mutated")
}

func TestTransportError(t *testing.T) {
	ts := newMockAPI(t)
	c := newTestClient(t, ts.URL, Overrides{})
	_, err := c.Get(context.Background(), "/posts/1", nil, nil)
	require.NoError(t, err)

	ts.Close()
	resp, err := c.Get(context.Background(), "/posts/1", nil, nil)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrConfiguration)
	assert.Nil(t, c.LastResponse())
	assert.Zero(t, c.StatusCode())
}

func TestTransportTimeout(t *testing.T) {
	ts := newMockAPI(t)
	c := newTestClient(t, ts.URL, Overrides{TransportOptions: map[string]any{"timeout": "50ms"}})

	_, err := c.Get(context.Background(), "/delay/2000", nil, nil)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestContextCancel(t *testing.T) {
	ts := newMockAPI(t)
	c := newTestClient(t, ts.URL, Overrides{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, "/delay/2000", nil, nil)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSelfSignedTLS(t *testing.T) {
	s := mockapi.NewServer(0)
	s.MountHandlers()
	ts := httptest.NewTLSServer(s.Router)
	defer ts.Close()

	strict := newTestClient(t, ts.URL, Overrides{})
	_, err := strict.Get(context.Background(), "/posts/1", nil, nil)
	assert.ErrorIs(t, err, ErrTransport)

	lenient := newTestClient(t, ts.URL, Overrides{AllowSelfSigned: Ptr(true)})
	_, err = lenient.Get(context.Background(), "/posts/1", nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, lenient.CertInfo())
	assert.Contains(t, lenient.CertInfo()[0].DNSNames, "example.com")
	assert.Positive(t, lenient.ConnectTime())
}

func TestDebugLogging(t *testing.T) {
	ts := newMockAPI(t)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)

	quiet, err := New(Overrides{URL: Ptr(ts.URL)}, WithLogger(logger))
	require.NoError(t, err)
	_, err = quiet.Get(context.Background(), "/posts/1", nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "in total")

	loud, err := New(Overrides{URL: Ptr(ts.URL), Debug: Ptr(true)}, WithLogger(logger))
	require.NoError(t, err)
	_, err = loud.Get(context.Background(), "/posts/1", nil, nil)
	require.NoError(t, err)
	assert.Regexp(t, `request took \d+ms in total`, buf.String())
}

func TestDebugLoggingUnderInfoGlobalLevel(t *testing.T) {
	prevLevel, prevLogger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prevLevel)
		log.Logger = prevLogger
	})
	logtrace.InitLogger(false)
	ts := newMockAPI(t)

	var buf bytes.Buffer
	c, err := New(Overrides{URL: Ptr(ts.URL), Debug: Ptr(true)}, WithLogger(zerolog.New(&buf)))
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "/posts/1", nil, nil)
	require.NoError(t, err)
	assert.Regexp(t, `request took \d+ms in total`, buf.String())

	buf.Reset()
	quiet, err := New(Overrides{URL: Ptr(ts.URL)}, WithLogger(zerolog.New(&buf)))
	require.NoError(t, err)
	_, err = quiet.Get(context.Background(), "/posts/1", nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "in total")

	require.NoError(t, quiet.SetOption("debug", true))
	_, err = quiet.Get(context.Background(), "/posts/1", nil, nil)
	require.NoError(t, err)
	assert.Regexp(t, `request took \d+ms in total`, buf.String())
}

func TestSetOptionDebugReachesTransport(t *testing.T) {
	c := newTestClient(t, "http://h", Overrides{})
	transport, ok := c.transport.(*HTTPTransport)
	require.True(t, ok)
	assert.Equal(t, zerolog.Disabled, transport.logger.GetLevel())

	require.NoError(t, c.SetOption("debug", true))
	assert.Equal(t, zerolog.DebugLevel, transport.logger.GetLevel())

	require.NoError(t, c.SetOption("debug", false))
	assert.Equal(t, zerolog.InfoLevel, transport.logger.GetLevel())
}

func TestSucceededWithoutRequest(t *testing.T) {
	c := newTestClient(t, "http://h", Overrides{})
	assert.True(t, c.Expected().IsZero())
	assert.False(t, c.Succeeded())
	assert.Nil(t, c.Response())
	assert.Nil(t, c.Data())
}
