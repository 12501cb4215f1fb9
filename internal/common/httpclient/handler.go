// Package httpclient provides REST client transports that answer requests without a network
// round trip. Responses are captured with httptest.NewRecorder.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tansive/restclient/internal/common/requestid"
	"github.com/tansive/restclient/pkg/rest"
)

// HandlerTransport serves requests in-process with an http.Handler.
type HandlerTransport struct {
	handler http.Handler
}

var _ rest.Transport = (*HandlerTransport)(nil)

// NewHandlerTransport creates a transport dispatching every request to h.
func NewHandlerTransport(h http.Handler) *HandlerTransport {
	return &HandlerTransport{handler: h}
}

// Execute runs the handler for req and returns the recorded response. Transport settings
// such as timeouts and redirects do not apply; cancellation is observed through ctx.
func (t *HandlerTransport) Execute(ctx context.Context, req *rest.Request) (*rest.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, rest.ErrTransport.MsgErr(fmt.Sprintf("%s %s failed", req.Method, req.URL), err)
	}

	var body io.Reader = http.NoBody
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, rest.ErrTransport.MsgErr(fmt.Sprintf("%s %s: invalid request", req.Method, req.URL), err)
	}
	httpReq.Header = req.Header.Clone()
	if req.Transport.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.Transport.UserAgent)
	}
	requestID := httpReq.Header.Get(rest.RequestIDHeader)
	if requestID == "" {
		requestID = requestid.New()
		httpReq.Header.Set(rest.RequestIDHeader, requestID)
	}
	httpReq.RemoteAddr = "127.0.0.1:0"
	httpReq.RequestURI = httpReq.URL.RequestURI()

	start := time.Now()
	rec := httptest.NewRecorder()
	t.handler.ServeHTTP(rec, httpReq)
	result := rec.Result()
	defer result.Body.Close()

	respBody, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, rest.ErrTransport.MsgErr(fmt.Sprintf("%s %s: reading body failed", req.Method, req.URL), err)
	}

	log.Ctx(ctx).Debug().
		Str("request_id", requestID).
		Int("status", result.StatusCode).
		Msg("request served in-process")

	return &rest.Response{
		StatusCode:  result.StatusCode,
		Header:      result.Header,
		Body:        respBody,
		ContentType: result.Header.Get("Content-Type"),
		TotalTime:   time.Since(start),
		URL:         req.URL,
		Method:      req.Method,
		RequestID:   requestID,
	}, nil
}
