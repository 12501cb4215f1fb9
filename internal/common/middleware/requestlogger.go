// Package middleware provides HTTP middleware components for request logging, timeout handling,
// and panic recovery. It integrates with zerolog for structured logging and supports request
// tracing through request IDs.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tansive/restclient/internal/common/httpx"
	"github.com/tansive/restclient/internal/common/logtrace"
	"github.com/tansive/restclient/internal/common/requestid"
)

// RequestIDHeader is read from incoming requests and echoed on responses.
const RequestIDHeader = "X-Request-ID"

// RequestLogger creates middleware that logs incoming requests and tags them with a request
// ID. A valid ID sent by the client is kept; otherwise a new one is generated. The ID is put
// in the request context, in the context logger and in the response headers.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		requestID := r.Header.Get(RequestIDHeader)
		if !requestid.Valid(requestID) {
			requestID = requestid.New()
		}
		ctx = logtrace.WithRequestID(ctx, requestID)
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)

		rw := httpx.NewResponseWriter(w)
		rw.Header().Set(RequestIDHeader, requestID)

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		event := log.Ctx(ctx).Info().
			Str("requestURL", fmt.Sprintf("%s://%s%s", scheme, r.Host, r.RequestURI)).
			Str("requestMethod", r.Method).
			Str("requestPath", r.URL.Path).
			Str("remoteIP", r.RemoteAddr).
			Str("proto", r.Proto)
		if issued, ok := requestid.IssuedAt(requestID); ok {
			event = event.Dur("client_lag", start.Sub(issued))
		}
		event.Msg("incoming request")

		defer func() {
			log.Ctx(ctx).Info().
				Int("status", rw.Status()).
				Int("bytes", rw.BytesWritten()).
				Str("duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds())).
				Msg("request completed")
		}()

		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}
