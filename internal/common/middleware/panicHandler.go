package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/tansive/restclient/internal/common/httpx"
	"github.com/tansive/restclient/internal/common/logtrace"
)

// PanicHandler recovers from panics in HTTP handlers, logs the panic with its stack trace
// and replies with a 500 carrying the request id, unless a response was already started.
// http.ErrAbortHandler is re-raised so that net/http can abort the connection.
func PanicHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := httpx.NewResponseWriter(w)
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}
			log.Ctx(r.Context()).Error().
				Str("panic", fmt.Sprintf("%v", err)).
				Str("stack_trace", string(debug.Stack())).
				Msg("panic occurred")

			if !rw.Written() {
				msg := "unable to process request"
				if id := logtrace.RequestIDFromContext(r.Context()); id != "" {
					msg += ", request id " + id
				}
				httpx.ErrApplicationError(msg).Send(rw)
			}
		}()
		next.ServeHTTP(rw, r)
	})
}
