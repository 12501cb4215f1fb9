package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// TimeoutHeader reports the handler deadline on every response.
const TimeoutHeader = "X-Mock-Timeout"

// SetTimeout bounds every request context by timeout. Handlers that wait on the context are
// expected to reply with httpx.ErrRequestTimeout once it is done.
func SetTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			w.Header().Set(TimeoutHeader, timeout.String())
			next.ServeHTTP(w, r.WithContext(ctx))

			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				log.Ctx(ctx).Warn().Dur("timeout", timeout).Msg("request exceeded its deadline")
			}
		})
	}
}
