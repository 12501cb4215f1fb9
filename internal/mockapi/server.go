// Package mockapi is a small JSON API for exercising the REST client. It serves an in-memory
// post collection, a few diagnostic routes and routes that check client credentials. Any request carrying an X-Mock-Status header
// is answered with that status code instead of the handler's.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/tansive/restclient/internal/common/httpx"
	commonmiddleware "github.com/tansive/restclient/internal/common/middleware"
)

// StatusHeader overrides the status code of any response.
const StatusHeader = "X-Mock-Status"

// DefaultHandlerTimeout bounds every handler.
const DefaultHandlerTimeout = 10 * time.Second

// Credentials accepted by the /auth routes unless changed with SetCredentials.
const (
	DefaultUsername = "demo"
	DefaultPassword = "demo"
	DefaultSecret   = "secret"
)

type Server struct {
	Router   *chi.Mux
	store    *Store
	timeout  time.Duration
	username string
	password string
	secret   string
}

// NewServer creates a server with a seeded store. A zero timeout selects
// DefaultHandlerTimeout.
func NewServer(timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}
	return &Server{
		Router:  chi.NewRouter(),
		store:    NewStore(),
		timeout:  timeout,
		username: DefaultUsername,
		password: DefaultPassword,
		secret:   DefaultSecret,
	}
}

// SetCredentials changes the basic auth user and the HMAC secret checked by the /auth routes.
func (s *Server) SetCredentials(username, password, secret string) {
	s.username, s.password, s.secret = username, password, secret
}

// Store returns the backing store.
func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) MountHandlers() {
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	s.Router.Use(commonmiddleware.SetTimeout(s.timeout))
	s.Router.Use(forceStatus)
	s.Router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.ErrNotFound("no route for " + r.URL.Path).Send(w)
	})
	s.Router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.ErrReqMethodNotSupported().Send(w)
	})
	s.mountResourceHandlers(s.Router)
}

func (s *Server) mountResourceHandlers(r chi.Router) {
	r.Route("/posts", func(r chi.Router) {
		for _, h := range s.postHandlers() {
			r.Method(h.Method, h.Path, httpx.WrapHttpRsp(h.Handler))
		}
	})
	r.Get("/envelope/posts", httpx.WrapHttpRsp(envelope(s)))
	r.HandleFunc("/echo", httpx.WrapHttpRsp(echo))
	r.HandleFunc("/echo/*", httpx.WrapHttpRsp(echo))
	r.HandleFunc("/status/{code}", httpx.WrapHttpRsp(status))
	r.Get("/delay/{ms}", httpx.WrapHttpRsp(delay))
	r.Get("/text", httpx.WrapHttpRsp(text))
	r.Get("/blob", blob)
	r.Get("/auth/basic", httpx.WrapHttpRsp(s.basicAuth))
	r.Get("/auth/signature", httpx.WrapHttpRsp(s.signatureAuth))
}

// statusWriter replaces the status code passed to WriteHeader.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(int) {
	w.ResponseWriter.WriteHeader(w.code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	return w.ResponseWriter.Write(b)
}

func forceStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := r.Header.Get(StatusHeader)
		if v == "" {
			next.ServeHTTP(w, r)
			return
		}
		code, err := strconv.Atoi(v)
		if err != nil || code < 100 || code > 599 {
			httpx.ErrInvalidRequest(fmt.Sprintf("invalid %s header %q", StatusHeader, v)).Send(w)
			return
		}
		log.Ctx(r.Context()).Debug().Int("status", code).Msg("forcing response status")
		next.ServeHTTP(&statusWriter{ResponseWriter: w, code: code}, r)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	slog := log.With().Str("state", "serve").Logger()
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info().Str("addr", addr).Msg("mock api started")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("mock api: %w", err)
	case <-ctx.Done():
	}

	// Give outstanding requests 5 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error().Err(err).Msg("could not stop server gracefully")
		return srv.Close()
	}
	slog.Info().Msg("mock api stopped")
	return nil
}
