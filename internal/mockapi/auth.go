package mockapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/tansive/restclient/internal/common/httpx"
)

// basicAuth accepts the server's basic auth credentials.
func (s *Server) basicAuth(r *http.Request) (*httpx.Response, error) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return nil, httpx.ErrUnAuthorized("basic credentials required")
	}
	if user != s.username || !hmac.Equal([]byte(pass), []byte(s.password)) {
		return nil, httpx.ErrUnAuthorized("invalid basic credentials")
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]any{"authenticated": true, "user": user},
	}, nil
}

// signatureAuth checks a trailing signature query parameter: the base64 HMAC-SHA256 of the
// query string that precedes it, keyed with the server secret.
func (s *Server) signatureAuth(r *http.Request) (*httpx.Response, error) {
	raw := r.URL.RawQuery
	i := strings.LastIndex(raw, "signature=")
	if i < 0 || (i > 0 && raw[i-1] != '&') {
		return nil, httpx.ErrUnAuthorized("signature required")
	}
	signed := strings.TrimSuffix(raw[:i], "&")
	got, err := url.QueryUnescape(raw[i+len("signature="):])
	if err != nil {
		return nil, httpx.ErrUnAuthorized("malformed signature")
	}

	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(signed))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(got), []byte(want)) {
		return nil, httpx.ErrUnAuthorized("invalid signature")
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]any{"authenticated": true, "query": signed},
	}, nil
}
