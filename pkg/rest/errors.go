package rest

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tansive/restclient/internal/common/apperrors"
)

var (
	// ErrConfiguration is the parent of all errors caused by client options or by a call
	// that the options cannot serve. These are never retried.
	ErrConfiguration     = apperrors.New("configuration error")
	ErrUnknownOption     = ErrConfiguration.New("unknown option")
	ErrInvalidOptions    = ErrConfiguration.New("invalid options")
	ErrUnsupportedAuth   = ErrConfiguration.New("unsupported authentication")
	ErrMissingToken      = ErrConfiguration.New("no token key provided")
	ErrMissingSecret     = ErrConfiguration.New("no secret key provided")
	ErrUnsupportedMethod = ErrConfiguration.New("unsupported method")
	ErrUnsupportedAlgo   = ErrConfiguration.New("unsupported signing algorithm")
	ErrEncodeParameters  = ErrConfiguration.New("unable to encode parameters")

	// ErrTransport reports a failure of the underlying HTTP call (DNS, TLS, timeout, ...).
	ErrTransport = apperrors.New("transport error")

	// ErrResponseValidation is matched by every *ResponseError.
	ErrResponseValidation = apperrors.New("the request was not successful")
)

// ResponseError is returned when the status code of a response is not among the codes
// expected for the request method. It carries the response metadata for diagnostics.
type ResponseError struct {
	Message      string
	StatusCode   int
	Expected     Expectation
	URL          string
	Method       string
	TotalTime    time.Duration
	Certificates []CertInfo
	ContentType  string
	Body         []byte
}

func newResponseError(resp *Response, expected Expectation) *ResponseError {
	return &ResponseError{
		Message:      fmt.Sprintf("the request was not successful, response message was: '%s'", resp.Body),
		StatusCode:   resp.StatusCode,
		Expected:     expected,
		URL:          resp.URL,
		Method:       resp.Method,
		TotalTime:    resp.TotalTime,
		Certificates: resp.Certificates,
		ContentType:  resp.ContentType,
		Body:         resp.Body,
	}
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: unexpected status %d, expected %s", e.Method, e.URL, e.StatusCode, e.Expected)
	if len(e.Body) > 0 {
		fmt.Fprintf(&b, ": %s", truncate(string(e.Body), 256))
	}
	return b.String()
}

// Is reports a match against ErrResponseValidation.
func (e *ResponseError) Is(target error) bool {
	return target == ErrResponseValidation
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
