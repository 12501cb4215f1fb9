package rest

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// Expectation is the set of status codes accepted for a request method.
type Expectation struct {
	codes []int
}

func expect(codes ...int) Expectation {
	return Expectation{codes: codes}
}

// Codes returns a copy of the accepted codes.
func (e Expectation) Codes() []int {
	return slices.Clone(e.codes)
}

// Contains reports whether code is accepted.
func (e Expectation) Contains(code int) bool {
	return slices.Contains(e.codes, code)
}

// IsZero reports whether no expectation was recorded.
func (e Expectation) IsZero() bool {
	return len(e.codes) == 0
}

// String renders a single code as "200" and a set as "[200 201]".
func (e Expectation) String() string {
	if len(e.codes) == 1 {
		return strconv.Itoa(e.codes[0])
	}
	parts := make([]string, len(e.codes))
	for i, c := range e.codes {
		parts[i] = strconv.Itoa(c)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

var expectations = map[string]Expectation{
	http.MethodGet:    expect(http.StatusOK),
	http.MethodPost:   expect(http.StatusOK, http.StatusCreated),
	http.MethodPut:    expect(http.StatusOK, http.StatusAccepted),
	http.MethodPatch:  expect(http.StatusOK, http.StatusAccepted),
	http.MethodDelete: expect(http.StatusOK, http.StatusNoContent),
}

// Expected returns the accepted status codes for method. Methods outside
// GET, POST, PUT, PATCH and DELETE fail with ErrUnsupportedMethod.
func Expected(method string) (Expectation, error) {
	e, ok := expectations[strings.ToUpper(method)]
	if !ok {
		return Expectation{}, ErrUnsupportedMethod.Msgf("unsupported method '%s'", method)
	}
	return e, nil
}

// Check reports whether code is among the expected codes.
func Check(code int, expected Expectation) bool {
	return expected.Contains(code)
}

// Validate checks resp against the expectation for method. It returns the expectation that
// was applied (zero when validation is disabled) and a *ResponseError on mismatch.
func Validate(resp *Response, method string, opts Options) (Expectation, error) {
	if !opts.Validate || method == "" {
		return Expectation{}, nil
	}
	expected, err := Expected(method)
	if err != nil {
		return Expectation{}, err
	}
	if Check(resp.StatusCode, expected) {
		return expected, nil
	}
	return expected, newResponseError(resp, expected)
}
