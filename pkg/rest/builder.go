package rest

import (
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const contentTypeJSON = "application/json"

// Request is a fully built outbound request. GET requests carry their parameters in the URL
// query; every other method carries them in Body.
type Request struct {
	Method string
	// URL is the final URL, including the encoded query for GET requests.
	URL    string
	Header http.Header
	Body   []byte
	// Params are the merged parameters the request was built from.
	Params Params
	// Transport holds the resolved transport settings for this request.
	Transport TransportSettings

	// endpoint is the URL before any query was appended; OAuth1 signs over it.
	endpoint string
}

// BuildRequest composes the request for uri and method from the options and the call-supplied
// parameters and headers. The base URL and uri are concatenated without normalization.
func BuildRequest(opts Options, uri, method string, params Params, headers map[string]string) (*Request, error) {
	method = strings.ToUpper(method)
	endpoint := opts.URL + uri

	settings, err := ResolveTransportSettings(opts)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method:    method,
		URL:       endpoint,
		Header:    make(http.Header),
		Params:    mergeParams(opts.Parameters, params),
		Transport: settings,
		endpoint:  endpoint,
	}

	req.Header.Set("User-Agent", UserAgent())
	for _, k := range sortedKeys(opts.Headers) {
		req.Header.Set(k, opts.Headers[k])
	}
	for _, k := range sortedKeys(headers) {
		req.Header.Set(k, headers[k])
	}

	if method != http.MethodGet {
		if len(req.Params) > 0 {
			body, err := encodeBody(req.Params, req.Header.Get("Content-Type"))
			if err != nil {
				return nil, err
			}
			req.Body = body
		}
		return req, nil
	}

	if len(req.Params) > 0 {
		query, err := EncodeForm(req.Params)
		if err != nil {
			return nil, err
		}
		req.URL = appendQuery(req.URL, query)
	}
	return req, nil
}

// encodeBody serializes params as JSON when the content type asks for it, otherwise as a form.
func encodeBody(params Params, contentType string) ([]byte, error) {
	if isJSONContentType(contentType) {
		body, err := json.Marshal(params)
		if err != nil {
			return nil, ErrEncodeParameters.Err(err)
		}
		return body, nil
	}
	form, err := EncodeForm(params)
	if err != nil {
		return nil, err
	}
	return []byte(form), nil
}

func isJSONContentType(ct string) bool {
	mediaType, _, _ := strings.Cut(ct, ";")
	return strings.EqualFold(strings.TrimSpace(mediaType), contentTypeJSON)
}

func appendQuery(u, query string) string {
	if query == "" {
		return u
	}
	if strings.Contains(u, "?") {
		return u + "&" + query
	}
	return u + "?" + query
}
