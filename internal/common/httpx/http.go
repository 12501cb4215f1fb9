// Package httpx provides HTTP request/response handling utilities for the mock API.
// Handlers return a Response or an error and WrapHttpRsp turns either into a JSON reply.
package httpx

import (
	"io"
	"mime"
	"net/http"
	"net/url"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/tansive/restclient/internal/common/apperrors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GetRequestData decodes the request body into a generic map. JSON bodies are decoded as
// JSON; form bodies are decoded with every key mapped to its first value, or to a list when
// the key repeats. An empty body yields an empty map.
func GetRequestData(r *http.Request) (map[string]any, error) {
	data := make(map[string]any)
	if r.Body == nil {
		return data, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, ErrUnableToReadRequest()
	}
	if len(body) == 0 {
		return data, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if err := json.Unmarshal(body, &data); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("unable to parse json body")
			return nil, ErrUnableToParseReqData()
		}
	default:
		values, err := url.ParseQuery(string(body))
		if err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("unable to parse form body")
			return nil, ErrUnableToParseReqData()
		}
		for k, v := range values {
			if len(v) == 1 {
				data[k] = v[0]
				continue
			}
			list := make([]any, len(v))
			for i := range v {
				list[i] = v[i]
			}
			data[k] = list
		}
	}
	return data, nil
}

// Response represents an HTTP response with configurable status code,
// content type and headers.
type Response struct {
	StatusCode  int
	Location    string
	Response    any
	ContentType string
	Header      http.Header
}

// RequestHandler defines a function type for handling HTTP requests.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp wraps a RequestHandler to provide standardized HTTP response handling,
// including error handling and content type management.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			if httperror, ok := err.(*Error); ok {
				httperror.Send(w)
			} else if appErr, ok := err.(apperrors.Error); ok {
				SendError(w, appErr)
			} else {
				ErrApplicationError(err.Error()).Send(w)
			}
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		for k, v := range rsp.Header {
			w.Header()[k] = v
		}

		if rsp.ContentType == "" {
			rsp.ContentType = "application/json"
		}
		var location []string
		if rsp.Location != "" {
			location = append(location, rsp.Location)
		}
		switch rsp.ContentType {
		case "application/json":
			SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
		case "text/plain":
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(rsp.StatusCode)
			if s, ok := rsp.Response.(string); ok {
				w.Write([]byte(s))
			}
		default:
			// raw bytes, no content type header
			w.WriteHeader(rsp.StatusCode)
			if b, ok := rsp.Response.([]byte); ok {
				w.Write(b)
			}
		}
	})
}
