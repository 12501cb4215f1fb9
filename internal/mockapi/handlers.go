package mockapi

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
	"github.com/tansive/restclient/internal/common/httpx"
)

type handlerParam struct {
	Method  string
	Path    string
	Handler httpx.RequestHandler
}

func (s *Server) postHandlers() []handlerParam {
	return []handlerParam{
		{Method: http.MethodGet, Path: "/", Handler: s.listPosts},
		{Method: http.MethodPost, Path: "/", Handler: s.createPost},
		{Method: http.MethodGet, Path: "/{id}", Handler: s.getPost},
		{Method: http.MethodPut, Path: "/{id}", Handler: s.replacePost},
		{Method: http.MethodPatch, Path: "/{id}", Handler: s.updatePost},
		{Method: http.MethodDelete, Path: "/{id}", Handler: s.deletePost},
	}
}

func (s *Server) listPosts(r *http.Request) (*httpx.Response, error) {
	userID := 0
	if v := r.URL.Query().Get("userId"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return nil, httpx.ErrInvalidRequest("userId must be a number")
		}
		userID = id
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   s.store.List(userID),
	}, nil
}

func (s *Server) createPost(r *http.Request) (*httpx.Response, error) {
	data, err := httpx.GetRequestData(r)
	if err != nil {
		return nil, err
	}
	var p Post
	if err := decodePost(data, &p); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("invalid post")
		return nil, ErrInvalidPost.MsgErr("invalid post", err)
	}
	if p.Title == "" {
		return nil, httpx.ErrInvalidRequest("title is required")
	}
	created := s.store.Create(p)
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/posts/" + strconv.Itoa(created.ID),
		Response:   created,
	}, nil
}

func (s *Server) getPost(r *http.Request) (*httpx.Response, error) {
	id, err := postID(r)
	if err != nil {
		return nil, err
	}
	p, ok := s.store.Get(id)
	if !ok {
		return nil, ErrPostNotFound
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: p}, nil
}

func (s *Server) replacePost(r *http.Request) (*httpx.Response, error) {
	return s.modifyPost(r, true)
}

func (s *Server) updatePost(r *http.Request) (*httpx.Response, error) {
	return s.modifyPost(r, false)
}

// modifyPost implements PUT (replace) and PATCH (merge present fields).
func (s *Server) modifyPost(r *http.Request, replace bool) (*httpx.Response, error) {
	id, err := postID(r)
	if err != nil {
		return nil, err
	}
	data, err := httpx.GetRequestData(r)
	if err != nil {
		return nil, err
	}
	p, err := s.store.Update(id, func(p *Post) error {
		if replace {
			*p = Post{}
		}
		if err := decodePost(data, p); err != nil {
			return ErrInvalidPost.MsgErr("invalid post", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: p}, nil
}

func (s *Server) deletePost(r *http.Request) (*httpx.Response, error) {
	id, err := postID(r)
	if err != nil {
		return nil, err
	}
	if !s.store.Delete(id) {
		return nil, ErrPostNotFound
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: map[string]any{}}, nil
}

func postID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, httpx.ErrInvalidRequest("invalid post id")
	}
	return id, nil
}

// decodePost reads form values ("1") and JSON values (1) alike. Unknown keys are ignored.
func decodePost(data map[string]any, p *Post) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           p,
	})
	if err != nil {
		return err
	}
	delete(data, "id")
	return dec.Decode(data)
}

// EchoResponse is the body returned by /echo.
type EchoResponse struct {
	Method  string              `json:"method"`
	Path    string              `json:"path"`
	Query   map[string][]string `json:"query"`
	Headers map[string]string   `json:"headers"`
	Body    map[string]any      `json:"body"`
	Raw     string              `json:"raw"`
}

func echo(r *http.Request) (*httpx.Response, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, httpx.ErrUnableToReadRequest()
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	data, err := httpx.GetRequestData(r)
	if err != nil {
		return nil, err
	}
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[k] = strings.Join(v, ", ")
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: EchoResponse{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.Query(),
			Headers: headers,
			Body:    data,
			Raw:     string(raw),
		},
	}, nil
}

func status(r *http.Request) (*httpx.Response, error) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil || code < 100 || code > 599 {
		return nil, httpx.ErrInvalidRequest("invalid status code")
	}
	return &httpx.Response{
		StatusCode: code,
		Response:   map[string]any{"status": code, "text": http.StatusText(code)},
	}, nil
}

// delay answers after the given number of milliseconds, or with 408 when the request
// context ends first.
func delay(r *http.Request) (*httpx.Response, error) {
	ms, err := strconv.Atoi(chi.URLParam(r, "ms"))
	if err != nil || ms < 0 {
		return nil, httpx.ErrInvalidRequest("invalid delay")
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return &httpx.Response{
			StatusCode: http.StatusOK,
			Response:   map[string]any{"delayed_ms": ms},
		}, nil
	case <-r.Context().Done():
		return nil, httpx.ErrRequestTimeout()
	}
}

func envelope(s *Server) httpx.RequestHandler {
	return func(r *http.Request) (*httpx.Response, error) {
		posts := s.store.List(0)
		return &httpx.Response{
			StatusCode: http.StatusOK,
			Response:   map[string]any{"data": posts, "count": len(posts)},
		}, nil
	}
}

func text(*http.Request) (*httpx.Response, error) {
	return &httpx.Response{
		StatusCode:  http.StatusOK,
		ContentType: "text/plain",
		Response:    "this is not json",
	}, nil
}

// pngSignature is the magic number of a PNG file followed by an IHDR chunk header.
var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

// blob sends binary bytes without a Content-Type so clients have to sniff it.
func blob(w http.ResponseWriter, _ *http.Request) {
	w.Header()["Content-Type"] = nil
	w.WriteHeader(http.StatusOK)
	w.Write(pngSignature)
}
