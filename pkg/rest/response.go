package rest

import (
	"crypto/x509"
	"net/http"
	"time"

	"github.com/h2non/filetype"
	"github.com/tidwall/gjson"
)

// CertInfo describes one certificate of the TLS chain presented by the server.
type CertInfo struct {
	Subject            string    `json:"subject"`
	Issuer             string    `json:"issuer"`
	SerialNumber       string    `json:"serial_number"`
	NotBefore          time.Time `json:"not_before"`
	NotAfter           time.Time `json:"not_after"`
	DNSNames           []string  `json:"dns_names,omitempty"`
	SignatureAlgorithm string    `json:"signature_algorithm"`
}

func certInfoFrom(certs []*x509.Certificate) []CertInfo {
	if len(certs) == 0 {
		return nil
	}
	out := make([]CertInfo, 0, len(certs))
	for _, c := range certs {
		out = append(out, CertInfo{
			Subject:            c.Subject.String(),
			Issuer:             c.Issuer.String(),
			SerialNumber:       c.SerialNumber.String(),
			NotBefore:          c.NotBefore,
			NotAfter:           c.NotAfter,
			DNSNames:           c.DNSNames,
			SignatureAlgorithm: c.SignatureAlgorithm.String(),
		})
	}
	return out
}

// Response is the result of a single request. A new Response is created for every call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// ContentType is the Content-Type header, empty when the server sent none.
	ContentType  string
	TotalTime    time.Duration
	ConnectTime  time.Duration
	Certificates []CertInfo
	URL          string
	Method       string
	RequestID    string

	decoded map[bool]any
}

// Raw returns the body as a string.
func (r *Response) Raw() string {
	return string(r.Body)
}

// Decode decodes the JSON body. With asArray the result is made of native Go values
// (map[string]any, []any, float64, ...); otherwise it is a gjson.Result for path access.
// An empty body yields nil. A body that is not valid JSON yields the raw body string, so
// callers must check the returned type. A JSON document that is itself a string decodes to
// a string with asArray and to a gjson.Result without it. Results are cached per mode.
func (r *Response) Decode(asArray bool) any {
	if len(r.Body) == 0 {
		return nil
	}
	if v, ok := r.decoded[asArray]; ok {
		return v
	}
	v := decodeBody(r.Body, asArray)
	if r.decoded == nil {
		r.decoded = make(map[bool]any, 2)
	}
	r.decoded[asArray] = v
	return v
}

func decodeBody(body []byte, asArray bool) any {
	if !gjson.ValidBytes(body) {
		return string(body)
	}
	if !asArray {
		return gjson.ParseBytes(body)
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}

// JSON is Decode(true).
func (r *Response) JSON() any {
	return r.Decode(true)
}

// Data returns the top-level "data" member of a JSON object body as native Go values, or the
// whole decoded body when there is no such member.
func (r *Response) Data() any {
	if len(r.Body) > 0 && gjson.ValidBytes(r.Body) {
		root := gjson.ParseBytes(r.Body)
		if root.IsObject() {
			if data := root.Get("data"); data.Exists() {
				return data.Value()
			}
		}
	}
	return r.Decode(true)
}

// MediaType returns the Content-Type header or, when the server sent none, the MIME type
// sniffed from the body. It returns an empty string when neither is known.
func (r *Response) MediaType() string {
	if r.ContentType != "" {
		return r.ContentType
	}
	kind, err := filetype.Match(r.Body)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

// Succeeded reports whether the status code equals code or, when no code is given, whether
// it is among the codes expected for the request method.
func (r *Response) Succeeded(code ...int) bool {
	if len(code) > 0 {
		return r.StatusCode == code[0]
	}
	if expected, err := Expected(r.Method); err == nil {
		return expected.Contains(r.StatusCode)
	}
	return r.StatusCode == http.StatusOK
}
