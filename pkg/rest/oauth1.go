package rest

import (
	"crypto/rand"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	nonceLength   = 32
	nonceAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// OAuth1Signer signs requests with a one-legged OAuth 1.0 HMAC signature and sends the
// oauth_* parameters in the Authorization header.
type OAuth1Signer struct {
	Now   func() time.Time
	Nonce func() (string, error)
}

// Sign implements Signer. Both token and secret must be configured.
func (s *OAuth1Signer) Sign(req *Request, opts Options) error {
	if opts.Token == "" {
		return ErrMissingToken
	}
	if opts.Secret == "" {
		return ErrMissingSecret
	}

	nonce, err := s.Nonce()
	if err != nil {
		return ErrConfiguration.MsgErr("unable to generate nonce", err)
	}
	oauth := []pair{
		{"oauth_nonce", nonce},
		{"oauth_signature_method", "HMAC-" + strings.ToUpper(opts.Algorithm)},
		{"oauth_timestamp", strconv.FormatInt(s.Now().Unix(), 10)},
		{"oauth_token", opts.Token},
		{"oauth_version", "1.0"},
	}

	signing := mergeParams(req.Params, nil)
	for _, p := range oauth {
		signing[p.key] = p.value
	}
	sig, err := OAuth1Signature(req.Method, req.endpoint, signing, opts.Algorithm, opts.Secret)
	if err != nil {
		return err
	}
	oauth = append(oauth, pair{"oauth_signature", PercentEncode(sig)})

	fields := make([]string, 0, len(oauth))
	for _, p := range oauth {
		fields = append(fields, p.key+`="`+p.value+`"`)
	}
	req.Header.Set("Authorization", "OAuth "+strings.Join(fields, ","))
	return nil
}

// OAuth1BaseString builds the signature base string: the upper-cased method, the encoded
// endpoint and the encoded canonical query, joined by '&'. The canonical query holds every
// parameter percent-encoded and sorted by encoded key, then by encoded value.
func OAuth1BaseString(method, endpoint string, params Params) (string, error) {
	pairs, err := flatten(params)
	if err != nil {
		return "", err
	}
	for i := range pairs {
		pairs[i].key = PercentEncode(pairs[i].key)
		pairs[i].value = PercentEncode(pairs[i].value)
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.key+"="+p.value)
	}
	query := strings.Join(parts, "&")

	return strings.ToUpper(method) + "&" + PercentEncode(endpoint) + "&" + PercentEncode(query), nil
}

// OAuth1Signature returns the base64 HMAC of the base string. The key is the encoded secret
// followed by '&'; the '&' is required even though there is no token secret.
func OAuth1Signature(method, endpoint string, params Params, algorithm, secret string) (string, error) {
	base, err := OAuth1BaseString(method, endpoint, params)
	if err != nil {
		return "", err
	}
	return hmacBase64(algorithm, []byte(PercentEncode(secret)+"&"), base)
}

// PercentEncode encodes s per RFC 3986: everything except ALPHA, DIGIT, '-', '.', '_' and '~'
// is escaped and spaces become %20.
func PercentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// GenerateNonce returns 32 characters drawn uniformly from [0-9a-zA-Z] using crypto/rand.
func GenerateNonce() (string, error) {
	// 248 is the largest multiple of 62 below 256; larger bytes are rejected to avoid bias.
	const limit = 248
	out := make([]byte, 0, nonceLength)
	buf := make([]byte, nonceLength*2)
	for len(out) < nonceLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, nonceAlphabet[int(b)%len(nonceAlphabet)])
			if len(out) == nonceLength {
				break
			}
		}
	}
	return string(out), nil
}
