package rest

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"hash"
	"net/url"
	"strings"
	"time"
)

// Signer adds credentials to a built request. Implementations must only modify the request,
// never the options they were given.
type Signer interface {
	Sign(req *Request, opts Options) error
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(req *Request, opts Options) error

// Sign calls f.
func (f SignerFunc) Sign(req *Request, opts Options) error {
	return f(req, opts)
}

// NewSigner returns the signer for the given authentication mode.
func NewSigner(mode AuthMode, clock func() time.Time, nonce func() (string, error)) (Signer, error) {
	switch mode {
	case AuthNone:
		return SignerFunc(func(*Request, Options) error { return nil }), nil
	case AuthSignature:
		return SignerFunc(signQuery), nil
	case AuthBasic:
		return SignerFunc(signBasic), nil
	case AuthOAuth1:
		if clock == nil {
			clock = time.Now
		}
		if nonce == nil {
			nonce = GenerateNonce
		}
		return &OAuth1Signer{Now: clock, Nonce: nonce}, nil
	}
	return nil, ErrUnsupportedAuth.Msgf("unsupported authentication %q", mode)
}

// signQuery appends an HMAC signature of the form-encoded parameters to the URL query.
func signQuery(req *Request, opts Options) error {
	if opts.Secret == "" {
		return ErrMissingSecret
	}
	query, err := EncodeForm(req.Params)
	if err != nil {
		return err
	}
	sig, err := hmacBase64(opts.Algorithm, []byte(opts.Secret), query)
	if err != nil {
		return err
	}
	req.URL = appendQuery(req.URL, "signature="+url.QueryEscape(sig))
	return nil
}

func signBasic(req *Request, opts Options) error {
	creds := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
	req.Header.Set("Authorization", "Basic "+creds)
	return nil
}

var hashes = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha224": sha256.New224,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
}

func hmacBase64(algorithm string, key []byte, message string) (string, error) {
	newHash, ok := hashes[strings.ToLower(algorithm)]
	if !ok {
		return "", ErrUnsupportedAlgo.Msgf("unsupported signing algorithm %q", algorithm)
	}
	mac := hmac.New(newHash, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
