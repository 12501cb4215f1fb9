package rest

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// AuthMode selects the authentication strategy applied to outgoing requests.
type AuthMode string

const (
	AuthNone      AuthMode = ""
	AuthOAuth1    AuthMode = "oauth1"
	AuthBasic     AuthMode = "basic"
	AuthSignature AuthMode = "signature"
)

const (
	DefaultURL         = "https://api.localhost/v1"
	DefaultAlgorithm   = "sha256"
	DefaultContentType = "application/x-www-form-urlencoded"
)

// Options is the effective client configuration. Every field has a default, see DefaultOptions.
type Options struct {
	// Headers are sent with every request. Call-supplied headers win on collision.
	Headers map[string]string
	// Parameters are sent with every request. Call-supplied parameters win on collision.
	Parameters Params
	// TransportOptions are raw transport overrides, applied last by key.
	// Recognized keys are listed on TransportSettings.
	TransportOptions map[string]any
	// URL is the base URL; the request URI is appended to it unmodified.
	URL            string   `validate:"required"`
	Authentication AuthMode `validate:"omitempty,oneof=oauth1 basic signature"`
	Token          string
	Secret         string
	Username       string
	Password       string
	// Algorithm is the HMAC hash used by the oauth1 and signature strategies.
	Algorithm string `validate:"required,oneof=md5 sha1 sha224 sha256 sha384 sha512"`
	// Debug reports request timings at info level and lowers the client and transport
	// loggers to debug.
	Debug bool
	// AllowSelfSigned disables certificate verification. Never enable this in production.
	AllowSelfSigned bool
	// Validate checks response status codes against the expectation table.
	Validate bool
	// ResponseAsArray makes Response decode into native maps and slices by default.
	ResponseAsArray bool
}

// Overrides holds caller-supplied options. Nil pointers and nil maps leave the default
// untouched. The mapstructure tags are the recognized option keys.
type Overrides struct {
	Headers          map[string]string `mapstructure:"headers"`
	Parameters       Params            `mapstructure:"parameters"`
	TransportOptions map[string]any    `mapstructure:"curl_options"`
	URL              *string           `mapstructure:"url"`
	Authentication   *AuthMode         `mapstructure:"authentication"`
	Token            *string           `mapstructure:"token"`
	Secret           *string           `mapstructure:"secret"`
	Username         *string           `mapstructure:"username"`
	Password         *string           `mapstructure:"password"`
	Algorithm        *string           `mapstructure:"algorithm"`
	Debug            *bool             `mapstructure:"debug"`
	AllowSelfSigned  *bool             `mapstructure:"allow_self_signed"`
	Validate         *bool             `mapstructure:"validate"`
	ResponseAsArray  *bool             `mapstructure:"response_as_array"`
}

// Ptr returns a pointer to v, for filling Overrides.
func Ptr[T any](v T) *T {
	return &v
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Headers:          map[string]string{"Content-Type": DefaultContentType},
		Parameters:       Params{},
		TransportOptions: map[string]any{},
		URL:              DefaultURL,
		Authentication:   AuthNone,
		Algorithm:        DefaultAlgorithm,
		Validate:         true,
	}
}

// Resolve merges overrides over defaults. Map-valued options merge key-wise with the
// override winning per key; scalar options are replaced when the override sets them.
// Neither argument is modified.
func Resolve(defaults Options, o Overrides) Options {
	return defaults.apply(o, true)
}

func (opts Options) apply(o Overrides, mergeMaps bool) Options {
	out := opts
	if mergeMaps {
		out.Headers = mergeStrings(opts.Headers, o.Headers)
		out.Parameters = mergeParams(opts.Parameters, o.Parameters)
		out.TransportOptions = mergeParams(opts.TransportOptions, o.TransportOptions)
	} else {
		out.Headers = mergeStrings(opts.Headers, nil)
		out.Parameters = mergeParams(opts.Parameters, nil)
		out.TransportOptions = mergeParams(opts.TransportOptions, nil)
		if o.Headers != nil {
			out.Headers = mergeStrings(nil, o.Headers)
		}
		if o.Parameters != nil {
			out.Parameters = mergeParams(nil, o.Parameters)
		}
		if o.TransportOptions != nil {
			out.TransportOptions = mergeParams(nil, o.TransportOptions)
		}
	}
	setIf(&out.URL, o.URL)
	setIf(&out.Authentication, o.Authentication)
	setIf(&out.Token, o.Token)
	setIf(&out.Secret, o.Secret)
	setIf(&out.Username, o.Username)
	setIf(&out.Password, o.Password)
	setIf(&out.Algorithm, o.Algorithm)
	setIf(&out.Debug, o.Debug)
	setIf(&out.AllowSelfSigned, o.AllowSelfSigned)
	setIf(&out.Validate, o.Validate)
	setIf(&out.ResponseAsArray, o.ResponseAsArray)
	return out
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

var validate = validator.New()

// Verify checks the authentication mode, the signing algorithm and the base URL.
func (opts Options) Verify() error {
	err := validate.Struct(opts)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ErrInvalidOptions.Err(err)
	}
	for _, fe := range verrs {
		switch fe.Field() {
		case "Authentication":
			return ErrUnsupportedAuth.Msgf("unsupported authentication %q", fe.Value())
		case "Algorithm":
			return ErrUnsupportedAlgo.Msgf("unsupported signing algorithm %q", fe.Value())
		}
	}
	return ErrInvalidOptions.Err(verrs)
}

// OverridesFromMap decodes a loosely typed option map, such as one read from a file.
// Unknown keys are rejected with ErrUnknownOption.
func OverridesFromMap(m map[string]any) (Overrides, error) {
	var o Overrides
	if err := decodeStrict(m, &o); err != nil {
		return Overrides{}, err
	}
	return o, nil
}

func decodeSettings(input map[string]any, out *TransportSettings) error {
	return decodeStrict(input, out, secondsHook)
}

func decodeStrict(input any, out any, hooks ...mapstructure.DecodeHookFunc) error {
	composed := append([]mapstructure.DecodeHookFunc{
		authModeHook,
		mapstructure.StringToTimeDurationHookFunc(),
	}, hooks...)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(composed...),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return ErrInvalidOptions.Err(err)
	}
	if err := dec.Decode(input); err != nil {
		var merr *mapstructure.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				if isUnusedKeyError(e) {
					return ErrUnknownOption.Msg(e)
				}
			}
		}
		return ErrInvalidOptions.Err(err)
	}
	return nil
}

// authModeHook maps the boolean false, which disables authentication, to AuthNone.
func authModeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(AuthNone) || from.Kind() != reflect.Bool {
		return data, nil
	}
	if data.(bool) {
		return nil, fmt.Errorf("authentication must be false or one of oauth1, basic, signature")
	}
	return string(AuthNone), nil
}

func isUnusedKeyError(msg string) bool {
	return strings.Contains(msg, "has invalid keys")
}
