package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tansive/restclient/internal/common/httpclient"
	"github.com/tansive/restclient/internal/common/logtrace"
	"github.com/tansive/restclient/internal/mockapi"
	"github.com/tansive/restclient/pkg/rest"
)

// DefaultConfigFile is the default name of the options file
const DefaultConfigFile = "config.yaml"

// EnvPrefix prefixes the environment variables that set client options.
const EnvPrefix = "RESTCLI_"

// GetDefaultConfigPath returns the default path for the options file
// It uses the OS-specific config directory (e.g., ~/.config/restcli on Linux)
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "restcli", DefaultConfigFile), nil
}

// loadEnvFile loads variables from file, or from ./.env when file is empty and it exists.
// Variables already set in the environment are not overwritten.
func loadEnvFile(file string) error {
	if file != "" {
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("unable to load env file %s: %w", file, err)
		}
		return nil
	}
	_ = godotenv.Load() // no error if .env doesn't exist
	return nil
}

// LoadConfig reads an options file, expanding {{ .ENV.NAME }} placeholders first.
// If no file is specified, the default location is used when a file exists there.
func LoadConfig(file string) (rest.Overrides, error) {
	if file == "" {
		path, err := GetDefaultConfigPath()
		if err != nil {
			return rest.Overrides{}, nil
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return rest.Overrides{}, nil
		}
		file = path
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return rest.Overrides{}, fmt.Errorf("unable to read config file: %w", err)
	}
	data, err = PreprocessTemplate(data)
	if err != nil {
		return rest.Overrides{}, err
	}
	return rest.ParseOverrides(data, filepath.Ext(file))
}

// envOverrides reads RESTCLI_* variables.
func envOverrides() rest.Overrides {
	var o rest.Overrides
	str := func(name string) *string {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			return &v
		}
		return nil
	}
	o.URL = str("URL")
	o.Token = str("TOKEN")
	o.Secret = str("SECRET")
	o.Username = str("USERNAME")
	o.Password = str("PASSWORD")
	o.Algorithm = str("ALGORITHM")
	if v := str("AUTH"); v != nil {
		o.Authentication = rest.Ptr(rest.AuthMode(strings.ToLower(*v)))
	}
	return o
}

// overrides layers the options file, then RESTCLI_* variables, then explicitly set flags.
func (opts *rootOptions) overrides(cmd *cobra.Command) (rest.Overrides, error) {
	o, err := LoadConfig(opts.configFile)
	if err != nil {
		return rest.Overrides{}, err
	}
	layer(&o, envOverrides())

	var f rest.Overrides
	flags := cmd.Flags()
	if flags.Changed("url") {
		f.URL = &opts.url
	}
	if flags.Changed("auth") {
		mode := rest.AuthMode(strings.ToLower(opts.auth))
		if mode == "none" {
			mode = rest.AuthNone
		}
		f.Authentication = &mode
	}
	if flags.Changed("token") {
		f.Token = &opts.token
	}
	if flags.Changed("secret") {
		f.Secret = &opts.secret
	}
	if flags.Changed("username") {
		f.Username = &opts.username
	}
	if flags.Changed("password") {
		f.Password = &opts.password
	}
	if flags.Changed("algorithm") {
		f.Algorithm = &opts.algorithm
	}
	if flags.Changed("insecure") {
		f.AllowSelfSigned = &opts.insecure
	}
	if flags.Changed("no-validate") {
		f.Validate = rest.Ptr(!opts.noValidate)
	}
	if flags.Changed("debug") {
		f.Debug = &opts.debug
	}
	if flags.Changed("timeout") {
		f.TransportOptions = map[string]any{"timeout": opts.timeout.String()}
	}
	if len(opts.headers) > 0 {
		headers, err := parseHeaders(opts.headers)
		if err != nil {
			return rest.Overrides{}, err
		}
		f.Headers = headers
	}
	layer(&o, f)
	return o, nil
}

// layer copies every option set in top over base. Maps merge key-wise.
func layer(base *rest.Overrides, top rest.Overrides) {
	pick(&base.URL, top.URL)
	pick(&base.Authentication, top.Authentication)
	pick(&base.Token, top.Token)
	pick(&base.Secret, top.Secret)
	pick(&base.Username, top.Username)
	pick(&base.Password, top.Password)
	pick(&base.Algorithm, top.Algorithm)
	pick(&base.Debug, top.Debug)
	pick(&base.AllowSelfSigned, top.AllowSelfSigned)
	pick(&base.Validate, top.Validate)
	pick(&base.ResponseAsArray, top.ResponseAsArray)
	base.Headers = mergeMap(base.Headers, top.Headers)
	base.TransportOptions = mergeMap(base.TransportOptions, top.TransportOptions)
	if top.Parameters != nil {
		base.Parameters = rest.Params(mergeMap(base.Parameters, top.Parameters))
	}
}

func pick[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}

func mergeMap[M ~map[string]V, V any](base, top M) M {
	if len(top) == 0 {
		return base
	}
	out := make(M, len(base)+len(top))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		out[k] = v
	}
	return out
}

// MockURL is the base URL used with --mock unless --url is given.
const MockURL = "http://mock.localhost"

// newClient builds a client from the layered options. With --mock the client is served by
// a fresh in-process mock API whose state lives as long as the client.
func (opts *rootOptions) newClient(cmd *cobra.Command) (*rest.Client, error) {
	o, err := opts.overrides(cmd)
	if err != nil {
		return nil, err
	}
	// debug may come from the options file or the environment, not only the flag
	logtrace.InitLogger(o.Debug != nil && *o.Debug)
	var clientOpts []rest.ClientOption
	if opts.mock {
		if !cmd.Flags().Changed("url") {
			o.URL = rest.Ptr(MockURL)
		}
		s := mockapi.NewServer(0)
		s.MountHandlers()
		clientOpts = append(clientOpts, rest.WithTransport(httpclient.NewHandlerTransport(s.Router)))
	}
	return rest.New(o, clientOpts...)
}
