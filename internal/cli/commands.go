package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/tansive/restclient/internal/common/apperrors"
	"github.com/tansive/restclient/internal/common/logtrace"
	"github.com/tansive/restclient/pkg/rest"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrAlreadyHandled signals that the command printed its own failure report.
var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)
var infoLabel = color.New(color.FgCyan)

// rootOptions holds the persistent flags shared by all commands.
type rootOptions struct {
	configFile string
	envFile    string
	jsonOutput bool

	url        string
	headers    []string
	auth       string
	token      string
	secret     string
	username   string
	password   string
	algorithm  string
	timeout    time.Duration
	insecure   bool
	noValidate bool
	debug      bool
	mock       bool
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "restcli [command] [flags]",
		Short: "restcli - send signed REST requests from the command line",
		Long: `restcli sends GET, POST, PUT, PATCH and DELETE requests to a REST API,
optionally signed with OAuth1, an HMAC query signature or basic auth, and
validates the response status against the method's expected codes.

Parameters are given as key=value (strings) or key:=json (typed) pairs.
Keys are paths, so user.name=x builds {"user":{"name":"x"}}.

Examples:
  # List posts
  restcli get /posts --url https://jsonplaceholder.typicode.com

  # Create a post with a JSON body
  restcli post /posts title=lorem body="lorem ipsum" userId:=1 -H "Content-Type: application/json"

  # Sign with OAuth1, credentials from RESTCLI_TOKEN and RESTCLI_SECRET
  restcli get /me --auth oauth1

  # Try a request file against the in-process mock API
  restcli run -f requests.yaml --mock

  # Run the bundled mock API
  restcli mock --port 8080`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logtrace.InitLogger(opts.debug)
			return loadEnvFile(opts.envFile)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "", "", "Path to an options file (.yaml, .toml or .json)")
	pf.StringVarP(&opts.envFile, "env-file", "", "", "Path to a .env file with RESTCLI_* variables (default ./.env if present)")
	pf.BoolVarP(&opts.jsonOutput, "json", "j", false, "Output in JSON format")
	pf.StringVarP(&opts.url, "url", "u", "", "Base URL the request URI is appended to")
	pf.StringArrayVarP(&opts.headers, "header", "H", nil, `Request header as "Name: value", repeatable`)
	pf.StringVarP(&opts.auth, "auth", "", "", "Authentication: oauth1, signature, basic or none")
	pf.StringVarP(&opts.token, "token", "", "", "OAuth1 token")
	pf.StringVarP(&opts.secret, "secret", "", "", "Secret for oauth1 and signature authentication")
	pf.StringVarP(&opts.username, "username", "", "", "Basic auth user name")
	pf.StringVarP(&opts.password, "password", "", "", "Basic auth password")
	pf.StringVarP(&opts.algorithm, "algorithm", "", "", "HMAC algorithm: md5, sha1, sha224, sha256, sha384 or sha512")
	pf.DurationVarP(&opts.timeout, "timeout", "", 0, "Request timeout, e.g. 5s")
	pf.BoolVarP(&opts.insecure, "insecure", "k", false, "Accept self-signed TLS certificates")
	pf.BoolVarP(&opts.noValidate, "no-validate", "", false, "Do not fail on unexpected status codes")
	pf.BoolVarP(&opts.debug, "debug", "d", false, "Log request details and timings")
	pf.BoolVarP(&opts.mock, "mock", "", false, "Send requests to an in-process mock API instead of the network")

	rootCmd.AddCommand(newVersionCmd(opts))
	for _, method := range verbs {
		rootCmd.AddCommand(newRequestCmd(opts, method))
	}
	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newMockCmd())
	return rootCmd, opts
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	rootCmd, opts := newRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		reportError(os.Stderr, err, opts.jsonOutput)
		os.Exit(1)
	}
}

func reportError(w io.Writer, err error, jsonOutput bool) {
	if errors.Is(err, ErrAlreadyHandled) {
		return
	}
	msg := err.Error()
	var appErr apperrors.Error
	if errors.As(err, &appErr) {
		msg = appErr.ErrorAll()
	}
	if jsonOutput {
		printJSON(w, map[string]any{"result": 0, "error": msg})
		return
	}
	errorLabel.Fprintf(w, "Error: %s\n", msg)
}

// newVersionCmd creates and returns a new version command
func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of restcli",
		Run: func(cmd *cobra.Command, args []string) {
			if opts.jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]string{
					"version":    rest.Version,
					"user_agent": rest.UserAgent(),
				})
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restcli %s\n", rest.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "User-Agent: %s\n", rest.UserAgent())
		},
	}
}

// printJSON prints v as indented JSON
func printJSON(w io.Writer, v any) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(jsonData))
}
