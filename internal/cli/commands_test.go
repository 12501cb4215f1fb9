package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/restclient/internal/common/logtrace"
	"github.com/tansive/restclient/internal/mockapi"
	"github.com/tansive/restclient/pkg/rest"
)

func newMockAPI(t *testing.T) (*mockapi.Server, *httptest.Server) {
	t.Helper()
	s := mockapi.NewServer(0)
	s.MountHandlers()
	ts := httptest.NewServer(s.Router)
	t.Cleanup(ts.Close)
	return s, ts
}

// isolate keeps the user's config file and .env out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd, _ := newRootCmd()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "restcli "+rest.Version)
	assert.Contains(t, out, rest.UserAgent())

	out, err = executeCommand(t, "version", "-j")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "`+rest.Version+`"`)
}

func TestGetCommand(t *testing.T) {
	isolate(t)
	_, ts := newMockAPI(t)

	out, err := executeCommand(t, "get", "/posts/1", "--url", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "GET "+ts.URL+"/posts/1 -> 200 OK")
	assert.Contains(t, out, "title: sunt aut facere repellat provident")

	out, err = executeCommand(t, "get", "/posts", "userId=2", "--url", ts.URL, "-j")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": 200`)
	assert.Contains(t, out, "/posts?userId=2")
}

func TestPostCommandSendsJSON(t *testing.T) {
	isolate(t)
	s, ts := newMockAPI(t)

	out, err := executeCommand(t, "post", "/posts", "title=from cli", "userId:=7",
		"--url", ts.URL, "-H", "Content-Type: application/json")
	require.NoError(t, err)
	assert.Contains(t, out, "-> 201 Created")

	posts := s.Store().List(7)
	require.Len(t, posts, 1)
	assert.Equal(t, "from cli", posts[0].Title)
}

func TestUnexpectedStatus(t *testing.T) {
	isolate(t)
	_, ts := newMockAPI(t)

	out, err := executeCommand(t, "get", "/status/404", "--url", ts.URL)
	require.Error(t, err)
	var respErr *rest.ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, 404, respErr.StatusCode)
	assert.Contains(t, out, "-> 404 Not Found")

	_, err = executeCommand(t, "get", "/status/404", "--url", ts.URL, "--no-validate")
	assert.NoError(t, err)
}

func TestConfigurationErrors(t *testing.T) {
	isolate(t)

	_, err := executeCommand(t, "get", "/posts", "--auth", "kerberos")
	require.Error(t, err)
	assert.ErrorIs(t, err, rest.ErrUnsupportedAuth)

	_, err = executeCommand(t, "get", "/posts", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = executeCommand(t, "get")
	assert.Error(t, err)
}

func TestReportError(t *testing.T) {
	var out bytes.Buffer
	reportError(&out, rest.ErrMissingToken.Msg("no token for oauth1"), false)
	assert.Contains(t, out.String(), "Error: no token for oauth1")

	out.Reset()
	reportError(&out, errors.New("boom"), true)
	assert.Contains(t, out.String(), `"error": "boom"`)

	out.Reset()
	reportError(&out, ErrAlreadyHandled, false)
	assert.Empty(t, out.String())
}

func TestOverridesPrecedence(t *testing.T) {
	isolate(t)
	configFile := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`url: http://from-file
token: file-token
secret: "{{ .ENV.RESTCLI_TEST_SECRET }}"
headers:
  X-From-File: "1"
curl_options:
  timeout: 5
`), 0644))
	t.Setenv("RESTCLI_TEST_SECRET", "templated")
	t.Setenv("RESTCLI_TOKEN", "env-token")
	t.Setenv("RESTCLI_AUTH", "OAuth1")

	rootCmd, opts := newRootCmd()
	cmd, _, err := rootCmd.Find([]string{"get"})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", configFile,
		"--url", "http://from-flag",
		"-H", "X-From-Flag: 2",
		"--timeout", "2s",
		"--no-validate",
	}))

	o, err := opts.overrides(cmd)
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag", *o.URL)
	assert.Equal(t, "env-token", *o.Token)
	assert.Equal(t, "templated", *o.Secret)
	assert.Equal(t, rest.AuthOAuth1, *o.Authentication)
	assert.False(t, *o.Validate)
	assert.Nil(t, o.Debug)
	assert.Equal(t, map[string]string{"X-From-File": "1", "X-From-Flag": "2"}, o.Headers)
	assert.Equal(t, "2s", o.TransportOptions["timeout"])

	opts2 := rest.Resolve(rest.DefaultOptions(), o)
	assert.Equal(t, "application/x-www-form-urlencoded", opts2.Headers["Content-Type"])
}

func TestRunCommand(t *testing.T) {
	isolate(t)
	_, ts := newMockAPI(t)
	file := filepath.Join(t.TempDir(), "requests.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`name: create
method: post
uri: /posts
params:
  title: hello
---
method: get
uri: /posts/999
expect: 404
---
method: delete
uri: /posts/1
`), 0644))

	out, err := executeCommand(t, "run", "-f", file, "--url", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "# create")
	assert.Contains(t, out, "# GET /posts/999")
	assert.Contains(t, out, "3 passed, 0 failed")
}

func TestRunCommandStopsOnFailure(t *testing.T) {
	isolate(t)
	_, ts := newMockAPI(t)
	file := filepath.Join(t.TempDir(), "requests.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`method: get
uri: /status/500
---
method: get
uri: /posts/1
`), 0644))

	out, err := executeCommand(t, "run", "-f", file, "--url", ts.URL)
	assert.ErrorIs(t, err, ErrAlreadyHandled)
	assert.Contains(t, out, "0 passed, 1 failed")

	out, err = executeCommand(t, "run", "-f", file, "--url", ts.URL, "--keep-going")
	assert.ErrorIs(t, err, ErrAlreadyHandled)
	assert.Contains(t, out, "1 passed, 1 failed")
}

func TestMockFlag(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "requests.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`method: post
uri: /posts
params:
  title: kept
  userId: 42
---
method: get
uri: /posts
params:
  userId: 42
`), 0644))

	out, err := executeCommand(t, "run", "-f", file, "--mock")
	require.NoError(t, err)
	assert.Contains(t, out, MockURL+"/posts?userId=42 -> 200 OK")
	assert.Contains(t, out, "title: kept")
	assert.Contains(t, out, "2 passed, 0 failed")
}

func TestDebugFromConfigFile(t *testing.T) {
	isolate(t)
	prevLevel, prevLogger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prevLevel)
		log.Logger = prevLogger
	})
	configFile := filepath.Join(t.TempDir(), "options.toml")
	require.NoError(t, os.WriteFile(configFile, []byte("debug = true\n"), 0644))

	rootCmd, opts := newRootCmd()
	cmd, _, err := rootCmd.Find([]string{"get"})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags([]string{"--config", configFile}))

	logtrace.InitLogger(false)
	c, err := opts.newClient(cmd)
	require.NoError(t, err)
	assert.True(t, c.Options().Debug)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
