package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tansive/restclient/pkg/rest"
)

// newRunCmd creates the command replaying a request file.
func newRunCmd(opts *rootOptions) *cobra.Command {
	var file string
	var keepGoing bool
	cmd := &cobra.Command{
		Use:   "run -f FILE",
		Short: "Send the requests listed in a YAML file",
		Long: `Send the requests of a multi-document YAML file in order, one client for all.

Each document has the keys name, method, uri, params, headers and expect.
{{ .ENV.NAME }} placeholders are expanded from the environment first.

Example file:
  name: create
  method: post
  uri: /posts
  params:
    title: hello
  ---
  method: get
  uri: /posts/999
  expect: 404`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := LoadRequests(file)
			if err != nil {
				return err
			}
			client, err := opts.newClient(cmd)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			passed, failed := 0, 0
			for _, spec := range specs {
				if !opts.jsonOutput {
					infoLabel.Fprintf(w, "# %s\n", spec.Label())
				}
				resp, err := client.Send(cmd.Context(), spec.URI, spec.Method, rest.Params(spec.Params), spec.Headers)
				if resp != nil {
					printResponse(w, resp, opts.jsonOutput)
				}
				err = checkExpect(spec, resp, err)
				if err == nil {
					passed++
					continue
				}
				failed++
				errorLabel.Fprintf(w, "%s: %v\n", spec.Label(), err)
				if !keepGoing {
					break
				}
			}

			if !opts.jsonOutput {
				okLabel.Fprintf(w, "%d passed", passed)
				fmt.Fprint(w, ", ")
				errorLabel.Fprintf(w, "%d failed\n", failed)
			}
			if failed > 0 {
				return ErrAlreadyHandled
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "filename", "f", "", "Request file")
	cmd.Flags().BoolVarP(&keepGoing, "keep-going", "", false, "Continue after a failed request")
	cmd.MarkFlagRequired("filename")
	return cmd
}

// checkExpect applies a document's explicit expected status, which wins over the method's
// expectation.
func checkExpect(spec RequestSpec, resp *rest.Response, err error) error {
	if spec.Expect == 0 || resp == nil {
		return err
	}
	if err != nil && !errors.Is(err, rest.ErrResponseValidation) {
		return err
	}
	if resp.StatusCode != spec.Expect {
		return fmt.Errorf("expected status %d, got %d", spec.Expect, resp.StatusCode)
	}
	return nil
}
