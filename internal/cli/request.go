package cli

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var verbs = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// newRequestCmd creates the command sending a single request with method.
func newRequestCmd(opts *rootOptions, method string) *cobra.Command {
	verb := strings.ToLower(method)
	return &cobra.Command{
		Use:   verb + " URI [key=value | key:=json]...",
		Short: fmt.Sprintf("Send a %s request", method),
		Long: fmt.Sprintf(`Send a %s request to the base URL joined with URI.

GET sends the parameters in the query string. Other methods send them as the
body, encoded according to the Content-Type header.`, method),
		Example: fmt.Sprintf("  restcli %s /posts/1 --url http://localhost:8080", verb),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}
			client, err := opts.newClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Send(cmd.Context(), args[0], method, params, nil)
			if resp != nil {
				printResponse(cmd.OutOrStdout(), resp, opts.jsonOutput)
			}
			return err
		},
	}
}
