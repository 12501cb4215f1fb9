package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tansive/restclient/internal/mockapi"
)

// newMockCmd creates the command serving the mock API until interrupted.
func newMockCmd() *cobra.Command {
	var port int
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Run the mock JSON API",
		Long: `Run a local JSON API with an in-memory post collection.

Routes:
  GET|POST /posts, GET|PUT|PATCH|DELETE /posts/{id}
  ANY /echo            echoes method, query, headers and body
  ANY /status/{code}   answers with the given status code
  GET /delay/{ms}      answers after a delay
  GET /envelope/posts  posts wrapped in {"data": [...]}
  GET /text, GET /blob non-JSON bodies

Any request with an X-Mock-Status header is answered with that status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := mockapi.NewServer(timeout)
			s.MountHandlers()
			okLabel.Fprintf(cmd.OutOrStdout(), "mock api listening on http://localhost:%d\n", port)
			return s.ListenAndServe(ctx, fmt.Sprintf(":%d", port))
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().DurationVarP(&timeout, "handler-timeout", "", mockapi.DefaultHandlerTimeout, "Handler timeout")
	return cmd
}
