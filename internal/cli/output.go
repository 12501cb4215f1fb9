package cli

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tansive/restclient/pkg/rest"
	"github.com/tidwall/gjson"
	"sigs.k8s.io/yaml"
)

// printResponse writes a colored status line followed by the body. JSON bodies are shown
// as YAML, or as indented JSON in JSON mode; anything else is printed as is.
func printResponse(w io.Writer, resp *rest.Response, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, map[string]any{
			"method":       resp.Method,
			"url":          resp.URL,
			"status":       resp.StatusCode,
			"succeeded":    resp.Succeeded(),
			"request_id":   resp.RequestID,
			"total_ms":     resp.TotalTime.Milliseconds(),
			"content_type": resp.MediaType(),
			"body":         resp.Decode(true),
		})
		return
	}

	label := okLabel
	if !resp.Succeeded() {
		label = errorLabel
	}
	label.Fprintf(w, "%s %s -> %d %s", resp.Method, resp.URL, resp.StatusCode, http.StatusText(resp.StatusCode))
	infoLabel.Fprintf(w, " (%dms)\n", resp.TotalTime.Milliseconds())

	if len(resp.Body) == 0 {
		return
	}
	if !gjson.ValidBytes(resp.Body) {
		if mt := resp.MediaType(); mt != "" && !strings.HasPrefix(mt, "text/") {
			fmt.Fprintf(w, "<%d bytes of %s>\n", len(resp.Body), mt)
			return
		}
		fmt.Fprintln(w, resp.Raw())
		return
	}
	out, err := yaml.JSONToYAML(resp.Body)
	if err != nil {
		fmt.Fprintln(w, resp.Raw())
		return
	}
	fmt.Fprint(w, string(out))
}
