package cli

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/drata-client/pkg/client"
	"github.com/Sternrassler/drata-client/pkg/node"
	"github.com/Sternrassler/drata-client/pkg/params"
	"github.com/Sternrassler/drata-client/pkg/resources"
)

func newCallCommand(a *app) *cobra.Command {
	var (
		paramsJSON     string
		paramPairs     []string
		filePairs      []string
		continueOnFail bool
	)

	cmd := &cobra.Command{
		Use:   "call <resource> <operation>",
		Short: "Run one resource operation",
		Long: `Run one resource operation and print the resulting items as JSON.

Parameters are given as name=value pairs. Values that parse as JSON (numbers,
booleans, objects) are passed as such, anything else as a string:

  drata call control getAll -p returnAll=true -p 'filters={"frameworkId":"soc2"}'
  drata call evidence upload -p controlId=12 --file data=report.pdf`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(paramsJSON, paramPairs)
			if err != nil {
				return err
			}
			p["resource"] = args[0]
			p["operation"] = args[1]

			files, err := readFiles(filePairs)
			if err != nil {
				return err
			}

			host := &node.StaticHost{
				Creds:    a.cfg.Credentials(),
				Items:    []map[string]any{p},
				Files:    []map[string]client.File{files},
				FailSoft: continueOnFail,
			}
			action := node.NewAction(node.ActionConfig{
				Connect: func(creds node.Credentials) (resources.API, error) {
					return a.cfg.NewClient(creds)
				},
			})

			out, err := action.Execute(cmd.Context(), host, 1)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringArrayVarP(&paramPairs, "param", "p", nil, "parameter as name=value (repeatable)")
	cmd.Flags().StringVar(&paramsJSON, "params", "", "parameters as a JSON object")
	cmd.Flags().StringArrayVar(&filePairs, "file", nil, "binary data as property=path, or path for the data property (repeatable)")
	cmd.Flags().BoolVar(&continueOnFail, "continue-on-fail", false, "print the error as an item instead of failing")

	return cmd
}

// parseParams merges the JSON object and the name=value pairs, pairs winning.
// The result is cleaned of null and empty values.
func parseParams(object string, pairs []string) (map[string]any, error) {
	p := map[string]any{}
	if object != "" {
		if err := json.Unmarshal([]byte(object), &p); err != nil {
			return nil, fmt.Errorf("--params: %w", err)
		}
	}
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("--param %q: expected name=value", pair)
		}
		p[name] = parseValue(raw)
	}
	return params.Clean(p), nil
}

// jsonNumber is the JSON number grammar. The decoder also accepts forms
// such as 007, which must stay strings.
var jsonNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// parseValue decodes raw as JSON and falls back to the raw string.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	if _, ok := v.(float64); ok && !jsonNumber.MatchString(strings.TrimSpace(raw)) {
		return raw
	}
	return v
}

// readFiles loads property=path pairs into binary data.
func readFiles(pairs []string) (map[string]client.File, error) {
	files := make(map[string]client.File, len(pairs))
	for _, pair := range pairs {
		property, path, ok := strings.Cut(pair, "=")
		if !ok {
			property, path = resources.DefaultBinaryProperty, pair
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("--file %s: %w", property, err)
		}
		files[property] = client.File{
			Name:        filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Data:        data,
		}
	}
	return files, nil
}
