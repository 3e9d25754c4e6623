package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// errCallFailed is returned after a failed call's envelope has been printed.
var errCallFailed = errors.New("call failed")

func newCallCmd() *cobra.Command {
	var (
		params     string
		paramsFile string
	)

	cmd := &cobra.Command{
		Use:   "call <method>",
		Short: "Dispatch one method and print the response envelope",
		Long: `Initialize the Gmail session, dispatch a single method and print the
{ok, result, error} envelope as JSON.

Parameters are a JSON object given with --params, or read from a file with
--params-file ("-" reads stdin). Examples:

  mailwarm call gmail.inbox -p '{"limit": 5}'
  mailwarm call gmail.read -p '{"message_id": "18c2..."}'
  echo '{"query": "has:attachment"}' | mailwarm call gmail.search -f -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readParams(cmd.InOrStdin(), params, paramsFile)
			if err != nil {
				return err
			}
			return runCall(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], raw)
		},
	}

	cmd.Flags().StringVarP(&params, "params", "p", "", "Method parameters as a JSON object")
	cmd.Flags().StringVarP(&paramsFile, "params-file", "f", "", "Read parameters from a file, - for stdin")
	cmd.MarkFlagsMutuallyExclusive("params", "params-file")

	return cmd
}

func readParams(stdin io.Reader, inline, file string) ([]byte, error) {
	switch {
	case file == "-":
		return io.ReadAll(stdin)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read params file: %w", err)
		}
		return data, nil
	default:
		return []byte(strings.TrimSpace(inline)), nil
	}
}

func runCall(ctx context.Context, out, logOut io.Writer, method string, raw []byte) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := newRuntime(ctx, logOut)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	// A failed Init is reported through the envelope by the session.
	_ = rt.session.Init(ctx)

	resp := rt.dispatcher.CallJSON(ctx, method, raw)
	if err := writeJSON(out, resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%w: %s", errCallFailed, resp.Error.Code)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}
