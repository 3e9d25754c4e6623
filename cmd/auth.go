package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newAuthCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Run the OAuth consent flow for the Gmail token",
		Long: `Without --code, print the consent URL for the configured client secret.
Open it in a browser, grant access and copy the authorization code.

With --code, exchange the code for a token and store it in the configured
token store (file in the first credential directory, or the keyring).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), code)
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code from the consent page")

	return cmd
}

func runAuth(ctx context.Context, out, logOut io.Writer, code string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := newRuntime(ctx, logOut)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	if code == "" {
		url, err := rt.store.AuthURL()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Visit this URL to grant access, then run: mailwarm auth --code <code>")
		fmt.Fprintln(out, url)
		return nil
	}

	creds, err := rt.store.CompleteAuthFlow(ctx, code)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Token stored in %s\n", creds.Source)
	return nil
}
