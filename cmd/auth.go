// cmd/auth.go - Access token check command
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Check the access token against the API",
	Long: `Check the configured access token with a single tile request. Exits non-zero
when the token is missing or rejected.`,
	Args: cobra.NoArgs,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, nil)
	if err != nil {
		return err
	}
	if err := rt.client.Authenticate(cmd.Context()); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "access token accepted")
	return err
}
