package cmd

import (
	"fmt"

	"github.com/iksnae/wize-panels/internal"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored auth token",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := newTokenStore()
		if err := store.Logout(); err != nil {
			return fmt.Errorf("failed to log out: %w", err)
		}
		internal.PrintSuccess("Logged out")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
