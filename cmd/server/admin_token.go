package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkeye/danmaku/internal/auth"
	"github.com/dkeye/danmaku/internal/config"
)

// newAdminTokenCmd prints a credential for GetInfo{type:"admin"}, for operators
// who run without admin_password.
func newAdminTokenCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "admin-token",
		Short: "Print a signed admin console token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			token, err := auth.NewTokenManager(c.JWTSecret, c.TokenTTL).IssueAdmin()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
}
