package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mixnotes/internal/auth"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed access token for a user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return errors.New("--user must be a positive id")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tokens, err := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
			if err != nil {
				return err
			}
			raw, claims, err := tokens.Issue(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", claims.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "User id to embed in the token")
	return cmd
}
