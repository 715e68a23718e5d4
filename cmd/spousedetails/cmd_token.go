package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spousedetails/internal/auth"
	"spousedetails/internal/config"
	"spousedetails/internal/model"
)

// newTokenCmd issues a development access token signed with the
// configured JWT secret.
func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		userID string
		email  string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if conf.Auth.Mode != config.AuthModeJWT {
				return errors.New("token signing needs auth.mode=jwt")
			}
			if userID == "" {
				return errors.New("--user is required")
			}

			v, err := auth.NewJWTVerifier(conf.Auth.JWTSecret, conf.Auth.Issuer, conf.Auth.Audience)
			if err != nil {
				return err
			}
			tok, err := v.Sign(model.Identity{ID: userID, Email: email}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Subject (user id) of the token")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
