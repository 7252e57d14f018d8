package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/heartmarshall/lexiflow-backend/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		user   string
		issuer string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API (secret from AUTH_JWT_SECRET)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := uuid.Parse(user)
			if err != nil {
				return fmt.Errorf("--user: %w", err)
			}
			secret := os.Getenv("AUTH_JWT_SECRET")
			if len(secret) < 32 {
				return errors.New("AUTH_JWT_SECRET must be set to at least 32 characters")
			}
			token, err := auth.NewJWTManager(secret, issuer, ttl).GenerateAccessToken(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&user, "user", "", "user ID (required)")
	f.StringVar(&issuer, "issuer", "lexiflow", "token issuer, must match auth.jwt_issuer")
	f.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
