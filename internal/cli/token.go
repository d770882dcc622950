package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/NovaByteCorp/deliverypro/internal/app"
	"github.com/NovaByteCorp/deliverypro/internal/config"
	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/repository/account"
	"github.com/NovaByteCorp/deliverypro/internal/session"
)

type userGetter interface {
	GetUser(ctx context.Context, id string) (*entity.User, error)
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Development tokens",
	}

	issue := &cobra.Command{
		Use:   "issue <user-id>",
		Short: "Sign a bearer token for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _ := cmd.Flags().GetDuration("ttl")
			var (
				users *account.Repository
				cfg   config.Config
			)
			opts := fx.Options(app.Storage, account.Module, fx.Populate(&users, &cfg))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				token, err := issueToken(ctx, users, cfg.Auth, args[0], ttl)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	issue.Flags().Duration("ttl", 0, "token lifetime (defaults to AUTH_TOKEN_EXPIRATION)")

	cmd.AddCommand(issue)
	return cmd
}

func issueToken(ctx context.Context, users userGetter, auth config.Auth, userID string, ttl time.Duration) (string, error) {
	if auth.JWTSecret == "" {
		return "", errors.New("AUTH_JWT_SECRET is not set")
	}
	if ttl <= 0 {
		ttl = auth.TokenExpiration
	}
	user, err := users.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user %s: %w", userID, err)
	}
	return session.IssueToken(user, auth.JWTSecret, ttl)
}
