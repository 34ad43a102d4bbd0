package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/simas-gestao/simas/internal/session"
)

var (
	tokenUser string
	tokenName string
	tokenRole string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a session token for local use",
	Long: `Signs an HS256 session token with the configured jwt_secret. Intended
for development and scripting; production tokens come from the identity
provider.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		ttl := tokenTTL
		if ttl <= 0 {
			ttl = time.Duration(cfg.TokenTTLHours) * time.Hour
		}
		tok, err := session.NewAuthenticator(cfg.JWTSecret, logger).Issue(session.Session{
			UserID: tokenUser,
			Name:   tokenName,
			Role:   session.Role(tokenRole),
		}, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (token subject)")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(session.RoleLeitura), "role: admin, editor or leitura")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default token_ttl_hours from config)")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
