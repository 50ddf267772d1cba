package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropfetch/dropfetch/internal/domain"
	"github.com/dropfetch/dropfetch/internal/remote/dropbox"
)

func newAuthCmd() *cobra.Command {
	var (
		appKey    string
		appSecret string
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize dropfetch with your Dropbox app",
		Long: `auth runs the interactive OAuth flow. It prints an authorization URL,
waits for the code Dropbox shows you, and stores the resulting refresh
token so later downloads can renew access tokens on their own.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("app-key") {
				cfg.Auth.AppKey = appKey
			}
			if cmd.Flags().Changed("app-secret") {
				cfg.Auth.AppSecret = appSecret
			}
			if cfg.Auth.AppKey == "" || cfg.Auth.AppSecret == "" {
				return fmt.Errorf("%w: auth requires an app key and app secret", domain.ErrMissingCredentials)
			}

			if err := initLogger(cfg); err != nil {
				return err
			}

			authn := dropbox.NewAuthenticator(cfg.Auth.AppKey, cfg.Auth.AppSecret, cfg.Auth.TokenPath)
			if _, err := authn.Authorize(cmd.Context()); err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Authorized. Token stored at %s\n", authn.TokenPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&appKey, "app-key", "", "Dropbox app key")
	cmd.Flags().StringVar(&appSecret, "app-secret", "", "Dropbox app secret")

	return cmd
}
