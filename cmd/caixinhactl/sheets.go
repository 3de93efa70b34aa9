package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"caixinha/internal/auth"
	"caixinha/internal/sheets/google"
)

func newVerifier(a *app) (*auth.Verifier, error) {
	if a.cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	return auth.NewVerifier(a.cfg.JWTSecret, a.cfg.JWTIssuer)
}

func sheetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Google Sheets mirror setup",
	}

	var port string
	authorize := &cobra.Command{
		Use:   "authorize",
		Short: "Run the OAuth consent flow and store the token file",
		Long: `Open the printed URL, grant access, and the token is written to
GOOGLE_OAUTH_TOKEN_FILE. The OAuth client must list
http://localhost:<port>/callback as an authorized redirect URI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.GoogleOAuthClientFile == "" {
				return fmt.Errorf("GOOGLE_OAUTH_CLIENT_FILE is not set")
			}
			tokenFile := a.cfg.GoogleOAuthTokenFile
			if tokenFile == "" {
				tokenFile = "token.json"
			}

			oauthCfg, err := google.LoadOAuthConfig(a.cfg.GoogleOAuthClientFile)
			if err != nil {
				return err
			}
			tok, err := google.Authorize(cmd.Context(), oauthCfg, port, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := google.SaveToken(tokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token saved to %s\n", tokenFile)
			return nil
		},
	}
	authorize.Flags().StringVar(&port, "port", "8085", "local port for the OAuth redirect")
	cmd.AddCommand(authorize)

	return cmd
}
